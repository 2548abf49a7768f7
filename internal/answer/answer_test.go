package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/docqa/internal/stats"
)

type fakeAnswerer struct {
	res   Result
	err   error
	calls int
}

func (f *fakeAnswerer) Infer(context.Context, string, string) (Result, error) {
	f.calls++
	return f.res, f.err
}

func TestAnswer_EmptyContextSkipsModel(t *testing.T) {
	f := &fakeAnswerer{res: Result{Text: "should not be used"}}
	got, err := Answer(context.Background(), f, "question?", "  \n ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != NoAnswer {
		t.Errorf("expected %q, got %q", NoAnswer, got)
	}
	if f.calls != 0 {
		t.Errorf("expected model not to be called, got %d calls", f.calls)
	}
}

func TestAnswer_EmptySpanIsNoAnswer(t *testing.T) {
	f := &fakeAnswerer{res: Result{Text: "  ", Score: 0.2}}
	res, err := Resolve(context.Background(), f, "q", "some context")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != NoAnswer || res.Score != 0 {
		t.Errorf("expected no answer with score 0, got %+v", res)
	}
}

func TestAnswer_PropagatesModelError(t *testing.T) {
	f := &fakeAnswerer{err: errors.New("model down")}
	if _, err := Answer(context.Background(), f, "q", "ctx"); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestInstrumented_RecordsLatency(t *testing.T) {
	s := stats.NewLatency(time.Hour)
	a := NewInstrumented(&fakeAnswerer{res: Result{Text: "x"}}, s)
	if _, err := a.Infer(context.Background(), "q", "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap := s.Snapshot(); snap.Count != 1 {
		t.Errorf("expected 1 recorded call, got %d", snap.Count)
	}
}

func TestHTTPClient_Infer(t *testing.T) {
	var got qaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("expected bearer auth header, got %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"answer":" Paris ","score":0.93,"start":31,"end":36}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret", "", time.Second)
	defer c.Close()
	res, err := c.Infer(context.Background(), "Where is the tower?", sampleContext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Paris" || res.Score != 0.93 {
		t.Errorf("expected Paris/0.93, got %+v", res)
	}
	if got.Inputs.Question != "Where is the tower?" || got.Inputs.Context != sampleContext {
		t.Errorf("unexpected request body: %+v", got)
	}
	if c.Model() != DefaultQAModel {
		t.Errorf("expected default model %q, got %q", DefaultQAModel, c.Model())
	}
}

func TestHTTPClient_ListResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"answer":"1889","score":0.8},{"answer":"Paris","score":0.1}]`))
	}))
	defer srv.Close()

	res, err := NewHTTPClient(srv.URL, "", "", 0).Infer(context.Background(), "When?", sampleContext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "1889" {
		t.Errorf("expected first candidate, got %q", res.Text)
	}
}

func TestHTTPClient_RetryableStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", status)
		}))
		_, err := NewHTTPClient(srv.URL, "", "", time.Second).Infer(context.Background(), "q", "c")
		srv.Close()

		var re *RetryableError
		if !errors.As(err, &re) {
			t.Fatalf("status %d: expected RetryableError, got %v", status, err)
		}
		if re.StatusCode != status {
			t.Errorf("expected status %d, got %d", status, re.StatusCode)
		}
	}
}

func TestHTTPClient_ClientErrorNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", "", time.Second).Infer(context.Background(), "q", "c")
	var re *RetryableError
	if err == nil || errors.As(err, &re) {
		t.Errorf("expected plain error, got %v", err)
	}
}

func TestHTTPClient_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"context too long"}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPClient(srv.URL, "", "", time.Second).Infer(context.Background(), "q", "c"); err == nil {
		t.Error("expected error from error field")
	}
}

func chatServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestOpenAIClient_ValidSpan(t *testing.T) {
	srv := chatServer(t, http.StatusOK, chatReply(`"paris"`))
	defer srv.Close()

	c, err := NewOpenAIClient("", srv.URL+"/v1", "test", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := c.Infer(context.Background(), "Where?", sampleContext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Paris" || res.Score != 1 {
		t.Errorf("expected Paris/1, got %+v", res)
	}
}

func TestOpenAIClient_HallucinatedSpanDropped(t *testing.T) {
	srv := chatServer(t, http.StatusOK, chatReply("London"))
	defer srv.Close()

	c, _ := NewOpenAIClient("key", srv.URL+"/v1", "test", time.Second)
	got, err := Answer(context.Background(), c, "Where?", sampleContext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != NoAnswer {
		t.Errorf("expected %q, got %q", NoAnswer, got)
	}
}

func TestOpenAIClient_RateLimitedIsRetryable(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	defer srv.Close()

	c, _ := NewOpenAIClient("key", srv.URL+"/v1", "test", time.Second)
	_, err := c.Infer(context.Background(), "q", sampleContext)
	var re *RetryableError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetryableError, got %v", err)
	}
}

func TestNewOpenAIClient_RequiresCredentials(t *testing.T) {
	if _, err := NewOpenAIClient("", "", "", 0); err == nil {
		t.Error("expected error without key or base url")
	}
}

func TestLexical_PicksBestSentence(t *testing.T) {
	ctxText := "Cats are small carnivorous mammals.\nThe Eiffel Tower is located in Paris. It was completed in 1889."
	res, err := Lexical{}.Infer(context.Background(), "Where is the Eiffel Tower located?", ctxText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "The Eiffel Tower is located in Paris."
	if res.Text != want {
		t.Errorf("expected %q, got %q", want, res.Text)
	}
	if res.Score <= 0 || res.Score > 1 {
		t.Errorf("expected score in (0,1], got %f", res.Score)
	}
}

func TestLexical_NoOverlap(t *testing.T) {
	got, err := Answer(context.Background(), Lexical{}, "quantum chromodynamics", sampleContext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != NoAnswer {
		t.Errorf("expected %q, got %q", NoAnswer, got)
	}
}

func TestSentences(t *testing.T) {
	got := Sentences("One. Two!  Three?\nFour 3.5 five")
	want := []string{"One.", "Two!", "Three?", "Four 3.5 five"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
