package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docqa/internal/answer"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/embedding"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/stats"
)

const catsDoc = `Cats are small carnivorous mammals that have lived alongside humans for thousands of years.
The domestic cat was first domesticated in the Near East around 7500 BC.
Cats sleep between twelve and sixteen hours every day to conserve energy.
A group of cats is called a clowder, while a group of kittens is called a kindle.
`

func newTestServer(t *testing.T, apiKey string) (*Server, index.Store) {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.APIKey = apiKey
	cfg.IndexStore = "memory"
	cfg.UploadDir = t.TempDir()
	cfg.MaxUploadBytes = 4096

	ms := &pipeline.ModelStats{
		EmbeddingModel: "feature-hash",
		AnswerModel:    "lexical-overlap",
		Embedding:      stats.NewLatency(0),
		Answer:         stats.NewLatency(0),
	}
	store := index.NewMemoryStore()
	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Embedder: embedding.NewInstrumented(embedding.NewHash(256), ms.Embedding),
		Answerer: answer.NewInstrumented(answer.Lexical{}, ms.Answer),
		Store:    store,
	}, log)
	return NewServer(orch, ms, log, cfg), store
}

func uploadRequest(t *testing.T, sessionID, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/document", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func questionRequestFor(sessionID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/questions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/stats/models", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/models", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stats/models", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, serve(s, req).Code)
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/stats/models", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSession(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := decode(t, rec)["session_id"].(string)
	assert.Len(t, id, 36)
	assert.True(t, index.ValidKey(id))
}

func TestQuestion_BeforeUpload(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := serve(s, questionRequestFor("s1", `{"question":"What is a clowder?"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "please index a document first", decode(t, rec)["error"])
}

func TestUploadThenAsk(t *testing.T) {
	s, store := newTestServer(t, "")

	rec := serve(s, uploadRequest(t, "s1", "cats.txt", catsDoc))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode(t, rec)
	assert.Equal(t, "cats.txt", up["filename"])
	assert.True(t, strings.HasSuffix(up["stored_as"].(string), "_cats.txt"))
	assert.Equal(t, "feature-hash", up["model"])

	entries, err := os.ReadDir(s.cfg.UploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	idx, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Greater(t, idx.Len(), 0)

	rec = serve(s, questionRequestFor("s1", `{"question":"What is a group of cats called?","top_k":2}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var a pipeline.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Contains(t, a.Text, "clowder")
	assert.NotEmpty(t, a.Sources)
	assert.LessOrEqual(t, len(a.Sources), 2)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/sessions/s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode(t, rec)
	assert.Equal(t, "ready", snap["status"])

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/stats/models", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ms pipeline.ModelStatsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	assert.Equal(t, "feature-hash", ms.Embedding.Model)
	assert.Equal(t, 1, ms.Answer.Count)
}

func TestUpload_UnsupportedType(t *testing.T) {
	s, store := newTestServer(t, "")
	rec := serve(s, uploadRequest(t, "s1", "data.csv", "a,b\n1,2\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := store.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, index.ErrIndexMissing)
}

func TestUpload_TooLarge(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := serve(s, uploadRequest(t, "s1", "big.txt", strings.Repeat("word ", 2000)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	entries, err := os.ReadDir(s.cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_MissingFile(t *testing.T) {
	s, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/document", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, serve(s, req).Code)
}

func TestQuestion_BadRequests(t *testing.T) {
	s, _ := newTestServer(t, "")
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"question":`},
		{"empty question", `{"question":"   "}`},
		{"negative top_k", `{"question":"why?","top_k":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, questionRequestFor("s1", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestInvalidSessionID(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := serve(s, questionRequestFor("bad%20id", `{"question":"why?"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, uploadRequest(t, "bad%20id", "cats.txt", catsDoc))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSession_NotFoundAndDelete(t *testing.T) {
	s, store := newTestServer(t, "")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "s1", "cats.txt", catsDoc)).Code)
	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := store.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, index.ErrIndexMissing)
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/sessions/s1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload_ReplacedAndDeletedFilesRemoved(t *testing.T) {
	s, _ := newTestServer(t, "")

	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "s1", "cats.txt", catsDoc)).Code)
	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "s1", "cats2.txt", catsDoc)).Code)
	entries, err := os.ReadDir(s.cfg.UploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_cats2.txt"))

	require.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodDelete, "/api/sessions/s1", nil)).Code)
	entries, err = os.ReadDir(s.cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestModelStats_Unavailable(t *testing.T) {
	s, _ := newTestServer(t, "")
	s.stats = nil
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/stats/models", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\notes.txt`, "notes.txt"},
		{"a..b.txt", "a_b.txt"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
