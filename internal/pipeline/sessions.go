package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// Status represents the indexing state of a session.
type Status string

const (
	StatusEmpty     Status = "empty"
	StatusParsing   Status = "parsing"
	StatusChunking  Status = "chunking"
	StatusEmbedding Status = "embedding"
	StatusStoring   Status = "storing"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
)

// Session tracks the document indexed under one session ID.
type Session struct {
	mu sync.Mutex
	// op serializes ingestion and queries within the session.
	op sync.Mutex

	ID string

	Status   Status
	Phase    string
	Filename string

	ContentHash string
	Chunks      int
	Questions   int
	LastError   string

	// upload is the stored copy of an uploaded document, removed when the
	// session's document is replaced or evicted. Empty for caller-owned files.
	upload string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Status:    StatusEmpty,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Sessions is a thread-safe in-memory session registry with TTL eviction.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (s *Sessions) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// GetOrCreate returns the session for id, registering an empty one if needed.
func (s *Sessions) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := newSession(id)
	s.sessions[id] = sess
	return sess
}

func (s *Sessions) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// RemoveIf unregisters sess only if it is still the session held for its ID.
func (s *Sessions) RemoveIf(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.ID] != sess {
		return false
	}
	delete(s.sessions, sess.ID)
	return true
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns them.
func (s *Sessions) Cleanup() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var evicted []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUpdate()) > s.ttl {
			delete(s.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	return evicted
}

func (sess *Session) lastUpdate() time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.UpdatedAt
}

// SetStatus updates session status atomically.
func (sess *Session) SetStatus(status Status, phase string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Status = status
	sess.Phase = phase
	sess.UpdatedAt = time.Now()
}

// Indexed records a completed ingestion.
func (sess *Session) Indexed(filename, hash string, chunks int) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Status = StatusReady
	sess.Phase = "done"
	sess.Filename = filename
	sess.ContentHash = hash
	sess.Chunks = chunks
	sess.Questions = 0
	sess.LastError = ""
	sess.UpdatedAt = time.Now()
}

// Fail records a failed ingestion. The session returns to prev, since a failed
// ingestion leaves any earlier index in place.
func (sess *Session) Fail(prev Status, phase string, err error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if prev == StatusEmpty {
		prev = StatusFailed
	}
	sess.Status = prev
	sess.Phase = phase
	sess.LastError = err.Error()
	sess.UpdatedAt = time.Now()
}

// Asked counts an answered question.
func (sess *Session) Asked() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Questions++
	sess.UpdatedAt = time.Now()
}

// swapUpload records path as the session's uploaded file and returns the
// previous one. Caller holds op.
func (sess *Session) swapUpload(path string) string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	old := sess.upload
	sess.upload = path
	return old
}

func (sess *Session) status() Status {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Status
}

// SessionSnapshot is a read-only, JSON-safe copy of session state.
type SessionSnapshot struct {
	ID          string    `json:"session_id"`
	Status      Status    `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	Chunks      int       `json:"chunks"`
	Questions   int       `json:"questions"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the session state.
func (sess *Session) Snapshot() SessionSnapshot {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return SessionSnapshot{
		ID:          sess.ID,
		Status:      sess.Status,
		Phase:       sess.Phase,
		Filename:    sess.Filename,
		ContentHash: sess.ContentHash,
		Chunks:      sess.Chunks,
		Questions:   sess.Questions,
		LastError:   sess.LastError,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
