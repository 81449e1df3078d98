package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/apierr"
)

// Store manages all session records. It is safe for concurrent use: each
// session carries its own lock, so operations on different sessions run
// fully in parallel while operations on the same session serialize.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// entry pairs a session with the lock that serializes its mutations.
type entry struct {
	mu sync.Mutex
	s  Session
}

// NewStore returns an initialised Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
	}
}

// Create inserts a new recording session for the given owner and patient
// and returns a copy of it.
func (st *Store) Create(ownerID, patientID string) Session {
	now := time.Now().UTC()
	e := &entry{s: Session{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		PatientID:    patientID,
		Status:       StatusRecording,
		Chunks:       []ChunkRef{},
		CreatedAt:    now,
		LastActivity: now,
	}}

	st.mu.Lock()
	st.sessions[e.s.ID] = e
	st.mu.Unlock()

	return cloneSession(&e.s)
}

// Get returns the session with the given id if it belongs to ownerID.
// Foreign sessions are reported as not found, never as forbidden.
func (st *Store) Get(id, ownerID string) (Session, error) {
	e, err := st.lookup(id, ownerID)
	if err != nil {
		return Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(&e.s), nil
}

// ListByOwner returns all sessions belonging to ownerID.
func (st *Store) ListByOwner(ownerID string) []Session {
	return st.list(func(s *Session) bool { return s.OwnerID == ownerID })
}

// ListByPatient returns the owner's sessions for one patient.
func (st *Store) ListByPatient(patientID, ownerID string) []Session {
	return st.list(func(s *Session) bool {
		return s.OwnerID == ownerID && s.PatientID == patientID
	})
}

// Mutate runs fn against the session under its lock and persists the result
// only when fn returns nil. It is the sole mutation path for session state;
// the per-session lock is the serialization point for chunk appends and
// status transitions. fn receives a copy, so a failed mutation leaves the
// stored session untouched. Returns the session as stored after the call.
func (st *Store) Mutate(id, ownerID string, fn func(*Session) error) (Session, error) {
	e, err := st.lookup(id, ownerID)
	if err != nil {
		return Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := cloneSession(&e.s)
	if err := fn(&working); err != nil {
		return cloneSession(&e.s), err
	}

	e.s = working
	return cloneSession(&e.s), nil
}

// GetCounts returns the number of sessions per lifecycle state.
func (st *Store) GetCounts() Counts {
	st.mu.RLock()
	entries := make([]*entry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	var c Counts
	for _, e := range entries {
		e.mu.Lock()
		switch e.s.Status {
		case StatusRecording:
			c.Recording++
		case StatusFinalizing:
			c.Finalizing++
		case StatusCompleted:
			c.Completed++
		}
		e.mu.Unlock()
	}

	return c
}

func (st *Store) lookup(id, ownerID string) (*entry, error) {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()

	// OwnerID is immutable after Create, so it is safe to check without the
	// entry lock.
	if !ok || e.s.OwnerID != ownerID {
		return nil, apierr.NotFound("session %s not found", id)
	}

	return e, nil
}

func (st *Store) list(match func(*Session) bool) []Session {
	st.mu.RLock()
	entries := make([]*entry, 0, len(st.sessions))
	for _, e := range st.sessions {
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	out := make([]Session, 0)
	for _, e := range entries {
		e.mu.Lock()
		if match(&e.s) {
			out = append(out, cloneSession(&e.s))
		}
		e.mu.Unlock()
	}

	return out
}

// cloneSession deep-copies a session so callers never alias store state.
func cloneSession(s *Session) Session {
	out := *s
	out.Chunks = append([]ChunkRef(nil), s.Chunks...)
	return out
}
