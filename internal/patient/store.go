package patient

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/apierr"
)

// Store is a thread-safe, in-memory keyed collection of patient records.
// All mutation happens under the store lock, which makes the ledger's
// duplicate check and append atomic.
type Store struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

// NewStore returns an initialised Store.
func NewStore() *Store {
	return &Store{
		patients: make(map[string]*Patient),
	}
}

// Create adds a new patient for the given owner and returns a copy of the
// stored record.
func (s *Store) Create(ownerID, name string) (Patient, error) {
	if ownerID == "" {
		return Patient{}, apierr.Validation("missing owner id")
	}
	if name == "" {
		return Patient{}, apierr.Validation("missing patient name")
	}

	p := &Patient{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Transcripts: []TranscriptEntry{},
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.patients[p.ID] = p
	s.mu.Unlock()

	return clone(p), nil
}

// Get returns the patient with the given id if it belongs to ownerID.
// Foreign patients are reported as not found.
func (s *Store) Get(id, ownerID string) (Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[id]
	if !ok || p.OwnerID != ownerID {
		return Patient{}, apierr.NotFound("patient %s not found", id)
	}

	return clone(p), nil
}

// Exists reports whether the patient exists under ownerID, returning the
// same not-found error as Get otherwise. It is the referential integrity
// check used at session creation and finalization.
func (s *Store) Exists(id, ownerID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[id]
	if !ok || p.OwnerID != ownerID {
		return apierr.NotFound("patient %s not found", id)
	}

	return nil
}

// ListByOwner returns all patients belonging to ownerID.
func (s *Store) ListByOwner(ownerID string) []Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Patient, 0)
	for _, p := range s.patients {
		if p.OwnerID == ownerID {
			out = append(out, clone(p))
		}
	}

	return out
}

// SaveTranscript appends a finished transcript to the patient's record.
// At most one entry may exist per session id; a duplicate submission fails
// with a conflict and leaves the existing entry untouched. Returns the
// updated patient.
func (s *Store) SaveTranscript(patientID, ownerID, sessionID, content string) (Patient, error) {
	if patientID == "" || sessionID == "" {
		return Patient{}, apierr.Validation("missing patientId or sessionId")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patients[patientID]
	if !ok || p.OwnerID != ownerID {
		return Patient{}, apierr.NotFound("patient %s not found", patientID)
	}

	for _, entry := range p.Transcripts {
		if entry.SessionID == sessionID {
			return Patient{}, apierr.Conflict("transcript for session %s has already been saved", sessionID)
		}
	}

	p.Transcripts = append(p.Transcripts, TranscriptEntry{
		SessionID: sessionID,
		Content:   content,
		SavedAt:   time.Now().UTC(),
	})

	return clone(p), nil
}

// clone returns a deep copy so callers never alias store-owned state.
func clone(p *Patient) Patient {
	out := *p
	out.Transcripts = append([]TranscriptEntry(nil), p.Transcripts...)
	return out
}
