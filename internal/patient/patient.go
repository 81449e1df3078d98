package patient

import "time"

// TranscriptEntry is one finished transcript attached to a patient's
// permanent record, keyed by the session that produced it.
type TranscriptEntry struct {
	SessionID string    `json:"sessionId"`
	Content   string    `json:"content"`
	SavedAt   time.Time `json:"savedAt"`
}

// Patient is a patient record owned by a single user. All reads are scoped
// to the owning user; a patient is never visible to another owner.
type Patient struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"userId"`
	Name        string            `json:"name"`
	Transcripts []TranscriptEntry `json:"transcripts"`
	CreatedAt   time.Time         `json:"createdAt"`
}
