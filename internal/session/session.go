package session

import "time"

// Status is the lifecycle state of a recording session. Transitions are
// one-way: recording -> finalizing -> completed, each taken exactly once.
type Status string

const (
	// StatusRecording accepts chunk upload authorizations and notifications.
	StatusRecording Status = "recording"
	// StatusFinalizing is the transient state while the final transcript is
	// being produced; the chunk list is closed and cannot change further.
	StatusFinalizing Status = "finalizing"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
)

// ChunkRef is one uploaded audio chunk: its blob path in object storage and
// its ordinal position within the session. Ordinals are assigned by the
// client at upload authorization time and are unique per session.
type ChunkRef struct {
	BlobPath string `json:"blobPath"`
	Ordinal  int    `json:"ordinal"`
}

// Session is one continuous recording episode for a patient. The chunk
// list is append-only and keeps insertion order, which is upload order;
// the transcript stays empty until finalization.
type Session struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"userId"`
	PatientID    string     `json:"patientId"`
	Status       Status     `json:"status"`
	Chunks       []ChunkRef `json:"chunks"`
	Transcript   string     `json:"transcript"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
}

// Counts summarizes sessions by lifecycle state, for monitoring.
type Counts struct {
	Recording  int `json:"recording"`
	Finalizing int `json:"finalizing"`
	Completed  int `json:"completed"`
}
