package session

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/apierr"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/metrics"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/storage"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/transcription"
)

const (
	// partialFailureText replaces a failed live-preview transcription so a
	// momentary provider outage never blocks live feedback.
	partialFailureText = "[Chunk transcription failed]"
	// chunkFailureText stands in for one failed chunk inside the final
	// transcript concatenation.
	chunkFailureText = "[Transcription failed]"

	transcriptContentType = "text/plain"
)

// PatientDirectory answers whether a patient exists for an owner. It is the
// referential integrity boundary checked at session creation and again at
// finalization.
type PatientDirectory interface {
	Exists(patientID, ownerID string) error
}

// ChunkResult is the outcome of a chunk-uploaded notification: a partial
// transcript preview while recording, or the final transcript when the
// session was finalized.
type ChunkResult struct {
	Message    string
	Transcript string
	Final      bool
}

// Orchestrator drives sessions through their lifecycle: it authorizes chunk
// uploads, transcribes single chunks for live feedback, and runs the
// whole-session final transcription exactly once.
type Orchestrator struct {
	sessions   *Store
	patients   PatientDirectory
	gateway    storage.Gateway
	recognizer transcription.Recognizer
	metrics    *metrics.Metrics
	logger     *slog.Logger
	timeout    time.Duration
}

// NewOrchestrator wires the orchestrator's collaborators. timeout bounds
// each individual transcription call.
func NewOrchestrator(logger *slog.Logger, sessions *Store, patients PatientDirectory,
	gateway storage.Gateway, recognizer transcription.Recognizer, m *metrics.Metrics,
	timeout time.Duration) *Orchestrator {

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Orchestrator{
		sessions:   sessions,
		patients:   patients,
		gateway:    gateway,
		recognizer: recognizer,
		metrics:    m,
		logger:     logger,
		timeout:    timeout,
	}
}

// Begin starts a recording session for a patient. The patient must exist
// under the same owner.
func (o *Orchestrator) Begin(ctx context.Context, patientID, ownerID string) (Session, error) {
	if patientID == "" {
		return Session{}, apierr.Validation("invalid or missing patientId")
	}
	if ownerID == "" {
		return Session{}, apierr.Validation("missing owner id")
	}

	if err := o.patients.Exists(patientID, ownerID); err != nil {
		return Session{}, err
	}

	s := o.sessions.Create(ownerID, patientID)
	o.metrics.SessionsCreated.Inc()

	o.logger.Info("Recording session started",
		slog.String("session_id", s.ID),
		slog.String("patient_id", patientID),
	)

	return s, nil
}

// AuthorizeChunkUpload issues a time-limited signed URL for one chunk. The
// blob path is derived deterministically from the session id and ordinal,
// so a URL can never touch another session's objects. Issuing a URL does
// not append the chunk; only a confirmed upload notification does.
func (o *Orchestrator) AuthorizeChunkUpload(ctx context.Context, sessionID, ownerID string,
	ordinal int, contentType string) (uploadURL, blobPath string, err error) {

	if ordinal < 0 {
		return "", "", apierr.Validation("chunkNumber cannot be negative")
	}
	if contentType == "" {
		return "", "", apierr.Validation("missing mimeType")
	}

	s, err := o.sessions.Get(sessionID, ownerID)
	if err != nil {
		return "", "", err
	}
	if s.Status != StatusRecording {
		return "", "", apierr.Conflict("session %s is %s, not recording", sessionID, s.Status)
	}

	object := storage.ChunkObject(sessionID, ordinal)
	url, err := o.gateway.SignUpload(ctx, object, contentType)
	if err != nil {
		return "", "", apierr.Upstream("failed to generate upload URL", err)
	}

	o.metrics.UploadURLsIssued.Inc()

	return url, o.gateway.BlobPath(object), nil
}

// ChunkUploaded handles a confirmed chunk upload. While the session is
// recording, the chunk is appended and transcribed on its own for live
// feedback; the last chunk closes the list and triggers the whole-session
// final transcription.
func (o *Orchestrator) ChunkUploaded(ctx context.Context, sessionID, ownerID, blobPath string,
	isLast bool) (ChunkResult, error) {

	if blobPath == "" {
		return ChunkResult{}, apierr.Validation("missing blobPath")
	}

	ordinal, err := storage.ChunkOrdinal(blobPath)
	if err != nil {
		return ChunkResult{}, apierr.Validation("invalid blobPath: %v", err)
	}
	// The path must be one this session's upload authorization produced, so
	// a notification can never attach another session's blob.
	if blobPath != o.gateway.BlobPath(storage.ChunkObject(sessionID, ordinal)) {
		return ChunkResult{}, apierr.Validation("blobPath does not belong to session %s", sessionID)
	}

	if isLast {
		return o.finalizeSession(ctx, sessionID, ownerID, blobPath, ordinal)
	}

	return o.partialChunk(ctx, sessionID, ownerID, blobPath, ordinal)
}

// appendChunk records a confirmed chunk against a recording session.
// Re-notifying an already-recorded ordinal is rejected so the chunk
// sequence never duplicates or reorders.
func (o *Orchestrator) appendChunk(s *Session, blobPath string, ordinal int) error {
	if s.Status != StatusRecording {
		return apierr.Conflict("session %s is %s, not recording", s.ID, s.Status)
	}

	for _, c := range s.Chunks {
		if c.Ordinal == ordinal {
			o.metrics.DuplicateChunks.Inc()
			return apierr.Conflict("chunk %d already recorded for session %s", ordinal, s.ID)
		}
	}

	s.Chunks = append(s.Chunks, ChunkRef{BlobPath: blobPath, Ordinal: ordinal})
	s.LastActivity = time.Now().UTC()
	return nil
}

// partialChunk appends the chunk and returns a best-effort live preview of
// its transcription. Session status and the stored transcript are never
// touched; a transcription failure degrades to the sentinel text.
func (o *Orchestrator) partialChunk(ctx context.Context, sessionID, ownerID, blobPath string,
	ordinal int) (ChunkResult, error) {

	_, err := o.sessions.Mutate(sessionID, ownerID, func(s *Session) error {
		return o.appendChunk(s, blobPath, ordinal)
	})
	if err != nil {
		return ChunkResult{}, err
	}

	o.metrics.ChunksRecorded.Inc()

	start := time.Now()
	text, err := o.recognize(ctx, blobPath, true)
	o.metrics.PartialTranscriptionSeconds.Observe(time.Since(start).Seconds())
	o.metrics.PartialTranscriptions.Inc()

	if err != nil {
		o.metrics.PartialTranscriptionErrors.Inc()
		o.logger.Error("Partial transcription failed",
			slog.String("session_id", sessionID),
			slog.String("blob_path", blobPath),
			slog.String("error", err.Error()),
		)
		text = partialFailureText
	}

	o.logger.Info("Chunk processed",
		slog.String("session_id", sessionID),
		slog.Int("ordinal", ordinal),
		slog.Int("transcript_length", len(text)),
	)

	return ChunkResult{Message: "Chunk processed.", Transcript: text, Final: false}, nil
}

// finalizeSession closes the chunk list and produces the session's final
// transcript. The status flip to finalizing happens under the session lock,
// which guarantees the final transcription runs against a chunk list that
// can no longer change and that finalization is attempted at most once; a
// second isLast notification fails with a conflict. Whatever happens during
// transcription or persistence, the session then reaches completed.
func (o *Orchestrator) finalizeSession(ctx context.Context, sessionID, ownerID, blobPath string,
	ordinal int) (ChunkResult, error) {

	var chunks []ChunkRef
	_, err := o.sessions.Mutate(sessionID, ownerID, func(s *Session) error {
		if err := o.appendChunk(s, blobPath, ordinal); err != nil {
			return err
		}
		if err := o.patients.Exists(s.PatientID, ownerID); err != nil {
			return err
		}

		s.Status = StatusFinalizing
		chunks = append([]ChunkRef(nil), s.Chunks...)
		return nil
	})
	if err != nil {
		return ChunkResult{}, err
	}

	o.metrics.ChunksRecorded.Inc()

	// The transcript follows ordinal order, not notification arrival order;
	// concurrent uploads may confirm out of sequence.
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })

	start := time.Now()
	parts := make([]string, 0, len(chunks))
	failures := 0
	for _, c := range chunks {
		text, err := o.recognize(ctx, c.BlobPath, false)
		if err != nil {
			failures++
			o.logger.Error("Final transcription failed for chunk",
				slog.String("session_id", sessionID),
				slog.String("blob_path", c.BlobPath),
				slog.String("error", err.Error()),
			)
			text = chunkFailureText
		}
		parts = append(parts, text)
	}
	transcript := strings.TrimSpace(strings.Join(parts, " "))

	persistErr := o.gateway.Write(ctx, storage.TranscriptObject(sessionID),
		transcriptContentType, []byte(transcript))

	// The one-way transition to completed happens even when transcription or
	// persistence failed; a session never stays stuck in recording.
	completed, completeErr := o.sessions.Mutate(sessionID, ownerID, func(s *Session) error {
		s.Status = StatusCompleted
		s.Transcript = transcript
		s.LastActivity = time.Now().UTC()
		return nil
	})
	if completeErr != nil {
		o.logger.Error("Failed to mark session completed",
			slog.String("session_id", sessionID),
			slog.String("error", completeErr.Error()),
		)
	}

	o.metrics.FinalTranscriptions.Inc()
	o.metrics.FinalTranscriptionSeconds.Observe(time.Since(start).Seconds())
	if failures > 0 {
		o.metrics.FinalTranscriptionErrors.Inc()
	}
	o.metrics.SessionsCompleted.Inc()
	if !completed.CreatedAt.IsZero() {
		o.metrics.SessionDuration.Observe(time.Since(completed.CreatedAt).Seconds())
	}

	if persistErr != nil {
		o.logger.Error("Failed to persist final transcript",
			slog.String("session_id", sessionID),
			slog.String("error", persistErr.Error()),
		)
		return ChunkResult{}, apierr.Upstream("failed to generate final transcript", persistErr)
	}

	o.logger.Info("Session finalized",
		slog.String("session_id", sessionID),
		slog.Int("chunks", len(chunks)),
		slog.Int("failed_chunks", failures),
		slog.Int("transcript_length", len(transcript)),
	)

	return ChunkResult{Message: "Session finalized.", Transcript: transcript, Final: true}, nil
}

// recognize runs one transcription call under the configured timeout.
func (o *Orchestrator) recognize(ctx context.Context, blobPath string, punctuation bool) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	return o.recognizer.Recognize(callCtx, blobPath, punctuation)
}
