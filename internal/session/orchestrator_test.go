package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/apierr"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/metrics"
	"github.com/ISOLATEDMAN/ai-scribe-copilot/internal/storage"
)

// Prometheus metrics register globally, so the package shares one instance.
var testMetrics = metrics.NewMetrics()

// fakeRecognizer returns scripted transcripts per blob path and records
// whether punctuation was requested.
type fakeRecognizer struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	punct map[string]bool
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{
		texts: make(map[string]string),
		errs:  make(map[string]error),
		punct: make(map[string]bool),
	}
}

func (f *fakeRecognizer) Recognize(_ context.Context, blobPath string, punctuation bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.punct[blobPath] = punctuation
	if err, ok := f.errs[blobPath]; ok {
		return "", err
	}
	if text, ok := f.texts[blobPath]; ok {
		return text, nil
	}
	return "ok", nil
}

// fakeDirectory knows a fixed set of patient/owner pairs.
type fakeDirectory struct {
	known map[string]bool
}

func (f *fakeDirectory) Exists(patientID, ownerID string) error {
	if !f.known[patientID+"|"+ownerID] {
		return apierr.NotFound("patient %s not found", patientID)
	}
	return nil
}

type orchestratorFixture struct {
	orch       *Orchestrator
	sessions   *Store
	gateway    *storage.Memory
	recognizer *fakeRecognizer
	directory  *fakeDirectory
}

const (
	testOwner   = "doctor@example.com"
	testPatient = "patient-1"
)

func newFixture() *orchestratorFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &orchestratorFixture{
		sessions:   NewStore(),
		gateway:    storage.NewMemory("test-bucket"),
		recognizer: newFakeRecognizer(),
		directory:  &fakeDirectory{known: map[string]bool{testPatient + "|" + testOwner: true}},
	}
	f.orch = NewOrchestrator(logger, f.sessions, f.directory, f.gateway,
		f.recognizer, testMetrics, 5*time.Second)
	return f
}

// begin starts a session and returns it, failing the test on error.
func (f *orchestratorFixture) begin(t *testing.T) Session {
	t.Helper()
	s, err := f.orch.Begin(context.Background(), testPatient, testOwner)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return s
}

func chunkPath(sessionID string, ordinal int) string {
	return fmt.Sprintf("gs://test-bucket/%s/%d.wav", sessionID, ordinal)
}

func TestBeginViolations(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name      string
		patientID string
		ownerID   string
		wantKind  apierr.Kind
	}{
		{"missing patient id", "", testOwner, apierr.KindValidation},
		{"missing owner id", testPatient, "", apierr.KindValidation},
		{"unknown patient", "patient-9", testOwner, apierr.KindNotFound},
		{"foreign owner", testPatient, "other@example.com", apierr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Begin(context.Background(), tt.patientID, tt.ownerID)
			if apierr.KindOf(err) != tt.wantKind {
				t.Errorf("expected %v error, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestAuthorizeChunkUpload(t *testing.T) {
	f := newFixture()
	s := f.begin(t)

	url, blobPath, err := f.orch.AuthorizeChunkUpload(context.Background(),
		s.ID, testOwner, 3, "audio/wav")
	if err != nil {
		t.Fatalf("AuthorizeChunkUpload: %v", err)
	}
	if url == "" {
		t.Error("expected a signed URL")
	}
	if want := chunkPath(s.ID, 3); blobPath != want {
		t.Errorf("expected blob path %q, got %q", want, blobPath)
	}

	// Authorization alone must not record a chunk.
	got, _ := f.sessions.Get(s.ID, testOwner)
	if len(got.Chunks) != 0 {
		t.Errorf("authorization appended %d chunks", len(got.Chunks))
	}
}

func TestAuthorizeChunkUploadViolations(t *testing.T) {
	f := newFixture()
	s := f.begin(t)
	completed := f.begin(t)
	f.sessions.Mutate(completed.ID, testOwner, func(s *Session) error {
		s.Status = StatusCompleted
		return nil
	})

	tests := []struct {
		name        string
		sessionID   string
		ownerID     string
		ordinal     int
		contentType string
		wantKind    apierr.Kind
	}{
		{"negative ordinal", s.ID, testOwner, -1, "audio/wav", apierr.KindValidation},
		{"missing content type", s.ID, testOwner, 0, "", apierr.KindValidation},
		{"unknown session", "missing", testOwner, 0, "audio/wav", apierr.KindNotFound},
		{"foreign session", s.ID, "other@example.com", 0, "audio/wav", apierr.KindNotFound},
		{"completed session", completed.ID, testOwner, 0, "audio/wav", apierr.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.orch.AuthorizeChunkUpload(context.Background(),
				tt.sessionID, tt.ownerID, tt.ordinal, tt.contentType)
			if apierr.KindOf(err) != tt.wantKind {
				t.Errorf("expected %v error, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestChunkUploadedPartial(t *testing.T) {
	f := newFixture()
	s := f.begin(t)
	path := chunkPath(s.ID, 0)
	f.recognizer.texts[path] = "Patient reports mild headache."

	res, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner, path, false)
	if err != nil {
		t.Fatalf("ChunkUploaded: %v", err)
	}
	if res.Final {
		t.Error("partial result flagged final")
	}
	if res.Transcript != "Patient reports mild headache." {
		t.Errorf("unexpected transcript %q", res.Transcript)
	}
	if !f.recognizer.punct[path] {
		t.Error("partial transcription should request punctuation")
	}

	got, _ := f.sessions.Get(s.ID, testOwner)
	if got.Status != StatusRecording {
		t.Errorf("partial chunk changed status to %q", got.Status)
	}
	if len(got.Chunks) != 1 || got.Chunks[0].Ordinal != 0 {
		t.Errorf("unexpected chunk list %+v", got.Chunks)
	}
	if got.Transcript != "" {
		t.Errorf("partial chunk stored transcript %q", got.Transcript)
	}
}

func TestChunkUploadedPartialDegradesOnFailure(t *testing.T) {
	f := newFixture()
	s := f.begin(t)
	path := chunkPath(s.ID, 0)
	f.recognizer.errs[path] = errors.New("speech backend unavailable")

	res, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner, path, false)
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if res.Transcript != "[Chunk transcription failed]" {
		t.Errorf("unexpected transcript %q", res.Transcript)
	}

	// The chunk still counts toward the session.
	got, _ := f.sessions.Get(s.ID, testOwner)
	if len(got.Chunks) != 1 {
		t.Errorf("expected chunk recorded despite transcription failure, got %d", len(got.Chunks))
	}
}

func TestChunkUploadedDuplicateOrdinal(t *testing.T) {
	f := newFixture()
	s := f.begin(t)
	path := chunkPath(s.ID, 0)

	if _, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner, path, false); err != nil {
		t.Fatalf("first notification: %v", err)
	}

	_, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner, path, false)
	if apierr.KindOf(err) != apierr.KindConflict {
		t.Fatalf("expected conflict on duplicate ordinal, got %v", err)
	}

	got, _ := f.sessions.Get(s.ID, testOwner)
	if len(got.Chunks) != 1 {
		t.Errorf("duplicate notification appended a chunk, have %d", len(got.Chunks))
	}
}

func TestChunkUploadedInvalidBlobPath(t *testing.T) {
	f := newFixture()
	s := f.begin(t)

	for _, path := range []string{"", "gs://test-bucket/" + s.ID + "/zero.wav", "notes.txt"} {
		_, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner, path, false)
		if apierr.KindOf(err) != apierr.KindValidation {
			t.Errorf("path %q: expected validation error, got %v", path, err)
		}
	}
}

func TestChunkUploadedFinal(t *testing.T) {
	f := newFixture()
	s := f.begin(t)

	texts := []string{"First chunk.", "Second chunk.", "Third chunk."}
	for i, text := range texts {
		f.recognizer.texts[chunkPath(s.ID, i)] = text
	}

	for i := 0; i < 2; i++ {
		if _, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
			chunkPath(s.ID, i), false); err != nil {
			t.Fatalf("partial chunk %d: %v", i, err)
		}
	}

	res, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 2), true)
	if err != nil {
		t.Fatalf("final chunk: %v", err)
	}
	if !res.Final {
		t.Error("final result not flagged final")
	}

	want := "First chunk. Second chunk. Third chunk."
	if res.Transcript != want {
		t.Errorf("expected transcript %q, got %q", want, res.Transcript)
	}

	got, _ := f.sessions.Get(s.ID, testOwner)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed session, got %q", got.Status)
	}
	if got.Transcript != want {
		t.Errorf("stored transcript %q", got.Transcript)
	}

	// Final rounds never request punctuation.
	for i := 0; i < 3; i++ {
		if f.recognizer.punct[chunkPath(s.ID, i)] {
			t.Errorf("final transcription of chunk %d requested punctuation", i)
		}
	}

	data, contentType, ok := f.gateway.Object(storage.TranscriptObject(s.ID))
	if !ok {
		t.Fatal("final transcript not persisted to object storage")
	}
	if string(data) != want {
		t.Errorf("persisted transcript %q", data)
	}
	if contentType != "text/plain" {
		t.Errorf("persisted content type %q", contentType)
	}
}

func TestFinalTranscriptOrderedByOrdinal(t *testing.T) {
	f := newFixture()
	s := f.begin(t)

	f.recognizer.texts[chunkPath(s.ID, 0)] = "Zero."
	f.recognizer.texts[chunkPath(s.ID, 1)] = "One."
	f.recognizer.texts[chunkPath(s.ID, 2)] = "Two."

	// Notifications land out of order; the transcript must not.
	for _, ordinal := range []int{1, 0} {
		if _, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
			chunkPath(s.ID, ordinal), false); err != nil {
			t.Fatalf("partial chunk %d: %v", ordinal, err)
		}
	}

	res, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 2), true)
	if err != nil {
		t.Fatalf("final chunk: %v", err)
	}

	want := "Zero. One. Two."
	if res.Transcript != want {
		t.Errorf("expected transcript %q, got %q", want, res.Transcript)
	}

	data, _, ok := f.gateway.Object(storage.TranscriptObject(s.ID))
	if !ok {
		t.Fatal("final transcript not persisted to object storage")
	}
	if string(data) != want {
		t.Errorf("persisted transcript %q", data)
	}
}

func TestChunkUploadedForeignBlobPath(t *testing.T) {
	f := newFixture()
	s := f.begin(t)
	other := f.begin(t)

	_, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(other.ID, 0), false)
	if apierr.KindOf(err) != apierr.KindValidation {
		t.Fatalf("expected validation error for foreign blob path, got %v", err)
	}

	got, _ := f.sessions.Get(s.ID, testOwner)
	if len(got.Chunks) != 0 {
		t.Errorf("foreign blob path appended a chunk, have %d", len(got.Chunks))
	}
}

func TestChunkUploadedPartialAfterFinalConflicts(t *testing.T) {
	f := newFixture()
	s := f.begin(t)

	if _, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 0), true); err != nil {
		t.Fatalf("final chunk: %v", err)
	}

	_, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 1), false)
	if apierr.KindOf(err) != apierr.KindConflict {
		t.Fatalf("expected conflict for chunk after finalization, got %v", err)
	}

	got, _ := f.sessions.Get(s.ID, testOwner)
	if len(got.Chunks) != 1 {
		t.Errorf("late notification appended a chunk, have %d", len(got.Chunks))
	}
	if got.Transcript != "ok" {
		t.Errorf("late notification altered transcript %q", got.Transcript)
	}
}

func TestChunkUploadedSecondFinalConflicts(t *testing.T) {
	f := newFixture()
	s := f.begin(t)

	if _, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 0), true); err != nil {
		t.Fatalf("first final: %v", err)
	}

	_, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 1), true)
	if apierr.KindOf(err) != apierr.KindConflict {
		t.Fatalf("expected conflict on second finalization, got %v", err)
	}

	got, _ := f.sessions.Get(s.ID, testOwner)
	if len(got.Chunks) != 1 {
		t.Errorf("second finalization appended a chunk, have %d", len(got.Chunks))
	}
}

func TestChunkUploadedFinalDegradesPerChunk(t *testing.T) {
	f := newFixture()
	s := f.begin(t)

	f.recognizer.texts[chunkPath(s.ID, 0)] = "Still fine."
	f.recognizer.errs[chunkPath(s.ID, 1)] = errors.New("speech backend unavailable")

	if _, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 0), false); err != nil {
		t.Fatalf("partial chunk: %v", err)
	}

	res, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 1), true)
	if err != nil {
		t.Fatalf("final chunk: %v", err)
	}

	want := "Still fine. [Transcription failed]"
	if res.Transcript != want {
		t.Errorf("expected transcript %q, got %q", want, res.Transcript)
	}

	got, _ := f.sessions.Get(s.ID, testOwner)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed session despite chunk failure, got %q", got.Status)
	}
}

// failingGateway persists nothing so transcript persistence fails.
type failingGateway struct {
	*storage.Memory
}

func (g *failingGateway) Write(context.Context, string, string, []byte) error {
	return errors.New("bucket unavailable")
}

func TestChunkUploadedFinalPersistFailure(t *testing.T) {
	f := newFixture()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.orch = NewOrchestrator(logger, f.sessions, f.directory,
		&failingGateway{f.gateway}, f.recognizer, testMetrics, 5*time.Second)
	s := f.begin(t)
	f.recognizer.texts[chunkPath(s.ID, 0)] = "Only chunk."

	_, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 0), true)
	if apierr.KindOf(err) != apierr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}

	// The session still completes and keeps the transcript in memory.
	got, _ := f.sessions.Get(s.ID, testOwner)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed session, got %q", got.Status)
	}
	if got.Transcript != "Only chunk." {
		t.Errorf("stored transcript %q", got.Transcript)
	}
}

func TestChunkUploadedConcurrentPartials(t *testing.T) {
	f := newFixture()
	s := f.begin(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(ordinal int) {
			defer wg.Done()
			_, errs[ordinal] = f.orch.ChunkUploaded(context.Background(),
				s.ID, testOwner, chunkPath(s.ID, ordinal), false)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("chunk %d: %v", i, err)
		}
	}

	got, _ := f.sessions.Get(s.ID, testOwner)
	if len(got.Chunks) != n {
		t.Errorf("expected %d chunks, got %d", n, len(got.Chunks))
	}
}

func TestFinalTranscriptTrimsWhitespace(t *testing.T) {
	f := newFixture()
	s := f.begin(t)
	f.recognizer.texts[chunkPath(s.ID, 0)] = "  padded  "

	res, err := f.orch.ChunkUploaded(context.Background(), s.ID, testOwner,
		chunkPath(s.ID, 0), true)
	if err != nil {
		t.Fatalf("final chunk: %v", err)
	}
	if strings.HasPrefix(res.Transcript, " ") || strings.HasSuffix(res.Transcript, " ") {
		t.Errorf("transcript not trimmed: %q", res.Transcript)
	}
}
