package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Gateway issues scoped upload authorizations and persists blobs. The two
// production concerns behind it are signed-URL issuance (so clients upload
// chunks without the audio ever passing through this service) and transcript
// persistence.
type Gateway interface {
	// SignUpload returns a time-limited URL that allows exactly one PUT of
	// the named object with the given content type.
	SignUpload(ctx context.Context, object, contentType string) (string, error)

	// Write persists a blob under the named object.
	Write(ctx context.Context, object, contentType string, data []byte) error

	// BlobPath returns the fully qualified path for an object, as handed to
	// clients and to the transcription capability.
	BlobPath(object string) string
}

// ChunkObject returns the object name for a session chunk. Session IDs are
// server-generated UUIDs and ordinals are validated non-negative integers,
// so the derived name cannot collide across sessions or escape the layout.
func ChunkObject(sessionID string, ordinal int) string {
	return fmt.Sprintf("%s/%d.wav", sessionID, ordinal)
}

// TranscriptObject returns the object name for a session's final transcript.
func TranscriptObject(sessionID string) string {
	return sessionID + "/transcript.txt"
}

// ChunkOrdinal extracts the chunk ordinal from a chunk blob path such as
// "gs://bucket/{sessionID}/{ordinal}.wav". It is how a chunk-uploaded
// notification is tied back to the authorization that produced the path.
func ChunkOrdinal(blobPath string) (int, error) {
	name := blobPath
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	base, ok := strings.CutSuffix(name, ".wav")
	if !ok {
		return 0, fmt.Errorf("blob path %q is not a chunk object", blobPath)
	}

	ordinal, err := strconv.Atoi(base)
	if err != nil || ordinal < 0 {
		return 0, fmt.Errorf("blob path %q has no valid chunk ordinal", blobPath)
	}

	return ordinal, nil
}
