// Package transcription provides the speech recognition capability for
// uploaded audio chunks. A Recognizer turns one stored blob into text; the
// Client wraps a Recognizer with bounded concurrency, per-call timeouts,
// retry with exponential backoff and request statistics. The production
// backend is Google Cloud Speech-to-Text reading blobs by gs:// URI.
package transcription
