// Package storage provides the object store gateway used for chunk uploads
// and transcript persistence. Clients upload audio chunks directly to the
// bucket through time-limited signed URLs; the service itself only writes
// the final transcript object. Object layout is deterministic per session:
// chunks live at {sessionID}/{ordinal}.wav and the final transcript at
// {sessionID}/transcript.txt.
package storage
