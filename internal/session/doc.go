// Package session implements the recording session state machine and the
// transcription orchestrator built on top of it.
//
// A session tracks one continuous clinical recording for a patient: its
// status (recording, finalizing, completed), the append-only ordered list
// of uploaded chunk blob references, and the final transcript. All state
// changes flow through Store.Mutate, which serializes work per session id
// so concurrent chunk notifications for the same session cannot interleave
// the read-then-write critical sections; sessions never regress once
// finalization begins.
package session
