// Package patient provides the keyed patient store and the transcript
// ledger. The ledger owns the transcript collection inside each patient and
// guarantees at most one entry per (patient, session) pair; duplicate
// submissions are rejected as conflicts, never overwritten.
package patient
