// Package apierr defines the error taxonomy shared by all service
// operations. Every operation outcome is either a success payload or an
// error tagged with one of the kinds below, which the HTTP layer maps to a
// status code in exactly one place.
package apierr
