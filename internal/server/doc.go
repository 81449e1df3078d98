// Package server implements the HTTP API: authentication, session and
// patient endpoints, and the monitoring surface (health, stats, metrics).
package server
