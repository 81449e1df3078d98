// Package auth issues and verifies the bearer tokens that scope every
// record in the service to its owner.
package auth
