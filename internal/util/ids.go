// Package util holds small unexported helpers shared across promptwire.
package util

import "github.com/google/uuid"

// NewID returns a new random identifier suitable for run and trace
// correlation.
func NewID() string {
	return uuid.NewString()
}
