// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Message is a single inbound bank or mobile-money notification. It is
// immutable and lives only for the duration of one pipeline run.
type Message struct {
	ReceivedAt time.Time
	Sender     string
	Body       string
	Source     string // where the message came from (webhook, cli); logging only
}

// Fingerprint creates a stable hash of the message content, used to key the
// extraction cache so that a replayed message reuses its earlier extraction.
func (m *Message) Fingerprint() string {
	data := fmt.Sprintf("%s:%s:%s",
		m.Sender,
		m.ReceivedAt.UTC().Format(time.RFC3339),
		m.Body)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
