// Package session provides the bounded, expiring in-memory conversation
// store. Sessions live for the lifetime of the process only.
package session

import (
	"time"

	"github.com/pachverse/sitechat/plugin/ai"
)

// Message represents a conversation message with its creation time.
// Immutable once appended; owned exclusively by its session.
type Message struct {
	Role      ai.Role   `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Info is a read-only snapshot of a session's state.
type Info struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
	MessageCount int       `json:"message_count"` // user-authored rounds, not history length
	Language     string    `json:"language"`
}

// Status tags the outcome of resolving a session for a new user turn.
type Status int

const (
	// StatusOK means the session exists and can accept another round.
	StatusOK Status = iota
	// StatusNotFound means the session is unknown or has expired.
	StatusNotFound
	// StatusLimitExceeded means the session reached its round limit.
	StatusLimitExceeded
)

// Stats summarizes the store for diagnostics.
type Stats struct {
	ActiveSessions       int            `json:"active_sessions"`
	LanguageDistribution map[string]int `json:"language_distribution"`
	AverageRounds        float64        `json:"average_rounds_per_session"`
}
