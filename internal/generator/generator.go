// Package generator contains the response-generator boundary: the
// interface the turn orchestrator speaks and the LLM provider
// implementations behind it.
package generator

import (
	"context"

	"github.com/dialkit/dialkit/pkg/models"
)

// Message is one entry of the conversation context sent to a provider.
// The first message is a system directive naming the current call stage.
type Message struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Generator produces a reply for a conversation context. Implementations
// may block on network I/O; callers bound them with a context deadline
// and fall back to canned replies on failure.
type Generator interface {
	// Name returns the provider identifier.
	Name() string

	// Generate returns the assistant reply for the given messages.
	Generate(ctx context.Context, msgs []Message) (string, error)
}

// FromTurns converts session history turns into generator messages.
func FromTurns(turns []models.Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
