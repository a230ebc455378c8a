// Package voice provides the telephony boundary: outbound call
// initiation, webhook verification, and translation of provider
// callbacks into normalized events.
package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/dialkit/dialkit/pkg/models"
)

// ProviderName identifies a telephony provider.
type ProviderName string

const (
	ProviderTwilio ProviderName = "twilio"
	ProviderMock   ProviderName = "mock"
)

// EventType categorizes normalized webhook events.
type EventType string

const (
	// EventSpeech carries a caller utterance transcribed by the provider.
	EventSpeech EventType = "speech"

	// EventStatus carries a call lifecycle status change.
	EventStatus EventType = "status"
)

// Event is a normalized webhook event. Exactly one of Utterance or
// Status is meaningful, selected by Type.
type Event struct {
	ID             string            `json:"id"`
	Type           EventType         `json:"type"`
	CallID         string            `json:"call_id"`
	ProviderCallID string            `json:"provider_call_id,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	From           string            `json:"from,omitempty"`
	To             string            `json:"to,omitempty"`
	Utterance      string            `json:"utterance,omitempty"`
	Confidence     float64           `json:"confidence,omitempty"`
	Status         models.CallStatus `json:"status,omitempty"`
}

// InitiateCallInput contains parameters for starting an outbound call.
type InitiateCallInput struct {
	CallID     string `json:"call_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	WebhookURL string `json:"webhook_url"`
}

// InitiateCallResult contains the result of initiating a call.
type InitiateCallResult struct {
	ProviderCallID string `json:"provider_call_id"`
	Status         string `json:"status"`
}

// WebhookContext carries the raw webhook request to a provider for
// verification and parsing.
type WebhookContext struct {
	Headers map[string]string
	Body    string
	URL     string
	Method  string
	Query   map[string]string
}

// WebhookParseResult contains the events extracted from a webhook.
type WebhookParseResult struct {
	Events []Event
}

// Provider is the telephony boundary.
type Provider interface {
	// Name returns the provider identifier.
	Name() ProviderName

	// InitiateCall starts an outbound call.
	InitiateCall(ctx context.Context, input *InitiateCallInput) (*InitiateCallResult, error)

	// HangupCall ends an active call.
	HangupCall(ctx context.Context, providerCallID string) error

	// VerifyWebhook validates webhook authenticity.
	VerifyWebhook(ctx *WebhookContext) (bool, error)

	// ParseWebhook parses a webhook into normalized events.
	ParseWebhook(ctx *WebhookContext) (*WebhookParseResult, error)
}

// SynthesizeCallID produces a locally unique call ID for webhooks that
// arrive without one, such as requests made by hand with curl.
func SynthesizeCallID(now time.Time) string {
	return fmt.Sprintf("call-%d", now.UnixNano())
}
