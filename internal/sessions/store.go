// Package sessions provides the per-call session store: keyed storage of
// conversation state with per-call write exclusion and idle-session
// reclamation.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/dialkit/dialkit/internal/dialog"
	"github.com/dialkit/dialkit/pkg/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("sessions: session not found")

// Store is the interface for call-session persistence.
//
// Delete is idempotent: deleting an absent call ID is a no-op. Sweep
// removes sessions idle longer than the threshold and returns the count
// removed; it must be safe to run concurrently with normal traffic.
type Store interface {
	// GetOrCreate returns the existing session for callID or atomically
	// creates a fresh greeting-stage session.
	GetOrCreate(ctx context.Context, callID string) (*models.CallSession, error)
	Get(ctx context.Context, callID string) (*models.CallSession, error)
	Put(ctx context.Context, session *models.CallSession) error
	Delete(ctx context.Context, callID string) error

	// StaleIDs lists call IDs whose last interaction is before cutoff.
	// Lock-aware sweepers use it to evict under per-call exclusion.
	StaleIDs(ctx context.Context, cutoff time.Time) ([]string, error)
	Sweep(ctx context.Context, idleThreshold time.Duration) (int, error)

	Close() error
}

// newSession builds a fresh greeting-stage session. The last response is
// seeded with the default greeting so a retried or empty first webhook
// still has something to speak.
func newSession(callID string, now time.Time) *models.CallSession {
	return &models.CallSession{
		CallID:          callID,
		Stage:           models.StageGreeting,
		History:         []models.Turn{},
		LastResponse:    dialog.DefaultGreeting,
		CustomerInfo:    map[string]string{},
		LastInteraction: now,
		CreatedAt:       now,
	}
}

func cloneSession(s *models.CallSession) *models.CallSession {
	if s == nil {
		return nil
	}
	clone := *s
	if s.History != nil {
		clone.History = append([]models.Turn{}, s.History...)
	}
	if s.CustomerInfo != nil {
		clone.CustomerInfo = make(map[string]string, len(s.CustomerInfo))
		for k, v := range s.CustomerInfo {
			clone.CustomerInfo[k] = v
		}
	}
	return &clone
}
