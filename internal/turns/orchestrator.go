// Package turns orchestrates one conversation turn: it loads the call's
// session under its write lock, advances the stage machine, asks the
// response generator for a reply (falling back to canned replies on
// failure), and persists the updated session.
package turns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dialkit/dialkit/internal/dialog"
	"github.com/dialkit/dialkit/internal/generator"
	"github.com/dialkit/dialkit/internal/language"
	"github.com/dialkit/dialkit/internal/observability"
	"github.com/dialkit/dialkit/internal/sessions"
	"github.com/dialkit/dialkit/pkg/models"
)

// ErrMissingCallID rejects a turn or status event with no call ID. It is
// the only caller-visible failure; every other fault inside a turn still
// yields a speakable reply.
var ErrMissingCallID = errors.New("turns: call id is required")

// DefaultContextWindow is the number of recent turns sent to the
// response generator. Full history stays on the session for audit.
const DefaultContextWindow = 5

// DefaultGeneratorTimeout bounds one generator call so a hung provider
// cannot starve the call's session; on expiry the turn falls back to a
// canned reply.
const DefaultGeneratorTimeout = 30 * time.Second

// Config configures the orchestrator.
type Config struct {
	ContextWindow    int
	GeneratorTimeout time.Duration
	Logger           *observability.Logger
	Metrics          *observability.Metrics
}

// Orchestrator coordinates turn processing. Turns for different calls
// run fully in parallel; turns for the same call are serialized by the
// store's per-call lock.
type Orchestrator struct {
	store      *sessions.LockingStore
	gen        generator.Generator
	window     int
	genTimeout time.Duration
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// New creates an orchestrator over store and gen.
func New(store *sessions.LockingStore, gen generator.Generator, cfg Config) *Orchestrator {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = DefaultGeneratorTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{})
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &Orchestrator{
		store:      store,
		gen:        gen,
		window:     cfg.ContextWindow,
		genTimeout: cfg.GeneratorTimeout,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// HandleTurn processes one inbound speech event for callID and returns
// what to speak next. An empty or whitespace utterance is treated as an
// idempotent replay: the cached last response is returned and the
// session is not mutated.
func (o *Orchestrator) HandleTurn(ctx context.Context, callID, utterance string, now time.Time) (*models.TurnResult, error) {
	if callID == "" {
		o.metrics.TurnCounter.WithLabelValues("rejected").Inc()
		return nil, ErrMissingCallID
	}
	ctx = observability.WithCallID(ctx, callID)

	var result *models.TurnResult
	err := o.store.WithLock(ctx, callID, func(store sessions.Store) error {
		session, err := store.GetOrCreate(ctx, callID)
		if err != nil {
			return err
		}

		if isBlank(utterance) {
			result = &models.TurnResult{
				ReplyText:       session.LastResponse,
				ShouldTerminate: false,
				Language:        language.Detect(session.LastResponse),
			}
			o.metrics.TurnCounter.WithLabelValues("empty").Inc()
			o.logger.Debug(ctx, "empty utterance, replaying last response")
			return nil
		}

		userLang := language.Detect(utterance)
		session.AppendTurn(models.Turn{
			Role:      models.RoleUser,
			Content:   utterance,
			Language:  userLang,
			Timestamp: now,
		})

		session.Stage = dialog.NextStage(session.Stage, utterance)

		reply, usedFallback := o.generate(ctx, session, utterance)

		session.AppendTurn(models.Turn{
			Role:      models.RoleAssistant,
			Content:   reply,
			Language:  language.Detect(reply),
			Timestamp: now,
		})
		session.LastResponse = reply
		session.LastInteraction = now

		if err := store.Put(ctx, session); err != nil {
			return fmt.Errorf("turns: persist session: %w", err)
		}

		terminate := session.Stage.IsTerminal()
		if terminate {
			// The farewell turn is persisted first so a duplicate
			// delivery still sees a consistent session, then the call's
			// state is released.
			if err := store.Delete(ctx, callID); err != nil {
				o.logger.Warn(ctx, "failed to delete ended session", "error", err)
			}
		}

		result = &models.TurnResult{
			ReplyText:       reply,
			ShouldTerminate: terminate,
			Language:        language.Detect(reply),
		}

		switch {
		case terminate:
			o.metrics.TurnCounter.WithLabelValues("terminated").Inc()
		case usedFallback:
			o.metrics.TurnCounter.WithLabelValues("fallback").Inc()
		default:
			o.metrics.TurnCounter.WithLabelValues("ok").Inc()
		}
		o.logger.Info(ctx, "turn processed",
			"stage", string(session.Stage),
			"language", string(userLang),
			"terminate", terminate,
			"fallback", usedFallback,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HandleCallStatus processes a provider status callback. Terminal
// statuses delete the session; deleting an unknown call is a no-op.
// Non-terminal statuses are ignored.
func (o *Orchestrator) HandleCallStatus(ctx context.Context, callID string, status models.CallStatus) error {
	if callID == "" {
		return ErrMissingCallID
	}
	if !status.IsTerminal() {
		return nil
	}

	ctx = observability.WithCallID(ctx, callID)
	if err := o.store.Delete(ctx, callID); err != nil {
		return fmt.Errorf("turns: delete session: %w", err)
	}
	o.logger.Info(ctx, "call ended, session deleted", "status", string(status))
	return nil
}

// generate asks the response generator for a reply, falling back to the
// stage's canned line on any failure. The caller must always get
// something speakable.
func (o *Orchestrator) generate(ctx context.Context, session *models.CallSession, utterance string) (reply string, usedFallback bool) {
	msgs := make([]generator.Message, 0, o.window+1)
	msgs = append(msgs, generator.Message{
		Role:    models.RoleSystem,
		Content: systemDirective(session.Stage),
	})
	msgs = append(msgs, generator.FromTurns(session.RecentTurns(o.window))...)

	genCtx, cancel := context.WithTimeout(ctx, o.genTimeout)
	defer cancel()

	start := time.Now()
	reply, err := o.gen.Generate(genCtx, msgs)
	o.metrics.GeneratorRequestDuration.WithLabelValues(o.gen.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		o.metrics.GeneratorRequestCounter.WithLabelValues(o.gen.Name(), "error").Inc()
		o.metrics.FallbackCounter.WithLabelValues(string(session.Stage)).Inc()
		o.logger.Warn(ctx, "response generator failed, using canned reply",
			"provider", o.gen.Name(),
			"stage", string(session.Stage),
			"error", err,
		)
		return dialog.FallbackReply(session.Stage, utterance), true
	}

	o.metrics.GeneratorRequestCounter.WithLabelValues(o.gen.Name(), "success").Inc()
	return reply, false
}

// systemDirective names the current stage and instructs the generator to
// answer in the caller's language.
func systemDirective(stage models.Stage) string {
	return fmt.Sprintf("You are a helpful AI assistant on a phone call. "+
		"You can speak both English and Hindi. "+
		"Current call stage: %s. "+
		"Respond in the same language as the caller's input. "+
		"Be professional, helpful, and brief; your reply will be spoken aloud. "+
		"If the caller switches language, respond in that language.", stage)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
