// Package server exposes the webhook HTTP surface: speech and status
// callbacks from the telephony provider, a static TwiML endpoint, and
// health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dialkit/dialkit/internal/language"
	"github.com/dialkit/dialkit/internal/observability"
	"github.com/dialkit/dialkit/internal/turns"
	"github.com/dialkit/dialkit/internal/voice"
	"github.com/dialkit/dialkit/pkg/models"
)

// maxWebhookBody bounds webhook payloads. Twilio form posts are small;
// anything bigger is not a legitimate callback.
const maxWebhookBody = 64 << 10

// Config configures the webhook server.
type Config struct {
	Host string
	Port int

	// PublicURL is the externally visible base URL used to rebuild the
	// exact URL Twilio signed and to point Gather actions back at us.
	PublicURL string

	// VerifySignatures rejects webhooks that fail provider verification.
	VerifySignatures bool

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Server handles provider webhooks and hands speech events to the
// orchestrator.
type Server struct {
	cfg      Config
	provider voice.Provider
	orch     *turns.Orchestrator
	logger   *observability.Logger
	metrics  *observability.Metrics

	httpServer *http.Server
	listener   net.Listener
}

// New creates a webhook server.
func New(cfg Config, provider voice.Provider, orch *turns.Orchestrator) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{})
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &Server{
		cfg:      cfg,
		provider: provider,
		orch:     orch,
		logger:   cfg.Logger.WithComponent("server"),
		metrics:  cfg.Metrics,
	}
}

// Handler returns the full route tree. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /voice", s.instrument("/voice", s.handleVoice))
	mux.HandleFunc("POST /voice/status", s.instrument("/voice/status", s.handleStatus))
	mux.HandleFunc("GET /twiml", s.instrument("/twiml", s.handleTwiML))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "http server error", "error", err)
		}
	}()

	s.logger.Info(ctx, "webhook server listening", "addr", addr)
	return nil
}

// Stop shuts the server down, letting in-flight webhooks finish.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound listen address, useful when Port was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleVoice processes a speech webhook and answers with the TwiML for
// the next turn. Turn failures still produce a speakable response; only
// a missing call ID is a client error.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	webhookCtx, err := s.readWebhook(r)
	if err != nil {
		s.logger.Warn(ctx, "unreadable webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !s.verify(ctx, w, webhookCtx) {
		return
	}

	parsed, err := s.provider.ParseWebhook(webhookCtx)
	if err != nil {
		s.logger.Warn(ctx, "failed to parse webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, event := range parsed.Events {
		switch event.Type {
		case voice.EventSpeech:
			s.answerTurn(ctx, w, event)
			return
		case voice.EventStatus:
			if err := s.orch.HandleCallStatus(ctx, event.CallID, event.Status); err != nil {
				s.logger.Warn(ctx, "status handling failed", "error", err)
			}
			// Twilio posts in-progress to the voice URL when an outbound
			// call connects; greet and start gathering. Earlier statuses
			// (initiated, ringing) must not open a session for a call
			// nobody has answered yet.
			if event.Status == models.StatusInProgress {
				s.answerTurn(ctx, w, voice.Event{CallID: event.CallID, Timestamp: event.Timestamp})
				return
			}
			writeTwiML(w, voice.Empty())
			return
		}
	}

	writeTwiML(w, voice.Empty())
}

// answerTurn runs the orchestrator for event and writes the reply
// TwiML. An event with an empty utterance replays the session's last
// response, which greets new calls.
func (s *Server) answerTurn(ctx context.Context, w http.ResponseWriter, event voice.Event) {
	now := event.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	result, err := s.orch.HandleTurn(ctx, event.CallID, event.Utterance, now)
	if err != nil {
		if errors.Is(err, turns.ErrMissingCallID) {
			http.Error(w, "missing call id", http.StatusBadRequest)
			return
		}
		s.logger.Error(ctx, "turn failed", "error", err)
		writeTwiML(w, voice.SayError(language.Voice(models.LangEnglish), language.Locale(models.LangEnglish)))
		return
	}

	v := language.Voice(result.Language)
	locale := language.Locale(result.Language)
	if result.ShouldTerminate {
		writeTwiML(w, voice.SayHangup(result.ReplyText, v, locale))
		return
	}
	writeTwiML(w, voice.SayGather(result.ReplyText, v, locale, s.actionURL(event.CallID)))
}

// handleStatus processes a call status callback and always acknowledges
// with empty TwiML.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	webhookCtx, err := s.readWebhook(r)
	if err != nil {
		s.logger.Warn(ctx, "unreadable status webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !s.verify(ctx, w, webhookCtx) {
		return
	}

	parsed, err := s.provider.ParseWebhook(webhookCtx)
	if err != nil {
		s.logger.Warn(ctx, "failed to parse status webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	for _, event := range parsed.Events {
		if event.Type != voice.EventStatus {
			continue
		}
		if err := s.orch.HandleCallStatus(ctx, event.CallID, event.Status); err != nil {
			s.logger.Warn(ctx, "status handling failed",
				"status", string(event.Status), "error", err)
		}
	}

	writeTwiML(w, voice.Empty())
}

// handleTwiML serves a static spoken document for ad-hoc testing. A
// missing text parameter still returns speakable TwiML.
func (s *Server) handleTwiML(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		writeTwiML(w, voice.Say("Hello from dialkit.",
			language.Voice(models.LangEnglish), language.Locale(models.LangEnglish)))
		return
	}

	lang := language.Detect(text)
	writeTwiML(w, voice.Say(text, language.Voice(lang), language.Locale(lang)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readWebhook converts an HTTP request into the provider-neutral
// webhook context, reconstructing the signed public URL.
func (s *Server) readWebhook(r *http.Request) (*voice.WebhookContext, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[strings.ToLower(name)] = r.Header.Get(name)
	}

	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	return &voice.WebhookContext{
		Headers: headers,
		Body:    string(body),
		URL:     s.signedURL(r),
		Method:  r.Method,
		Query:   query,
	}, nil
}

// signedURL rebuilds the URL Twilio used when computing the request
// signature. Behind a tunnel or proxy, that is the public URL, not the
// local listener address.
func (s *Server) signedURL(r *http.Request) string {
	if base := strings.TrimRight(s.cfg.PublicURL, "/"); base != "" {
		return base + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// verify runs signature verification when enabled. Writes 403 and
// returns false on failure.
func (s *Server) verify(ctx context.Context, w http.ResponseWriter, webhookCtx *voice.WebhookContext) bool {
	if !s.cfg.VerifySignatures {
		return true
	}
	ok, err := s.provider.VerifyWebhook(webhookCtx)
	if err != nil {
		s.logger.Warn(ctx, "webhook verification error", "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	if !ok {
		s.logger.Warn(ctx, "webhook signature rejected", "url", webhookCtx.URL)
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// actionURL is where the next Gather posts its speech result.
func (s *Server) actionURL(callID string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		return "/voice?callId=" + callID
	}
	return base + "/voice?callId=" + callID
}

// instrument wraps a handler with request ID correlation, access
// logging, and latency metrics.
func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithRequestID(r.Context(), uuid.New().String())
		r = r.WithContext(ctx)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(recorder, r)
		elapsed := time.Since(start)

		s.metrics.HTTPRequestDuration.
			WithLabelValues(path, strconv.Itoa(recorder.status)).
			Observe(elapsed.Seconds())
		s.logger.Info(ctx, "webhook handled",
			"path", path,
			"status", recorder.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
