package voice

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dialkit/dialkit/pkg/models"
)

// TwilioProvider implements the Provider interface for the Twilio Voice
// API: outbound calls via the REST API and inbound webhooks with
// HMAC-SHA1 signature verification.
//
// Thread Safety:
// TwilioProvider is safe for concurrent use.
type TwilioProvider struct {
	accountSID string
	authToken  string
	baseURL    string

	client  *http.Client
	nowFunc func() time.Time
}

// TwilioConfig holds configuration for the Twilio provider.
type TwilioConfig struct {
	// AccountSID is the Twilio account SID (required)
	AccountSID string

	// AuthToken is the Twilio auth token (required)
	AuthToken string

	// BaseURL overrides the API endpoint (optional, for tests)
	BaseURL string
}

// NewTwilioProvider creates a new Twilio voice provider.
func NewTwilioProvider(cfg TwilioConfig) (*TwilioProvider, error) {
	if cfg.AccountSID == "" {
		return nil, errors.New("twilio: account SID is required")
	}
	if cfg.AuthToken == "" {
		return nil, errors.New("twilio: auth token is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}

	return &TwilioProvider{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    fmt.Sprintf("%s/2010-04-01/Accounts/%s", baseURL, cfg.AccountSID),
		client:     &http.Client{Timeout: 30 * time.Second},
		nowFunc:    time.Now,
	}, nil
}

// Name returns the provider identifier.
func (p *TwilioProvider) Name() ProviderName {
	return ProviderTwilio
}

// InitiateCall starts an outbound call via the Twilio API. The status
// callback reuses the webhook URL with type=status so both land on the
// same public host.
func (p *TwilioProvider) InitiateCall(ctx context.Context, input *InitiateCallInput) (*InitiateCallResult, error) {
	if input.WebhookURL == "" {
		return nil, errors.New("twilio: webhook URL is required")
	}

	u, err := url.Parse(input.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("twilio: invalid webhook URL: %w", err)
	}
	q := u.Query()
	q.Set("callId", input.CallID)
	u.RawQuery = q.Encode()

	statusURL := *u
	sq := statusURL.Query()
	sq.Set("type", "status")
	statusURL.RawQuery = sq.Encode()

	params := url.Values{
		"To":                  {input.To},
		"From":                {input.From},
		"Url":                 {u.String()},
		"StatusCallback":      {statusURL.String()},
		"StatusCallbackEvent": {"initiated", "ringing", "answered", "completed"},
		"Timeout":             {"30"},
	}

	resp, err := p.apiRequest(ctx, "/Calls.json", params)
	if err != nil {
		return nil, fmt.Errorf("twilio: failed to initiate call: %w", err)
	}

	var result struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("twilio: failed to parse response: %w", err)
	}

	status := "initiated"
	if result.Status == "queued" {
		status = "queued"
	}

	return &InitiateCallResult{
		ProviderCallID: result.SID,
		Status:         status,
	}, nil
}

// HangupCall ends an active call. A call the API no longer knows about
// is treated as already hung up.
func (p *TwilioProvider) HangupCall(ctx context.Context, providerCallID string) error {
	params := url.Values{
		"Status": {"completed"},
	}

	_, err := p.apiRequest(ctx, fmt.Sprintf("/Calls/%s.json", providerCallID), params)
	if err != nil && !strings.Contains(err.Error(), "404") {
		return fmt.Errorf("twilio: failed to hangup call: %w", err)
	}
	return nil
}

// VerifyWebhook validates webhook authenticity using HMAC-SHA1 over the
// full URL plus the sorted form parameters, per Twilio's scheme.
func (p *TwilioProvider) VerifyWebhook(ctx *WebhookContext) (bool, error) {
	signature := ctx.Headers["x-twilio-signature"]
	if signature == "" {
		signature = ctx.Headers["X-Twilio-Signature"]
	}
	if signature == "" {
		return false, nil
	}

	params, err := url.ParseQuery(ctx.Body)
	if err != nil {
		return false, fmt.Errorf("twilio: failed to parse body: %w", err)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sigString := ctx.URL
	for _, k := range keys {
		for _, v := range params[k] {
			sigString += k + v
		}
	}

	mac := hmac.New(sha1.New, []byte(p.authToken))
	mac.Write([]byte(sigString))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected)), nil
}

// ParseWebhook parses a Twilio webhook into normalized events. The
// session key prefers the callId query param set on outbound calls,
// then the CallSid form field, then a synthesized local ID.
func (p *TwilioProvider) ParseWebhook(ctx *WebhookContext) (*WebhookParseResult, error) {
	params, err := url.ParseQuery(ctx.Body)
	if err != nil {
		return nil, fmt.Errorf("twilio: failed to parse body: %w", err)
	}

	callSID := params.Get("CallSid")
	callID := ctx.Query["callId"]
	if callID == "" {
		callID = callSID
	}
	if callID == "" {
		callID = SynthesizeCallID(p.nowFunc())
	}

	result := &WebhookParseResult{}
	if event := p.normalizeEvent(params, callID, callSID); event != nil {
		result.Events = []Event{*event}
	}
	return result, nil
}

// normalizeEvent converts Twilio webhook params to a normalized event.
// A speech result wins over a status field when both are present.
func (p *TwilioProvider) normalizeEvent(params url.Values, callID, callSID string) *Event {
	base := &Event{
		ID:             uuid.New().String(),
		CallID:         callID,
		ProviderCallID: callSID,
		Timestamp:      p.nowFunc(),
		From:           params.Get("From"),
		To:             params.Get("To"),
	}

	if speech := params.Get("SpeechResult"); speech != "" {
		base.Type = EventSpeech
		base.Utterance = speech
		if conf := params.Get("Confidence"); conf != "" {
			if _, err := fmt.Sscanf(conf, "%f", &base.Confidence); err != nil {
				base.Confidence = 0
			}
		}
		return base
	}

	if raw := params.Get("CallStatus"); raw != "" {
		status, ok := models.ParseCallStatus(raw)
		if !ok {
			return nil
		}
		base.Type = EventStatus
		base.Status = status
		return base
	}

	return nil
}

// apiRequest makes an authenticated request to the Twilio API.
func (p *TwilioProvider) apiRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := p.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBufferString(params.Encode()))
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, (1<<20)+1))
	if err != nil {
		return nil, err
	}
	if len(body) > 1<<20 {
		return nil, fmt.Errorf("API response too large (%d bytes)", len(body))
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
