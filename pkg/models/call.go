// Package models defines the domain types shared across dialkit components.
package models

import (
	"strings"
	"time"
)

// Stage represents the coarse conversational phase of a call.
type Stage string

const (
	StageGreeting        Stage = "greeting"
	StageNeedsAssessment Stage = "needs_assessment"
	StageProductInfo     Stage = "product_info"
	StageHelp            Stage = "help"
	StageConversation    Stage = "conversation"
	StageEnded           Stage = "ended"
)

// IsTerminal returns true if no transitions leave this stage.
func (s Stage) IsTerminal() bool {
	return s == StageEnded
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageGreeting, StageNeedsAssessment, StageProductInfo,
		StageHelp, StageConversation, StageEnded:
		return true
	}
	return false
}

// Role indicates the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Language is a detected language tag.
type Language string

const (
	LangEnglish Language = "en"
	LangHindi   Language = "hi"
)

// Turn is one utterance within a call. Turns are immutable once created
// and are only ever appended to a session's history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Language  Language  `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// CallSession is the per-call mutable state tracked between webhook turns.
//
// Exactly one session exists per active call ID. History ordering matches
// wall-clock turn order: a user turn is always immediately followed by the
// assistant turn it produced.
type CallSession struct {
	CallID          string            `json:"call_id"`
	Stage           Stage             `json:"stage"`
	History         []Turn            `json:"history"`
	LastResponse    string            `json:"last_response"`
	CustomerInfo    map[string]string `json:"customer_info,omitempty"`
	LastInteraction time.Time         `json:"last_interaction"`
	CreatedAt       time.Time         `json:"created_at"`
}

// AppendTurn adds a turn to the session history.
func (s *CallSession) AppendTurn(t Turn) {
	s.History = append(s.History, t)
}

// RecentTurns returns the last n turns of history, oldest first.
// The full history is retained for audit; only this slice is fed to the
// response generator.
func (s *CallSession) RecentTurns(n int) []Turn {
	if n <= 0 || len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// TurnResult is the outcome of processing one inbound turn event.
type TurnResult struct {
	ReplyText       string   `json:"reply_text"`
	ShouldTerminate bool     `json:"should_terminate"`
	Language        Language `json:"language"`
}

// CallStatus is a telephony-provider call status from a status callback.
type CallStatus string

const (
	StatusQueued     CallStatus = "queued"
	StatusInitiated  CallStatus = "initiated"
	StatusRinging    CallStatus = "ringing"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
	StatusBusy       CallStatus = "busy"
	StatusNoAnswer   CallStatus = "no-answer"
	StatusCanceled   CallStatus = "canceled"
)

// IsTerminal returns true for statuses that end the call and trigger
// session deletion.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer:
		return true
	}
	return false
}

// ParseCallStatus normalizes a provider status string. Unknown statuses
// return ok=false so new provider states degrade to ignored events.
func ParseCallStatus(raw string) (CallStatus, bool) {
	status := CallStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusQueued, StatusInitiated, StatusRinging, StatusInProgress,
		StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return status, true
	}
	return "", false
}
