package models

import (
	"testing"
	"time"
)

func TestStageIsTerminal(t *testing.T) {
	t.Parallel()

	if !StageEnded.IsTerminal() {
		t.Error("StageEnded.IsTerminal() = false, want true")
	}
	for _, stage := range []Stage{StageGreeting, StageNeedsAssessment, StageProductInfo, StageHelp, StageConversation} {
		if stage.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", stage)
		}
	}
}

func TestStageValid(t *testing.T) {
	t.Parallel()

	for _, stage := range []Stage{StageGreeting, StageNeedsAssessment, StageProductInfo, StageHelp, StageConversation, StageEnded} {
		if !stage.Valid() {
			t.Errorf("%s.Valid() = false, want true", stage)
		}
	}
	if Stage("bogus").Valid() {
		t.Error(`Stage("bogus").Valid() = true, want false`)
	}
}

func TestRecentTurns(t *testing.T) {
	t.Parallel()

	session := &CallSession{CallID: "c1"}
	for i := 0; i < 8; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		session.AppendTurn(Turn{Role: role, Content: string(rune('a' + i))})
	}

	recent := session.RecentTurns(5)
	if len(recent) != 5 {
		t.Fatalf("RecentTurns(5) returned %d turns, want 5", len(recent))
	}
	if recent[0].Content != "d" || recent[4].Content != "h" {
		t.Errorf("RecentTurns(5) window = %q..%q, want d..h", recent[0].Content, recent[4].Content)
	}

	if got := session.RecentTurns(100); len(got) != 8 {
		t.Errorf("RecentTurns(100) returned %d turns, want all 8", len(got))
	}
	if got := session.RecentTurns(0); len(got) != 8 {
		t.Errorf("RecentTurns(0) returned %d turns, want all 8", len(got))
	}
}

func TestAppendTurnPreservesOrder(t *testing.T) {
	t.Parallel()

	now := time.Now()
	session := &CallSession{CallID: "c1"}
	session.AppendTurn(Turn{Role: RoleUser, Content: "hello", Timestamp: now})
	session.AppendTurn(Turn{Role: RoleAssistant, Content: "hi there", Timestamp: now})

	if len(session.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(session.History))
	}
	if session.History[0].Role != RoleUser || session.History[1].Role != RoleAssistant {
		t.Errorf("history roles = %s, %s; want user, assistant",
			session.History[0].Role, session.History[1].Role)
	}
}

func TestCallStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := []CallStatus{StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", status)
		}
	}

	nonTerminal := []CallStatus{StatusQueued, StatusInitiated, StatusRinging, StatusInProgress, StatusCanceled}
	for _, status := range nonTerminal {
		if status.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", status)
		}
	}
}

func TestParseCallStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   CallStatus
		wantOK bool
	}{
		{"completed", StatusCompleted, true},
		{"  In-Progress ", StatusInProgress, true},
		{"NO-ANSWER", StatusNoAnswer, true},
		{"ringing", StatusRinging, true},
		{"gibberish", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCallStatus(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseCallStatus(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
