package dialog

import (
	"testing"

	"github.com/dialkit/dialkit/pkg/models"
)

func TestNextStage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		current   models.Stage
		utterance string
		want      models.Stage
	}{
		{"greeting help keyword", models.StageGreeting, "I need help", models.StageNeedsAssessment},
		{"greeting assist keyword", models.StageGreeting, "can you assist me", models.StageNeedsAssessment},
		{"greeting support keyword", models.StageGreeting, "SUPPORT please", models.StageNeedsAssessment},
		{"greeting product keyword", models.StageGreeting, "tell me about your product", models.StageProductInfo},
		{"greeting buy keyword", models.StageGreeting, "I want to buy something", models.StageProductInfo},
		{"greeting no keyword stays", models.StageGreeting, "hello there", models.StageGreeting},
		{"greeting farewell", models.StageGreeting, "ok bye", models.StageEnded},
		{"help beats product", models.StageGreeting, "help me buy a product", models.StageNeedsAssessment},
		{"farewell beats help", models.StageGreeting, "no help needed, goodbye", models.StageEnded},
		{"needs assessment falls through", models.StageNeedsAssessment, "my router is broken", models.StageConversation},
		{"product info falls through", models.StageProductInfo, "the premium plan", models.StageConversation},
		{"conversation absorbs", models.StageConversation, "what about help", models.StageConversation},
		{"conversation farewell", models.StageConversation, "goodbye then", models.StageEnded},
		{"keyword inside word matches", models.StageGreeting, "helping hand", models.StageNeedsAssessment},
		{"case insensitive farewell", models.StageConversation, "GoodBye", models.StageEnded},
		{"ended is terminal", models.StageEnded, "hello again", models.StageEnded},
		{"ended ignores help", models.StageEnded, "help", models.StageEnded},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NextStage(tt.current, tt.utterance); got != tt.want {
				t.Errorf("NextStage(%s, %q) = %s, want %s", tt.current, tt.utterance, got, tt.want)
			}
		})
	}
}

func TestNextStageNeverLeavesTerminal(t *testing.T) {
	t.Parallel()

	utterances := []string{"", "help", "product", "bye", "मुझे मदद चाहिए"}
	for _, u := range utterances {
		if got := NextStage(models.StageEnded, u); got != models.StageEnded {
			t.Errorf("NextStage(ended, %q) = %s, want ended", u, got)
		}
	}
}

func TestFallbackReply(t *testing.T) {
	t.Parallel()

	if got := FallbackReply(models.StageGreeting, "anything"); got != DefaultGreeting {
		t.Errorf("FallbackReply(greeting) = %q, want default greeting", got)
	}
	if got := FallbackReply(models.StageEnded, "anything"); got != Farewell {
		t.Errorf("FallbackReply(ended) = %q, want farewell", got)
	}
	if got := FallbackReply(models.StageConversation, "my bill"); got != "I understand you said: my bill" {
		t.Errorf("FallbackReply(conversation) = %q, want echo", got)
	}
	if got := FallbackReply(models.StageNeedsAssessment, "x"); got == "" {
		t.Error("FallbackReply(needs_assessment) returned empty reply")
	}
	if got := FallbackReply(models.StageHelp, "the printer"); got != "I understand you said: the printer" {
		t.Errorf("FallbackReply(help) = %q, want echo", got)
	}
}
