// Package dialog contains the pure conversation-flow logic: the stage
// machine that advances a call through its phases and the canned replies
// used when the response generator is unavailable.
package dialog

import (
	"strings"

	"github.com/dialkit/dialkit/pkg/models"
)

// Intent keyword vocabularies. Matching is deliberately naive
// case-insensitive substring matching, not general NLU.
var (
	farewellWords = []string{"bye", "goodbye"}
	helpWords     = []string{"help", "assist", "support"}
	productWords  = []string{"product", "service", "buy"}
)

// NextStage returns the stage that follows current after the user said
// utterance. It is a pure function with a fixed priority order:
// farewell beats help intent, help intent beats product intent.
//
// StageEnded is terminal: no utterance leaves it. StageConversation is
// absorbing: every non-terminal stage that matches no other rule falls
// through to it.
func NextStage(current models.Stage, utterance string) models.Stage {
	if current.IsTerminal() {
		return current
	}

	lower := strings.ToLower(utterance)

	if containsAny(lower, farewellWords) {
		return models.StageEnded
	}

	if current == models.StageGreeting {
		switch {
		case containsAny(lower, helpWords):
			return models.StageNeedsAssessment
		case containsAny(lower, productWords):
			return models.StageProductInfo
		default:
			return models.StageGreeting
		}
	}

	return models.StageConversation
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
