package dialog

import "github.com/dialkit/dialkit/pkg/models"

// DefaultGreeting seeds a freshly created session's last response so that
// a duplicate or empty first webhook still gets a speakable reply.
const DefaultGreeting = "Hello! How can I help you today?"

// Farewell is spoken on the turn that ends the call.
const Farewell = "Thank you for calling. Goodbye!"

// fallbackByStage holds the canned reply spoken when the response
// generator fails or times out. The caller must always receive something
// speakable, so every stage has an entry.
var fallbackByStage = map[models.Stage]string{
	models.StageGreeting:        DefaultGreeting,
	models.StageNeedsAssessment: "What kind of assistance do you need?",
	models.StageProductInfo:     "Which product or service would you like to know more about?",
	models.StageEnded:           Farewell,
}

// FallbackReply returns the canned reply for stage. Stages without a
// fixed line echo the utterance back, matching the conversational
// fallback of the dialog flow.
func FallbackReply(stage models.Stage, utterance string) string {
	if reply, ok := fallbackByStage[stage]; ok {
		return reply
	}
	return "I understand you said: " + utterance
}
