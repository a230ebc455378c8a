package voice

import (
	"fmt"
	"strings"
)

const twimlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// SayGather speaks text and then gathers the caller's next utterance,
// posting the speech result to action.
func SayGather(text, voice, locale, action string) string {
	return fmt.Sprintf(`%s
<Response>
  <Say voice="%s" language="%s">%s</Say>
  <Gather input="speech" speechTimeout="auto" language="%s" action="%s" method="POST"/>
</Response>`, twimlHeader, escapeXML(voice), escapeXML(locale), escapeXML(text), escapeXML(locale), escapeXML(action))
}

// SayHangup speaks a final line and ends the call.
func SayHangup(text, voice, locale string) string {
	return fmt.Sprintf(`%s
<Response>
  <Say voice="%s" language="%s">%s</Say>
  <Hangup/>
</Response>`, twimlHeader, escapeXML(voice), escapeXML(locale), escapeXML(text))
}

// Say speaks text without gathering a reply or hanging up. Used by the
// static TwiML endpoint.
func Say(text, voice, locale string) string {
	return fmt.Sprintf(`%s
<Response>
  <Say voice="%s" language="%s">%s</Say>
</Response>`, twimlHeader, escapeXML(voice), escapeXML(locale), escapeXML(text))
}

// Empty is the TwiML acknowledgment for callbacks that need no verbs.
func Empty() string {
	return twimlHeader + `<Response></Response>`
}

// SayError apologizes and hangs up. Returned when turn processing fails
// so the caller never hears dead air.
func SayError(voice, locale string) string {
	return SayHangup("Sorry, something went wrong. Please call again later.", voice, locale)
}

// escapeXML escapes special characters for XML content.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
