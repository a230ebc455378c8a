package voice

import (
	"strings"
	"testing"
)

func TestSayGather(t *testing.T) {
	t.Parallel()

	twiml := SayGather("How can I help?", "Polly.Joanna", "en-US", "https://example.com/voice?callId=c1")
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<Say voice="Polly.Joanna" language="en-US">How can I help?</Say>`,
		`input="speech"`,
		`speechTimeout="auto"`,
		`action="https://example.com/voice?callId=c1"`,
		`method="POST"`,
	} {
		if !strings.Contains(twiml, want) {
			t.Errorf("SayGather() missing %q in:\n%s", want, twiml)
		}
	}
	if strings.Contains(twiml, "<Hangup/>") {
		t.Error("SayGather() contains Hangup")
	}
}

func TestSayHangup(t *testing.T) {
	t.Parallel()

	twiml := SayHangup("धन्यवाद। अलविदा!", "Polly.Aditi", "hi-IN")
	for _, want := range []string{
		`<Say voice="Polly.Aditi" language="hi-IN">धन्यवाद। अलविदा!</Say>`,
		`<Hangup/>`,
	} {
		if !strings.Contains(twiml, want) {
			t.Errorf("SayHangup() missing %q in:\n%s", want, twiml)
		}
	}
	if strings.Contains(twiml, "<Gather") {
		t.Error("SayHangup() contains Gather")
	}
}

func TestTwiMLEscapesContent(t *testing.T) {
	t.Parallel()

	twiml := Say(`Tom & Jerry <say "hi">`, "Polly.Joanna", "en-US")
	if strings.Contains(twiml, "Tom & Jerry <say") {
		t.Errorf("Say() did not escape XML: %s", twiml)
	}
	if !strings.Contains(twiml, "Tom &amp; Jerry &lt;say &quot;hi&quot;&gt;") {
		t.Errorf("Say() escaped incorrectly: %s", twiml)
	}
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	twiml := Empty()
	if !strings.Contains(twiml, "<Response></Response>") {
		t.Errorf("Empty() = %q", twiml)
	}
}

func TestSayError(t *testing.T) {
	t.Parallel()

	twiml := SayError("Polly.Joanna", "en-US")
	if !strings.Contains(twiml, "<Hangup/>") {
		t.Error("SayError() does not hang up")
	}
	if !strings.Contains(twiml, "Sorry") {
		t.Error("SayError() has no apology text")
	}
}
