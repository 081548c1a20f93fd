package langanalysis

import (
	"strings"
	"testing"
)

func TestStripMarkupSRT(t *testing.T) {
	raw := "1\n00:00:01,000 --> 00:00:03,000\n<i>Hello there.</i>\n\n2\n00:00:04,000 --> 00:00:06,000\n- How are you?\n"
	got := StripMarkup(raw)
	if got != "Hello there. How are you?" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestStripMarkupVTT(t *testing.T) {
	raw := "WEBVTT\n\nNOTE a comment\n\n00:00:01.000 --> 00:00:03.000\nGood <b>morning</b>.\n"
	got := StripMarkup(raw)
	if got != "Good morning." {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestStripMarkupASSDialogue(t *testing.T) {
	raw := strings.Join([]string{
		"ScriptType: v4.00+",
		"Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text",
		`Dialogue: 0,0:00:01.00,0:00:03.00,Default,,0,0,0,,{\pos(100,200)}We should go.\NNow.`,
	}, "\n")
	got := StripMarkup(raw)
	if got != "We should go. Now." {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestStripMarkupDropsSoundCues(t *testing.T) {
	raw := "1\n00:00:01,000 --> 00:00:03,000\n[door slams]\n(SIGHS)\nWhat was that?\n"
	got := StripMarkup(raw)
	if got != "What was that?" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestStripMarkupTrimsByteOrderMark(t *testing.T) {
	raw := "\uFEFF1\n00:00:01,000 --> 00:00:03,000\nHello.\n"
	if got := StripMarkup(raw); got != "Hello." {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestStripMarkupEmptyInput(t *testing.T) {
	if got := StripMarkup(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
