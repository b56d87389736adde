package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/ignite/campaign-autopilot/internal/domain"
)

func testCampaign() *domain.Campaign {
	return &domain.Campaign{
		Name:         "Acme Newsletter",
		Description:  "Developer tools for small teams",
		ScheduleType: domain.ScheduleWeekly,
	}
}

func TestAngleSelectionIsPeriodic(t *testing.T) {
	period := AngleCount()
	for n := 1; n <= period; n++ {
		first := AngleFor(n)
		repeat := AngleFor(n + period)
		if first.Tone != repeat.Tone {
			t.Errorf("email %d and %d should share a tone: %s vs %s",
				n, n+period, first.Tone, repeat.Tone)
		}
	}

	// All angles distinct within one period.
	seen := map[string]bool{}
	for n := 1; n <= period; n++ {
		tone := AngleFor(n).Tone
		if seen[tone] {
			t.Errorf("tone %s repeated inside one period", tone)
		}
		seen[tone] = true
	}
}

func TestBuildPromptContents(t *testing.T) {
	// 2024-01-05 was a Friday.
	sendTime := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	p, err := BuildPrompt(testCampaign(), 3, 8, sendTime)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	for _, want := range []string{
		"email #3 of 8",
		"Acme Newsletter",
		"Developer tools for small teams",
		"Friday",
		"conversational", // angle 3
		"story-based",
		"Do not reuse phrasing",
		"Subject:",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptOmitsEmptyDescription(t *testing.T) {
	c := testCampaign()
	c.Description = "   "
	p, err := BuildPrompt(c, 1, 4, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(p, "Campaign context") {
		t.Error("blank description should not render a context line")
	}
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	sendTime := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	a, _ := BuildPrompt(testCampaign(), 2, 8, sendTime)
	b, _ := BuildPrompt(testCampaign(), 2, 8, sendTime)
	if a != b {
		t.Error("same slot must render the same prompt on retry")
	}
}

func TestModelOrDefault(t *testing.T) {
	if got := ModelOrDefault(""); got != DefaultModel {
		t.Errorf("empty model = %q, want default", got)
	}
	if got := ModelOrDefault("  anthropic/claude-3-haiku  "); got != "anthropic/claude-3-haiku" {
		t.Errorf("got %q, want trimmed model id", got)
	}
}

func TestParseEmail(t *testing.T) {
	raw := `Subject: Ship faster this quarter

Most teams lose a day a week to flaky builds.
Acme cuts that to minutes.

---
Call-to-action: Start your free trial today`

	e := ParseEmail(raw)
	if e.Subject != "Ship faster this quarter" {
		t.Errorf("subject = %q", e.Subject)
	}
	if !strings.Contains(e.Body, "flaky builds") {
		t.Errorf("body missing content: %q", e.Body)
	}
	if !strings.HasSuffix(e.Body, "Start your free trial today") {
		t.Errorf("CTA should be appended to the body, got %q", e.Body)
	}
	if strings.Contains(e.Body, "---") {
		t.Error("separator leaked into body")
	}
}

func TestParseEmailUnstructuredReply(t *testing.T) {
	raw := "Just some text the model produced without following the format."
	e := ParseEmail(raw)
	if e.Subject != fallbackSubject {
		t.Errorf("subject = %q, want fallback", e.Subject)
	}
	if e.Body != raw {
		t.Errorf("whole reply should become the body, got %q", e.Body)
	}
}
