// Package prompt builds generation prompts for campaign emails.
//
// Each slot in a campaign's sequence gets one of a fixed set of content
// angles, selected deterministically from the email's position. The angle
// cycle is the system's only defense against repetitive output — no
// cross-email memory is kept — so the rendered prompt also carries explicit
// anti-repetition instructions.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/osteele/liquid"

	"github.com/ignite/campaign-autopilot/internal/domain"
)

// DefaultModel is used when a campaign doesn't name a generator model.
const DefaultModel = "openai/gpt-3.5-turbo"

// Angle is one content-variation template: a tone, a structural skeleton,
// and a call-to-action style, each with instructions the generator can act on.
type Angle struct {
	Tone            string
	Structure       string
	CTAStyle        string
	ToneInstruction string
	StructureInstr  string
	CTAInstruction  string
}

// angles is the fixed, ordered variation set. Order matters: selection is
// (emailNumber-1) mod len(angles), so every angle is used once before any
// repeats.
var angles = []Angle{
	{
		Tone:            "informative",
		Structure:       "problem-solution",
		CTAStyle:        "value-driven",
		ToneInstruction: "Focus on educating the reader with valuable insights or tips.",
		StructureInstr:  "Start by identifying a common problem, then present your solution.",
		CTAInstruction:  "Focus the call-to-action on the value they'll receive.",
	},
	{
		Tone:            "enthusiastic",
		Structure:       "benefit-focused",
		CTAStyle:        "urgency",
		ToneInstruction: "Use energetic language and highlight exciting benefits or opportunities.",
		StructureInstr:  "Lead with the key benefits and advantages.",
		CTAInstruction:  "Create a sense of timeliness or limited availability.",
	},
	{
		Tone:            "conversational",
		Structure:       "story-based",
		CTAStyle:        "curiosity",
		ToneInstruction: "Write in a friendly, personal tone as if talking to a friend.",
		StructureInstr:  "Include a brief, relatable story or example.",
		CTAInstruction:  "Make them curious to learn more.",
	},
	{
		Tone:            "professional",
		Structure:       "direct-benefits",
		CTAStyle:        "clear-action",
		ToneInstruction: "Maintain a polished, business-appropriate tone with clear value propositions.",
		StructureInstr:  "Be straightforward about what the reader will gain.",
		CTAInstruction:  "Be direct and specific about the next step.",
	},
}

// AngleCount is the variation period: emails N and N+AngleCount share an angle.
func AngleCount() int { return len(angles) }

// AngleFor returns the angle for a 1-indexed email number.
func AngleFor(emailNumber int) Angle {
	return angles[(emailNumber-1)%len(angles)]
}

// promptTemplate is the liquid source for the rendered generation prompt.
// The response format block is load-bearing: ParseEmail expects it.
const promptTemplate = `You are a professional email marketing specialist writing email #{{ email_number }} of {{ total_emails }} for the '{{ campaign_name }}' campaign.

CAMPAIGN DETAILS:
- Campaign: {{ campaign_name }}
- Schedule: {{ schedule_type }} emails
- Current email: #{{ email_number }} of {{ total_emails }}
- Day: {{ day_of_week }}
{%- if description != "" %}
- Campaign context: {{ description }}
{%- endif %}

STYLE FOR THIS EMAIL:
- Tone: {{ tone }} ({{ tone_instruction }})
- Structure: {{ structure }} ({{ structure_instruction }})
- Call-to-action: {{ cta_style }} ({{ cta_instruction }})

REQUIREMENTS:
- Write in plain text format (no HTML)
- Keep it concise: 150-300 words
- Include a compelling subject line suggestion at the top
- Make it engaging and authentic
- Include ONE clear call-to-action
- Avoid generic placeholders like [Your Name] or [Company Name]
- Do not reuse phrasing, openings, or subject patterns from earlier emails in this sequence
- Consider that this is being sent on a {{ day_of_week }}

FORMAT YOUR RESPONSE EXACTLY LIKE THIS:
Subject: [Your subject line here]

[Email body here]

---
Call-to-action: [Your CTA here]`

var engine = liquid.NewEngine()

// BuildPrompt renders the generation prompt for one slot. sendTime supplies
// the day-of-week context; the dispatcher passes the dispatch time, so a slot
// picked up late renders with the day it actually goes out.
func BuildPrompt(c *domain.Campaign, emailNumber, totalEmails int, sendTime time.Time) (string, error) {
	a := AngleFor(emailNumber)

	out, err := engine.ParseAndRenderString(promptTemplate, liquid.Bindings{
		"campaign_name":         c.Name,
		"description":           strings.TrimSpace(c.Description),
		"schedule_type":         string(c.ScheduleType),
		"email_number":          emailNumber,
		"total_emails":          totalEmails,
		"day_of_week":           sendTime.Weekday().String(),
		"tone":                  a.Tone,
		"tone_instruction":      a.ToneInstruction,
		"structure":             a.Structure,
		"structure_instruction": a.StructureInstr,
		"cta_style":             a.CTAStyle,
		"cta_instruction":       a.CTAInstruction,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}

// ModelOrDefault resolves the generator model for a campaign.
func ModelOrDefault(aiAgentID string) string {
	if m := strings.TrimSpace(aiAgentID); m != "" {
		return m
	}
	return DefaultModel
}

// Email is the parsed structure of a generator reply.
type Email struct {
	Subject string
	Body    string
}

// fallbackSubject is used when the model ignores the format instructions.
const fallbackSubject = "Marketing Update"

// ParseEmail extracts the subject and body from a generator reply in the
// format requested by the prompt. The CTA line, if present, is appended to
// the body so the delivered email always carries it. Tolerant of missing
// sections: worst case the whole reply becomes the body under a default
// subject.
func ParseEmail(raw string) Email {
	subject := fallbackSubject
	var bodyLines []string
	cta := ""

	inBody := false
	sawSubject := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "subject:"):
			subject = strings.TrimSpace(line[len("subject:"):])
			sawSubject = true
			inBody = true
		case strings.HasPrefix(line, "---"):
			inBody = false
		case strings.HasPrefix(lower, "call-to-action:"):
			cta = strings.TrimSpace(line[len("call-to-action:"):])
			inBody = false
		case inBody && line != "":
			bodyLines = append(bodyLines, line)
		}
	}

	body := strings.Join(bodyLines, "\n")
	if !sawSubject {
		body = strings.TrimSpace(raw)
	}
	if cta != "" {
		body += "\n\n" + cta
	}
	return Email{Subject: subject, Body: strings.TrimSpace(body)}
}
