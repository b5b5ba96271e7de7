package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

// Prompt is the pair of messages sent to the chat completion API.
type Prompt struct {
	System string
	User   string
}

// Messages converts the prompt into chat messages.
func (p Prompt) Messages() []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: p.System},
		{Role: ai.RoleUser, Content: p.User},
	}
}

// Build serializes the answers, profile and optional score into a prompt.
// Output is deterministic: questions follow catalog order, profile fields a
// fixed order, and every answered question appears exactly once as [Q<id>].
func Build(t *assessment.Tool, profile assessment.UserProfile, answers assessment.AnswerSet, score *assessment.RiskScore) Prompt {
	return Prompt{
		System: SystemPrompt(t),
		User:   UserPrompt(t, profile, answers, score),
	}
}

// SystemPrompt states role, audience, tone and the required reply structure.
func SystemPrompt(t *assessment.Tool) string {
	r := t.Report
	role := r.Role
	if role == "" {
		role = "a careful health information assistant"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s writing a personalised report for the %q assessment.\n", role, t.Title)
	if r.Audience != "" {
		fmt.Fprintf(&b, "The reader is %s.\n", r.Audience)
	}
	if r.Tone != "" {
		fmt.Fprintf(&b, "Use a %s tone.\n", r.Tone)
	}
	b.WriteString("\nRequirements:\n")
	if len(r.Sections) > 0 {
		b.WriteString("- Structure the reply with exactly these section headings, in this order:\n")
		for _, s := range r.Sections {
			fmt.Fprintf(&b, "  ## %s\n", s)
		}
	}
	b.WriteString("- Use plain sentences and short bullet lists only. No tables, no bold or italic decoration, no code blocks, no HTML.\n")
	b.WriteString("- Base the report only on the answers provided. Do not invent answers that are missing.\n")
	b.WriteString("- Do not give a diagnosis or prescribe medication.\n")
	for _, n := range r.Notes {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	if r.Disclaimer != "" {
		fmt.Fprintf(&b, "- End with this sentence on its own line: %s\n", r.Disclaimer)
	}
	return b.String()
}

// UserPrompt lists the context and answers.
func UserPrompt(t *assessment.Tool, profile assessment.UserProfile, answers assessment.AnswerSet, score *assessment.RiskScore) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Assessment: %s\n", t.Title)

	if fields := profile.Fields(); len(fields) > 0 {
		b.WriteString("\nAbout the person:\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "- %s: %s\n", oneLine(f.Name), oneLine(RedactText(f.Value)))
		}
	} else {
		b.WriteString("\nAbout the person: not provided.\n")
	}

	if score != nil {
		fmt.Fprintf(&b, "\nLocal risk score: %s out of %s", formatNumber(score.Value), formatNumber(score.Max))
		if score.Category != "" {
			fmt.Fprintf(&b, " (category: %s)", score.Category)
		}
		b.WriteString("\n")
	}

	ordered := answers.Ordered(t)
	fmt.Fprintf(&b, "\nAnswers (%d of %d questions answered):\n", len(ordered), len(t.Questions))
	section := ""
	for _, a := range ordered {
		if a.Question.Section != "" && a.Question.Section != section {
			section = a.Question.Section
			fmt.Fprintf(&b, "%s:\n", section)
		}
		value := a.Value.Display(a.Question)
		if a.Question.Type == assessment.TypeFreeText {
			value = RedactText(value)
		}
		fmt.Fprintf(&b, "%s %s: %s\n", Tag(a.Question.ID), oneLine(a.Question.Text), oneLine(value))
	}

	b.WriteString("\nWrite the report now, following the required structure.")
	return b.String()
}

// Tag is the stable marker of a question inside a prompt.
func Tag(id int) string { return "[Q" + strconv.Itoa(id) + "]" }

func formatNumber(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// oneLine keeps each answer on a single line so markers stay unambiguous.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "[Q", "(Q")
	return strings.TrimSpace(s)
}
