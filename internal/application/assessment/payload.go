package assessment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
	domain "github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/infra/ai/prompt"
)

// ReportPayload is the JSON body sent to hosted report endpoints.
type ReportPayload struct {
	Tool    string            `json:"tool"`
	Profile map[string]string `json:"profile,omitempty"`
	Answers []PayloadAnswer   `json:"answers"`
	// Features holds the numeric answers in catalog order, for models that
	// take a plain vector.
	Features []float64 `json:"features"`
}

type PayloadAnswer struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Type     string `json:"type"`
	Value    any    `json:"value"`
}

func buildPayload(t *domain.Tool, profile domain.UserProfile, answers domain.AnswerSet) ReportPayload {
	p := ReportPayload{Tool: t.Slug, Answers: []PayloadAnswer{}, Features: []float64{}}
	for _, f := range profile.Fields() {
		if p.Profile == nil {
			p.Profile = map[string]string{}
		}
		p.Profile[f.Name] = f.Value
	}
	for _, a := range answers.Ordered(t) {
		pa := PayloadAnswer{ID: a.Question.ID, Question: a.Question.Text, Type: string(a.Question.Type)}
		switch a.Value.Kind() {
		case domain.TypeYesNo:
			pa.Value = a.Value.Bool()
			p.Features = append(p.Features, boolFeature(a.Value.Bool()))
		case domain.TypeMultipleChoice:
			pa.Value = a.Value.Choice()
		case domain.TypeNumericScale:
			pa.Value = a.Value.Number()
			p.Features = append(p.Features, a.Value.Number())
		case domain.TypeFreeText:
			pa.Value = prompt.RedactText(a.Value.Text())
		}
		p.Answers = append(p.Answers, pa)
	}
	return p
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// resultText turns a hosted endpoint reply into report Markdown: the
// prediction first, then any free text, then the tool disclaimer.
func resultText(t *domain.Tool, res ai.Result) string {
	var b strings.Builder
	if res.Prediction != nil {
		b.WriteString("## Result\n\n")
		if res.Prediction.Label != "" {
			fmt.Fprintf(&b, "**Prediction:** %s\n\n", res.Prediction.Label)
		}
		fmt.Fprintf(&b, "**Confidence:** %s%%\n\n", strconv.FormatFloat(res.Prediction.Confidence, 'f', -1, 64))
	}
	if txt := strings.TrimSpace(res.Text); txt != "" {
		b.WriteString(txt)
		b.WriteString("\n\n")
	}
	if b.Len() > 0 && t.Report.Disclaimer != "" {
		b.WriteString("_")
		b.WriteString(t.Report.Disclaimer)
		b.WriteString("_\n")
	}
	return b.String()
}
