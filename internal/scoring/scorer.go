// Package scoring is the local risk scorer: a pure weighted sum over an
// AnswerSet, clamped to the tool's bound. It never calls out and holds no state.
package scoring

import (
	"math"

	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

// Score sums the declared weights of every answered question and clamps the
// total to [0, max]. Unanswered questions contribute zero. ok is false when
// the tool has no scoring block.
func Score(t *assessment.Tool, answers assessment.AnswerSet) (assessment.RiskScore, bool) {
	if t == nil || t.Scoring == nil {
		return assessment.RiskScore{}, false
	}
	max := t.Scoring.Max
	if max <= 0 {
		max = 100
	}

	total := 0.0
	for _, q := range t.Questions {
		v, ok := answers[q.ID]
		if !ok || v.IsZero() || v.Kind() != q.Type {
			continue
		}
		total += Weight(q, v)
	}

	total = clamp(round(total), 0, max)
	cat := Categorize(total, t.Scoring.Categories)
	return assessment.RiskScore{
		Value:    total,
		Max:      max,
		Category: cat.Label,
		Advice:   cat.Advice,
	}, true
}

// Weight is the contribution of a single answer.
func Weight(q assessment.Question, v assessment.AnswerValue) float64 {
	switch q.Type {
	case assessment.TypeYesNo:
		if v.Bool() {
			return q.YesWeight
		}
		return q.NoWeight
	case assessment.TypeMultipleChoice:
		if o, ok := q.Option(v.Choice()); ok {
			return o.Weight
		}
	case assessment.TypeNumericScale:
		if b, ok := q.Band(v.Number()); ok {
			return b.Weight
		}
	}
	return 0
}

// Categorize picks the highest category whose Min the score reaches.
// categories must be sorted by Min ascending (Tool.Validate does this).
func Categorize(score float64, categories []assessment.Category) assessment.Category {
	var out assessment.Category
	for _, c := range categories {
		if score >= c.Min {
			out = c
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64) float64 { return math.Round(v*100) / 100 }
