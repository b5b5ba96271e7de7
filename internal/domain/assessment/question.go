package assessment

import (
	"fmt"
	"sort"
	"strings"
)

// QuestionType enum
type QuestionType string

const (
	TypeYesNo          QuestionType = "yes-no"
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeNumericScale   QuestionType = "numeric-scale"
	TypeFreeText       QuestionType = "free-text"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeYesNo, TypeMultipleChoice, TypeNumericScale, TypeFreeText:
		return true
	}
	return false
}

// Option is one ordered choice of a multiple-choice question.
type Option struct {
	Value  string  `json:"value" yaml:"value"`
	Label  string  `json:"label,omitempty" yaml:"label"`
	Weight float64 `json:"-" yaml:"weight"`
}

// Display returns the label, falling back to the value.
func (o Option) Display() string {
	if o.Label != "" {
		return o.Label
	}
	return o.Value
}

// Band maps a numeric range to a score weight. Bands of a question are
// ordered by Min; a band reaches up to the next band's Min, so a fractional
// value between Max and the next Min stays in the lower band.
type Band struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Weight float64 `yaml:"weight"`
}

// Question is immutable once its tool is loaded.
type Question struct {
	ID       int          `json:"id" yaml:"id"`
	Section  string       `json:"section,omitempty" yaml:"section"`
	Text     string       `json:"text" yaml:"text"`
	Type     QuestionType `json:"type" yaml:"type"`
	Options  []Option     `json:"options,omitempty" yaml:"options"`
	Min      *float64     `json:"min,omitempty" yaml:"min"`
	Max      *float64     `json:"max,omitempty" yaml:"max"`
	Unit     string       `json:"unit,omitempty" yaml:"unit"`
	Required bool         `json:"required" yaml:"required"`

	// scoring weights, never serialized to clients
	YesWeight float64 `json:"-" yaml:"yes_weight"`
	NoWeight  float64 `json:"-" yaml:"no_weight"`
	Bands     []Band  `json:"-" yaml:"bands"`
}

// Option looks up a declared option by value (case-insensitive).
func (q Question) Option(value string) (Option, bool) {
	for _, o := range q.Options {
		if strings.EqualFold(o.Value, value) {
			return o, true
		}
	}
	return Option{}, false
}

// Band returns the band v falls in. ok is false for values below the first
// band or above the last one.
func (q Question) Band(v float64) (Band, bool) {
	n := len(q.Bands)
	if n == 0 || v < q.Bands[0].Min || v > q.Bands[n-1].Max {
		return Band{}, false
	}
	i := sort.Search(n, func(i int) bool { return q.Bands[i].Min > v })
	return q.Bands[i-1], true
}

// Validate checks the declaration is internally consistent. Call once at load time.
func (q Question) Validate() error {
	if q.ID <= 0 {
		return fmt.Errorf("question %d: id must be positive", q.ID)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question %d: text is empty", q.ID)
	}
	if !q.Type.Valid() {
		return fmt.Errorf("question %d: unknown type %q", q.ID, q.Type)
	}
	if q.YesWeight < 0 || q.NoWeight < 0 {
		return fmt.Errorf("question %d: weights must not be negative", q.ID)
	}
	for _, o := range q.Options {
		if o.Weight < 0 {
			return fmt.Errorf("question %d: option %q has a negative weight", q.ID, o.Value)
		}
	}
	for _, b := range q.Bands {
		if b.Weight < 0 {
			return fmt.Errorf("question %d: band weights must not be negative", q.ID)
		}
	}
	switch q.Type {
	case TypeMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: multiple-choice needs at least two options", q.ID)
		}
		seen := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			k := strings.ToLower(o.Value)
			if k == "" {
				return fmt.Errorf("question %d: option value is empty", q.ID)
			}
			if seen[k] {
				return fmt.Errorf("question %d: duplicate option %q", q.ID, o.Value)
			}
			seen[k] = true
		}
	case TypeNumericScale:
		if q.Min != nil && q.Max != nil && *q.Min > *q.Max {
			return fmt.Errorf("question %d: min %.0f greater than max %.0f", q.ID, *q.Min, *q.Max)
		}
		for i, b := range q.Bands {
			if b.Min > b.Max {
				return fmt.Errorf("question %d: band %d has min greater than max", q.ID, i)
			}
			if i > 0 && b.Min <= q.Bands[i-1].Max {
				return fmt.Errorf("question %d: band %d overlaps or is out of order", q.ID, i)
			}
		}
		if n := len(q.Bands); n > 0 {
			if q.Min != nil && *q.Min < q.Bands[0].Min {
				return fmt.Errorf("question %d: bands start above min %g", q.ID, *q.Min)
			}
			if q.Max != nil && *q.Max > q.Bands[n-1].Max {
				return fmt.Errorf("question %d: bands end below max %g", q.ID, *q.Max)
			}
		}
	default:
		if len(q.Options) > 0 {
			return fmt.Errorf("question %d: options only apply to multiple-choice", q.ID)
		}
	}
	return nil
}
