package assessment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxFreeTextRunes = 4000

// AnswerValue is a tagged variant; its kind always equals the type of the
// question it answers. Build one with ParseAnswer or the New* constructors.
type AnswerValue struct {
	kind   QuestionType
	yes    bool
	choice string
	number float64
	text   string
}

func NewYesNo(v bool) AnswerValue        { return AnswerValue{kind: TypeYesNo, yes: v} }
func NewChoice(v string) AnswerValue     { return AnswerValue{kind: TypeMultipleChoice, choice: v} }
func NewNumber(v float64) AnswerValue    { return AnswerValue{kind: TypeNumericScale, number: v} }
func NewText(v string) AnswerValue       { return AnswerValue{kind: TypeFreeText, text: v} }
func (v AnswerValue) Kind() QuestionType { return v.kind }
func (v AnswerValue) IsZero() bool       { return v.kind == "" }
func (v AnswerValue) Bool() bool         { return v.yes }
func (v AnswerValue) Choice() string     { return v.choice }
func (v AnswerValue) Number() float64    { return v.number }
func (v AnswerValue) Text() string       { return v.text }

// Display renders the value for humans, using option labels where declared.
func (v AnswerValue) Display(q Question) string {
	switch v.kind {
	case TypeYesNo:
		if v.yes {
			return "yes"
		}
		return "no"
	case TypeMultipleChoice:
		if o, ok := q.Option(v.choice); ok {
			return o.Display()
		}
		return v.choice
	case TypeNumericScale:
		s := strconv.FormatFloat(v.number, 'f', -1, 64)
		if q.Unit != "" {
			s += " " + q.Unit
		}
		return s
	case TypeFreeText:
		return v.text
	}
	return ""
}

type wireAnswer struct {
	Type  QuestionType `json:"type"`
	Value any          `json:"value"`
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	w := wireAnswer{Type: v.kind}
	switch v.kind {
	case TypeYesNo:
		w.Value = v.yes
	case TypeMultipleChoice:
		w.Value = v.choice
	case TypeNumericScale:
		w.Value = v.number
	case TypeFreeText:
		w.Value = v.text
	}
	return json.Marshal(w)
}

func (v *AnswerValue) UnmarshalJSON(b []byte) error {
	var w struct {
		Type  QuestionType    `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case TypeYesNo:
		var x bool
		if err := json.Unmarshal(w.Value, &x); err != nil {
			return err
		}
		*v = NewYesNo(x)
	case TypeMultipleChoice:
		var x string
		if err := json.Unmarshal(w.Value, &x); err != nil {
			return err
		}
		*v = NewChoice(x)
	case TypeNumericScale:
		var x float64
		if err := json.Unmarshal(w.Value, &x); err != nil {
			return err
		}
		*v = NewNumber(x)
	case TypeFreeText:
		var x string
		if err := json.Unmarshal(w.Value, &x); err != nil {
			return err
		}
		*v = NewText(x)
	default:
		return fmt.Errorf("answer: unknown type %q", w.Type)
	}
	return nil
}

// ParseAnswer coerces raw JSON input into the variant declared by q.
// Mismatched shapes are rejected with ErrTypeMismatch.
func ParseAnswer(q Question, raw json.RawMessage) (AnswerValue, error) {
	var in any
	if err := json.Unmarshal(raw, &in); err != nil {
		return AnswerValue{}, mismatch(q, "value is not valid JSON")
	}

	switch q.Type {
	case TypeYesNo:
		switch x := in.(type) {
		case bool:
			return NewYesNo(x), nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "yes", "y", "true":
				return NewYesNo(true), nil
			case "no", "n", "false":
				return NewYesNo(false), nil
			}
		}
		return AnswerValue{}, mismatch(q, "expected yes or no")

	case TypeMultipleChoice:
		if x, ok := in.(string); ok {
			if o, ok := q.Option(strings.TrimSpace(x)); ok {
				return NewChoice(o.Value), nil
			}
		}
		vals := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			vals = append(vals, o.Value)
		}
		return AnswerValue{}, mismatch(q, "expected one of: "+strings.Join(vals, ", "))

	case TypeNumericScale:
		var n float64
		switch x := in.(type) {
		case float64:
			n = x
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return AnswerValue{}, mismatch(q, "expected a number")
			}
			n = f
		default:
			return AnswerValue{}, mismatch(q, "expected a number")
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return AnswerValue{}, mismatch(q, "expected a finite number")
		}
		if q.Min != nil && n < *q.Min {
			return AnswerValue{}, mismatch(q, fmt.Sprintf("must be at least %g", *q.Min))
		}
		if q.Max != nil && n > *q.Max {
			return AnswerValue{}, mismatch(q, fmt.Sprintf("must be at most %g", *q.Max))
		}
		return NewNumber(n), nil

	case TypeFreeText:
		x, ok := in.(string)
		if !ok {
			return AnswerValue{}, mismatch(q, "expected text")
		}
		x = strings.TrimSpace(x)
		if utf8.RuneCountInString(x) > maxFreeTextRunes {
			return AnswerValue{}, mismatch(q, fmt.Sprintf("text longer than %d characters", maxFreeTextRunes))
		}
		return NewText(x), nil
	}
	return AnswerValue{}, mismatch(q, "unsupported question type")
}

func mismatch(q Question, reason string) error {
	return &AnswerError{QuestionID: q.ID, Reason: reason, Err: ErrTypeMismatch}
}

// AnswerSet maps question id to answer.
type AnswerSet map[int]AnswerValue

func (s AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Answered pairs a question with its answer.
type Answered struct {
	Question Question
	Value    AnswerValue
}

// Ordered returns the answered questions in catalog order.
func (s AnswerSet) Ordered(t *Tool) []Answered {
	out := make([]Answered, 0, len(s))
	for _, q := range t.Questions {
		if v, ok := s[q.ID]; ok && !v.IsZero() {
			out = append(out, Answered{Question: q, Value: v})
		}
	}
	return out
}

// MarshalJSON encodes keys as strings so the set round-trips through JSON stores.
func (s AnswerSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]AnswerValue, len(s))
	for k, v := range s {
		m[strconv.Itoa(k)] = v
	}
	return json.Marshal(m)
}

func (s *AnswerSet) UnmarshalJSON(b []byte) error {
	var m map[string]AnswerValue
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := make(AnswerSet, len(m))
	for k, v := range m {
		id, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("answer set: bad question id %q", k)
		}
		out[id] = v
	}
	*s = out
	return nil
}
