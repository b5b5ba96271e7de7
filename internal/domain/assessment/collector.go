package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Collector accumulates answers against one tool's catalog.
// It is not safe for concurrent use; each session owns one.
type Collector struct {
	tool    *Tool
	answers AnswerSet
}

func NewCollector(t *Tool, existing AnswerSet) *Collector {
	if existing == nil {
		existing = AnswerSet{}
	}
	return &Collector{tool: t, answers: existing.Clone()}
}

// SetAnswer records raw input for a question. A JSON null clears the answer.
// The set is left unchanged when the value is rejected.
func (c *Collector) SetAnswer(id int, raw json.RawMessage) error {
	q, ok := c.tool.Question(id)
	if !ok {
		return &AnswerError{QuestionID: id, Reason: "not part of this assessment", Err: ErrUnknownQuestion}
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		delete(c.answers, id)
		return nil
	}
	v, err := ParseAnswer(q, raw)
	if err != nil {
		return err
	}
	if v.Kind() == TypeFreeText && v.Text() == "" {
		delete(c.answers, id)
		return nil
	}
	c.answers[id] = v
	return nil
}

// SetAnswers applies a batch atomically: either every value is accepted or none.
func (c *Collector) SetAnswers(raw map[int]json.RawMessage) error {
	staged := NewCollector(c.tool, c.answers)
	for _, q := range c.tool.Questions {
		if v, ok := raw[q.ID]; ok {
			if err := staged.SetAnswer(q.ID, v); err != nil {
				return err
			}
		}
	}
	for id := range raw {
		if _, ok := c.tool.Question(id); !ok {
			return &AnswerError{QuestionID: id, Reason: "not part of this assessment", Err: ErrUnknownQuestion}
		}
	}
	c.answers = staged.answers
	return nil
}

func (c *Collector) Clear(id int) { delete(c.answers, id) }

// AnswerSet returns a copy of the collected answers.
func (c *Collector) AnswerSet() AnswerSet { return c.answers.Clone() }

func (c *Collector) PageCount() int { return c.tool.PageCount() }

// PageView is one page of questions with the answers already given on it.
type PageView struct {
	Page     int                 `json:"page"`
	Pages    int                 `json:"pages"`
	Question []Question          `json:"questions"`
	Answers  map[int]AnswerValue `json:"answers"`
}

func (c *Collector) Page(n int) (PageView, error) {
	qs, err := c.tool.Page(n)
	if err != nil {
		return PageView{}, err
	}
	answers := make(map[int]AnswerValue, len(qs))
	for _, q := range qs {
		if v, ok := c.answers[q.ID]; ok {
			answers[q.ID] = v
		}
	}
	return PageView{Page: n, Pages: c.tool.PageCount(), Question: qs, Answers: answers}, nil
}

// Missing lists required questions without an answer, in catalog order.
func (c *Collector) Missing() []Question {
	var out []Question
	for _, q := range c.tool.Questions {
		if !q.Required {
			continue
		}
		if v, ok := c.answers[q.ID]; !ok || v.IsZero() {
			out = append(out, q)
		}
	}
	return out
}

// Validate blocks submission of an incomplete set.
func (c *Collector) Validate() error {
	for id, v := range c.answers {
		q, ok := c.tool.Question(id)
		if !ok {
			return &AnswerError{QuestionID: id, Reason: "not part of this assessment", Err: ErrUnknownQuestion}
		}
		if v.Kind() != q.Type {
			return &AnswerError{QuestionID: id, Reason: fmt.Sprintf("stored %s answer for %s question", v.Kind(), q.Type), Err: ErrTypeMismatch}
		}
	}
	if missing := c.Missing(); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
