package assessment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrUnknownQuestion  = errors.New("unknown question")
	ErrTypeMismatch     = errors.New("answer does not match question type")
	ErrPageOutOfRange   = errors.New("page out of range")
	ErrInvalidStage     = errors.New("invalid stage transition")
	ErrReportNotReady   = errors.New("report not ready")
	ErrUnsupportedInput = errors.New("tool does not accept this input")
)

// ValidationError lists the required questions that have no answer.
type ValidationError struct {
	Missing []Question
}

func (e *ValidationError) Error() string {
	ids := make([]string, 0, len(e.Missing))
	for _, q := range e.Missing {
		ids = append(ids, fmt.Sprintf("%d", q.ID))
	}
	return fmt.Sprintf("missing required answers: %s", strings.Join(ids, ", "))
}

// UserMessage is the inline text shown next to the form.
func (e *ValidationError) UserMessage() string {
	if len(e.Missing) == 1 {
		return fmt.Sprintf("Please answer question %d before submitting: %q.", e.Missing[0].ID, e.Missing[0].Text)
	}
	ids := make([]string, 0, len(e.Missing))
	for _, q := range e.Missing {
		ids = append(ids, fmt.Sprintf("%d", q.ID))
	}
	return fmt.Sprintf("Please answer all required questions before submitting. %d unanswered: %s.",
		len(e.Missing), strings.Join(ids, ", "))
}

// AnswerError wraps a rejected answer with the offending question.
type AnswerError struct {
	QuestionID int
	Reason     string
	Err        error
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("question %d: %s", e.QuestionID, e.Reason)
}

func (e *AnswerError) Unwrap() error { return e.Err }
