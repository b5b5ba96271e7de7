package assessment

import (
	"fmt"
	"time"
)

// Stage of a session. The sequence is linear: intro, profile, questions,
// generating, result.
type Stage string

const (
	StageIntro      Stage = "intro"
	StageProfile    Stage = "profile"
	StageQuestions  Stage = "questions"
	StageGenerating Stage = "generating"
	StageResult     Stage = "result"
)

// Session holds one user's progress through one tool.
type Session struct {
	ID        string      `json:"id"`
	Tool      string      `json:"tool"`
	Stage     Stage       `json:"stage"`
	Page      int         `json:"page"`
	Pages     int         `json:"pages"`
	Profile   UserProfile `json:"profile"`
	Answers   AnswerSet   `json:"answers"`
	Report    *Report     `json:"report,omitempty"`
	LastError string      `json:"last_error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func NewSession(id string, t *Tool, now time.Time) *Session {
	return &Session{
		ID:        id,
		Tool:      t.Slug,
		Stage:     StageIntro,
		Page:      1,
		Pages:     t.PageCount(),
		Answers:   AnswerSet{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Editable reports whether answers and profile may still change.
func (s *Session) Editable() bool {
	return s.Stage == StageIntro || s.Stage == StageProfile || s.Stage == StageQuestions
}

// Advance moves one step forward. Inside the questions stage it turns the page;
// leaving the questions stage is done by BeginGeneration.
func (s *Session) Advance() error {
	switch s.Stage {
	case StageIntro:
		s.Stage = StageProfile
	case StageProfile:
		s.Stage = StageQuestions
		s.Page = 1
	case StageQuestions:
		if s.Page >= s.Pages {
			return fmt.Errorf("%w: last page reached, submit instead", ErrInvalidStage)
		}
		s.Page++
	default:
		return fmt.Errorf("%w: cannot advance from %s", ErrInvalidStage, s.Stage)
	}
	return nil
}

// Back moves one step backward. Generating and result cannot go back.
func (s *Session) Back() error {
	switch s.Stage {
	case StageProfile:
		s.Stage = StageIntro
	case StageQuestions:
		if s.Page > 1 {
			s.Page--
			return nil
		}
		s.Stage = StageProfile
	default:
		return fmt.Errorf("%w: cannot go back from %s", ErrInvalidStage, s.Stage)
	}
	return nil
}

// BeginGeneration marks the session busy while the remote call is outstanding.
func (s *Session) BeginGeneration() error {
	if !s.Editable() {
		return fmt.Errorf("%w: cannot submit from %s", ErrInvalidStage, s.Stage)
	}
	s.Stage = StageGenerating
	s.LastError = ""
	return nil
}

func (s *Session) Complete(r *Report) {
	s.Stage = StageResult
	s.Report = r
	s.LastError = ""
}

// Fail returns the session to the questions stage with the user-facing message.
func (s *Session) Fail(msg string) {
	s.Stage = StageQuestions
	s.LastError = msg
}
