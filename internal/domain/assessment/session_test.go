package assessment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionForwardAndBack(t *testing.T) {
	s := NewSession("id", sampleTool(t), time.Unix(0, 0))
	assert.Equal(t, StageIntro, s.Stage)
	assert.Equal(t, 2, s.Pages)

	require.NoError(t, s.Advance())
	assert.Equal(t, StageProfile, s.Stage)
	require.NoError(t, s.Advance())
	assert.Equal(t, StageQuestions, s.Stage)
	assert.Equal(t, 1, s.Page)
	require.NoError(t, s.Advance())
	assert.Equal(t, 2, s.Page)

	err := s.Advance()
	assert.True(t, errors.Is(err, ErrInvalidStage))

	require.NoError(t, s.Back())
	assert.Equal(t, 1, s.Page)
	require.NoError(t, s.Back())
	assert.Equal(t, StageProfile, s.Stage)
	require.NoError(t, s.Back())
	assert.Equal(t, StageIntro, s.Stage)
	assert.True(t, errors.Is(s.Back(), ErrInvalidStage))
}

func TestSessionGenerationLifecycle(t *testing.T) {
	s := NewSession("id", sampleTool(t), time.Unix(0, 0))
	s.Answers = AnswerSet{1: NewYesNo(true)}
	require.NoError(t, s.BeginGeneration())
	assert.Equal(t, StageGenerating, s.Stage)
	assert.False(t, s.Editable())
	assert.True(t, errors.Is(s.Back(), ErrInvalidStage))
	assert.True(t, errors.Is(s.BeginGeneration(), ErrInvalidStage))

	s.Fail("could not reach the service")
	assert.Equal(t, StageQuestions, s.Stage)
	assert.Equal(t, "could not reach the service", s.LastError)
	assert.Equal(t, AnswerSet{1: NewYesNo(true)}, s.Answers)

	require.NoError(t, s.BeginGeneration())
	assert.Empty(t, s.LastError)
	s.Complete(&Report{ID: "r1"})
	assert.Equal(t, StageResult, s.Stage)
	assert.True(t, errors.Is(s.Advance(), ErrInvalidStage))
	assert.True(t, errors.Is(s.Back(), ErrInvalidStage))
}
