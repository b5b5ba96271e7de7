package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolValidateSortsCategoriesAndDefaultsMax(t *testing.T) {
	tool := sampleTool(t)
	assert.Equal(t, 100.0, tool.Scoring.Max)
	assert.Equal(t, "low", tool.Scoring.Categories[0].Label)
	assert.Equal(t, "high", tool.Scoring.Categories[1].Label)
}

func TestToolValidateErrors(t *testing.T) {
	base := func() *Tool {
		return &Tool{
			Slug: "t", Route: "/t", Endpoint: Endpoint{Kind: EndpointChat},
			Questions: []Question{{ID: 1, Text: "q", Type: TypeYesNo}},
		}
	}
	cases := map[string]func(*Tool){
		"empty slug":        func(t *Tool) { t.Slug = "" },
		"relative route":    func(t *Tool) { t.Route = "t" },
		"unknown endpoint":  func(t *Tool) { t.Endpoint.Kind = "fax" },
		"classifier target": func(t *Tool) { t.Endpoint.Kind = EndpointClassifier },
		"chat no questions": func(t *Tool) { t.Questions = nil },
		"duplicate id":      func(t *Tool) { t.Questions = append(t.Questions, Question{ID: 1, Text: "again", Type: TypeYesNo}) },
		"bad type":          func(t *Tool) { t.Questions[0].Type = "slider" },
		"negative weight":   func(t *Tool) { t.Questions[0].YesWeight = -1 },
		"one option": func(t *Tool) {
			t.Questions[0] = Question{ID: 1, Text: "q", Type: TypeMultipleChoice, Options: []Option{{Value: "a"}}}
		},
		"duplicate option": func(t *Tool) {
			t.Questions[0] = Question{ID: 1, Text: "q", Type: TypeMultipleChoice, Options: []Option{{Value: "a"}, {Value: "A"}}}
		},
		"min above max": func(t *Tool) {
			t.Questions[0] = Question{ID: 1, Text: "q", Type: TypeNumericScale, Min: fptr(5), Max: fptr(1)}
		},
		"overlapping bands": func(t *Tool) {
			t.Questions[0] = Question{ID: 1, Text: "q", Type: TypeNumericScale, Min: fptr(0), Max: fptr(20),
				Bands: []Band{{Min: 0, Max: 10}, {Min: 10, Max: 20}}}
		},
		"bands out of order": func(t *Tool) {
			t.Questions[0] = Question{ID: 1, Text: "q", Type: TypeNumericScale, Min: fptr(0), Max: fptr(20),
				Bands: []Band{{Min: 11, Max: 20}, {Min: 0, Max: 10}}}
		},
		"bands short of max": func(t *Tool) {
			t.Questions[0] = Question{ID: 1, Text: "q", Type: TypeNumericScale, Min: fptr(0), Max: fptr(20),
				Bands: []Band{{Min: 0, Max: 9}, {Min: 10, Max: 15}}}
		},
		"bands start above min": func(t *Tool) {
			t.Questions[0] = Question{ID: 1, Text: "q", Type: TypeNumericScale, Min: fptr(0), Max: fptr(20),
				Bands: []Band{{Min: 1, Max: 20}}}
		},
		"options on yes-no":          func(t *Tool) { t.Questions[0].Options = []Option{{Value: "a"}, {Value: "b"}} },
		"scoring without categories": func(t *Tool) { t.Scoring = &Scoring{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			tool := base()
			mutate(tool)
			assert.Error(t, tool.Validate())
		})
	}
}

func TestQuestionBandLowerBandKeepsGap(t *testing.T) {
	q := Question{ID: 1, Text: "q", Type: TypeNumericScale, Min: fptr(0), Max: fptr(20),
		Bands: []Band{{Min: 0, Max: 9, Weight: 1}, {Min: 10, Max: 20, Weight: 4}}}
	require.NoError(t, q.Validate())

	b, ok := q.Band(9.5)
	require.True(t, ok)
	assert.Equal(t, 1.0, b.Weight)

	b, ok = q.Band(10)
	require.True(t, ok)
	assert.Equal(t, 4.0, b.Weight)

	_, ok = q.Band(20.5)
	assert.False(t, ok)
}

func TestToolPaging(t *testing.T) {
	tool := &Tool{}
	assert.Equal(t, 1, tool.PageCount())

	tool = sampleTool(t)
	qs, err := tool.Page(1)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}
