package assessment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

// sampleTool has one question of every type across two pages.
func sampleTool(t *testing.T) *Tool {
	t.Helper()
	tool := &Tool{
		Slug:     "sample",
		Route:    "/sample",
		Title:    "Sample",
		PageSize: 2,
		Scoring:  &Scoring{Categories: []Category{{Min: 50, Label: "high"}, {Min: 0, Label: "low"}}},
		Endpoint: Endpoint{Kind: EndpointChat},
		Questions: []Question{
			{ID: 1, Text: "Do you smoke?", Type: TypeYesNo, Required: true, YesWeight: 20},
			{ID: 2, Text: "Diet", Type: TypeMultipleChoice, Required: true, Options: []Option{
				{Value: "low", Label: "Low sugar", Weight: 0},
				{Value: "high", Label: "High sugar", Weight: 10},
			}},
			{ID: 3, Text: "Age", Type: TypeNumericScale, Min: fptr(1), Max: fptr(120), Unit: "years", Required: true},
			{ID: 4, Text: "Notes", Type: TypeFreeText},
		},
	}
	require.NoError(t, tool.Validate())
	return tool
}

func raw(v string) json.RawMessage { return json.RawMessage(v) }
