package ai

import (
	"context"

	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

// Message roles
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string
	Content string
}

// ChatRequest mirrors the chat completion request the tools send.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
	TopP        float32
}

type ChatResponse struct {
	Content string
	Model   string
}

// ChatClient talks to a third-party chat completion API.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Upload is a file sent to an image classifier.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result is the decoded reply of a hosted endpoint. Prediction is nil when
// the endpoint only returned free text.
type Result struct {
	Prediction *assessment.Prediction
	Text       string
}

// InferenceClient talks to the hosted classifier and report endpoints.
type InferenceClient interface {
	Classify(ctx context.Context, ep assessment.Endpoint, up Upload) (Result, error)
	Predict(ctx context.Context, ep assessment.Endpoint, payload any) (Result, error)
}
