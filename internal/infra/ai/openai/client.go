package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1024
)

// Client implements ai.ChatClient over any OpenAI-compatible endpoint.
type Client struct {
	*openai.Client
	Model   string
	Timeout time.Duration
	apiKey  string
}

// Options configures the chat client. BaseURL may point at any compatible provider.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{}
	return &Client{
		Client:  openai.NewClientWithConfig(cfg),
		Model:   opts.Model,
		Timeout: opts.Timeout,
		apiKey:  opts.APIKey,
	}
}

func (c *Client) Complete(ctx context.Context, in ai.ChatRequest) (ai.ChatResponse, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return ai.ChatResponse{}, fmt.Errorf("%w: LLM API key is empty", ai.ErrMissingCredentials)
	}
	model := in.Model
	if model == "" {
		model = c.Model
	}
	if model == "" {
		model = defaultModel
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(in.Messages)),
	}
	for _, m := range in.Messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	// and leave sampling parameters at their defaults.
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
		req.Temperature = in.Temperature
		req.TopP = in.TopP
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return ai.ChatResponse{}, classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return ai.ChatResponse{}, fmt.Errorf("%w: no choices in chat completion", ai.ErrMalformedResponse)
	}
	return ai.ChatResponse{Content: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// classify maps go-openai and transport errors onto the ai error taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", ai.ErrMissingCredentials, err)
		}
		return fmt.Errorf("chat completion: %w", &ai.StatusError{Code: apiErr.HTTPStatusCode, Body: apiErr.Message})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chat completion: %w", &ai.StatusError{Code: reqErr.HTTPStatusCode, Body: string(reqErr.Body)})
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ai.ErrNetwork, err)
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}
