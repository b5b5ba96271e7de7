package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/bryanwahyu/assessment-hub/internal/application"
	"github.com/bryanwahyu/assessment-hub/internal/catalog"
	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
	domain "github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/infra/render"
)

type memSessions struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

func newMemSessions() *memSessions { return &memSessions{data: map[string][]byte{}} }

// stored values are JSON so tests cannot mutate what the service saved
func (m *memSessions) Save(_ context.Context, s *domain.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.Tool+":"+s.ID] = b
	m.saves++
	return nil
}

func (m *memSessions) Get(_ context.Context, tool, id string) (*domain.Session, error) {
	m.mu.Lock()
	b, ok := m.data[tool+":"+id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *memSessions) Delete(_ context.Context, tool, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, tool+":"+id)
	return nil
}

type fakeChat struct {
	calls   atomic.Int32
	mu      sync.Mutex
	last    ai.ChatRequest
	reply   string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeChat) Complete(ctx context.Context, req ai.ChatRequest) (ai.ChatResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ai.ChatResponse{}, fmt.Errorf("%w: %v", ai.ErrNetwork, ctx.Err())
		}
	}
	if f.err != nil {
		return ai.ChatResponse{}, f.err
	}
	return ai.ChatResponse{Content: f.reply, Model: "test-model"}, nil
}

type fakeInference struct {
	calls   atomic.Int32
	payload any
	upload  ai.Upload
	result  ai.Result
	err     error
}

func (f *fakeInference) Classify(_ context.Context, _ domain.Endpoint, up ai.Upload) (ai.Result, error) {
	f.calls.Add(1)
	f.upload = up
	return f.result, f.err
}

func (f *fakeInference) Predict(_ context.Context, _ domain.Endpoint, payload any) (ai.Result, error) {
	f.calls.Add(1)
	f.payload = payload
	return f.result, f.err
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []*domain.Run
	err  error
}

func (f *fakeRuns) Save(_ context.Context, r *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, r)
	return f.err
}

func (f *fakeRuns) Latest(_ context.Context, _ string, _ int) ([]*domain.Run, error) {
	return f.runs, nil
}

func (f *fakeRuns) Summary(_ context.Context, tool string, days int) (domain.RunSummary, error) {
	return domain.RunSummary{Tool: tool, SinceDays: days, Total: len(f.runs)}, nil
}

type fakeArchive struct {
	key  string
	body []byte
	err  error
}

func (f *fakeArchive) PutReport(_ context.Context, key string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.key, f.body = key, body
	return nil
}

func (f *fakeArchive) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://files.test/%s?expires=%d", key, int(expiry.Seconds())), nil
}

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type harness struct {
	svc      *Service
	sessions *memSessions
	chat     *fakeChat
	infer    *fakeInference
	runs     *fakeRuns
	observed []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	h := &harness{
		sessions: newMemSessions(),
		chat:     &fakeChat{reply: "## Overview\n\nYou are doing well."},
		infer:    &fakeInference{},
		runs:     &fakeRuns{},
	}
	var mu sync.Mutex
	h.svc = &Service{
		Catalog:   reg,
		Sessions:  h.sessions,
		Chat:      h.chat,
		Inference: h.infer,
		Renderer:  render.New(),
		Runs:      h.runs,
		Clock:     application.FixedClock{T: testNow},
		Log:       zaptest.NewLogger(t),
		Observe: func(tool, kind, errorKind string, _ time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			h.observed = append(h.observed, tool+"/"+kind+"/"+errorKind)
		},
	}
	return h
}

var errBoom = errors.New("boom")
