package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	appassess "github.com/bryanwahyu/assessment-hub/internal/application/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/catalog"
	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
	domain "github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/infra/render"
	"github.com/bryanwahyu/assessment-hub/internal/infra/session"
	"github.com/bryanwahyu/assessment-hub/internal/middleware"
)

type stubChat struct {
	calls atomic.Int32
	err   error
}

func (s *stubChat) Complete(context.Context, ai.ChatRequest) (ai.ChatResponse, error) {
	s.calls.Add(1)
	if s.err != nil {
		return ai.ChatResponse{}, s.err
	}
	return ai.ChatResponse{Content: "## Summary\n\nBrush twice a day.", Model: "stub"}, nil
}

type stubInference struct{ result ai.Result }

func (s *stubInference) Classify(context.Context, domain.Endpoint, ai.Upload) (ai.Result, error) {
	return s.result, nil
}

func (s *stubInference) Predict(context.Context, domain.Endpoint, any) (ai.Result, error) {
	return s.result, nil
}

type stubRuns struct{ runs []*domain.Run }

func (s *stubRuns) Save(_ context.Context, r *domain.Run) error {
	s.runs = append(s.runs, r)
	return nil
}

func (s *stubRuns) Latest(context.Context, string, int) ([]*domain.Run, error) { return s.runs, nil }

func (s *stubRuns) Summary(_ context.Context, tool string, days int) (domain.RunSummary, error) {
	return domain.RunSummary{Tool: tool, SinceDays: days, Total: len(s.runs)}, nil
}

type testServer struct {
	*httptest.Server
	chat *stubChat
	runs *stubRuns
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg, err := catalog.Default()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := session.NewRedisStore(rdb, time.Hour)

	ts := &testServer{chat: &stubChat{}, runs: &stubRuns{}}
	svc := &appassess.Service{
		Catalog:  reg,
		Sessions: store,
		Chat:     ts.chat,
		Inference: &stubInference{result: ai.Result{
			Prediction: &domain.Prediction{Label: "meningioma", Confidence: 88},
		}},
		Renderer: render.New(),
		Runs:     ts.runs,
		Log:      zaptest.NewLogger(t),
	}
	h := NewRouter(Options{
		Service:        svc,
		Log:            zaptest.NewLogger(t),
		Checkers:       map[string]middleware.HealthChecker{"redis": store},
		AdminKeys:      map[string]string{"ops": "secret-key"},
		AllowedOrigins: []string{"*"},
	})
	ts.Server = httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// oralAnswers answers every oral-hygiene question with a valid value.
func oralAnswers(t *testing.T) map[string]any {
	t.Helper()
	reg, err := catalog.Default()
	require.NoError(t, err)
	tool, err := reg.Get("oral-hygiene")
	require.NoError(t, err)

	out := map[string]any{}
	for _, q := range tool.Questions {
		key := fmt.Sprint(q.ID)
		switch q.Type {
		case domain.TypeYesNo:
			out[key] = "yes"
		case domain.TypeMultipleChoice:
			out[key] = q.Options[0].Value
		case domain.TypeNumericScale:
			v := 1.0
			if q.Min != nil {
				v = *q.Min
			}
			out[key] = v
		case domain.TypeFreeText:
			out[key] = "nothing else"
		}
	}
	return out
}

func startSession(t *testing.T, ts *testServer, tool string) string {
	t.Helper()
	var sess domain.Session
	resp := ts.do(t, http.MethodPost, "/v1/tools/"+tool+"/sessions", nil, &sess)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	for i := 0; i < 2; i++ {
		resp = ts.do(t, http.MethodPost, "/v1/tools/"+tool+"/sessions/"+sess.ID+"/advance", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	return sess.ID
}

func TestListTools(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/v1/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var raw []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Len(t, raw, 6)
	b, _ := json.Marshal(raw)
	assert.NotContains(t, string(b), "weight")
}

func TestResolveRoute(t *testing.T) {
	ts := newTestServer(t)
	var view map[string]any
	resp := ts.do(t, http.MethodGet, "/v1/routes/mentalhealth/manasmitra", nil, &view)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "manasmitra", view["slug"])
}

func TestToolErrors(t *testing.T) {
	ts := newTestServer(t)

	var body ErrorBody
	resp := ts.do(t, http.MethodGet, "/v1/tools/unknown-tool", nil, &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body.Kind)

	resp = ts.do(t, http.MethodGet, "/v1/tools/Bad_Slug", nil, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", body.Kind)

	resp = ts.do(t, http.MethodGet, "/v1/tools/oral-hygiene/sessions/not-a-uuid", nil, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/v1/tools/oral-hygiene/sessions/5f0c6a1e-8d1b-4c55-9a43-3c1f2f0c1d2e", nil, &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)
	id := startSession(t, ts, "oral-hygiene")
	base := "/v1/tools/oral-hygiene/sessions/" + id

	var body ErrorBody
	resp := ts.do(t, http.MethodGet, base+"/report.txt", nil, &body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "report_not_ready", body.Kind)

	resp = ts.do(t, http.MethodPut, base+"/profile", map[string]any{"age": "34", "region": " Pune\x00 "}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess domain.Session
	resp = ts.do(t, http.MethodPatch, base+"/answers", map[string]any{"answers": oralAnswers(t)}, &sess)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Pune", sess.Profile.Region)
	assert.Equal(t, 34, sess.Profile.Age)

	var page domain.PageView
	resp = ts.do(t, http.MethodGet, base+"/pages/1", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, page.Answers)

	resp = ts.do(t, http.MethodPost, base+"/submit?theme=dark", nil, &sess)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.StageResult, sess.Stage)
	require.NotNil(t, sess.Report)
	assert.Equal(t, "dark", sess.Report.Theme)
	assert.Contains(t, sess.Report.HTML, "theme-dark")

	resp, err := ts.Client().Get(ts.URL + base + "/report.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Disposition"), `attachment; filename="oral-hygiene-report-`))

	resp = ts.do(t, http.MethodPost, base+"/report/archive", nil, &body)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "not_configured", body.Kind)

	resp = ts.do(t, http.MethodPatch, base+"/answers", map[string]any{"answers": map[string]any{"1": "no"}}, &body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_stage", body.Kind)
}

func TestSubmitIncomplete(t *testing.T) {
	ts := newTestServer(t)
	id := startSession(t, ts, "oral-hygiene")

	var body ErrorBody
	resp := ts.do(t, http.MethodPost, "/v1/tools/oral-hygiene/sessions/"+id+"/submit", nil, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation", body.Kind)
	assert.NotEmpty(t, body.Missing)
	assert.EqualValues(t, 0, ts.chat.calls.Load())
}

func TestSubmitUpstreamFailureReturnsSession(t *testing.T) {
	ts := newTestServer(t)
	id := startSession(t, ts, "oral-hygiene")
	base := "/v1/tools/oral-hygiene/sessions/" + id
	resp := ts.do(t, http.MethodPatch, base+"/answers", map[string]any{"answers": oralAnswers(t)}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ts.chat.err = fmt.Errorf("%w: i/o timeout", ai.ErrNetwork)
	var body ErrorBody
	resp = ts.do(t, http.MethodPost, base+"/submit", nil, &body)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, "network", body.Kind)
	require.NotNil(t, body.Session)
	assert.Equal(t, domain.StageQuestions, body.Session.Stage)
	assert.Equal(t, body.Error, body.Session.LastError)
	assert.NotEmpty(t, body.Session.Answers)

	ts.chat.err = &ai.StatusError{Code: 500}
	resp = ts.do(t, http.MethodPost, base+"/submit", nil, &body)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream_status", body.Kind)
}

func TestInvalidAnswer(t *testing.T) {
	ts := newTestServer(t)
	id := startSession(t, ts, "oral-hygiene")

	var body ErrorBody
	resp := ts.do(t, http.MethodPatch, "/v1/tools/oral-hygiene/sessions/"+id+"/answers",
		map[string]any{"answers": map[string]any{"999": "yes"}}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_answer", body.Kind)

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/v1/tools/oral-hygiene/sessions/"+id+"/answers", strings.NewReader("{"))
	r2, err := ts.Client().Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r2.StatusCode)
}

func TestAssessUsesThemeCookie(t *testing.T) {
	ts := newTestServer(t)
	b, _ := json.Marshal(map[string]any{"answers": oralAnswers(t)})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/tools/oral-hygiene/assess", bytes.NewReader(b))
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rep domain.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "dark", rep.Theme)
	assert.Contains(t, rep.HTML, "<h2")
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t)
	var res appassess.PreviewResult
	resp := ts.do(t, http.MethodPost, "/v1/tools/oral-hygiene/preview", map[string]any{"answers": map[string]any{}}, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, res.Missing)
	assert.NotEmpty(t, res.System)
	assert.EqualValues(t, 0, ts.chat.calls.Load())
}

func upload(t *testing.T, ts *testServer, tool string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	fw.Write(data)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/tools/"+tool+"/classify", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestClassifyUpload(t *testing.T) {
	ts := newTestServer(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

	resp := upload(t, ts, "brain-tumor", png)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep domain.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "meningioma", rep.Prediction.Label)

	bad := upload(t, ts, "brain-tumor", []byte("just some text"))
	defer bad.Body.Close()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(bad.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, "unsupported_input", body.Kind)

	wrong := upload(t, ts, "oral-hygiene", png)
	defer wrong.Body.Close()
	assert.Equal(t, http.StatusBadRequest, wrong.StatusCode)
}

func TestAdminRequiresKey(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/v1/admin/runs", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/admin/summary?tool=oral-hygiene&days=3", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	r2, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer r2.Body.Close()
	require.Equal(t, http.StatusOK, r2.StatusCode)
	var sum domain.RunSummary
	require.NoError(t, json.NewDecoder(r2.Body).Decode(&sum))
	assert.Equal(t, "oral-hygiene", sum.Tool)
	assert.Equal(t, 3, sum.SinceDays)

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/v1/admin/runs", nil)
	req.Header.Set("X-API-Key", "secret-key")
	r3, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer r3.Body.Close()
	var runs []domain.Run
	require.NoError(t, json.NewDecoder(r3.Body).Decode(&runs))
	assert.Empty(t, runs)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	var hs middleware.HealthStatus
	resp := ts.do(t, http.MethodGet, "/health", nil, &hs)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", hs.Checks["redis"].Status)

	resp = ts.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWriteJSONUnencodableValue(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := &Router{log: zap.New(core)}

	rec := httptest.NewRecorder()
	r.writeJSON(rec, http.StatusOK, &domain.Prediction{Label: "tumor", Confidence: math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Kind)
	assert.Equal(t, 1, logs.FilterMessage("encoding response").Len())
}
