package assessment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bryanwahyu/assessment-hub/internal/application"
	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
	domain "github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/infra/ai/prompt"
	"github.com/bryanwahyu/assessment-hub/internal/infra/render"
	"github.com/bryanwahyu/assessment-hub/internal/scoring"
)

var (
	ErrArchiveDisabled = errors.New("report archive is not configured")
	ErrLedgerDisabled  = errors.New("run ledger is not configured")
)

// Catalog is the read side of the tool registry.
type Catalog interface {
	Get(slug string) (*domain.Tool, error)
	ByRoute(route string) (*domain.Tool, error)
	List() []*domain.Tool
}

// Renderer turns raw remote output into safe HTML.
type Renderer interface {
	Render(raw string, opts render.Options) (string, error)
}

// Observer receives one call per report generation; errorKind is empty on success.
type Observer func(tool, kind, errorKind string, d time.Duration)

// Service implements the use-cases of every assessment tool. One instance
// serves all tools; each tool is data from the catalog.
// Service is safe for concurrent use.
type Service struct {
	Catalog   Catalog
	Sessions  domain.SessionStore
	Chat      ai.ChatClient
	Inference ai.InferenceClient
	Renderer  Renderer
	Runs      domain.RunRepository // optional
	Archiver  domain.ArchiveStore  // optional
	Observe   Observer             // optional
	Clock     application.Clock
	Log       *zap.Logger

	PresignExpiry time.Duration
	// CallTimeout bounds a shared remote call. Zero means defaultCallTimeout.
	CallTimeout time.Duration

	flight singleflight.Group
}

const defaultCallTimeout = 2 * time.Minute

// shared runs fn once per key. The call is detached from every single
// caller's context and bounded by CallTimeout; each caller stops waiting
// when its own context ends.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	timeout := s.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ch := s.flight.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return fn(callCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ai.ErrNetwork, ctx.Err())
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

//
// ==== CATALOG ====
//

func (s *Service) Tools() []*domain.Tool { return s.Catalog.List() }

func (s *Service) Tool(slug string) (*domain.Tool, error) { return s.Catalog.Get(slug) }

func (s *Service) ToolByRoute(route string) (*domain.Tool, error) { return s.Catalog.ByRoute(route) }

//
// ==== SESSIONS ====
//

func (s *Service) StartSession(ctx context.Context, slug string) (*domain.Session, error) {
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return nil, err
	}
	if t.Endpoint.Kind == domain.EndpointClassifier {
		return nil, fmt.Errorf("%w: %s takes an image upload, not a questionnaire", domain.ErrUnsupportedInput, slug)
	}
	sess := domain.NewSession(uuid.NewString(), t, s.now())
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func (s *Service) Session(ctx context.Context, slug, id string) (*domain.Session, error) {
	if _, err := s.Catalog.Get(slug); err != nil {
		return nil, err
	}
	return s.Sessions.Get(ctx, slug, id)
}

// edit loads an editable session, applies fn and saves it.
func (s *Service) edit(ctx context.Context, slug, id string, fn func(*domain.Tool, *domain.Session) error) (*domain.Session, error) {
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return nil, err
	}
	sess, err := s.Sessions.Get(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	if err := fn(t, sess); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now()
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

func (s *Service) UpdateProfile(ctx context.Context, slug, id string, p domain.UserProfile) (*domain.Session, error) {
	return s.edit(ctx, slug, id, func(_ *domain.Tool, sess *domain.Session) error {
		if !sess.Editable() {
			return fmt.Errorf("%w: profile is locked in %s", domain.ErrInvalidStage, sess.Stage)
		}
		sess.Profile = p
		return nil
	})
}

// SetAnswers applies a batch of raw answers. A rejected value leaves the
// stored set unchanged.
func (s *Service) SetAnswers(ctx context.Context, slug, id string, raw map[int]json.RawMessage) (*domain.Session, error) {
	return s.edit(ctx, slug, id, func(t *domain.Tool, sess *domain.Session) error {
		if !sess.Editable() {
			return fmt.Errorf("%w: answers are locked in %s", domain.ErrInvalidStage, sess.Stage)
		}
		c := domain.NewCollector(t, sess.Answers)
		if err := c.SetAnswers(raw); err != nil {
			return err
		}
		sess.Answers = c.AnswerSet()
		return nil
	})
}

func (s *Service) Page(ctx context.Context, slug, id string, page int) (domain.PageView, error) {
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return domain.PageView{}, err
	}
	sess, err := s.Sessions.Get(ctx, slug, id)
	if err != nil {
		return domain.PageView{}, err
	}
	return domain.NewCollector(t, sess.Answers).Page(page)
}

func (s *Service) Advance(ctx context.Context, slug, id string) (*domain.Session, error) {
	return s.edit(ctx, slug, id, func(_ *domain.Tool, sess *domain.Session) error { return sess.Advance() })
}

func (s *Service) Back(ctx context.Context, slug, id string) (*domain.Session, error) {
	return s.edit(ctx, slug, id, func(_ *domain.Tool, sess *domain.Session) error { return sess.Back() })
}

// Submit validates, scores, calls the remote service and stores the report
// on the session. Concurrent submits of the same session share one call; a
// session that already has its report returns it without a new call.
// On a failed call the session goes back to questions with its answers intact.
func (s *Service) Submit(ctx context.Context, slug, id string, theme render.Theme) (*domain.Session, error) {
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return nil, err
	}
	if t.Endpoint.Kind == domain.EndpointClassifier {
		return nil, fmt.Errorf("%w: %s takes an image upload", domain.ErrUnsupportedInput, slug)
	}

	v, err := s.shared(ctx, "session:"+slug+":"+id, func(ctx context.Context) (any, error) {
		sess, err := s.Sessions.Get(ctx, slug, id)
		if err != nil {
			return nil, err
		}
		if sess.Stage == domain.StageResult && sess.Report != nil {
			return sess, nil
		}
		// nothing is in flight for this session, so a leftover generating
		// stage is from an interrupted run
		if sess.Stage == domain.StageGenerating {
			sess.Stage = domain.StageQuestions
		}

		c := domain.NewCollector(t, sess.Answers)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if err := sess.BeginGeneration(); err != nil {
			return nil, err
		}
		sess.UpdatedAt = s.now()
		if err := s.Sessions.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}

		report, genErr := s.generate(ctx, t, sess.Profile, c.AnswerSet(), theme)
		if genErr != nil {
			sess.Fail(ai.UserMessage(genErr))
		} else {
			sess.Complete(report)
		}
		sess.UpdatedAt = s.now()
		// the call may have used up the deadline; the outcome must still be stored
		if err := s.Sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		return sess, genErr
	})
	sess, _ := v.(*domain.Session)
	return sess, err
}

// Export returns the plain-text download of a session's report.
func (s *Service) Export(ctx context.Context, slug, id string) (string, []byte, error) {
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return "", nil, err
	}
	sess, err := s.Sessions.Get(ctx, slug, id)
	if err != nil {
		return "", nil, err
	}
	if sess.Report == nil {
		return "", nil, domain.ErrReportNotReady
	}
	return exportReport(t, sess.Report)
}

func exportReport(t *domain.Tool, r *domain.Report) (string, []byte, error) {
	body := render.PlainText(t.Title, r.Raw, t.Report.Disclaimer, r.CreatedAt)
	return render.Filename(t.Slug, r.CreatedAt), []byte(body), nil
}

// ArchiveResult is where a saved report can be downloaded from.
type ArchiveResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Archive uploads the report text and returns a presigned link. It only runs
// when the user asks for it.
func (s *Service) Archive(ctx context.Context, slug, id string) (ArchiveResult, error) {
	if s.Archiver == nil {
		return ArchiveResult{}, ErrArchiveDisabled
	}
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return ArchiveResult{}, err
	}
	sess, err := s.Sessions.Get(ctx, slug, id)
	if err != nil {
		return ArchiveResult{}, err
	}
	if sess.Report == nil {
		return ArchiveResult{}, domain.ErrReportNotReady
	}
	name, body, err := exportReport(t, sess.Report)
	if err != nil {
		return ArchiveResult{}, err
	}
	key := fmt.Sprintf("reports/%s/%s/%s", t.Slug, sess.Report.ID, name)
	if err := s.Archiver.PutReport(ctx, key, body); err != nil {
		return ArchiveResult{}, fmt.Errorf("archive report: %w", err)
	}
	expiry := s.PresignExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	url, err := s.Archiver.PresignedURL(ctx, key, expiry)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("presign report: %w", err)
	}
	return ArchiveResult{Key: key, URL: url, ExpiresAt: s.now().Add(expiry)}, nil
}

//
// ==== STATELESS ====
//

// AssessInput is a whole questionnaire submitted in one request.
type AssessInput struct {
	Profile domain.UserProfile      `json:"profile"`
	Answers map[int]json.RawMessage `json:"answers"`
}

func (s *Service) collect(t *domain.Tool, in AssessInput) (domain.AnswerSet, error) {
	c := domain.NewCollector(t, nil)
	if err := c.SetAnswers(in.Answers); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c.AnswerSet(), nil
}

// Assess runs the full pipeline without a session. Identical concurrent
// payloads share one remote call.
func (s *Service) Assess(ctx context.Context, slug string, in AssessInput, theme render.Theme) (*domain.Report, error) {
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return nil, err
	}
	if t.Endpoint.Kind == domain.EndpointClassifier {
		return nil, fmt.Errorf("%w: %s takes an image upload", domain.ErrUnsupportedInput, slug)
	}
	answers, err := s.collect(t, in)
	if err != nil {
		return nil, err
	}
	key, err := fingerprint(slug, string(theme), in.Profile, answers)
	if err != nil {
		return nil, err
	}
	v, err := s.shared(ctx, "assess:"+key, func(ctx context.Context) (any, error) {
		return s.generate(ctx, t, in.Profile, answers, theme)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Report), nil
}

func fingerprint(parts ...any) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PreviewResult shows what would be sent without calling the remote service.
type PreviewResult struct {
	Score   *domain.RiskScore `json:"score,omitempty"`
	System  string            `json:"system,omitempty"`
	User    string            `json:"user,omitempty"`
	Payload *ReportPayload    `json:"payload,omitempty"`
	Missing []int             `json:"missing,omitempty"`
}

// Preview scores a partial or complete set and builds the outgoing request.
// Missing required answers are listed, not rejected.
func (s *Service) Preview(_ context.Context, slug string, in AssessInput) (PreviewResult, error) {
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return PreviewResult{}, err
	}
	c := domain.NewCollector(t, nil)
	if err := c.SetAnswers(in.Answers); err != nil {
		return PreviewResult{}, err
	}
	answers := c.AnswerSet()

	var out PreviewResult
	for _, q := range c.Missing() {
		out.Missing = append(out.Missing, q.ID)
	}
	if score, ok := scoring.Score(t, answers); ok {
		out.Score = &score
	}
	switch t.Endpoint.Kind {
	case domain.EndpointChat:
		p := prompt.Build(t, in.Profile, answers, out.Score)
		out.System, out.User = p.System, p.User
	case domain.EndpointReport:
		payload := buildPayload(t, in.Profile, answers)
		out.Payload = &payload
	default:
		return PreviewResult{}, fmt.Errorf("%w: %s takes an image upload", domain.ErrUnsupportedInput, slug)
	}
	return out, nil
}

// Classify sends one image to the tool's hosted classifier.
func (s *Service) Classify(ctx context.Context, slug string, up ai.Upload, theme render.Theme) (*domain.Report, error) {
	t, err := s.Catalog.Get(slug)
	if err != nil {
		return nil, err
	}
	if t.Endpoint.Kind != domain.EndpointClassifier {
		return nil, fmt.Errorf("%w: %s does not take an image", domain.ErrUnsupportedInput, slug)
	}
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", domain.ErrUnsupportedInput)
	}

	start := s.now()
	res, err := s.Inference.Classify(ctx, t.Endpoint, up)
	if err != nil {
		s.record(ctx, t, nil, start, err)
		return nil, err
	}
	report, err := s.finish(t, resultText(t, res), "", nil, res.Prediction, theme)
	s.record(ctx, t, nil, start, err)
	return report, err
}

//
// ==== PIPELINE ====
//

// generate is score → prompt/payload → remote call → render for
// questionnaire tools.
func (s *Service) generate(ctx context.Context, t *domain.Tool, profile domain.UserProfile, answers domain.AnswerSet, theme render.Theme) (*domain.Report, error) {
	var score *domain.RiskScore
	if rs, ok := scoring.Score(t, answers); ok {
		score = &rs
	}

	start := s.now()
	var (
		raw, model string
		pred       *domain.Prediction
	)
	switch t.Endpoint.Kind {
	case domain.EndpointChat:
		p := prompt.Build(t, profile, answers, score)
		resp, err := s.Chat.Complete(ctx, ai.ChatRequest{
			Model:       t.Endpoint.Model,
			Messages:    p.Messages(),
			MaxTokens:   t.Endpoint.MaxTokens,
			Temperature: t.Endpoint.Temperature,
			TopP:        t.Endpoint.TopP,
		})
		if err != nil {
			s.record(ctx, t, score, start, err)
			return nil, err
		}
		raw, model = resp.Content, resp.Model
	case domain.EndpointReport:
		res, err := s.Inference.Predict(ctx, t.Endpoint, buildPayload(t, profile, answers))
		if err != nil {
			s.record(ctx, t, score, start, err)
			return nil, err
		}
		raw, pred = resultText(t, res), res.Prediction
	default:
		return nil, fmt.Errorf("%w: %s takes an image upload", domain.ErrUnsupportedInput, t.Slug)
	}

	report, err := s.finish(t, raw, model, score, pred, theme)
	s.record(ctx, t, score, start, err)
	return report, err
}

func (s *Service) finish(t *domain.Tool, raw, model string, score *domain.RiskScore, pred *domain.Prediction, theme render.Theme) (*domain.Report, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty report text", ai.ErrMalformedResponse)
	}
	if theme == "" {
		theme = render.ThemeLight
	}
	html, err := s.Renderer.Render(raw, render.Options{Theme: theme})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	return &domain.Report{
		ID:         domain.ReportID(uuid.NewString()),
		Tool:       t.Slug,
		Raw:        raw,
		HTML:       html,
		Theme:      string(theme),
		Score:      score,
		Prediction: pred,
		Model:      model,
		CreatedAt:  s.now(),
	}, nil
}

// record writes the anonymous ledger entry and metrics. Ledger failures are
// logged, never returned: the user already has (or lacks) a report.
func (s *Service) record(ctx context.Context, t *domain.Tool, score *domain.RiskScore, start time.Time, err error) {
	d := s.now().Sub(start)
	kind := ai.Kind(err)
	if s.Observe != nil {
		s.Observe(t.Slug, string(t.Endpoint.Kind), kind, d)
	}

	fields := []zap.Field{
		zap.String("tool", t.Slug),
		zap.String("endpoint", string(t.Endpoint.Kind)),
		zap.Duration("duration", d),
	}
	if err != nil {
		s.log().Warn("report generation failed", append(fields, zap.String("error_kind", kind), zap.Error(err))...)
	} else {
		s.log().Info("report generated", fields...)
	}

	if s.Runs == nil {
		return
	}
	run := &domain.Run{
		ID:         uuid.NewString(),
		Tool:       t.Slug,
		Kind:       string(t.Endpoint.Kind),
		Status:     domain.RunSuccess,
		ErrorKind:  kind,
		DurationMS: d.Milliseconds(),
		CreatedAt:  start,
	}
	if err != nil {
		run.Status = domain.RunFailed
	}
	if score != nil {
		v := score.Value
		run.Score = &v
		run.Category = score.Category
	}
	if err := s.Runs.Save(context.WithoutCancel(ctx), run); err != nil {
		s.log().Error("failed to record run", zap.String("tool", t.Slug), zap.Error(err))
	}
}

//
// ==== ADMIN ====
//

func (s *Service) LatestRuns(ctx context.Context, tool string, limit int) ([]*domain.Run, error) {
	if s.Runs == nil {
		return nil, ErrLedgerDisabled
	}
	return s.Runs.Latest(ctx, tool, limit)
}

func (s *Service) Summary(ctx context.Context, tool string, sinceDays int) (domain.RunSummary, error) {
	if s.Runs == nil {
		return domain.RunSummary{}, ErrLedgerDisabled
	}
	return s.Runs.Summary(ctx, tool, sinceDays)
}
