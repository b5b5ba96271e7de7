package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appassess "github.com/bryanwahyu/assessment-hub/internal/application/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
	domain "github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/middleware"
)

// Options wires the router.
type Options struct {
	Service        *appassess.Service
	Log            *zap.Logger
	Checkers       map[string]middleware.HealthChecker
	AdminKeys      map[string]string
	AllowedOrigins []string
	Limiter        *middleware.RateLimiter // nil disables rate limiting
	MaxUploadBytes int64
}

type Router struct {
	svc       *appassess.Service
	log       *zap.Logger
	maxUpload int64
}

func NewRouter(o Options) http.Handler {
	r := &Router{svc: o.Service, log: o.Log, maxUpload: o.MaxUploadBytes}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 10 << 20
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(r.log))
	mux.Use(middleware.Metrics)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if o.Limiter != nil {
		mux.Use(middleware.RateLimit(o.Limiter))
	}

	health := middleware.HealthHandler(o.Checkers)
	mux.Get("/health", health)
	mux.Get("/readyz", health)
	mux.Get("/healthz", middleware.LivenessHandler)
	mux.Handle("/metrics", middleware.MetricsHandler())

	mux.Route("/v1", func(v1 chi.Router) {
		v1.Get("/tools", r.wrap(r.handleListTools))
		v1.Get("/routes/*", r.wrap(r.handleRoute))

		v1.Route("/tools/{tool}", func(rt chi.Router) {
			rt.Get("/", r.wrap(r.handleGetTool))
			rt.Post("/assess", r.wrap(r.handleAssess))
			rt.Post("/preview", r.wrap(r.handlePreview))
			rt.Post("/classify", r.wrap(r.handleClassify))

			rt.Post("/sessions", r.wrap(r.handleStartSession))
			rt.Route("/sessions/{id}", func(st chi.Router) {
				st.Get("/", r.wrap(r.handleGetSession))
				st.Put("/profile", r.wrap(r.handleProfile))
				st.Patch("/answers", r.wrap(r.handleAnswers))
				st.Get("/pages/{page}", r.wrap(r.handlePage))
				st.Post("/advance", r.wrap(r.handleAdvance))
				st.Post("/back", r.wrap(r.handleBack))
				st.Post("/submit", r.wrap(r.handleSubmit))
				st.Get("/report.txt", r.wrap(r.handleDownload))
				st.Post("/report/archive", r.wrap(r.handleArchive))
			})
		})

		v1.Route("/admin", func(ad chi.Router) {
			ad.Use(middleware.APIKeyAuth(o.AdminKeys))
			ad.Get("/runs", r.wrap(r.handleRuns))
			ad.Get("/summary", r.wrap(r.handleSummary))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest is an input error detected by a handler before the service runs.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return &badRequest{msg: msg} }

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
	Missing []int           `json:"missing,omitempty"`
	Session *domain.Session `json:"session,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, body := r.classify(err)
			if status >= 500 {
				r.log.Error("request failed", zap.String("path", req.URL.Path), zap.String("kind", body.Kind), zap.Error(err))
			}
			r.writeJSON(w, status, body)
		}
	}
}

// classify maps domain and inference errors to a status and a user-facing body.
func (r *Router) classify(err error) (int, ErrorBody) {
	var (
		ve *domain.ValidationError
		ae *domain.AnswerError
		br *badRequest
	)
	switch {
	case errors.As(err, &ve):
		b := ErrorBody{Error: ve.UserMessage(), Kind: "validation"}
		for _, q := range ve.Missing {
			b.Missing = append(b.Missing, q.ID)
		}
		return http.StatusUnprocessableEntity, b
	case errors.As(err, &ae):
		return http.StatusBadRequest, ErrorBody{Error: ae.Error(), Kind: "invalid_answer"}
	case errors.As(err, &br):
		return http.StatusBadRequest, ErrorBody{Error: br.msg, Kind: "bad_request"}
	case errors.Is(err, domain.ErrToolNotFound), errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrPageOutOfRange):
		return http.StatusNotFound, ErrorBody{Error: err.Error(), Kind: "not_found"}
	case errors.Is(err, domain.ErrInvalidStage):
		return http.StatusConflict, ErrorBody{Error: err.Error(), Kind: "invalid_stage"}
	case errors.Is(err, domain.ErrReportNotReady):
		return http.StatusConflict, ErrorBody{Error: "No report has been generated for this session yet.", Kind: "report_not_ready"}
	case errors.Is(err, domain.ErrUnsupportedInput):
		return http.StatusBadRequest, ErrorBody{Error: err.Error(), Kind: "unsupported_input"}
	case errors.Is(err, appassess.ErrArchiveDisabled), errors.Is(err, appassess.ErrLedgerDisabled):
		return http.StatusNotImplemented, ErrorBody{Error: err.Error(), Kind: "not_configured"}
	}

	switch kind := ai.Kind(err); kind {
	case "missing_credentials":
		return http.StatusServiceUnavailable, ErrorBody{Error: ai.UserMessage(err), Kind: kind}
	case "quota_exceeded":
		return http.StatusTooManyRequests, ErrorBody{Error: ai.UserMessage(err), Kind: kind}
	case "upstream_status", "malformed_response":
		return http.StatusBadGateway, ErrorBody{Error: ai.UserMessage(err), Kind: kind}
	case "network":
		return http.StatusGatewayTimeout, ErrorBody{Error: ai.UserMessage(err), Kind: kind}
	}
	return http.StatusInternalServerError, ErrorBody{Error: "internal error", Kind: "internal"}
}

// writeJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of a 200 with an empty body.
func (r *Router) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		r.log.Error("encoding response", zap.Int("status", status), zap.Error(err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorBody{Error: "internal error", Kind: "internal"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// Server builds the http.Server with the configured timeouts.
func Server(addr string, h http.Handler, read, write time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       read,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       120 * time.Second,
	}
}
