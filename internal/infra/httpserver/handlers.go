package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appassess "github.com/bryanwahyu/assessment-hub/internal/application/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
	domain "github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
	"github.com/bryanwahyu/assessment-hub/internal/infra/render"
	"github.com/bryanwahyu/assessment-hub/internal/middleware"
)

const maxJSONBody = 1 << 20

// theme comes from ?theme= first, then the theme cookie.
func theme(req *http.Request) render.Theme {
	if t := req.URL.Query().Get("theme"); t != "" {
		return render.ParseTheme(t)
	}
	if c, err := req.Cookie("theme"); err == nil {
		return render.ParseTheme(c.Value)
	}
	return render.ThemeLight
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequest("request body is empty")
		}
		return errBadRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

func toolParam(req *http.Request) (string, error) {
	slug := chi.URLParam(req, "tool")
	if err := middleware.ValidateToolSlug(slug); err != nil {
		return "", errBadRequest(err.Error())
	}
	return slug, nil
}

func sessionParams(req *http.Request) (string, string, error) {
	slug, err := toolParam(req)
	if err != nil {
		return "", "", err
	}
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return "", "", errBadRequest(err.Error())
	}
	return slug, id, nil
}

// ToolView is the public description of a tool. Weights stay server-side.
type ToolView struct {
	*domain.Tool
	Pages int `json:"pages"`
}

// GET /v1/tools
func (r *Router) handleListTools(w http.ResponseWriter, req *http.Request) error {
	tools := r.svc.Tools()
	out := make([]ToolView, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolView{Tool: t, Pages: t.PageCount()})
	}
	r.writeJSON(w, http.StatusOK, out)
	return nil
}

// GET /v1/tools/{tool}
func (r *Router) handleGetTool(w http.ResponseWriter, req *http.Request) error {
	slug, err := toolParam(req)
	if err != nil {
		return err
	}
	t, err := r.svc.Tool(slug)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, ToolView{Tool: t, Pages: t.PageCount()})
	return nil
}

// GET /v1/routes/* resolves a page route such as /mentalhealth/manasmitra.
func (r *Router) handleRoute(w http.ResponseWriter, req *http.Request) error {
	t, err := r.svc.ToolByRoute("/" + chi.URLParam(req, "*"))
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, ToolView{Tool: t, Pages: t.PageCount()})
	return nil
}

// POST /v1/tools/{tool}/sessions
func (r *Router) handleStartSession(w http.ResponseWriter, req *http.Request) error {
	slug, err := toolParam(req)
	if err != nil {
		return err
	}
	sess, err := r.svc.StartSession(req.Context(), slug)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusCreated, sess)
	return nil
}

// GET /v1/tools/{tool}/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	sess, err := r.svc.Session(req.Context(), slug, id)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, sess)
	return nil
}

// PUT /v1/tools/{tool}/sessions/{id}/profile
func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	var p domain.UserProfile
	if err := decode(w, req, &p); err != nil {
		return err
	}
	sess, err := r.svc.UpdateProfile(req.Context(), slug, id, sanitizeProfile(p))
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, sess)
	return nil
}

func sanitizeProfile(p domain.UserProfile) domain.UserProfile {
	p.Gender = middleware.SanitizeString(p.Gender)
	p.Region = middleware.SanitizeString(p.Region)
	p.Profession = middleware.SanitizeString(p.Profession)
	for k, v := range p.Extra {
		p.Extra[k] = middleware.SanitizeString(v)
	}
	return p
}

// PATCH /v1/tools/{tool}/sessions/{id}/answers
// Body: {"answers": {"1": "yes", "2": 42}}; null clears an answer.
func (r *Router) handleAnswers(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	var body struct {
		Answers map[int]json.RawMessage `json:"answers"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	sess, err := r.svc.SetAnswers(req.Context(), slug, id, body.Answers)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, sess)
	return nil
}

// GET /v1/tools/{tool}/sessions/{id}/pages/{page}
func (r *Router) handlePage(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	page, err := strconv.Atoi(chi.URLParam(req, "page"))
	if err != nil {
		return errBadRequest("page must be a number")
	}
	view, err := r.svc.Page(req.Context(), slug, id, page)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, view)
	return nil
}

// POST /v1/tools/{tool}/sessions/{id}/advance
func (r *Router) handleAdvance(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	sess, err := r.svc.Advance(req.Context(), slug, id)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, sess)
	return nil
}

// POST /v1/tools/{tool}/sessions/{id}/back
func (r *Router) handleBack(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	sess, err := r.svc.Back(req.Context(), slug, id)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, sess)
	return nil
}

// POST /v1/tools/{tool}/sessions/{id}/submit
// A failed remote call answers with the error and the session, whose
// answers are untouched, so the client can show the message inline.
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	sess, err := r.svc.Submit(req.Context(), slug, id, theme(req))
	if err != nil {
		if sess == nil {
			return err
		}
		status, body := r.classify(err)
		body.Session = sess
		r.writeJSON(w, status, body)
		return nil
	}
	r.writeJSON(w, http.StatusOK, sess)
	return nil
}

// GET /v1/tools/{tool}/sessions/{id}/report.txt
func (r *Router) handleDownload(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	name, body, err := r.svc.Export(req.Context(), slug, id)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}

// POST /v1/tools/{tool}/sessions/{id}/report/archive
func (r *Router) handleArchive(w http.ResponseWriter, req *http.Request) error {
	slug, id, err := sessionParams(req)
	if err != nil {
		return err
	}
	res, err := r.svc.Archive(req.Context(), slug, id)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusCreated, res)
	return nil
}

// POST /v1/tools/{tool}/assess
// Body: {"profile": {...}, "answers": {"1": ...}}
func (r *Router) handleAssess(w http.ResponseWriter, req *http.Request) error {
	slug, err := toolParam(req)
	if err != nil {
		return err
	}
	var in appassess.AssessInput
	if err := decode(w, req, &in); err != nil {
		return err
	}
	in.Profile = sanitizeProfile(in.Profile)
	rep, err := r.svc.Assess(req.Context(), slug, in, theme(req))
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, rep)
	return nil
}

// POST /v1/tools/{tool}/preview
func (r *Router) handlePreview(w http.ResponseWriter, req *http.Request) error {
	slug, err := toolParam(req)
	if err != nil {
		return err
	}
	var in appassess.AssessInput
	if err := decode(w, req, &in); err != nil {
		return err
	}
	in.Profile = sanitizeProfile(in.Profile)
	res, err := r.svc.Preview(req.Context(), slug, in)
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, res)
	return nil
}

// POST /v1/tools/{tool}/classify (multipart, field "file")
func (r *Router) handleClassify(w http.ResponseWriter, req *http.Request) error {
	slug, err := toolParam(req)
	if err != nil {
		return err
	}
	t, err := r.svc.Tool(slug)
	if err != nil {
		return err
	}

	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		return errBadRequest(fmt.Sprintf("invalid upload: %v", err))
	}
	f, hdr, err := req.FormFile("file")
	if err != nil {
		return errBadRequest("missing image: send it as the \"file\" form field")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return errBadRequest(fmt.Sprintf("read upload: %v", err))
	}
	ct, err := middleware.ValidateImage(data, t.Accept)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnsupportedInput, err)
	}

	rep, err := r.svc.Classify(req.Context(), slug, ai.Upload{Filename: hdr.Filename, ContentType: ct, Data: data}, theme(req))
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, rep)
	return nil
}

// GET /v1/admin/runs?tool=&limit=
func (r *Router) handleRuns(w http.ResponseWriter, req *http.Request) error {
	tool := req.URL.Query().Get("tool")
	if tool != "" {
		if err := middleware.ValidateToolSlug(tool); err != nil {
			return errBadRequest(err.Error())
		}
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	runs, err := r.svc.LatestRuns(req.Context(), tool, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []*domain.Run{}
	}
	r.writeJSON(w, http.StatusOK, runs)
	return nil
}

// GET /v1/admin/summary?tool=&days=
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tool := req.URL.Query().Get("tool")
	if tool != "" {
		if err := middleware.ValidateToolSlug(tool); err != nil {
			return errBadRequest(err.Error())
		}
	}
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	sum, err := r.svc.Summary(req.Context(), tool, middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	r.writeJSON(w, http.StatusOK, sum)
	return nil
}
