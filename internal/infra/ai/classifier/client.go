// Package classifier talks to the externally hosted model endpoints: image
// classifiers that take a multipart upload, and report endpoints that take
// structured answers as JSON. Their schemas vary; each reply is decoded
// leniently and optionally checked against a JSON schema from the tool.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/bryanwahyu/assessment-hub/internal/domain/ai"
	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

const (
	maxResponseBytes = 1 << 20
	maxErrorBody     = 4 << 10
)

// Target is a configured endpoint address.
type Target struct {
	URL        string
	APIKey     string
	RequireKey bool
}

type Client struct {
	HTTP    *http.Client
	Targets map[string]Target
	Timeout time.Duration
}

func NewClient(targets map[string]Target, timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{}, Targets: targets, Timeout: timeout}
}

func (c *Client) target(name string) (Target, error) {
	t, ok := c.Targets[name]
	if !ok || strings.TrimSpace(t.URL) == "" {
		return Target{}, fmt.Errorf("%w: no URL for endpoint %q", ai.ErrMissingCredentials, name)
	}
	if t.RequireKey && strings.TrimSpace(t.APIKey) == "" {
		return Target{}, fmt.Errorf("%w: no API key for endpoint %q", ai.ErrMissingCredentials, name)
	}
	return t, nil
}

// Classify uploads one image as the "file" form field.
func (c *Client) Classify(ctx context.Context, ep assessment.Endpoint, up ai.Upload) (ai.Result, error) {
	t, err := c.target(ep.Target)
	if err != nil {
		return ai.Result{}, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, safeFilename(up.Filename)))
	ct := up.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return ai.Result{}, err
	}
	if _, err := part.Write(up.Data); err != nil {
		return ai.Result{}, err
	}
	if err := mw.Close(); err != nil {
		return ai.Result{}, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, &body)
	if err != nil {
		return ai.Result{}, fmt.Errorf("%w: %v", ai.ErrMissingCredentials, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, t, ep.ResponseSchema)
}

// Predict posts structured answers as JSON.
func (c *Client) Predict(ctx context.Context, ep assessment.Endpoint, payload any) (ai.Result, error) {
	t, err := c.target(ep.Target)
	if err != nil {
		return ai.Result{}, err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ai.Result{}, fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(b))
	if err != nil {
		return ai.Result{}, fmt.Errorf("%w: %v", ai.ErrMissingCredentials, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, t, ep.ResponseSchema)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) do(req *http.Request, t Target, schema string) (ai.Result, error) {
	req.Header.Set("Accept", "application/json")
	if t.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return ai.Result{}, fmt.Errorf("%w: %v", ai.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ai.Result{}, &ai.StatusError{Code: resp.StatusCode, Body: string(b)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ai.Result{}, fmt.Errorf("%w: %v", ai.ErrNetwork, err)
	}
	if schema != "" {
		if err := validate(schema, raw); err != nil {
			return ai.Result{}, err
		}
	}
	return Decode(raw)
}

func validate(schema string, raw []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ai.ErrMalformedResponse, strings.Join(msgs, "; "))
	}
	return nil
}

// Decode reads a label/prediction with a confidence, or a free-text
// result/report field. Confidence in [0,1] is scaled to a percentage.
func Decode(raw []byte) (ai.Result, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ai.Result{}, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}

	var out ai.Result
	if label, ok := firstString(m, "label", "prediction", "class", "predicted_class"); ok {
		p := &assessment.Prediction{Label: label}
		conf, explicit, ok, err := firstNumber(m, "confidence", "probability", "score")
		if err != nil {
			return ai.Result{}, err
		}
		if ok {
			p.Confidence = percent(conf, explicit)
		}
		out.Prediction = p
	}
	if text, ok := firstString(m, "result", "report", "message", "text"); ok {
		out.Text = text
	}
	if out.Prediction == nil && out.Text == "" {
		return ai.Result{}, fmt.Errorf("%w: no label or result field", ai.ErrMalformedResponse)
	}
	return out, nil
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s, true
			}
		case float64:
			return fmt.Sprintf("%g", v), true
		case bool:
			if v {
				return "positive", true
			}
			return "negative", true
		}
	}
	return "", false
}

// firstNumber returns the value and whether it was written as an explicit
// percentage. NaN and infinities are malformed.
func firstNumber(m map[string]any, keys ...string) (float64, bool, bool, error) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, false, true, nil
		case string:
			v = strings.TrimSpace(v)
			explicit := strings.HasSuffix(v, "%")
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, "%")), 64)
			if err != nil {
				continue
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return 0, false, false, fmt.Errorf("%w: %s is not a finite number", ai.ErrMalformedResponse, k)
			}
			return f, explicit, true, nil
		}
	}
	return 0, false, false, nil
}

func percent(v float64, explicit bool) float64 {
	if !explicit && v > 0 && v <= 1 {
		v *= 100
	}
	v = math.Round(v*100) / 100
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func safeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 32 {
			return -1
		}
		return r
	}, name)
	if name == "" {
		return "upload"
	}
	return name
}
