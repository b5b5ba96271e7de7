package assessment

import (
	"fmt"
	"sort"
	"strings"
)

// EndpointKind selects which remote service a tool reports through.
type EndpointKind string

const (
	EndpointChat       EndpointKind = "chat"       // third-party chat completion API
	EndpointClassifier EndpointKind = "classifier" // hosted image classifier, multipart upload
	EndpointReport     EndpointKind = "report"     // hosted JSON scoring/report endpoint
)

// Endpoint describes the remote call of a tool.
type Endpoint struct {
	Kind EndpointKind `json:"kind" yaml:"kind"`
	// Target names an inference endpoint from config (classifier and report kinds).
	Target      string  `json:"-" yaml:"target"`
	Model       string  `json:"-" yaml:"model"`
	MaxTokens   int     `json:"-" yaml:"max_tokens"`
	Temperature float32 `json:"-" yaml:"temperature"`
	TopP        float32 `json:"-" yaml:"top_p"`
	// ResponseSchema is an optional JSON schema the remote reply must satisfy.
	ResponseSchema string `json:"-" yaml:"response_schema"`
}

// Category is a score threshold; a score falls in the highest category whose Min it reaches.
type Category struct {
	Min    float64 `json:"min" yaml:"min"`
	Label  string  `json:"label" yaml:"label"`
	Advice string  `json:"advice,omitempty" yaml:"advice"`
}

// Scoring is present only on tools with a local scorer.
type Scoring struct {
	Max        float64    `json:"max" yaml:"max"`
	Categories []Category `json:"categories" yaml:"categories"`
}

// ReportTemplate steers the shape of the generated report.
type ReportTemplate struct {
	Role       string   `yaml:"role"`
	Audience   string   `yaml:"audience"`
	Tone       string   `yaml:"tone"`
	Sections   []string `yaml:"sections"`
	Notes      []string `yaml:"notes"`
	Disclaimer string   `yaml:"disclaimer"`
}

// Tool is one assessment page expressed as data.
type Tool struct {
	Slug          string         `json:"slug" yaml:"slug"`
	Route         string         `json:"route" yaml:"route"`
	Title         string         `json:"title" yaml:"title"`
	Description   string         `json:"description,omitempty" yaml:"description"`
	PageSize      int            `json:"page_size" yaml:"page_size"`
	ProfileFields []string       `json:"profile_fields,omitempty" yaml:"profile_fields"`
	Accept        []string       `json:"accept,omitempty" yaml:"accept"`
	Scoring       *Scoring       `json:"scoring,omitempty" yaml:"scoring"`
	Endpoint      Endpoint       `json:"endpoint" yaml:"endpoint"`
	Report        ReportTemplate `json:"-" yaml:"report"`
	Questions     []Question     `json:"questions" yaml:"questions"`
}

const defaultPageSize = 5

// Question returns the declared question with the given id.
func (t *Tool) Question(id int) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func (t *Tool) Scored() bool { return t.Scoring != nil }

func (t *Tool) pageSize() int {
	if t.PageSize <= 0 {
		return defaultPageSize
	}
	return t.PageSize
}

// PageCount is the number of question pages, at least one.
func (t *Tool) PageCount() int {
	n := (len(t.Questions) + t.pageSize() - 1) / t.pageSize()
	if n == 0 {
		return 1
	}
	return n
}

// Page returns the questions on page n (1-based).
func (t *Tool) Page(n int) ([]Question, error) {
	if n < 1 || n > t.PageCount() {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, n, t.PageCount())
	}
	start := (n - 1) * t.pageSize()
	end := start + t.pageSize()
	if end > len(t.Questions) {
		end = len(t.Questions)
	}
	return t.Questions[start:end], nil
}

// Validate checks the whole declaration. Call once at load time, not per request.
func (t *Tool) Validate() error {
	if strings.TrimSpace(t.Slug) == "" {
		return fmt.Errorf("tool: slug is empty")
	}
	if !strings.HasPrefix(t.Route, "/") {
		return fmt.Errorf("tool %s: route %q must start with /", t.Slug, t.Route)
	}
	switch t.Endpoint.Kind {
	case EndpointChat:
		if len(t.Questions) == 0 {
			return fmt.Errorf("tool %s: chat tools need questions", t.Slug)
		}
	case EndpointClassifier:
		if t.Endpoint.Target == "" {
			return fmt.Errorf("tool %s: classifier endpoint needs a target", t.Slug)
		}
	case EndpointReport:
		if t.Endpoint.Target == "" {
			return fmt.Errorf("tool %s: report endpoint needs a target", t.Slug)
		}
		if len(t.Questions) == 0 {
			return fmt.Errorf("tool %s: report tools need questions", t.Slug)
		}
	default:
		return fmt.Errorf("tool %s: unknown endpoint kind %q", t.Slug, t.Endpoint.Kind)
	}

	seen := make(map[int]bool, len(t.Questions))
	for _, q := range t.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("tool %s: %w", t.Slug, err)
		}
		if seen[q.ID] {
			return fmt.Errorf("tool %s: duplicate question id %d", t.Slug, q.ID)
		}
		seen[q.ID] = true
	}

	if t.Scoring != nil {
		if t.Scoring.Max <= 0 {
			t.Scoring.Max = 100
		}
		if len(t.Scoring.Categories) == 0 {
			return fmt.Errorf("tool %s: scoring needs at least one category", t.Slug)
		}
		sort.SliceStable(t.Scoring.Categories, func(i, j int) bool {
			return t.Scoring.Categories[i].Min < t.Scoring.Categories[j].Min
		})
	}
	return nil
}
