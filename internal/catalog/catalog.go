// Package catalog loads tool declarations. Every assessment page is a YAML
// document: its questions, optional scoring weights, report template and the
// endpoint it reports through.
package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/assessment-hub/internal/domain/assessment"
)

//go:embed tools/*.yaml
var embedded embed.FS

// Registry is read-only after load and safe for concurrent use.
type Registry struct {
	tools  map[string]*assessment.Tool
	routes map[string]string
	order  []string
}

// Default loads the declarations compiled into the binary.
func Default() (*Registry, error) {
	return Load(embedded, "tools/*.yaml")
}

// LoadDir loads every *.yaml file in dir.
func LoadDir(dir string) (*Registry, error) {
	return Load(os.DirFS(dir), "*.yaml")
}

func Load(fsys fs.FS, pattern string) (*Registry, error) {
	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("catalog: no tool declarations match %s", pattern)
	}
	sort.Strings(files)

	r := &Registry{
		tools:  make(map[string]*assessment.Tool, len(files)),
		routes: make(map[string]string, len(files)),
	}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		t, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", path.Base(f), err)
		}
		if err := r.add(t); err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", path.Base(f), err)
		}
	}
	return r, nil
}

// Parse decodes and validates a single declaration. Unknown keys are errors.
func Parse(data []byte) (*assessment.Tool, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var t assessment.Tool
	if err := dec.Decode(&t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Registry) add(t *assessment.Tool) error {
	if _, dup := r.tools[t.Slug]; dup {
		return fmt.Errorf("duplicate tool slug %q", t.Slug)
	}
	route := normalizeRoute(t.Route)
	if other, dup := r.routes[route]; dup {
		return fmt.Errorf("route %s already used by %s", t.Route, other)
	}
	r.tools[t.Slug] = t
	r.routes[route] = t.Slug
	r.order = append(r.order, t.Slug)
	return nil
}

func (r *Registry) Get(slug string) (*assessment.Tool, error) {
	t, ok := r.tools[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", assessment.ErrToolNotFound, slug)
	}
	return t, nil
}

// ByRoute resolves a client-side route such as /mentalhealth/manasmitra.
func (r *Registry) ByRoute(route string) (*assessment.Tool, error) {
	slug, ok := r.routes[normalizeRoute(route)]
	if !ok {
		return nil, fmt.Errorf("%w: route %s", assessment.ErrToolNotFound, route)
	}
	return r.tools[slug], nil
}

// List returns tools in load order (file name order).
func (r *Registry) List() []*assessment.Tool {
	out := make([]*assessment.Tool, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, r.tools[s])
	}
	return out
}

func normalizeRoute(route string) string {
	route = strings.ToLower(strings.TrimSpace(route))
	route = strings.TrimRight(route, "/")
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return route
}
