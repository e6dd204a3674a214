// Package prompts holds the system prompt templates for each pipeline stage.
//
// Templates are embedded at build time and can be overridden per project by
// dropping a file with the same name into .backlogsmith/prompts/. The
// Registry is an explicit value constructed once at startup and passed to
// each agent; there is no global template state, and Reload is an explicit
// operation.
package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*.md
var templatesFS embed.FS

// Registry resolves stage names to parsed prompt templates.
type Registry struct {
	overrideDir string
	templates   map[string]*template.Template
}

// NewRegistry loads the embedded templates, then overlays any *.md files
// found in overrideDir (empty string skips the overlay).
func NewRegistry(overrideDir string) (*Registry, error) {
	r := &Registry{
		overrideDir: overrideDir,
		templates:   make(map[string]*template.Template),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads embedded and override templates.
func (r *Registry) Reload() error {
	templates := make(map[string]*template.Template)

	entries, err := fs.ReadDir(templatesFS, "templates")
	if err != nil {
		return fmt.Errorf("read embedded templates: %w", err)
	}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".md")
		content, err := fs.ReadFile(templatesFS, "templates/"+e.Name())
		if err != nil {
			return fmt.Errorf("read embedded template %s: %w", e.Name(), err)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", e.Name(), err)
		}
		templates[name] = tmpl
	}

	if r.overrideDir != "" {
		overrides, _ := filepath.Glob(filepath.Join(r.overrideDir, "*.md"))
		for _, path := range overrides {
			name := strings.TrimSuffix(filepath.Base(path), ".md")
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read prompt override %s: %w", path, err)
			}
			tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
			if err != nil {
				return fmt.Errorf("parse prompt override %s: %w", path, err)
			}
			templates[name] = tmpl
		}
	}

	r.templates = templates
	return nil
}

// Embedded returns the built-in templates as filename -> content, for
// materializing editable copies into a project's override directory.
func Embedded() (map[string]string, error) {
	out := make(map[string]string)
	entries, err := fs.ReadDir(templatesFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}
	for _, e := range entries {
		content, err := fs.ReadFile(templatesFS, "templates/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded template %s: %w", e.Name(), err)
		}
		out[e.Name()] = string(content)
	}
	return out, nil
}

// Names returns the registered template names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render fills the named template with vars.
func (r *Registry) Render(name string, vars map[string]string) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template: %s", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return b.String(), nil
}
