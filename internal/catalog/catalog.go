// Package catalog provides the read-only set of challenge templates the
// generator draws from. The default set is embedded; a YAML file can replace
// it at startup.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/playperu/cityhunt/internal/hunt"
)

//go:embed default.yaml
var defaultYAML []byte

type Catalog struct {
	templates []hunt.ChallengeTemplate
}

type file struct {
	Templates []hunt.ChallengeTemplate `yaml:"templates"`
}

// New validates templates and returns a catalog over a private copy of them.
func New(templates []hunt.ChallengeTemplate) (*Catalog, error) {
	seen := make(map[string]struct{}, len(templates))
	for i, t := range templates {
		if err := validateTemplate(t); err != nil {
			return nil, fmt.Errorf("template %d (%q): %w", i, t.ID, err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("template %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return &Catalog{templates: append([]hunt.ChallengeTemplate(nil), templates...)}, nil
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a YAML catalog from path. An empty path yields the default
// catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document of the form `templates: [...]`.
func Parse(data []byte) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return New(f.Templates)
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }

// FindTemplates returns templates whose theme equals theme (any theme when
// theme is mixed) and whose difficulty is at most one step from difficulty.
// Exact-difficulty matches come first, catalog order is kept otherwise.
func (c *Catalog) FindTemplates(theme hunt.Theme, difficulty hunt.Difficulty) ([]hunt.ChallengeTemplate, error) {
	if !theme.Valid() || !difficulty.Valid() {
		return nil, fmt.Errorf("theme %q difficulty %q: %w", theme, difficulty, hunt.ErrInvalidRequest)
	}

	want := difficulty.Rank()
	var out []hunt.ChallengeTemplate
	for _, t := range c.templates {
		if theme != hunt.ThemeMixed && t.Theme != theme {
			continue
		}
		if d := t.Difficulty.Rank() - want; d < -1 || d > 1 {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("theme %q difficulty %q: %w", theme, difficulty, hunt.ErrEmptyCatalog)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Difficulty == difficulty && out[j].Difficulty != difficulty
	})
	return out, nil
}

func validateTemplate(t hunt.ChallengeTemplate) error {
	switch {
	case t.ID == "":
		return errors.New("id is required")
	case t.Points <= 0:
		return errors.New("points must be positive")
	case !t.Type.Valid():
		return fmt.Errorf("unknown type %q", t.Type)
	case !t.Difficulty.Valid():
		return fmt.Errorf("unknown difficulty %q", t.Difficulty)
	case !t.Theme.Valid():
		return fmt.Errorf("unknown theme %q", t.Theme)
	}

	p := t.Params
	switch t.Type {
	case hunt.TypeLocation:
		if p.Target == nil {
			return errors.New("location template needs a target")
		}
		if p.RadiusMeters < 0 {
			return errors.New("radius must not be negative")
		}
	case hunt.TypeAIPrompt:
		if p.Prompt == "" && len(p.AcceptableAnswers) == 0 {
			return errors.New("ai-prompt template needs a prompt or acceptable answers")
		}
	}
	return nil
}
