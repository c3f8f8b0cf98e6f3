package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playperu/cityhunt/internal/hunt"
)

func tmpl(id string, theme hunt.Theme, d hunt.Difficulty) hunt.ChallengeTemplate {
	return hunt.ChallengeTemplate{
		ID:         id,
		Name:       id,
		Type:       hunt.TypeQR,
		Theme:      theme,
		Difficulty: d,
		Points:     10,
	}
}

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("default catalog is empty")
	}

	got, err := c.FindTemplates(hunt.ThemeIndoor, hunt.DifficultyEasy)
	if err != nil {
		t.Fatalf("FindTemplates: %v", err)
	}
	var found bool
	for _, tp := range got {
		if tp.Params.ExpectedToken == "SECRET_CODE_INDOOR_HUNT" {
			found = true
		}
	}
	if !found {
		t.Error("indoor easy templates missing the hidden QR challenge")
	}
}

func TestFindTemplates(t *testing.T) {
	c, err := New([]hunt.ChallengeTemplate{
		tmpl("u-easy", hunt.ThemeUrban, hunt.DifficultyEasy),
		tmpl("u-medium", hunt.ThemeUrban, hunt.DifficultyMedium),
		tmpl("u-expert", hunt.ThemeUrban, hunt.DifficultyExpert),
		tmpl("n-hard", hunt.ThemeNature, hunt.DifficultyHard),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name       string
		theme      hunt.Theme
		difficulty hunt.Difficulty
		want       []string
		wantErr    error
	}{
		{
			name:       "exact first then neighbours",
			theme:      hunt.ThemeUrban,
			difficulty: hunt.DifficultyMedium,
			want:       []string{"u-medium", "u-easy"},
		},
		{
			name:       "relaxed one step",
			theme:      hunt.ThemeUrban,
			difficulty: hunt.DifficultyHard,
			want:       []string{"u-medium", "u-expert"},
		},
		{
			name:       "mixed spans themes",
			theme:      hunt.ThemeMixed,
			difficulty: hunt.DifficultyHard,
			want:       []string{"n-hard", "u-medium", "u-expert"},
		},
		{
			name:       "no theme match",
			theme:      hunt.ThemeIndoor,
			difficulty: hunt.DifficultyEasy,
			wantErr:    hunt.ErrEmptyCatalog,
		},
		{
			name:       "two steps is too far",
			theme:      hunt.ThemeNature,
			difficulty: hunt.DifficultyEasy,
			wantErr:    hunt.ErrEmptyCatalog,
		},
		{
			name:       "unknown difficulty",
			theme:      hunt.ThemeUrban,
			difficulty: "legendary",
			wantErr:    hunt.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.FindTemplates(tt.theme, tt.difficulty)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var ids []string
			for _, tp := range got {
				ids = append(ids, tp.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("ids = %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

func TestNewRejectsInvalidTemplates(t *testing.T) {
	zeroPoints := tmpl("zero", hunt.ThemeUrban, hunt.DifficultyEasy)
	zeroPoints.Points = 0

	badTheme := tmpl("theme", "space", hunt.DifficultyEasy)

	noTarget := tmpl("loc", hunt.ThemeUrban, hunt.DifficultyEasy)
	noTarget.Type = hunt.TypeLocation

	tests := []struct {
		name      string
		templates []hunt.ChallengeTemplate
	}{
		{"zero points", []hunt.ChallengeTemplate{zeroPoints}},
		{"unknown theme", []hunt.ChallengeTemplate{badTheme}},
		{"location without target", []hunt.ChallengeTemplate{noTarget}},
		{"duplicate id", []hunt.ChallengeTemplate{
			tmpl("dup", hunt.ThemeUrban, hunt.DifficultyEasy),
			tmpl("dup", hunt.ThemeUrban, hunt.DifficultyHard),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.templates); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `templates:
  - id: river
    name: River Bend
    type: location
    difficulty: hard
    theme: nature
    points: 40
    time_limit: 15m
    params:
      target: {lat: -12.05, lng: -77.03}
      radius_meters: 75
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := c.FindTemplates(hunt.ThemeNature, hunt.DifficultyExpert)
	if err != nil {
		t.Fatalf("FindTemplates: %v", err)
	}
	if len(got) != 1 || got[0].Params.RadiusMeters != 75 || got[0].TimeLimit != 15*time.Minute {
		t.Errorf("unexpected templates: %+v", got)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("templates:\n  - id: x\n    colour: red\n")); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
