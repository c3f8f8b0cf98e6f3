// Package generator materializes ordered challenge sequences for a hunt
// session from catalog templates.
package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/playperu/cityhunt/internal/hunt"
)

// TemplateFinder is the catalog lookup the generator reads from.
type TemplateFinder interface {
	FindTemplates(theme hunt.Theme, difficulty hunt.Difficulty) ([]hunt.ChallengeTemplate, error)
}

// ChallengeSaver persists a freshly generated sequence.
type ChallengeSaver interface {
	SaveChallenges(ctx context.Context, challenges []hunt.Challenge) error
}

// Generator is safe for concurrent use.
type Generator struct {
	catalog TemplateFinder
	newID   func() string

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Generator)

// WithRand fixes the random source used to order templates.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

// WithIDFunc replaces the challenge ID generator.
func WithIDFunc(fn func() string) Option {
	return func(g *Generator) { g.newID = fn }
}

func New(catalog TemplateFinder, opts ...Option) *Generator {
	g := &Generator{
		catalog: catalog,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateSequence returns count challenges numbered 1..count. Matching
// templates are shuffled once and then used round-robin, so a template only
// repeats after every other match has been used.
func (g *Generator) GenerateSequence(sessionID string, theme hunt.Theme, difficulty hunt.Difficulty, count int) ([]hunt.Challenge, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", hunt.ErrInvalidRequest)
	}
	if count < 1 {
		return nil, fmt.Errorf("count %d: %w", count, hunt.ErrInvalidRequest)
	}

	templates, err := g.catalog.FindTemplates(theme, difficulty)
	if err != nil {
		return nil, fmt.Errorf("finding templates: %w", err)
	}

	g.mu.Lock()
	order := g.rng.Perm(len(templates))
	g.mu.Unlock()

	challenges := make([]hunt.Challenge, count)
	for i := range count {
		t := templates[order[i%len(order)]]
		challenges[i] = t.Materialize(g.newID(), sessionID, i+1)
	}
	return challenges, nil
}

// Generate builds a sequence and hands it to saver in one call.
func (g *Generator) Generate(ctx context.Context, saver ChallengeSaver, sessionID string, theme hunt.Theme, difficulty hunt.Difficulty, count int) ([]hunt.Challenge, error) {
	challenges, err := g.GenerateSequence(sessionID, theme, difficulty, count)
	if err != nil {
		return nil, err
	}
	if err := saver.SaveChallenges(ctx, challenges); err != nil {
		return nil, fmt.Errorf("saving challenges: %w", err)
	}
	return challenges, nil
}
