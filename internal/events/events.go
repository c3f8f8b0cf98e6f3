// Package events fans committed score changes out to live subscribers and
// downstream systems. Delivery is best effort: a failed publish is logged
// and never rolls back progress.
package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/playperu/cityhunt/internal/hunt"
)

type Publisher interface {
	Publish(ctx context.Context, ev hunt.ScoreEvent) error
}

// Multi publishes to every sink in order and joins their errors.
type Multi struct {
	logger *slog.Logger
	sinks  map[string]Publisher
	order  []string
}

func NewMulti(logger *slog.Logger) *Multi {
	return &Multi{logger: logger, sinks: make(map[string]Publisher)}
}

// Add registers a named sink. Names show up in failure logs.
func (m *Multi) Add(name string, p Publisher) {
	if _, ok := m.sinks[name]; !ok {
		m.order = append(m.order, name)
	}
	m.sinks[name] = p
}

func (m *Multi) Publish(ctx context.Context, ev hunt.ScoreEvent) error {
	var errs []error
	for _, name := range m.order {
		if err := m.sinks[name].Publish(ctx, ev); err != nil {
			m.logger.Warn("publishing score event failed",
				"sink", name,
				"session_id", ev.SessionID,
				"player_id", ev.PlayerID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
