// Package store holds the storage backends of the engine: a libSQL-backed
// store for the server and an in-process one for tests and demos.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/playperu/cityhunt/internal/hunt"
)

type progressKey struct {
	playerID    string
	challengeID string
}

// Memory is a mutex-guarded in-process store.
type Memory struct {
	mu         sync.RWMutex
	challenges map[string]hunt.Challenge
	progress   map[progressKey]hunt.PlayerProgress
	scores     map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		challenges: make(map[string]hunt.Challenge),
		progress:   make(map[progressKey]hunt.PlayerProgress),
		scores:     make(map[string]int),
	}
}

func (m *Memory) SaveChallenges(_ context.Context, challenges []hunt.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	type slot struct {
		sessionID string
		position  int
	}
	taken := make(map[slot]bool)
	for _, existing := range m.challenges {
		taken[slot{existing.SessionID, existing.Position}] = true
	}
	ids := make(map[string]bool, len(challenges))
	for _, c := range challenges {
		if _, ok := m.challenges[c.ID]; ok || ids[c.ID] {
			return fmt.Errorf("challenge %q already exists", c.ID)
		}
		ids[c.ID] = true
		s := slot{c.SessionID, c.Position}
		if taken[s] {
			return fmt.Errorf("session %q already has position %d", c.SessionID, c.Position)
		}
		taken[s] = true
	}
	for _, c := range challenges {
		m.challenges[c.ID] = c
	}
	return nil
}

func (m *Memory) LoadChallenge(_ context.Context, id string) (hunt.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.challenges[id]
	if !ok {
		return hunt.Challenge{}, hunt.ErrChallengeNotFound
	}
	return c, nil
}

func (m *Memory) ListChallenges(_ context.Context, sessionID string) ([]hunt.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []hunt.Challenge
	for _, c := range m.challenges {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *Memory) LoadProgress(_ context.Context, playerID, challengeID string) (hunt.PlayerProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.progress[progressKey{playerID, challengeID}]; ok {
		return p, nil
	}
	return hunt.PlayerProgress{
		PlayerID:    playerID,
		ChallengeID: challengeID,
		Status:      hunt.StatusNotStarted,
	}, nil
}

func (m *Memory) ListProgress(_ context.Context, sessionID, playerID string) ([]hunt.PlayerProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []hunt.PlayerProgress
	for k, p := range m.progress {
		if k.playerID == playerID && p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChallengeID < out[j].ChallengeID })
	return out, nil
}

func (m *Memory) CommitProgress(_ context.Context, rec hunt.PlayerProgress, scoreDelta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := progressKey{rec.PlayerID, rec.ChallengeID}
	stored, exists := m.progress[key]
	switch {
	case exists && stored.Status.Final():
		return 0, hunt.ErrAlreadyFinalized
	case exists && stored.Version != rec.Version:
		return 0, hunt.ErrStorageConflict
	case !exists && rec.Version != 0:
		return 0, hunt.ErrStorageConflict
	}

	rec.Version++
	m.progress[key] = rec
	m.scores[rec.PlayerID] += scoreDelta
	return m.scores[rec.PlayerID], nil
}

func (m *Memory) Score(_ context.Context, playerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scores[playerID], nil
}
