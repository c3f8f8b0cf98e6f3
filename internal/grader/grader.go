// Package grader provides the pluggable photo and semantic graders used by
// the photo and ai-prompt validators.
//
// Two variants exist: Mock returns configured confidences and is what tests
// and local demos use; Remote calls a model service over HTTP.
package grader

import (
	"context"
	"sync"
)

// Mock is a deterministic grader. Lookups by exact input win over the
// default confidences. It is safe for concurrent use.
type Mock struct {
	PhotoConfidence    float64
	SemanticConfidence float64

	// Err, when set, is returned by every call.
	Err error

	mu      sync.Mutex
	photos  map[string]float64
	answers map[string]float64
	calls   int
}

// NewMock returns a Mock with the given default confidences.
func NewMock(photo, semantic float64) *Mock {
	return &Mock{PhotoConfidence: photo, SemanticConfidence: semantic}
}

// SetPhoto fixes the confidence returned for imageRef.
func (m *Mock) SetPhoto(imageRef string, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.photos == nil {
		m.photos = make(map[string]float64)
	}
	m.photos[imageRef] = confidence
}

// SetAnswer fixes the confidence returned for answer.
func (m *Mock) SetAnswer(answer string, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answers == nil {
		m.answers = make(map[string]float64)
	}
	m.answers[answer] = confidence
}

// Calls returns how many grading requests were made.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) GradePhoto(_ context.Context, imageRef string, _ []string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return 0, m.Err
	}
	if c, ok := m.photos[imageRef]; ok {
		return c, nil
	}
	return m.PhotoConfidence, nil
}

func (m *Mock) GradeSemantic(_ context.Context, answer, _ string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return 0, m.Err
	}
	if c, ok := m.answers[answer]; ok {
		return c, nil
	}
	return m.SemanticConfidence, nil
}

// Blocking is a grader that waits for its context to end. It stands in for a
// model service that never answers.
type Blocking struct{}

func (Blocking) GradePhoto(ctx context.Context, _ string, _ []string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (Blocking) GradeSemantic(ctx context.Context, _, _ string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}
