package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/cityhunt/internal/catalog"
	"github.com/playperu/cityhunt/internal/engine"
	"github.com/playperu/cityhunt/internal/events"
	"github.com/playperu/cityhunt/internal/generator"
	"github.com/playperu/cityhunt/internal/grader"
	"github.com/playperu/cityhunt/internal/hunt"
	"github.com/playperu/cityhunt/internal/leaderboard"
	"github.com/playperu/cityhunt/internal/store"
	"github.com/playperu/cityhunt/internal/validate"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	handler http.Handler
	broker  *events.Broker
}

type envOption func(*Deps, *validate.Set)

func withGrader(g validate.Grader, timeout time.Duration) envOption {
	return func(_ *Deps, set *validate.Set) {
		*set = validate.NewSet(g, validate.DefaultThresholds(), timeout)
	}
}

func withLeaderboard(lb Leaderboard) envOption {
	return func(d *Deps, _ *validate.Set) { d.Leaderboard = lb }
}

func withHostKeyHash(hash string) envOption {
	return func(d *Deps, _ *validate.Set) { d.HostKeyHash = hash }
}

func newTestEnv(t *testing.T, opts ...envOption) testEnv {
	t.Helper()

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	s := store.NewMemory()
	seedSession(t, s)

	broker := events.NewBroker()
	deps := Deps{
		Store:     s,
		Generator: generator.New(cat, generator.WithRand(rand.New(rand.NewPCG(1, 2)))),
		Broker:    broker,
		Now:       func() time.Time { return fixedNow },
	}
	set := validate.NewSet(grader.NewMock(0.9, 0.9), validate.DefaultThresholds(), time.Second)
	for _, opt := range opts {
		opt(&deps, &set)
	}
	deps.Dispatcher = engine.New(s, set, broker, slog.Default())

	srv := New(":0", slog.Default(), deps, nil)
	return testEnv{handler: srv.Handler(), broker: broker}
}

func seedSession(t *testing.T, s *store.Memory) {
	t.Helper()
	err := s.SaveChallenges(context.Background(), []hunt.Challenge{
		{
			ID: "c1", SessionID: "demo", Position: 1, Type: hunt.TypeText,
			Title: "Street art", Points: 15,
			Data: hunt.Params{CorrectAnswer: "museum"},
		},
		{
			ID: "c2", SessionID: "demo", Position: 2, Type: hunt.TypePhoto,
			Title: "Fountain photo", Points: 30,
			Data: hunt.Params{RequiredElements: []string{"fountain"}},
		},
	})
	if err != nil {
		t.Fatalf("seeding session: %v", err)
	}
}

func (e testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{
		Theme: hunt.ThemeIndoor, Difficulty: hunt.DifficultyEasy, Count: 5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "SECRET_CODE_INDOOR_HUNT") {
		t.Error("response leaks the expected QR token")
	}

	var resp SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.SessionID == "" || len(resp.Challenges) != 5 {
		t.Fatalf("response = %+v", resp)
	}
	for i, c := range resp.Challenges {
		if c.Position != i+1 {
			t.Errorf("challenge %d has position %d", i, c.Position)
		}
	}

	w = env.do(t, http.MethodGet, "/api/sessions/"+resp.SessionID+"/challenges", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	if got := decode[SessionResponse](t, w); len(got.Challenges) != 5 {
		t.Errorf("listed %d challenges, want 5", len(got.Challenges))
	}
}

func TestCreateSessionErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"zero count", CreateSessionRequest{Theme: hunt.ThemeUrban, Difficulty: hunt.DifficultyEasy}, http.StatusBadRequest},
		{"too many", CreateSessionRequest{Theme: hunt.ThemeUrban, Difficulty: hunt.DifficultyEasy, Count: 500}, http.StatusBadRequest},
		{"unknown theme", CreateSessionRequest{Theme: "space", Difficulty: hunt.DifficultyEasy, Count: 3}, http.StatusBadRequest},
		{"unknown field", `{"theme":"urban","difficulty":"easy","count":3,"extra":true}`, http.StatusBadRequest},
		{"difficulty relaxed", CreateSessionRequest{Theme: hunt.ThemeNature, Difficulty: hunt.DifficultyEasy, Count: 3, SessionID: "fresh"}, http.StatusCreated},
		{"existing session", CreateSessionRequest{SessionID: "demo", Theme: hunt.ThemeUrban, Difficulty: hunt.DifficultyEasy, Count: 3}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/sessions", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateSessionNoTemplates(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{
		Theme: hunt.ThemeIndoor, Difficulty: hunt.DifficultyExpert, Count: 2,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	sub := SubmissionRequest{
		ChallengeID: "c1", PlayerID: "ana", Type: hunt.TypeText,
		Payload: hunt.Payload{Text: " Museum"},
	}

	w := env.do(t, http.MethodPost, "/api/submissions", sub)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[OutcomeResponse](t, w)
	if !resp.Result.IsCorrect || resp.Progress.Status != hunt.StatusCompleted || resp.Progress.PointsEarned != 15 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Score != 15 || resp.ScoreDelta != 15 {
		t.Errorf("score = %d, delta = %d; want 15, 15", resp.Score, resp.ScoreDelta)
	}
	if resp.CurrentChallenge == nil || resp.CurrentChallenge.ID != "c2" {
		t.Errorf("currentChallenge = %+v, want c2", resp.CurrentChallenge)
	}
	if resp.Progress.CompletedAt == nil || !resp.Progress.CompletedAt.Equal(fixedNow) {
		t.Errorf("completedAt = %v, want %v", resp.Progress.CompletedAt, fixedNow)
	}

	w = env.do(t, http.MethodPost, "/api/submissions", sub)
	if w.Code != http.StatusOK {
		t.Fatalf("resubmit: expected 200, got %d", w.Code)
	}
	resp = decode[OutcomeResponse](t, w)
	if !resp.AlreadyFinalized || resp.ScoreDelta != 0 || resp.Score != 15 {
		t.Errorf("resubmit response = %+v", resp)
	}
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name       string
		opts       []envOption
		body       any
		wantStatus int
		retryAfter bool
	}{
		{
			name:       "unknown challenge",
			body:       SubmissionRequest{ChallengeID: "nope", PlayerID: "ana", Payload: hunt.Payload{Text: "x"}},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing player",
			body:       SubmissionRequest{ChallengeID: "c1", Payload: hunt.Payload{Text: "x"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown type",
			body:       SubmissionRequest{ChallengeID: "c1", PlayerID: "ana", Type: "video"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not json",
			body:       "answer=museum",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "grader timeout",
			opts:       []envOption{withGrader(grader.Blocking{}, 10*time.Millisecond)},
			body:       SubmissionRequest{ChallengeID: "c2", PlayerID: "ana", Type: hunt.TypePhoto, Payload: hunt.Payload{ImageRef: "img/1.jpg"}},
			wantStatus: http.StatusServiceUnavailable,
			retryAfter: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.opts...)
			w := env.do(t, http.MethodPost, "/api/submissions", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if got := w.Header().Get("Retry-After") != ""; got != tt.retryAfter {
				t.Errorf("Retry-After present = %v, want %v", got, tt.retryAfter)
			}
			if resp := decode[ErrorResponse](t, w); resp.Error == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestSubmitMalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/submissions", SubmissionRequest{
		ChallengeID: "c1", PlayerID: "ana", Type: hunt.TypeText,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[OutcomeResponse](t, w)
	if resp.Result.IsCorrect || resp.Result.Explanation != "answer not provided." {
		t.Errorf("result = %+v", resp.Result)
	}
	if resp.Progress.Status != hunt.StatusNotStarted || resp.Progress.Attempts != 0 {
		t.Errorf("progress = %+v, want untouched", resp.Progress)
	}
}

func TestProgressAndSkip(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/sessions/demo/players/ana/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	st := decode[StandingResponse](t, w)
	if st.CurrentChallenge == nil || st.CurrentChallenge.ID != "c1" || len(st.Challenges) != 2 {
		t.Fatalf("standing = %+v", st)
	}
	if st.Challenges[0].Progress.Status != hunt.StatusNotStarted {
		t.Errorf("c1 status = %s, want not_started", st.Challenges[0].Progress.Status)
	}

	w = env.do(t, http.MethodPost, "/api/sessions/demo/players/ana/challenges/c1/skip", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("skip: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decode[OutcomeResponse](t, w)
	if out.Progress.Status != hunt.StatusSkipped || out.CurrentChallenge == nil || out.CurrentChallenge.ID != "c2" {
		t.Errorf("skip response = %+v", out)
	}

	w = env.do(t, http.MethodPost, "/api/sessions/demo/players/ana/challenges/c1/skip", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second skip: expected 409, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/sessions/other/players/ana/challenges/c2/skip", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("skip in wrong session: expected 404, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/sessions/missing/players/ana/progress", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", w.Code)
	}
}

type fakeLeaderboard struct{ entries []leaderboard.Entry }

func (f fakeLeaderboard) Top(_ context.Context, _ string, n int) ([]leaderboard.Entry, error) {
	return f.entries[:min(n, len(f.entries))], nil
}

func TestLeaderboard(t *testing.T) {
	disabled := newTestEnv(t)
	if w := disabled.do(t, http.MethodGet, "/api/sessions/demo/leaderboard", nil); w.Code != http.StatusNotFound {
		t.Errorf("disabled: expected 404, got %d", w.Code)
	}

	env := newTestEnv(t, withLeaderboard(fakeLeaderboard{entries: []leaderboard.Entry{
		{Rank: 1, PlayerID: "ana", Score: 45},
		{Rank: 2, PlayerID: "luis", Score: 30},
	}}))

	w := env.do(t, http.MethodGet, "/api/sessions/demo/leaderboard?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[LeaderboardResponse](t, w)
	if len(resp.Entries) != 1 || resp.Entries[0].PlayerID != "ana" {
		t.Errorf("entries = %+v", resp.Entries)
	}

	if w := env.do(t, http.MethodGet, "/api/sessions/demo/leaderboard?limit=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0: expected 400, got %d", w.Code)
	}
}

func TestHostKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing key: %v", err)
	}
	env := newTestEnv(t, withHostKeyHash(string(hash)))
	body := CreateSessionRequest{Theme: hunt.ThemeUrban, Difficulty: hunt.DifficultyEasy, Count: 2}

	if w := env.do(t, http.MethodPost, "/api/sessions", body); w.Code != http.StatusUnauthorized {
		t.Errorf("no key: expected 401, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/sessions", body, hostKeyHeader, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: expected 401, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/sessions", body, hostKeyHeader, "letmein"); w.Code != http.StatusCreated {
		t.Errorf("right key: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	// Player routes stay open.
	if w := env.do(t, http.MethodGet, "/api/sessions/demo/challenges", nil); w.Code != http.StatusOK {
		t.Errorf("challenges: expected 200, got %d", w.Code)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/demo/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}

	for env.broker.Subscribers("demo") == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("handler never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sub := SubmissionRequest{ChallengeID: "c1", PlayerID: "ana", Type: hunt.TypeText, Payload: hunt.Payload{Text: "museum"}}
	if w := env.do(t, http.MethodPost, "/api/submissions", sub); w.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", w.Code)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev hunt.ScoreEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		if ev.PlayerID != "ana" || ev.Delta != 15 || ev.Total != 15 {
			t.Errorf("event = %+v", ev)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}
