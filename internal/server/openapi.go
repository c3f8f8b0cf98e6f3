package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthCheck is one entry of the /healthz body, keyed by dependency name.
type HealthCheck struct {
	Status    string `json:"status" enum:"ok,error"`
	LatencyMs int64  `json:"latencyMs"`
}

type sessionPath struct {
	SessionID string `path:"sessionID"`
}

type playerPath struct {
	SessionID string `path:"sessionID"`
	PlayerID  string `path:"playerID"`
}

type skipPath struct {
	SessionID   string `path:"sessionID"`
	PlayerID    string `path:"playerID"`
	ChallengeID string `path:"challengeID"`
}

type leaderboardQuery struct {
	SessionID string `path:"sessionID"`
	Limit     int    `query:"limit" minimum:"1" maximum:"100" default:"10"`
}

type createSessionInput struct {
	CreateSessionRequest
	HostKey string `header:"X-Host-Key" description:"Required when the server has a host key configured."`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "CityHunt API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Challenge validation and progression engine for city scavenger hunts.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(map[string]HealthCheck{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]HealthCheck{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/sessions
	postSession, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	postSession.SetSummary("Create session")
	postSession.SetDescription("Generates and stores an ordered challenge sequence from the template catalog.")
	postSession.AddReqStructure(createSessionInput{})
	postSession.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	_ = r.AddOperation(postSession)

	// GET /api/sessions/{sessionID}/challenges
	getChallenges, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/challenges")
	getChallenges.SetSummary("List challenges")
	getChallenges.SetDescription("Returns the session's challenges in order, without answers.")
	getChallenges.AddReqStructure(sessionPath{})
	getChallenges.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getChallenges.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getChallenges)

	// POST /api/submissions
	postSubmission, _ := r.NewOperationContext(http.MethodPost, "/api/submissions")
	postSubmission.SetSummary("Submit answer")
	postSubmission.SetDescription("Validates a submission, records progress and returns the result with the player's next challenge.")
	postSubmission.AddReqStructure(SubmissionRequest{})
	postSubmission.AddRespStructure(OutcomeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postSubmission.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postSubmission.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postSubmission.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postSubmission.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postSubmission)

	// GET /api/sessions/{sessionID}/players/{playerID}/progress
	getProgress, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/players/{playerID}/progress")
	getProgress.SetSummary("Player progress")
	getProgress.SetDescription("Returns per-challenge progress, score and current challenge for a player.")
	getProgress.AddReqStructure(playerPath{})
	getProgress.AddRespStructure(StandingResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getProgress.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getProgress)

	// POST /api/sessions/{sessionID}/players/{playerID}/challenges/{challengeID}/skip
	postSkip, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/players/{playerID}/challenges/{challengeID}/skip")
	postSkip.SetSummary("Skip challenge")
	postSkip.SetDescription("Marks the challenge as skipped for the player. Skipped challenges earn no points and cannot be reopened.")
	postSkip.AddReqStructure(skipPath{})
	postSkip.AddRespStructure(OutcomeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postSkip.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postSkip.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postSkip)

	// GET /api/sessions/{sessionID}/leaderboard
	getLeaderboard, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/leaderboard")
	getLeaderboard.SetSummary("Session leaderboard")
	getLeaderboard.SetDescription("Returns the top players of a session. Available when Redis is configured.")
	getLeaderboard.AddReqStructure(leaderboardQuery{})
	getLeaderboard.AddRespStructure(LeaderboardResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getLeaderboard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getLeaderboard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getLeaderboard)

	// GET /api/sessions/{sessionID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/events")
	getEvents.SetSummary("SSE score stream")
	getEvents.SetDescription("Server-Sent Events stream of score changes in the session.")
	getEvents.AddReqStructure(sessionPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /ws/sessions/{sessionID}/scores
	getScores, _ := r.NewOperationContext(http.MethodGet, "/ws/sessions/{sessionID}/scores")
	getScores.SetSummary("WebSocket score feed")
	getScores.SetDescription("Upgrades to a WebSocket that pushes the session's score events as JSON text messages.")
	getScores.AddReqStructure(sessionPath{})
	getScores.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getScores)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
