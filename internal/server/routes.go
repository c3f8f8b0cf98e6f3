package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("CityHunt API", "/openapi.json", "/docs"))

	r.Route("/api", func(r chi.Router) {
		// Host routes.
		r.With(hostKeyMiddleware(deps.HostKeyHash)).Post("/sessions", handleCreateSession(logger, deps))

		// Player routes.
		r.Post("/submissions", handleSubmit(logger, deps))
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/challenges", handleListChallenges(logger, deps))
			r.Get("/leaderboard", handleLeaderboard(logger, deps))
			r.Get("/events", handleEvents(deps.Broker))
			r.Get("/players/{playerID}/progress", handleProgress(logger, deps))
			r.Post("/players/{playerID}/challenges/{challengeID}/skip", handleSkip(logger, deps))
		})
	})
}
