package routes

import (
	"github.com/elobot/ladder-system/handlers"
	"github.com/elobot/ladder-system/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	playerHandler *handlers.PlayerHandler,
	queueHandler *handlers.QueueHandler,
	matchHandler *handlers.MatchHandler,
	moderatorHandler *handlers.ModeratorHandler,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/login", authHandler.Login)

	// Публичные маршруты игроков и очереди: ими пользуется чат-бот
	// от имени игроков.
	router.Route("/players", func(r chi.Router) {
		r.Get("/leaderboard", playerHandler.Leaderboard)
		r.Get("/{nickname}", playerHandler.GetByNickname)
	})

	router.Route("/queue", func(r chi.Router) {
		r.Get("/", queueHandler.Depths)
		r.Post("/", queueHandler.Enqueue)
		r.Delete("/{nickname}", queueHandler.Dequeue)
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Post("/result", matchHandler.SubmitResult)
		r.Post("/confirm", matchHandler.ConfirmResult)
		r.Post("/dispute", matchHandler.DisputeResult)
		r.Post("/report", matchHandler.FileReport)
		r.Get("/draft", matchHandler.GetDraft)
		r.Post("/draft/strike", matchHandler.StrikeMap)
	})

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/{tournamentID}", tournamentHandler.Get)
		r.Get("/{tournamentID}/bracket", tournamentHandler.Bracket)
		r.Post("/{tournamentID}/participants", tournamentHandler.Register)
		r.Delete("/{tournamentID}/participants/{playerID}", tournamentHandler.Unregister)

		// Административные действия над турниром
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))

			r.Post("/", tournamentHandler.Create)
			r.Post("/{tournamentID}/start", tournamentHandler.Start)
			r.Post("/{tournamentID}/participants/{playerID}/ban", tournamentHandler.Ban)
			r.Post("/{tournamentID}/matches/{matchID}/winner", tournamentHandler.SetWinner)
		})
	})

	// Панель модератора
	router.Route("/moderation", func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))

		r.Post("/auth/register", authHandler.Register)
		r.Post("/players", playerHandler.Verify)
		r.Post("/players/{nickname}/ban", playerHandler.SetBanned)
		r.Post("/players/{nickname}/blacklist", playerHandler.SetBlacklisted)
		r.Delete("/players/{nickname}", playerHandler.Purge)

		r.Get("/results", moderatorHandler.PendingResults)
		r.Get("/reports", moderatorHandler.PendingReports)
		r.Post("/matches/{matchID}/resolve", moderatorHandler.Resolve)
		r.Post("/matches/{matchID}/report", moderatorHandler.ResolveReport)
	})

	// WebSocket комнаты
	router.Route("/ws", func(r chi.Router) {
		r.Get("/players/{nickname}", webSocketHandler.ServePlayer)
		r.Get("/tournaments/{tournamentID}", webSocketHandler.ServeTournament)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Get("/moderators", webSocketHandler.ServeModerator)
		})
	})
}
