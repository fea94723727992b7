package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/matchday-app/matchday-system/handlers"
	"github.com/matchday-app/matchday-system/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	matchHandler *handlers.MatchHandler,
	teamHandler *handlers.TeamHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate([]byte(jwtSecret))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/matches", func(r chi.Router) {
		r.Get("/", matchHandler.ListHandler)
		r.Get("/{matchID}", matchHandler.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", matchHandler.CreateHandler)
			r.Delete("/{matchID}", matchHandler.DeleteHandler)

			r.Post("/{matchID}/join", matchHandler.JoinHandler)
			r.Post("/{matchID}/leave", matchHandler.LeaveHandler)

			r.Post("/{matchID}/start", matchHandler.StartHandler)
			r.Post("/{matchID}/end", matchHandler.EndHandler)
			r.Post("/{matchID}/cancel", matchHandler.CancelHandler)
			r.Post("/{matchID}/postpone", matchHandler.PostponeHandler)

			r.Post("/{matchID}/teams/{teamID}/join", teamHandler.JoinHandler)
			r.Post("/{matchID}/teams/leave", teamHandler.LeaveHandler)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}/positions", teamHandler.AvailablePositionsHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/{teamID}/logo", teamHandler.UploadLogoHandler)
		})
	})

	router.With(authenticate).Post("/admin/sweep", matchHandler.SweepHandler)

	router.Get("/ws/matches/{matchID}", webSocketHandler.ServeWs)

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}
