package handlers

import (
	"net/http"

	"ourapp-backend/internal/middleware"
	"ourapp-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Services bundles what the router needs
type Services struct {
	Users *services.UserService
	Pairs *services.PairService
	Daily *services.DailyService
	Hub   *services.WSHub
}

// NewRouter wires every route of the API
func NewRouter(svc Services) http.Handler {
	userHandler := NewUserHandler(svc.Users, svc.Pairs)
	pairHandler := NewPairHandler(svc.Pairs)
	dailyHandler := NewDailyHandler(svc.Daily)
	wsHandler := NewWebSocketHandler(svc.Hub, svc.Users, svc.Pairs)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", HandleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)
		r.Get("/prompt", dailyHandler.GetPrompt)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(svc.Users))
			r.Get("/session", userHandler.GetSession)
			r.Put("/users/push-token", userHandler.UpdatePushToken)
			r.Post("/logout", userHandler.Logout)

			r.Post("/pairs/code", pairHandler.IssueCode)
			r.Post("/pairs/code/regenerate", pairHandler.RegenerateCode)
			r.Post("/pairs/join", pairHandler.JoinPair)

			r.Post("/answers", dailyHandler.SaveAnswer)
			r.Get("/dashboard", dailyHandler.GetDashboard)
		})
	})

	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
