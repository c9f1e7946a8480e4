package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	custommiddleware "github.com/localperks/pos-service/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Разрешающий CORS: API вызывается напрямую из браузерного фронтенда.
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
	}).Handler)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/pos", func(r chi.Router) {
		// Разовая синхронизация вызывается и автоматикой без пользовательского токена.
		r.Post("/sync-one-code", h.SyncOneCode)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/connect-square", h.ConnectSquare)
			r.Post("/connect-clover", h.ConnectClover)
			r.Post("/connect-lightspeed", h.ConnectLightspeed)
			r.Post("/disconnect", h.Disconnect)

			r.Get("/sync-status", h.GetSyncStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
