package server

import (
	"net/http"

	"github.com/candorhq/tacit/internal/api"
	"github.com/candorhq/tacit/internal/api/handlers"
	"github.com/candorhq/tacit/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	KnowledgeHandler    *handlers.KnowledgeHandler
	ConversationHandler *handlers.ConversationHandler
	ChatHandler         *handlers.ChatHandler
	DocumentHandler     *handlers.DocumentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireTenant)

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/index", cfg.KnowledgeHandler.Index)
			r.Delete("/{type}/{id}", cfg.KnowledgeHandler.Remove)
		})

		r.Post("/search", cfg.KnowledgeHandler.Search)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", cfg.ConversationHandler.Create)
			r.Get("/", cfg.ConversationHandler.List)
			r.Get("/{id}", cfg.ConversationHandler.Get)
			r.Get("/{id}/messages", cfg.ConversationHandler.Messages)
		})

		r.Post("/chat", cfg.ChatHandler.Chat)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})
	})

	return r
}
