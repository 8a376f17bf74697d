package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"post_keeper/internal/config"
	"post_keeper/internal/ingest"
	"post_keeper/internal/transport/http/handler"
)

// Deps holds the collaborators the router serves.
type Deps struct {
	Ingestor handler.Ingestor
	Store    ingest.PostStore
	Pinger   handler.Pinger
	Logger   *slog.Logger
}

// NewRouter builds the application router: the webhook endpoint plus
// the read API consumed by the front-end.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	webhookH := handler.NewWebhookHandler(deps.Ingestor, deps.Logger)
	postH := handler.NewPostHandler(deps.Store)
	healthH := handler.NewHealthHandler(deps.Pinger)

	r.Post(cfg.Server.WebhookPath, webhookH.Receive)
	r.Get("/health", healthH.Check)

	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", postH.List)
		r.Get("/posts/{channelID}/{messageID}", postH.Get)
		r.Get("/stats", postH.Stats)
	})

	return r
}
