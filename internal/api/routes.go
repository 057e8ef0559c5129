package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/campaign-dispatch/internal/auth"
	"github.com/ignite/campaign-dispatch/internal/metrics"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// SetupRoutes configures all routes. JWT-protected routes live under /api,
// key-protected machine routes under /webhooks.
func SetupRoutes(h *Handlers, origins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(origins) == 0 {
		origins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Webhook-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.Auth.Middleware)

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.SubmitCampaign)
			r.Get("/", h.ListCampaigns)
			r.Get("/{id}", h.GetCampaign)
			r.Put("/{id}", h.EditCampaign)
			r.Get("/{id}/progress", h.CampaignProgress)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireApprover)
				r.Post("/{id}/approve", h.ApproveCampaign)
				r.Post("/{id}/reject", h.RejectCampaign)
				r.Post("/{id}/enqueue", h.EnqueueCampaign)
			})
		})

		r.With(auth.RequireApprover).Post("/queue/process", h.ProcessQueue)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Put("/{id}/unsubscribe", h.SetUnsubscribed)
			r.Post("/import", h.ImportContacts)
		})

		r.Get("/me/stats", h.MyStats)

		r.Route("/auto-approval", func(r chi.Router) {
			r.Use(auth.RequireApprover)
			r.Get("/", h.AutoApprovalStatus)
			r.Post("/start", h.StartAutoApproval)
			r.Post("/stop", h.StopAutoApproval)
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Use(h.requireWebhookKey)
		r.Post("/queue/process", h.WebhookProcessQueue)
		r.Get("/history", h.WebhookHistory)
	})

	return r
}
