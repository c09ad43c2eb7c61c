package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/memberclub/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware клуба участников.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(h.metrics.Middleware)

	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/site-settings", h.GetPublicSettings)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.With(h.authMiddleware.RequireMember).Get("/me", h.Me)
		})

		r.Route("/member", func(r chi.Router) {
			r.Use(h.authMiddleware.RequireMember)

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)

			r.Get("/gifts", h.ListGifts)
			r.Post("/gift-delivery", h.ClaimGift)
			r.Get("/gift-delivery", h.ListMyDeliveries)

			r.Get("/events", h.ListMemberEvents)

			r.Get("/reviews", h.ListApprovedReviews)
			r.Post("/reviews", h.SubmitReview)
			r.Post("/reviews/{id}/helpful", h.MarkReviewHelpful)
		})

		r.Route("/payment", func(r chi.Router) {
			r.Use(h.authMiddleware.RequireMember)

			r.Post("/create", h.CreatePayment)
			r.Get("/my-payments", h.ListMyPayments)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", h.AdminLogin)
				r.Post("/logout", h.AdminLogout)
				r.With(h.authMiddleware.RequireAdmin).Get("/me", h.AdminMe)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.RequireAdmin)

				r.Get("/stats", h.DashboardStats)

				r.Get("/members", h.ListMembers)
				r.Get("/members/{id}", h.GetMember)
				r.Put("/members/{id}", h.UpdateMember)
				r.Post("/members/{id}/reset-password", h.ResetMemberPassword)

				r.Get("/payments", h.ListPayments)
				r.Put("/payments/{id}/verify", h.VerifyPayment)

				r.Get("/gifts", h.GiftCatalog)
				r.Post("/gifts", h.CreateGift)
				r.Put("/gifts/{id}", h.UpdateGift)

				r.Get("/gift-deliveries", h.ListDeliveries)
				r.Put("/gift-deliveries/{id}", h.UpdateDelivery)

				r.Get("/events", h.ListEvents)
				r.Post("/events", h.CreateEvent)
				r.Put("/events/{id}", h.UpdateEvent)
				r.Delete("/events/{id}", h.DeleteEvent)

				r.Get("/reviews", h.ListReviews)
				r.Put("/reviews/{id}", h.ModerateReview)

				r.Get("/settings", h.GetSettings)
				r.Put("/settings", h.UpdateSettings)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorKind(w, http.StatusNotFound, kindNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorKind(w, http.StatusMethodNotAllowed, kindInvalidInput, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
