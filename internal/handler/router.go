package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mdpu/membership-system/internal/middleware"
	"github.com/mdpu/membership-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса членства.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/admin/init", h.BootstrapAdmin)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/applications", h.SubmitApplication)

			r.Post("/payments", h.SubmitPayment)
			r.Get("/payments", h.ListMyPayments)
			r.Get("/payments/instructions", h.PaymentInstructions)

			r.Post("/checkout/session", h.CreateCheckoutSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.RequireRole(model.RoleAdmin))

			r.Get("/applications", h.ListApplications)
			r.Get("/applications/{id}", h.GetApplication)
			r.Post("/applications/{id}/approve", h.ApproveApplication)
			r.Post("/applications/{id}/reject", h.RejectApplication)

			r.Get("/reports/{period}", h.GetReport)
			r.Post("/reports/{period}", h.GenerateReport)
			r.Get("/reports/{period}/export", h.ExportReportCSV)

			r.Post("/notify/approval", h.NotifyApproval)
			r.Post("/notify/rejection", h.NotifyRejection)
			r.Post("/notify/leadership", h.NotifyLeadership)

			r.Post("/media/thumbnail", h.GenerateThumbnail)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}
