package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GetReport возвращает сохранённый месячный отчёт.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.GetMonthlyReport(r.Context(), chi.URLParam(r, "period"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// GenerateReport формирует отчёт за указанный период вручную,
// перезаписывая уже существующий.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.GenerateMonthlyReport(r.Context(), chi.URLParam(r, "period"), true)
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// ExportReportCSV выгружает платежи отчётного периода в CSV.
func (h *Handler) ExportReportCSV(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")

	payments, err := h.service.PaymentsForPeriod(r.Context(), period)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payments-%s.csv"`, period))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "date", "method", "type", "amount", "currency", "reference", "status"})

	for _, p := range payments {
		if err := cw.Write([]string{
			strconv.FormatInt(p.ID, 10),
			p.CreatedAt.Format(time.RFC3339),
			string(p.Method),
			string(p.Type),
			strconv.FormatFloat(p.Amount, 'f', -1, 64),
			p.Currency,
			p.Reference,
			string(p.Status),
		}); err != nil {
			h.logger.Error("write csv row", zap.Error(err))
			return
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Error("flush csv", zap.Error(err))
	}
}
