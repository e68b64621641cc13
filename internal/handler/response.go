package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mdpu/membership-system/internal/repository"
	"github.com/mdpu/membership-system/internal/service"
)

// errorResponse — единый конверт ошибок API. Поле code стабильно и
// предназначено для машинной обработки; клиенты не должны разбирать
// текст error.
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// respondError переводит ошибку бизнес-логики в HTTP-статус и конверт ошибки.
// Неожиданные ошибки логируются и отдаются наружу обезличенно.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var vErr *service.ValidationError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Code, vErr.Message)
	case errors.Is(err, repository.ErrUserExists):
		writeError(w, http.StatusConflict, "user_exists", "user already exists")
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrApplicationNotFound),
		errors.Is(err, repository.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, repository.ErrAlreadyDecided):
		writeError(w, http.StatusConflict, "already_decided", "application already decided")
	case errors.Is(err, repository.ErrReportExists):
		writeError(w, http.StatusConflict, "report_exists", "report already exists for this period")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, service.ErrInitKeyMismatch):
		writeError(w, http.StatusUnauthorized, "invalid_init_key", "init key does not match")
	case errors.Is(err, service.ErrEmailNotAllowed):
		writeError(w, http.StatusForbidden, "email_not_allowed", "email is not in the admin allow list")
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "config_missing", "required integration is not configured")
	case errors.Is(err, service.ErrMailFailed):
		writeError(w, http.StatusBadGateway, "mail_failed", "mail transport error")
	default:
		h.logger.Error("unexpected error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
