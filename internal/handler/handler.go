// Package handler содержит HTTP-обработчики API сервиса членства MDPU.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mdpu/membership-system/internal/middleware"
	"github.com/mdpu/membership-system/internal/model"
	"github.com/mdpu/membership-system/internal/service"
	"github.com/mdpu/membership-system/internal/validation"
)

// Лимит разбора multipart-формы платежа. Больше потолка файла,
// чтобы превышение размера отклонялось нашей проверкой, а не разбором формы.
const multipartMemoryLimit = 10 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, password, fullName string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	BootstrapAdmin(ctx context.Context, email, initKey string) error
	SubmitApplication(ctx context.Context, userID int64, in service.ApplicationInput) (int64, error)
	ListApplications(ctx context.Context, status string) ([]model.Application, error)
	GetApplication(ctx context.Context, id int64) (*model.Application, error)
	ApproveApplication(ctx context.Context, id int64) (*model.Application, error)
	RejectApplication(ctx context.Context, id int64) (*model.Application, error)
	SubmitPayment(ctx context.Context, userID int64, in service.PaymentInput, evidence *service.EvidenceFile) (int64, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	GetPaymentInstructions(method string) (*service.PaymentInstructions, error)
	CreateCheckoutSession(ctx context.Context, customerEmail, paymentType string) (string, error)
	GenerateMonthlyReport(ctx context.Context, period string, overwrite bool) (*model.MonthlyReport, error)
	GetMonthlyReport(ctx context.Context, period string) (*model.MonthlyReport, error)
	PaymentsForPeriod(ctx context.Context, period string) ([]model.Payment, error)
	SendApprovalEmail(ctx context.Context, email, name string) error
	SendRejectionEmail(ctx context.Context, email, name string) error
	SendLeadershipEmail(ctx context.Context, email, name, position, assignedBy string) error
}

// Handler реализует HTTP-обработчики API сервиса членства.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type authResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.respondError(w, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(u)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, Role: string(u.Role)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и выдаёт токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(u)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, Role: string(u.Role)})
}

type bootstrapRequest struct {
	Email   string `json:"email"`
	InitKey string `json:"init_key"`
}

// BootstrapAdmin обрабатывает первичное назначение администратора по ключу инициализации.
func (h *Handler) BootstrapAdmin(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	if req.Email == "" || req.InitKey == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "email and init_key are required")
		return
	}

	if err := h.service.BootstrapAdmin(r.Context(), req.Email, req.InitKey); err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "admin granted"})
}

type applicationRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Chapter  string `json:"chapter"`
	Note     string `json:"note"`
}

// SubmitApplication принимает заявку на членство от текущего пользователя.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}

	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	id, err := h.service.SubmitApplication(r.Context(), userID, service.ApplicationInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Chapter:  req.Chapter,
		Note:     req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": string(model.ApplicationStatusPending)})
}

type applicationResponse struct {
	ID        int64  `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Chapter   string `json:"chapter,omitempty"`
	Note      string `json:"note,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	DecidedAt string `json:"decided_at,omitempty"`
}

func toApplicationResponse(app model.Application) applicationResponse {
	resp := applicationResponse{
		ID:        app.ID,
		FullName:  app.FullName,
		Email:     app.Email,
		Phone:     app.Phone,
		Chapter:   app.Chapter,
		Note:      app.Note,
		Status:    string(app.Status),
		CreatedAt: app.CreatedAt.Format(time.RFC3339),
	}
	if app.DecidedAt != nil {
		resp.DecidedAt = app.DecidedAt.Format(time.RFC3339)
	}
	return resp
}

// ListApplications возвращает заявки для административного обзора.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListApplications(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, toApplicationResponse(app))
	}

	writeJSON(w, http.StatusOK, resp)
}

func applicationIDFromRequest(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetApplication возвращает одну заявку для административного обзора.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "application id must be a positive integer")
		return
	}

	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(*app))
}

// ApproveApplication одобряет заявку на членство.
func (h *Handler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "application id must be a positive integer")
		return
	}

	app, err := h.service.ApproveApplication(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(*app))
}

// RejectApplication отклоняет заявку на членство.
func (h *Handler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationIDFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id", "application id must be a positive integer")
		return
	}

	app, err := h.service.RejectApplication(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toApplicationResponse(*app))
}

// SubmitPayment принимает multipart-заявку о совершённом платеже
// с опциональным файлом-подтверждением.
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request must be a multipart form")
		return
	}

	amount, err := strconv.ParseFloat(r.FormValue("amount"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be a number")
		return
	}

	in := service.PaymentInput{
		Method:    r.FormValue("method"),
		Type:      r.FormValue("type"),
		Amount:    amount,
		Currency:  r.FormValue("currency"),
		Reference: r.FormValue("reference"),
		Phone:     r.FormValue("phone"),
	}

	var evidence *service.EvidenceFile
	file, fileHeader, err := r.FormFile("evidence")
	if err == nil {
		defer file.Close()

		// Размер проверяется до чтения: файл с превышением не буферизуется.
		if fileHeader.Size > validation.MaxEvidenceSize {
			writeError(w, http.StatusBadRequest, "file_too_large", "evidence file exceeds 5 MB")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "failed to read evidence file")
			return
		}

		evidence = &service.EvidenceFile{
			Name:        fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	id, err := h.service.SubmitPayment(r.Context(), userID, in, evidence)
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": string(model.PaymentStatusPending)})
}

type paymentResponse struct {
	ID          int64   `json:"id"`
	Method      string  `json:"method"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Reference   string  `json:"reference"`
	EvidenceURL string  `json:"evidence_url,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
}

// ListMyPayments возвращает платежи текущего пользователя.
func (h *Handler) ListMyPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}

	payments, err := h.service.ListPaymentsByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, paymentResponse{
			ID:          p.ID,
			Method:      string(p.Method),
			Type:        string(p.Type),
			Amount:      p.Amount,
			Currency:    p.Currency,
			Reference:   p.Reference,
			EvidenceURL: p.EvidenceURL,
			Status:      string(p.Status),
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// PaymentInstructions возвращает статические инструкции по оплате для способа.
func (h *Handler) PaymentInstructions(w http.ResponseWriter, r *http.Request) {
	ins, err := h.service.GetPaymentInstructions(r.URL.Query().Get("method"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ins)
}

type checkoutRequest struct {
	Type string `json:"type"`
}

// CreateCheckoutSession создаёт сессию hosted-checkout и возвращает URL для редиректа.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.GetEmailFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	url, err := h.service.CreateCheckoutSession(r.Context(), email, req.Type)
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// GenerateThumbnail — заглушка генерации превью видео.
func (h *Handler) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "not_implemented", "video thumbnail generation is not implemented")
}
