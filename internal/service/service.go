// Package service реализует бизнес-логику сервиса членства MDPU.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mdpu/membership-system/internal/mailer"
	"github.com/mdpu/membership-system/internal/model"
	"github.com/mdpu/membership-system/internal/repository"
	"github.com/mdpu/membership-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInitKeyMismatch возвращается при неверном ключе инициализации администратора.
	ErrInitKeyMismatch = errors.New("init key mismatch")
	// ErrEmailNotAllowed возвращается, если email отсутствует в списке разрешённых администраторов.
	ErrEmailNotAllowed = errors.New("email not in admin allow list")
	// ErrNotConfigured возвращается, когда нужная интеграция не сконфигурирована.
	ErrNotConfigured = errors.New("integration not configured")
	// ErrMailFailed возвращается при ошибке почтового транспорта.
	ErrMailFailed = errors.New("mail dispatch failed")
)

// ValidationError описывает отклонённый ввод со стабильным машинным кодом.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, email, fullName string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetUserRole(ctx context.Context, email string, role model.Role) error
	CreateApplication(ctx context.Context, app model.Application) (int64, error)
	GetApplicationByID(ctx context.Context, id int64) (*model.Application, error)
	ListApplications(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error)
	DecideApplication(ctx context.Context, id int64, status model.ApplicationStatus) (*model.Application, error)
	CreatePayment(ctx context.Context, p model.Payment) (int64, error)
	GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error)
	GetPaymentsBetween(ctx context.Context, from, to time.Time, statuses []model.PaymentStatus) ([]model.Payment, error)
	ReportExists(ctx context.Context, period string) (bool, error)
	SaveReport(ctx context.Context, rep model.MonthlyReport) error
	GetReport(ctx context.Context, period string) (*model.MonthlyReport, error)
}

// Storage описывает контракт объектного хранилища для файлов-подтверждений.
type Storage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Mailer описывает контракт исходящей почты.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// CheckoutClient описывает контракт платёжного провайдера с hosted-checkout.
type CheckoutClient interface {
	CreateSession(ctx context.Context, priceID, customerEmail, successURL, cancelURL string) (string, error)
}

// Options содержит настройки бизнес-логики.
type Options struct {
	AdminInitKey          string
	AdminEmails           []string
	PublicBaseURL         string
	CheckoutPriceDues     string
	CheckoutPriceDonation string
	Location              *time.Location
}

// Service содержит бизнес-логику сервиса членства.
// Все внешние зависимости передаются явно; отсутствующая интеграция
// (nil) приводит к ErrNotConfigured вместо падения процесса.
type Service struct {
	repo     Repository
	storage  Storage
	mailer   Mailer
	checkout CheckoutClient
	logger   *zap.Logger
	opts     Options
}

// NewService создаёт новый сервис с указанными зависимостями.
func NewService(repo Repository, storage Storage, mail Mailer, checkoutClient CheckoutClient, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Service{
		repo:     repo,
		storage:  storage,
		mailer:   mail,
		checkout: checkoutClient,
		logger:   logger,
		opts:     opts,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя с ролью member.
func (s *Service) RegisterUser(ctx context.Context, email, password, fullName string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalid("invalid_email", "a valid email is required")
	}
	if len(password) < 8 {
		return nil, invalid("weak_password", "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, email, fullName, hash, model.RoleMember)
	if err != nil {
		return nil, err
	}

	return &model.User{
		ID:       id,
		Email:    email,
		FullName: fullName,
		Role:     model.RoleMember,
	}, nil
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// BootstrapAdmin повышает пользователя до администратора по ключу инициализации.
// Непустой список ADMIN_EMAILS дополнительно ограничивает круг кандидатов.
func (s *Service) BootstrapAdmin(ctx context.Context, email, initKey string) error {
	if s.opts.AdminInitKey == "" {
		return fmt.Errorf("%w: admin init key", ErrNotConfigured)
	}
	if initKey != s.opts.AdminInitKey {
		return ErrInitKeyMismatch
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if len(s.opts.AdminEmails) > 0 && !s.isAllowedAdmin(email) {
		return ErrEmailNotAllowed
	}

	return s.repo.SetUserRole(ctx, email, model.RoleAdmin)
}

func (s *Service) isAllowedAdmin(email string) bool {
	for _, allowed := range s.opts.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(allowed), email) {
			return true
		}
	}
	return false
}

// ApplicationInput содержит поля заявки на членство.
type ApplicationInput struct {
	FullName string
	Email    string
	Phone    string
	Chapter  string
	Note     string
}

// SubmitApplication создаёт заявку на членство со статусом pending.
func (s *Service) SubmitApplication(ctx context.Context, userID int64, in ApplicationInput) (int64, error) {
	if strings.TrimSpace(in.FullName) == "" {
		return 0, invalid("missing_full_name", "full name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return 0, invalid("missing_email", "email is required")
	}

	return s.repo.CreateApplication(ctx, model.Application{
		UserID:   userID,
		FullName: in.FullName,
		Email:    in.Email,
		Phone:    in.Phone,
		Chapter:  in.Chapter,
		Note:     in.Note,
	})
}

// ListApplications возвращает заявки, опционально отфильтрованные по статусу.
func (s *Service) ListApplications(ctx context.Context, status string) ([]model.Application, error) {
	switch model.ApplicationStatus(status) {
	case "", model.ApplicationStatusPending, model.ApplicationStatusApproved, model.ApplicationStatusRejected:
	default:
		return nil, invalid("invalid_status", "unknown application status")
	}

	return s.repo.ListApplications(ctx, model.ApplicationStatus(status))
}

// GetApplication возвращает заявку по идентификатору.
func (s *Service) GetApplication(ctx context.Context, id int64) (*model.Application, error) {
	return s.repo.GetApplicationByID(ctx, id)
}

// ApproveApplication одобряет заявку: в одной транзакции создаются профиль
// и публичная карточка участника, заявка помечается approved.
func (s *Service) ApproveApplication(ctx context.Context, id int64) (*model.Application, error) {
	return s.repo.DecideApplication(ctx, id, model.ApplicationStatusApproved)
}

// RejectApplication отклоняет заявку.
func (s *Service) RejectApplication(ctx context.Context, id int64) (*model.Application, error) {
	return s.repo.DecideApplication(ctx, id, model.ApplicationStatusRejected)
}

// PaymentInput содержит поля заявленного платежа.
type PaymentInput struct {
	Method    string
	Type      string
	Amount    float64
	Currency  string
	Reference string
	Phone     string
}

// EvidenceFile описывает загруженный файл-подтверждение платежа.
type EvidenceFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// SubmitPayment валидирует заявленный платёж, загружает подтверждение в
// объектное хранилище и создаёт запись со статусом pending. Валидация
// выполняется целиком до первого побочного эффекта.
func (s *Service) SubmitPayment(ctx context.Context, userID int64, in PaymentInput, evidence *EvidenceFile) (int64, error) {
	if !validation.IsAllowedMethod(model.PaymentMethod(in.Method)) {
		return 0, invalid("invalid_method", "payment method must be one of bank, orange, afrimoney")
	}
	if !validation.IsAllowedPaymentType(model.PaymentType(in.Type)) {
		return 0, invalid("invalid_type", "payment type must be dues or donation")
	}
	if in.Amount <= 0 {
		return 0, invalid("invalid_amount", "amount must be positive")
	}
	if strings.TrimSpace(in.Reference) == "" {
		return 0, invalid("missing_reference", "payment reference is required")
	}

	if evidence != nil {
		if int64(len(evidence.Data)) > validation.MaxEvidenceSize {
			return 0, invalid("file_too_large", "evidence file exceeds 5 MB")
		}
		if !validation.IsAllowedEvidenceType(evidence.ContentType) {
			return 0, invalid("invalid_file_type", "evidence must be a JPEG, PNG or PDF file")
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "SLL"
	}

	var evidenceURL string
	if evidence != nil {
		if s.storage == nil {
			return 0, fmt.Errorf("%w: object storage", ErrNotConfigured)
		}

		key := fmt.Sprintf("payments/%d/%d_%s%s",
			userID, time.Now().UnixNano(), sanitizeReference(in.Reference), filepath.Ext(evidence.Name))

		url, err := s.storage.Upload(ctx, key, evidence.ContentType, evidence.Data)
		if err != nil {
			return 0, fmt.Errorf("upload evidence: %w", err)
		}
		evidenceURL = url
	}

	return s.repo.CreatePayment(ctx, model.Payment{
		UserID:      userID,
		Method:      model.PaymentMethod(in.Method),
		Type:        model.PaymentType(in.Type),
		Amount:      in.Amount,
		Currency:    currency,
		Reference:   in.Reference,
		PayerPhone:  in.Phone,
		EvidenceURL: evidenceURL,
	})
}

func sanitizeReference(ref string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, ref)
}

// ListPaymentsByUser возвращает платежи пользователя.
func (s *Service) ListPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	return s.repo.GetPaymentsByUser(ctx, userID)
}

// PaymentInstructions описывает инструкции по оплате для одного способа.
type PaymentInstructions struct {
	Method        string   `json:"method"`
	AccountName   string   `json:"account_name"`
	AccountNumber string   `json:"account_number"`
	Steps         []string `json:"steps"`
}

var paymentInstructions = map[model.PaymentMethod]PaymentInstructions{
	model.PaymentMethodBank: {
		Method:        "bank",
		AccountName:   "MDPU",
		AccountNumber: "004-123456-01",
		Steps: []string{
			"Transfer the amount to the union bank account.",
			"Keep the transfer slip as evidence.",
			"Submit the payment with the transfer reference.",
		},
	},
	model.PaymentMethodOrange: {
		Method:        "orange",
		AccountName:   "MDPU",
		AccountNumber: "076-000-000",
		Steps: []string{
			"Dial #144# and choose Pay Bill.",
			"Send the amount to the union Orange Money number.",
			"Submit the payment with the transaction id as reference.",
		},
	},
	model.PaymentMethodAfrimoney: {
		Method:        "afrimoney",
		AccountName:   "MDPU",
		AccountNumber: "099-000-000",
		Steps: []string{
			"Open the Afrimoney menu and choose Payments.",
			"Send the amount to the union Afrimoney wallet.",
			"Submit the payment with the transaction id as reference.",
		},
	},
}

// GetPaymentInstructions возвращает статические инструкции по оплате для способа.
func (s *Service) GetPaymentInstructions(method string) (*PaymentInstructions, error) {
	ins, ok := paymentInstructions[model.PaymentMethod(method)]
	if !ok {
		return nil, invalid("invalid_method", "payment method must be one of bank, orange, afrimoney")
	}
	return &ins, nil
}

// CreateCheckoutSession создаёт сессию hosted-checkout у платёжного провайдера.
func (s *Service) CreateCheckoutSession(ctx context.Context, customerEmail, paymentType string) (string, error) {
	if !validation.IsAllowedPaymentType(model.PaymentType(paymentType)) {
		return "", invalid("invalid_type", "payment type must be dues or donation")
	}
	if s.checkout == nil {
		return "", fmt.Errorf("%w: checkout provider", ErrNotConfigured)
	}

	var priceID string
	switch model.PaymentType(paymentType) {
	case model.PaymentTypeDues:
		priceID = s.opts.CheckoutPriceDues
	case model.PaymentTypeDonation:
		priceID = s.opts.CheckoutPriceDonation
	}
	if priceID == "" {
		return "", fmt.Errorf("%w: checkout price id", ErrNotConfigured)
	}

	successURL := s.opts.PublicBaseURL + "/payments/success"
	cancelURL := s.opts.PublicBaseURL + "/payments/cancelled"

	return s.checkout.CreateSession(ctx, priceID, customerEmail, successURL, cancelURL)
}

// SendApprovalEmail отправляет заявителю письмо об одобрении.
func (s *Service) SendApprovalEmail(ctx context.Context, email, name string) error {
	subject, html := mailer.ApprovalMessage(name)
	return s.sendMail(ctx, email, subject, html)
}

// SendRejectionEmail отправляет заявителю письмо об отклонении.
func (s *Service) SendRejectionEmail(ctx context.Context, email, name string) error {
	subject, html := mailer.RejectionMessage(name)
	return s.sendMail(ctx, email, subject, html)
}

// SendLeadershipEmail отправляет уведомление о назначении на должность.
func (s *Service) SendLeadershipEmail(ctx context.Context, email, name, position, assignedBy string) error {
	subject, html := mailer.LeadershipMessage(name, position, assignedBy)
	return s.sendMail(ctx, email, subject, html)
}

func (s *Service) sendMail(ctx context.Context, to, subject, html string) error {
	if s.mailer == nil {
		return fmt.Errorf("%w: mailer", ErrNotConfigured)
	}
	if err := s.mailer.Send(ctx, to, subject, html); err != nil {
		return fmt.Errorf("%w: %s", ErrMailFailed, err)
	}
	return nil
}
