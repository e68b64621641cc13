package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mdpu/membership-system/internal/model"
	"github.com/mdpu/membership-system/internal/repository"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	setRoleErr    error
	setRoleCalled bool

	createAppID  int64
	createAppErr error

	getApp    *model.Application
	getAppErr error

	decideResp *model.Application
	decideErr  error

	createPaymentID    int64
	createPaymentErr   error
	createPaymentCalls int
	lastPayment        model.Payment

	payments    []model.Payment
	paymentsErr error

	reportExists    bool
	reportExistsErr error

	savedReports []model.MonthlyReport
	saveErr      error

	getReport    *model.MonthlyReport
	getReportErr error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, email, fullName string, passwordHash []byte, role model.Role) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) SetUserRole(ctx context.Context, email string, role model.Role) error {
	s.setRoleCalled = true
	return s.setRoleErr
}

func (s *stubRepo) CreateApplication(ctx context.Context, app model.Application) (int64, error) {
	return s.createAppID, s.createAppErr
}

func (s *stubRepo) GetApplicationByID(ctx context.Context, id int64) (*model.Application, error) {
	return s.getApp, s.getAppErr
}

func (s *stubRepo) ListApplications(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error) {
	return nil, nil
}

func (s *stubRepo) DecideApplication(ctx context.Context, id int64, status model.ApplicationStatus) (*model.Application, error) {
	return s.decideResp, s.decideErr
}

func (s *stubRepo) CreatePayment(ctx context.Context, p model.Payment) (int64, error) {
	s.createPaymentCalls++
	s.lastPayment = p
	return s.createPaymentID, s.createPaymentErr
}

func (s *stubRepo) GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	return s.payments, s.paymentsErr
}

func (s *stubRepo) GetPaymentsBetween(ctx context.Context, from, to time.Time, statuses []model.PaymentStatus) ([]model.Payment, error) {
	return s.payments, s.paymentsErr
}

func (s *stubRepo) ReportExists(ctx context.Context, period string) (bool, error) {
	return s.reportExists, s.reportExistsErr
}

func (s *stubRepo) SaveReport(ctx context.Context, rep model.MonthlyReport) error {
	s.savedReports = append(s.savedReports, rep)
	return s.saveErr
}

func (s *stubRepo) GetReport(ctx context.Context, period string) (*model.MonthlyReport, error) {
	return s.getReport, s.getReportErr
}

type stubStorage struct {
	uploadCalls int
	uploadedKey string
	url         string
	err         error
}

func (s *stubStorage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.uploadCalls++
	s.uploadedKey = key
	return s.url, s.err
}

type stubMailer struct {
	sendCalls int
	lastTo    string
	err       error
}

func (s *stubMailer) Send(ctx context.Context, to, subject, html string) error {
	s.sendCalls++
	s.lastTo = to
	return s.err
}

func validPaymentInput() PaymentInput {
	return PaymentInput{
		Method:    "bank",
		Type:      "dues",
		Amount:    250,
		Currency:  "SLL",
		Reference: "TRX-100",
	}
}

func TestRegisterUser_RejectsInvalidEmail(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil, nil, Options{})

	_, err := svc.RegisterUser(context.Background(), "not-an-email", "password123", "Foday Kamara")

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != "invalid_email" {
		t.Fatalf("expected invalid_email validation error, got %v", err)
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	_, err := svc.RegisterUser(context.Background(), "user@mdpu.org", "password123", "Foday Kamara")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	repo := &stubRepo{
		getUser: &model.User{
			ID:           1,
			Email:        "user@mdpu.org",
			PasswordHash: hash,
			Role:         model.RoleMember,
		},
	}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	_, err = svc.AuthenticateUser(context.Background(), "user@mdpu.org", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUser_UnknownUser(t *testing.T) {
	repo := &stubRepo{
		getUserErr: repository.ErrUserNotFound,
	}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	_, err := svc.AuthenticateUser(context.Background(), "ghost@mdpu.org", "whatever123")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestBootstrapAdmin_KeyUnset(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	err := svc.BootstrapAdmin(context.Background(), "chair@mdpu.org", "any-key")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if repo.setRoleCalled {
		t.Fatalf("role must not be changed when init key is unset")
	}
}

func TestBootstrapAdmin_KeyMismatch(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil, nil, nil, Options{AdminInitKey: "real-key"})

	err := svc.BootstrapAdmin(context.Background(), "chair@mdpu.org", "wrong-key")
	if !errors.Is(err, ErrInitKeyMismatch) {
		t.Fatalf("expected ErrInitKeyMismatch, got %v", err)
	}
	if repo.setRoleCalled {
		t.Fatalf("role must not be changed on key mismatch")
	}
}

func TestBootstrapAdmin_AllowListEnforced(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil, nil, nil, Options{
		AdminInitKey: "real-key",
		AdminEmails:  []string{"chair@mdpu.org"},
	})

	err := svc.BootstrapAdmin(context.Background(), "impostor@mdpu.org", "real-key")
	if !errors.Is(err, ErrEmailNotAllowed) {
		t.Fatalf("expected ErrEmailNotAllowed, got %v", err)
	}

	if err := svc.BootstrapAdmin(context.Background(), "Chair@MDPU.org", "real-key"); err != nil {
		t.Fatalf("allow-listed email rejected: %v", err)
	}
	if !repo.setRoleCalled {
		t.Fatalf("expected role change for allow-listed email")
	}
}

func TestSubmitApplication_RequiresFullName(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil, nil, Options{})

	_, err := svc.SubmitApplication(context.Background(), 1, ApplicationInput{Email: "a@b.c"})

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != "missing_full_name" {
		t.Fatalf("expected missing_full_name validation error, got %v", err)
	}
}

func TestGetApplication(t *testing.T) {
	repo := &stubRepo{
		getApp: &model.Application{ID: 7, FullName: "Foday Kamara", Status: model.ApplicationStatusPending},
	}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	app, err := svc.GetApplication(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetApplication error: %v", err)
	}
	if app.ID != 7 {
		t.Fatalf("application id = %d, want 7", app.ID)
	}

	repo.getApp = nil
	repo.getAppErr = repository.ErrApplicationNotFound
	if _, err := svc.GetApplication(context.Background(), 999); !errors.Is(err, repository.ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}
}

func TestApproveApplication_Passthrough(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{
		decideResp: &model.Application{
			ID:        7,
			UserID:    3,
			FullName:  "Foday Kamara",
			Status:    model.ApplicationStatusApproved,
			DecidedAt: &now,
		},
	}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	app, err := svc.ApproveApplication(context.Background(), 7)
	if err != nil {
		t.Fatalf("ApproveApplication error: %v", err)
	}
	if app.Status != model.ApplicationStatusApproved {
		t.Fatalf("status = %q, want approved", app.Status)
	}
}

func TestApproveApplication_AlreadyDecided(t *testing.T) {
	repo := &stubRepo{
		decideErr: repository.ErrAlreadyDecided,
	}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	_, err := svc.ApproveApplication(context.Background(), 7)
	if !errors.Is(err, repository.ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestSubmitPayment_InvalidMethodNoPersist(t *testing.T) {
	repo := &stubRepo{}
	store := &stubStorage{}
	svc := NewService(repo, store, nil, nil, nil, Options{})

	in := validPaymentInput()
	in.Method = "paypal"

	_, err := svc.SubmitPayment(context.Background(), 1, in, nil)

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != "invalid_method" {
		t.Fatalf("expected invalid_method validation error, got %v", err)
	}
	if repo.createPaymentCalls != 0 {
		t.Fatalf("payment must not be persisted on invalid method")
	}
	if store.uploadCalls != 0 {
		t.Fatalf("evidence must not be uploaded on invalid method")
	}
}

func TestSubmitPayment_NonPositiveAmountNoPersist(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	in := validPaymentInput()
	in.Amount = 0

	_, err := svc.SubmitPayment(context.Background(), 1, in, nil)

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != "invalid_amount" {
		t.Fatalf("expected invalid_amount validation error, got %v", err)
	}
	if repo.createPaymentCalls != 0 {
		t.Fatalf("payment must not be persisted on non-positive amount")
	}
}

func TestSubmitPayment_OversizedEvidenceRejectedBeforeUpload(t *testing.T) {
	repo := &stubRepo{}
	store := &stubStorage{}
	svc := NewService(repo, store, nil, nil, nil, Options{})

	evidence := &EvidenceFile{
		Name:        "slip.jpg",
		ContentType: "image/jpeg",
		Data:        make([]byte, 5<<20+1),
	}

	_, err := svc.SubmitPayment(context.Background(), 1, validPaymentInput(), evidence)

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != "file_too_large" {
		t.Fatalf("expected file_too_large validation error, got %v", err)
	}
	if store.uploadCalls != 0 {
		t.Fatalf("oversized evidence must be rejected before any storage write")
	}
	if repo.createPaymentCalls != 0 {
		t.Fatalf("payment must not be persisted with oversized evidence")
	}
}

func TestSubmitPayment_DisallowedMIMERejectedBeforeUpload(t *testing.T) {
	repo := &stubRepo{}
	store := &stubStorage{}
	svc := NewService(repo, store, nil, nil, nil, Options{})

	evidence := &EvidenceFile{
		Name:        "slip.gif",
		ContentType: "image/gif",
		Data:        []byte("gif bytes"),
	}

	_, err := svc.SubmitPayment(context.Background(), 1, validPaymentInput(), evidence)

	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Code != "invalid_file_type" {
		t.Fatalf("expected invalid_file_type validation error, got %v", err)
	}
	if store.uploadCalls != 0 {
		t.Fatalf("disallowed evidence must be rejected before any storage write")
	}
}

func TestSubmitPayment_UploadsEvidenceAndPersists(t *testing.T) {
	repo := &stubRepo{createPaymentID: 11}
	store := &stubStorage{url: "https://bucket.example.com/payments/1/slip.jpg"}
	svc := NewService(repo, store, nil, nil, nil, Options{})

	evidence := &EvidenceFile{
		Name:        "slip.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpeg bytes"),
	}

	id, err := svc.SubmitPayment(context.Background(), 1, validPaymentInput(), evidence)
	if err != nil {
		t.Fatalf("SubmitPayment error: %v", err)
	}
	if id != 11 {
		t.Fatalf("payment id = %d, want 11", id)
	}
	if store.uploadCalls != 1 {
		t.Fatalf("upload calls = %d, want 1", store.uploadCalls)
	}
	if repo.lastPayment.EvidenceURL != store.url {
		t.Fatalf("evidence url = %q, want %q", repo.lastPayment.EvidenceURL, store.url)
	}
	if repo.lastPayment.Currency != "SLL" {
		t.Fatalf("currency = %q, want SLL", repo.lastPayment.Currency)
	}
}

func TestSubmitPayment_EvidenceWithoutStorageConfigured(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil, nil, nil, Options{})

	evidence := &EvidenceFile{
		Name:        "slip.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpeg bytes"),
	}

	_, err := svc.SubmitPayment(context.Background(), 1, validPaymentInput(), evidence)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if repo.createPaymentCalls != 0 {
		t.Fatalf("payment must not be persisted without storage")
	}
}

func TestGetPaymentInstructions(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil, nil, Options{})

	ins, err := svc.GetPaymentInstructions("orange")
	if err != nil {
		t.Fatalf("GetPaymentInstructions error: %v", err)
	}
	if ins.Method != "orange" || len(ins.Steps) == 0 {
		t.Fatalf("unexpected instructions: %+v", ins)
	}

	if _, err := svc.GetPaymentInstructions("cash"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}

func TestCreateCheckoutSession_NotConfigured(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil, nil, Options{})

	_, err := svc.CreateCheckoutSession(context.Background(), "user@mdpu.org", "dues")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendApprovalEmail_MailerFailure(t *testing.T) {
	mail := &stubMailer{err: errors.New("connection refused")}
	svc := NewService(&stubRepo{}, nil, mail, nil, nil, Options{})

	err := svc.SendApprovalEmail(context.Background(), "user@mdpu.org", "Foday")
	if !errors.Is(err, ErrMailFailed) {
		t.Fatalf("expected ErrMailFailed, got %v", err)
	}
}

func TestSendApprovalEmail_NoMailer(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil, nil, Options{})

	err := svc.SendApprovalEmail(context.Background(), "user@mdpu.org", "Foday")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
