// Package model содержит доменные сущности сервиса членства MDPU.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// User представляет зарегистрированного пользователя.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// ApplicationStatus описывает статус заявки на членство.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Application описывает заявку на членство, ожидающую решения администратора.
type Application struct {
	ID        int64
	UserID    int64
	FullName  string
	Email     string
	Phone     string
	Chapter   string
	Note      string
	Status    ApplicationStatus
	CreatedAt time.Time
	DecidedAt *time.Time
}

// Profile — приватная административная запись одобренного участника.
// Накопительные суммы взносов хранятся в центах и обновляются
// внешним процессом верификации платежей.
type Profile struct {
	UserID              int64
	FullName            string
	Email               string
	Phone               string
	Chapter             string
	MemberRole          string
	Bio                 string
	DuesTotalCents      int64
	DonationsTotalCents int64
	CreatedAt           time.Time
}

// Member — публичная проекция профиля без контактных данных.
type Member struct {
	UserID     int64
	FullName   string
	Chapter    string
	MemberRole string
	Bio        string
	JoinedAt   time.Time
}

// PaymentMethod описывает способ оплаты.
type PaymentMethod string

const (
	PaymentMethodBank      PaymentMethod = "bank"
	PaymentMethodOrange    PaymentMethod = "orange"
	PaymentMethodAfrimoney PaymentMethod = "afrimoney"
)

// PaymentType описывает назначение платежа.
type PaymentType string

const (
	PaymentTypeDues     PaymentType = "dues"
	PaymentTypeDonation PaymentType = "donation"
)

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusVerified  PaymentStatus = "verified"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusRejected  PaymentStatus = "rejected"
)

// Payment описывает заявленный взнос, ожидающий верификации.
type Payment struct {
	ID          int64
	UserID      int64
	Method      PaymentMethod
	Type        PaymentType
	Amount      float64
	Currency    string
	Reference   string
	PayerPhone  string
	EvidenceURL string
	Status      PaymentStatus
	CreatedAt   time.Time
}

// MonthlyReport — агрегат верифицированных платежей за один календарный месяц.
// Ключом служит период в формате YYYY-MM.
type MonthlyReport struct {
	Period       string             `json:"period"`
	TotalUSD     float64            `json:"total_usd"`
	ByCurrency   map[string]float64 `json:"by_currency"`
	ByMethod     map[string]float64 `json:"by_method"`
	ByType       map[string]float64 `json:"by_type"`
	PaymentCount int                `json:"payment_count"`
	GeneratedAt  time.Time          `json:"generated_at"`
}
