// Package validation содержит проверки входных данных платежей.
package validation

import "github.com/mdpu/membership-system/internal/model"

// MaxEvidenceSize — максимальный размер файла-подтверждения платежа.
const MaxEvidenceSize = 5 << 20

var allowedMethods = map[model.PaymentMethod]struct{}{
	model.PaymentMethodBank:      {},
	model.PaymentMethodOrange:    {},
	model.PaymentMethodAfrimoney: {},
}

var allowedTypes = map[model.PaymentType]struct{}{
	model.PaymentTypeDues:     {},
	model.PaymentTypeDonation: {},
}

var allowedEvidenceTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"application/pdf": {},
}

// IsAllowedMethod сообщает, входит ли способ оплаты в разрешённый набор.
func IsAllowedMethod(m model.PaymentMethod) bool {
	_, ok := allowedMethods[m]
	return ok
}

// IsAllowedPaymentType сообщает, входит ли назначение платежа в разрешённый набор.
func IsAllowedPaymentType(t model.PaymentType) bool {
	_, ok := allowedTypes[t]
	return ok
}

// IsAllowedEvidenceType сообщает, разрешён ли MIME-тип файла-подтверждения.
func IsAllowedEvidenceType(contentType string) bool {
	_, ok := allowedEvidenceTypes[contentType]
	return ok
}
