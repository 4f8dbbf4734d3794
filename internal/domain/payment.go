package domain

import (
	"fmt"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrInvalidRequest, s)
}

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodDebitCard    PaymentMethod = "DEBIT_CARD"
	PaymentMethodPayPal       PaymentMethod = "PAYPAL"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCash         PaymentMethod = "CASH"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentMethodCard, PaymentMethodDebitCard, PaymentMethodPayPal, PaymentMethodBankTransfer, PaymentMethodCash:
		return m, nil
	case "CREDIT_CARD":
		return PaymentMethodCard, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidRequest, s)
}

type Payment struct {
	ID               int64
	BookingID        int64
	Amount           float64
	Method           PaymentMethod
	Status           PaymentStatus
	PaymentReference string
	PaymentDate      time.Time
	UpdatedAt        time.Time
}
