package domain

import (
	"time"

	"github.com/govalues/decimal"
)

type PaymentStatus string

const PaymentStatusPaid PaymentStatus = "PAID"

// Payment is the audit record of a gateway confirmation. It is
// best-effort: order and settlement consistency never depends on it.
type Payment struct {
	ID           string
	OrderNumber  OrderNumber
	SettlementID string
	Method       string
	Amount       decimal.Decimal
	PaymentRef   string
	Status       PaymentStatus
	PaidAt       time.Time
}
