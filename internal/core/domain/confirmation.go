package domain

import (
	"time"

	"github.com/govalues/decimal"
)

// EventPaymentStatusChanged is the only gateway event type this
// service acts on. Anything else is acknowledged and dropped.
const EventPaymentStatusChanged = "PAYMENT_STATUS_CHANGED"

// GatewayStatusDone is the terminal "paid" status in gateway payloads.
const GatewayStatusDone = "DONE"

// PaymentConfirmation is a validated gateway notification that an
// order was paid.
type PaymentConfirmation struct {
	OrderNumber OrderNumber
	PaymentRef  string
	ApprovedAt  time.Time
	// Amount is the gateway-reported total. Zero means the gateway
	// omitted it and the order's recorded amount is used instead.
	Amount decimal.Decimal
	Method string
}

// ConfirmationResult reports what a confirmation produced. PaymentID
// is nil when the audit write failed; the settlement is always there.
type ConfirmationResult struct {
	OrderNumber  OrderNumber
	SettlementID string
	PaymentID    *string
	// Replayed marks a duplicate delivery that was answered from
	// previously persisted records.
	Replayed bool
}
