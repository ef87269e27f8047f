package domain

import (
	"time"

	"github.com/govalues/decimal"
)

type OrderStatus string

const (
	OrderStatusAwaitingPayment  OrderStatus = "AWAITING_PAYMENT"
	OrderStatusAwaitingShipment OrderStatus = "AWAITING_SHIPMENT"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusCompleted        OrderStatus = "COMPLETED"
)

// OrderNumber is the externally visible order identifier,
// the one the payment gateway echoes back in webhook payloads.
type OrderNumber string

type Order struct {
	ID         uint64
	Number     OrderNumber
	Amount     decimal.Decimal
	Status     OrderStatus
	PaymentRef *string
	PaidAt     *time.Time
	CreatedAt  time.Time
}

// PaidWith reports whether the order already carries the given
// payment reference, i.e. the confirmation is a re-delivery.
func (o *Order) PaidWith(ref string) bool {
	return o.PaymentRef != nil && *o.PaymentRef == ref
}
