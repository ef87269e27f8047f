package domain

import (
	"time"

	"github.com/govalues/decimal"
)

type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusCompleted SettlementStatus = "COMPLETED"
)

// Settlement is the seller payout computed for a paid order.
// Exactly one settlement exists per order.
type Settlement struct {
	ID           string
	OrderNumber  OrderNumber
	GrossAmount  decimal.Decimal
	PayoutAmount decimal.Decimal
	Status       SettlementStatus
	PayoutDate   time.Time
	CreatedAt    time.Time
}

// SettlementPolicy holds the commission and payout schedule terms.
// Callers pass it explicitly; the calculator reads no ambient state.
type SettlementPolicy struct {
	CommissionRate  decimal.Decimal
	PayoutDelayDays int
}

// CalculateSettlement derives the payout for an order paid at paidAt.
// Pure function: payout = gross - round(gross * rate, 2), payout date
// is the payment date shifted by the policy's delay.
func CalculateSettlement(gross decimal.Decimal, paidAt time.Time, policy SettlementPolicy) (*Settlement, error) {
	commission, err := gross.Mul(policy.CommissionRate)
	if err != nil {
		return nil, err
	}
	commission = commission.Round(2)

	payout, err := gross.Sub(commission)
	if err != nil {
		return nil, err
	}

	payoutDate := paidAt.UTC().AddDate(0, 0, policy.PayoutDelayDays)
	payoutDate = time.Date(payoutDate.Year(), payoutDate.Month(), payoutDate.Day(), 0, 0, 0, 0, time.UTC)

	return &Settlement{
		GrossAmount:  gross,
		PayoutAmount: payout,
		Status:       SettlementStatusPending,
		PayoutDate:   payoutDate,
	}, nil
}
