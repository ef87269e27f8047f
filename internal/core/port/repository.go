package port

import (
	"context"
	"time"

	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
)

//go:generate mockgen -source=repository.go -destination=mock/repository.go -package=mock

type Repository interface {
	// Order
	ReadOrder(ctx context.Context, number domain.OrderNumber) (*domain.Order, error)
	// MarkOrderPaid performs the single post-payment transition:
	// status, payment reference and paid timestamp in one write,
	// guarded by the reference still being unset. A lost race
	// surfaces as domain.ErrConflictingData.
	MarkOrderPaid(ctx context.Context, number domain.OrderNumber, ref string, paidAt time.Time) (*domain.Order, error)
	ListUnsettledPaidOrders(ctx context.Context, limit int) ([]*domain.Order, error)

	// Settlement
	CreateSettlement(ctx context.Context, settlement *domain.Settlement) (*domain.Settlement, error)
	ReadSettlementByOrder(ctx context.Context, number domain.OrderNumber) (*domain.Settlement, error)

	// Payment
	CreatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	ReadPaymentByRef(ctx context.Context, ref string) (*domain.Payment, error)
}
