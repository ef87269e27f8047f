package port

import (
	"context"

	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
)

//go:generate mockgen -source=service.go -destination=mock/service.go -package=mock

type Service interface {
	// ConfirmPayment drives the whole confirmation pipeline for one
	// gateway delivery: idempotency guard, order transition,
	// settlement creation, audit record.
	ConfirmPayment(ctx context.Context, confirmation *domain.PaymentConfirmation) (*domain.ConfirmationResult, error)

	// ReconcileUnsettled retries settlement creation for orders left
	// paid-but-unsettled by a partial failure. Returns how many
	// settlements it recovered.
	ReconcileUnsettled(ctx context.Context) (int, error)
}
