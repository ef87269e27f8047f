package port

import (
	"context"

	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
)

//go:generate mockgen -source=cache.go -destination=mock/cache.go -package=mock

// ReplayCache is a fast-path lookup for already processed payment
// references. It is an optimization only: misses and failures fall
// through to the repository, whose unique constraints stay the
// source of truth for at-most-once effect.
type ReplayCache interface {
	Remember(ctx context.Context, number domain.OrderNumber, ref string, settlementID string) error
	Recall(ctx context.Context, number domain.OrderNumber, ref string) (string, bool, error)
}
