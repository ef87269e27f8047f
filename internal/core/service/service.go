package service

import (
	"context"
	"errors"

	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reconcileBatchSize = 100

type Service struct {
	repo   port.Repository
	cache  port.ReplayCache
	policy domain.SettlementPolicy
	logger *zap.Logger
}

// NewService builds the confirmation pipeline. cache may be nil, in
// which case every delivery goes straight to the repository.
func NewService(repo port.Repository, cache port.ReplayCache,
	policy domain.SettlementPolicy, logger *zap.Logger) (*Service, error) {
	return &Service{
		repo:   repo,
		cache:  cache,
		policy: policy,
		logger: logger,
	}, nil
}

// ConfirmPayment converts one at-least-once gateway delivery into at
// most one order transition and settlement. Duplicate deliveries are
// answered from the records the first one created.
func (s *Service) ConfirmPayment(ctx context.Context, conf *domain.PaymentConfirmation) (*domain.ConfirmationResult, error) {
	if s.cache != nil {
		if _, ok, err := s.cache.Recall(ctx, conf.OrderNumber, conf.PaymentRef); err != nil {
			s.logger.Warn("replay cache recall failed", zap.Error(err))
		} else if ok {
			return s.replay(ctx, conf)
		}
	}

	order, err := s.repo.ReadOrder(ctx, conf.OrderNumber)
	if err != nil {
		if errors.Is(err, domain.ErrDataNotFound) {
			s.logger.Warn("confirmation for unknown order",
				zap.String("order", string(conf.OrderNumber)),
				zap.String("paymentRef", conf.PaymentRef))
			return nil, domain.ErrDataNotFound
		}
		s.logger.Error("read order", zap.Error(err))
		return nil, domain.ErrInternal
	}

	// Idempotency guard.
	if order.PaymentRef != nil {
		if order.PaidWith(conf.PaymentRef) {
			return s.replay(ctx, conf)
		}
		s.logger.Error("payment reference mismatch on paid order",
			zap.String("order", string(order.Number)),
			zap.String("stored", *order.PaymentRef),
			zap.String("incoming", conf.PaymentRef))
		return nil, domain.ErrPaymentRefMismatch
	}

	order, err = s.repo.MarkOrderPaid(ctx, conf.OrderNumber, conf.PaymentRef, conf.ApprovedAt)
	if err != nil {
		if errors.Is(err, domain.ErrConflictingData) {
			// Lost the race against a concurrent writer. The winner
			// may have stamped a different reference, so the guard
			// runs again against the stored row before any replay.
			return s.confirmAgainstStored(ctx, conf)
		}
		s.logger.Error("mark order paid",
			zap.String("order", string(conf.OrderNumber)), zap.Error(err))
		return nil, domain.ErrInternal
	}

	// The gateway-reported total drives the settlement math when
	// present; the order's recorded amount is never overwritten.
	gross := order.Amount
	if !conf.Amount.IsZero() {
		gross = conf.Amount
	}

	settlement, err := domain.CalculateSettlement(gross, conf.ApprovedAt, s.policy)
	if err != nil {
		s.logger.Error("settlement calculation",
			zap.String("order", string(order.Number)), zap.Error(err))
		return nil, domain.ErrInternal
	}
	settlement.ID = uuid.NewString()
	settlement.OrderNumber = order.Number

	settlement, err = s.createSettlement(ctx, settlement)
	if err != nil {
		if errors.Is(err, domain.ErrConflictingData) {
			return s.replay(ctx, conf)
		}
		return nil, err
	}

	result := &domain.ConfirmationResult{
		OrderNumber:  order.Number,
		SettlementID: settlement.ID,
	}

	// Audit record is best-effort: its failure never undoes the
	// order transition or the settlement.
	payment := &domain.Payment{
		ID:           uuid.NewString(),
		OrderNumber:  order.Number,
		SettlementID: settlement.ID,
		Method:       conf.Method,
		Amount:       gross,
		PaymentRef:   conf.PaymentRef,
		Status:       domain.PaymentStatusPaid,
		PaidAt:       conf.ApprovedAt,
	}
	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		s.logger.Warn("payment audit record not written",
			zap.String("order", string(order.Number)),
			zap.String("paymentRef", conf.PaymentRef),
			zap.Error(err))
	} else {
		result.PaymentID = &payment.ID
	}

	s.remember(ctx, conf, settlement.ID)

	confirmationsProcessed.WithLabelValues(outcomeSettled).Inc()
	s.logger.Info("payment confirmed",
		zap.String("order", string(order.Number)),
		zap.String("settlement", settlement.ID))

	return result, nil
}

// confirmAgainstStored re-reads the order after a lost transition
// race and applies the same reference guard as the first read.
// Only a delivery whose reference matches the stored one may be
// answered from the winner's records.
func (s *Service) confirmAgainstStored(ctx context.Context, conf *domain.PaymentConfirmation) (*domain.ConfirmationResult, error) {
	order, err := s.repo.ReadOrder(ctx, conf.OrderNumber)
	if err != nil {
		s.logger.Error("re-read order after transition conflict",
			zap.String("order", string(conf.OrderNumber)), zap.Error(err))
		return nil, domain.ErrInternal
	}

	if order.PaymentRef == nil {
		// The conflict came from the reference being claimed by some
		// other order, not from a duplicate of this one.
		s.logger.Error("transition conflict on unpaid order",
			zap.String("order", string(order.Number)),
			zap.String("paymentRef", conf.PaymentRef))
		return nil, domain.ErrInternal
	}

	if !order.PaidWith(conf.PaymentRef) {
		s.logger.Error("payment reference mismatch on paid order",
			zap.String("order", string(order.Number)),
			zap.String("stored", *order.PaymentRef),
			zap.String("incoming", conf.PaymentRef))
		return nil, domain.ErrPaymentRefMismatch
	}

	return s.replay(ctx, conf)
}

// replay answers a duplicate delivery from persisted records without
// recalculating or writing anything.
func (s *Service) replay(ctx context.Context, conf *domain.PaymentConfirmation) (*domain.ConfirmationResult, error) {
	settlement, err := s.repo.ReadSettlementByOrder(ctx, conf.OrderNumber)
	if err != nil {
		if errors.Is(err, domain.ErrDataNotFound) {
			// Paid order without a settlement: the partial-failure
			// anomaly. Keep answering 5xx so the gateway retries
			// until the reconciler heals the row.
			unsettledAnomalies.Inc()
			s.logger.Error("paid order has no settlement",
				zap.String("order", string(conf.OrderNumber)),
				zap.String("paymentRef", conf.PaymentRef))
			return nil, domain.ErrSettlementNotRecorded
		}
		s.logger.Error("read settlement", zap.Error(err))
		return nil, domain.ErrInternal
	}

	result := &domain.ConfirmationResult{
		OrderNumber:  conf.OrderNumber,
		SettlementID: settlement.ID,
		Replayed:     true,
	}

	payment, err := s.repo.ReadPaymentByRef(ctx, conf.PaymentRef)
	if err == nil {
		result.PaymentID = &payment.ID
	} else if !errors.Is(err, domain.ErrDataNotFound) {
		s.logger.Warn("read payment record", zap.Error(err))
	}

	s.remember(ctx, conf, settlement.ID)

	confirmationsProcessed.WithLabelValues(outcomeReplayed).Inc()
	return result, nil
}

func (s *Service) createSettlement(ctx context.Context, settlement *domain.Settlement) (*domain.Settlement, error) {
	created, err := s.repo.CreateSettlement(ctx, settlement)
	if err != nil {
		if errors.Is(err, domain.ErrConflictingData) {
			return nil, err
		}
		// The order is already marked paid. This is the one failure
		// that breaks the order/settlement 1:1 invariant, so it gets
		// its own error and counter for operational follow-up.
		unsettledAnomalies.Inc()
		s.logger.Error("settlement write failed after order transition",
			zap.String("order", string(settlement.OrderNumber)),
			zap.Error(err))
		return nil, domain.ErrSettlementNotRecorded
	}
	return created, nil
}

func (s *Service) remember(ctx context.Context, conf *domain.PaymentConfirmation, settlementID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Remember(ctx, conf.OrderNumber, conf.PaymentRef, settlementID); err != nil {
		s.logger.Warn("replay cache remember failed", zap.Error(err))
	}
}

// ReconcileUnsettled sweeps orders that were marked paid but never got
// a settlement and retries the settlement write for each.
func (s *Service) ReconcileUnsettled(ctx context.Context) (int, error) {
	orders, err := s.repo.ListUnsettledPaidOrders(ctx, reconcileBatchSize)
	if err != nil {
		s.logger.Error("list unsettled paid orders", zap.Error(err))
		return 0, domain.ErrInternal
	}

	recovered := 0
	for _, order := range orders {
		if order.PaidAt == nil || order.PaymentRef == nil {
			continue
		}

		// The audit row carries the gateway-reported total when it
		// was written; otherwise the order amount stands in, which
		// can differ from what the failed write would have used.
		gross := order.Amount
		payment, err := s.repo.ReadPaymentByRef(ctx, *order.PaymentRef)
		if err == nil {
			gross = payment.Amount
		} else if !errors.Is(err, domain.ErrDataNotFound) {
			s.logger.Warn("read payment record", zap.Error(err))
		}

		settlement, err := domain.CalculateSettlement(gross, *order.PaidAt, s.policy)
		if err != nil {
			s.logger.Error("settlement calculation",
				zap.String("order", string(order.Number)), zap.Error(err))
			continue
		}
		settlement.ID = uuid.NewString()
		settlement.OrderNumber = order.Number

		if _, err := s.repo.CreateSettlement(ctx, settlement); err != nil {
			if errors.Is(err, domain.ErrConflictingData) {
				// Settled in the meantime, nothing to heal.
				continue
			}
			s.logger.Error("reconcile settlement write",
				zap.String("order", string(order.Number)), zap.Error(err))
			continue
		}

		recovered++
		s.logger.Info("recovered settlement for paid order",
			zap.String("order", string(order.Number)),
			zap.String("settlement", settlement.ID))
	}

	return recovered, nil
}
