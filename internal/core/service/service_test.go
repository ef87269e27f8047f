package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/port/mock"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/service"
	"github.com/golang/mock/gomock"
	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type prepareMocks func(repo *mock.MockRepository)

var testPolicy = domain.SettlementPolicy{
	CommissionRate:  decimal.MustParse("0.10"),
	PayoutDelayDays: 7,
}

const (
	orderNumber = domain.OrderNumber("ORD-1")
	paymentRef  = "PK-100"
)

var approvedAt = time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)

func unpaidOrder() *domain.Order {
	return &domain.Order{
		ID:     1,
		Number: orderNumber,
		Amount: decimal.MustParse("50000"),
		Status: domain.OrderStatusAwaitingPayment,
	}
}

func paidOrder() *domain.Order {
	ref := paymentRef
	paidAt := approvedAt
	order := unpaidOrder()
	order.Status = domain.OrderStatusAwaitingShipment
	order.PaymentRef = &ref
	order.PaidAt = &paidAt
	return order
}

func storedSettlement() *domain.Settlement {
	return &domain.Settlement{
		ID:           "st-1",
		OrderNumber:  orderNumber,
		GrossAmount:  decimal.MustParse("50000"),
		PayoutAmount: decimal.MustParse("45000"),
		Status:       domain.SettlementStatusPending,
		PayoutDate:   time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC),
	}
}

func confirmation() *domain.PaymentConfirmation {
	return &domain.PaymentConfirmation{
		OrderNumber: orderNumber,
		PaymentRef:  paymentRef,
		ApprovedAt:  approvedAt,
		Method:      "CARD",
	}
}

func passSettlement(_ context.Context, s *domain.Settlement) (*domain.Settlement, error) {
	return s, nil
}

func TestService_ConfirmPayment(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	logger, _ := zap.NewProduction()
	storeDown := errors.New("connection refused")

	tests := []struct {
		name     string
		conf     *domain.PaymentConfirmation
		mock     prepareMocks
		expError error
		verify   func(t *testing.T, result *domain.ConfirmationResult)
	}{
		{
			name: "first confirmation settles the order",
			conf: confirmation(),
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(unpaidOrder(), nil)
				repo.EXPECT().MarkOrderPaid(gomock.Any(), orderNumber, paymentRef, approvedAt).
					Return(paidOrder(), nil)
				repo.EXPECT().CreateSettlement(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, s *domain.Settlement) (*domain.Settlement, error) {
						assert.Zero(t, s.PayoutAmount.Cmp(decimal.MustParse("45000")))
						assert.Equal(t, domain.SettlementStatusPending, s.Status)
						return s, nil
					})
				repo.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
						assert.Equal(t, paymentRef, p.PaymentRef)
						assert.Equal(t, domain.PaymentStatusPaid, p.Status)
						return p, nil
					})
			},
			verify: func(t *testing.T, result *domain.ConfirmationResult) {
				assert.NotEmpty(t, result.SettlementID)
				assert.NotNil(t, result.PaymentID)
				assert.False(t, result.Replayed)
			},
		},
		{
			name: "duplicate delivery replays stored records",
			conf: confirmation(),
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(paidOrder(), nil)
				repo.EXPECT().ReadSettlementByOrder(gomock.Any(), orderNumber).
					Return(storedSettlement(), nil)
				repo.EXPECT().ReadPaymentByRef(gomock.Any(), paymentRef).
					Return(&domain.Payment{ID: "pay-1"}, nil)
			},
			verify: func(t *testing.T, result *domain.ConfirmationResult) {
				assert.Equal(t, "st-1", result.SettlementID)
				assert.Equal(t, "pay-1", *result.PaymentID)
				assert.True(t, result.Replayed)
			},
		},
		{
			name: "different reference on paid order is an anomaly",
			conf: &domain.PaymentConfirmation{
				OrderNumber: orderNumber,
				PaymentRef:  "PK-999",
				ApprovedAt:  approvedAt,
			},
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(paidOrder(), nil)
			},
			expError: domain.ErrPaymentRefMismatch,
		},
		{
			name: "unknown order",
			conf: confirmation(),
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).
					Return(nil, domain.ErrDataNotFound)
			},
			expError: domain.ErrDataNotFound,
		},
		{
			name: "settlement write failure after transition is surfaced distinctly",
			conf: confirmation(),
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(unpaidOrder(), nil)
				repo.EXPECT().MarkOrderPaid(gomock.Any(), orderNumber, paymentRef, approvedAt).
					Return(paidOrder(), nil)
				repo.EXPECT().CreateSettlement(gomock.Any(), gomock.Any()).
					Return(nil, storeDown)
				// No payment write: the pipeline stops on the fatal error.
			},
			expError: domain.ErrSettlementNotRecorded,
		},
		{
			name: "audit write failure does not fail the pipeline",
			conf: confirmation(),
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(unpaidOrder(), nil)
				repo.EXPECT().MarkOrderPaid(gomock.Any(), orderNumber, paymentRef, approvedAt).
					Return(paidOrder(), nil)
				repo.EXPECT().CreateSettlement(gomock.Any(), gomock.Any()).DoAndReturn(passSettlement)
				repo.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
					Return(nil, storeDown)
			},
			verify: func(t *testing.T, result *domain.ConfirmationResult) {
				assert.NotEmpty(t, result.SettlementID)
				assert.Nil(t, result.PaymentID)
			},
		},
		{
			name: "losing the transition race falls back to replay",
			conf: confirmation(),
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(unpaidOrder(), nil)
				repo.EXPECT().MarkOrderPaid(gomock.Any(), orderNumber, paymentRef, approvedAt).
					Return(nil, domain.ErrConflictingData)
				// The guard runs again on the stored row before the
				// winner's records answer the delivery.
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(paidOrder(), nil)
				repo.EXPECT().ReadSettlementByOrder(gomock.Any(), orderNumber).
					Return(storedSettlement(), nil)
				repo.EXPECT().ReadPaymentByRef(gomock.Any(), paymentRef).
					Return(nil, domain.ErrDataNotFound)
			},
			verify: func(t *testing.T, result *domain.ConfirmationResult) {
				assert.Equal(t, "st-1", result.SettlementID)
				assert.Nil(t, result.PaymentID)
				assert.True(t, result.Replayed)
			},
		},
		{
			name: "race loser with a different reference is an anomaly",
			conf: &domain.PaymentConfirmation{
				OrderNumber: orderNumber,
				PaymentRef:  "PK-999",
				ApprovedAt:  approvedAt,
			},
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(unpaidOrder(), nil)
				repo.EXPECT().MarkOrderPaid(gomock.Any(), orderNumber, "PK-999", approvedAt).
					Return(nil, domain.ErrConflictingData)
				// The winner stamped PK-100; PK-999 must never be
				// answered with the winner's settlement.
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(paidOrder(), nil)
			},
			expError: domain.ErrPaymentRefMismatch,
		},
		{
			name: "concurrent settlement insert conflict replays the winner",
			conf: confirmation(),
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(unpaidOrder(), nil)
				repo.EXPECT().MarkOrderPaid(gomock.Any(), orderNumber, paymentRef, approvedAt).
					Return(paidOrder(), nil)
				repo.EXPECT().CreateSettlement(gomock.Any(), gomock.Any()).
					Return(nil, domain.ErrConflictingData)
				repo.EXPECT().ReadSettlementByOrder(gomock.Any(), orderNumber).
					Return(storedSettlement(), nil)
				repo.EXPECT().ReadPaymentByRef(gomock.Any(), paymentRef).
					Return(nil, domain.ErrDataNotFound)
			},
			verify: func(t *testing.T, result *domain.ConfirmationResult) {
				assert.Equal(t, "st-1", result.SettlementID)
				assert.True(t, result.Replayed)
			},
		},
		{
			name: "replay on paid order without settlement reports the anomaly",
			conf: confirmation(),
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(paidOrder(), nil)
				repo.EXPECT().ReadSettlementByOrder(gomock.Any(), orderNumber).
					Return(nil, domain.ErrDataNotFound)
			},
			expError: domain.ErrSettlementNotRecorded,
		},
		{
			name: "gateway amount drives settlement math",
			conf: &domain.PaymentConfirmation{
				OrderNumber: orderNumber,
				PaymentRef:  paymentRef,
				ApprovedAt:  approvedAt,
				Amount:      decimal.MustParse("60000"),
			},
			mock: func(repo *mock.MockRepository) {
				repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(unpaidOrder(), nil)
				repo.EXPECT().MarkOrderPaid(gomock.Any(), orderNumber, paymentRef, approvedAt).
					Return(paidOrder(), nil)
				repo.EXPECT().CreateSettlement(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, s *domain.Settlement) (*domain.Settlement, error) {
						assert.Zero(t, s.GrossAmount.Cmp(decimal.MustParse("60000")))
						assert.Zero(t, s.PayoutAmount.Cmp(decimal.MustParse("54000")))
						return s, nil
					})
				repo.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
						return p, nil
					})
			},
			verify: func(t *testing.T, result *domain.ConfirmationResult) {
				assert.NotEmpty(t, result.SettlementID)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			repo := mock.NewMockRepository(mockCtrl)
			test.mock(repo)

			s, err := service.NewService(repo, nil, testPolicy, logger)
			assert.NoError(t, err)

			result, err := s.ConfirmPayment(context.Background(), test.conf)

			if test.expError != nil {
				assert.ErrorIs(t, err, test.expError)
				assert.Nil(t, result)
				return
			}
			assert.NoError(t, err)
			if assert.NotNil(t, result) {
				test.verify(t, result)
			}
		})
	}
}

func TestService_ConfirmPaymentCacheFastPath(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	logger, _ := zap.NewProduction()

	repo := mock.NewMockRepository(mockCtrl)
	replayCache := mock.NewMockReplayCache(mockCtrl)

	// A cache hit answers without touching the order row.
	replayCache.EXPECT().Recall(gomock.Any(), orderNumber, paymentRef).
		Return("st-1", true, nil)
	repo.EXPECT().ReadSettlementByOrder(gomock.Any(), orderNumber).
		Return(storedSettlement(), nil)
	repo.EXPECT().ReadPaymentByRef(gomock.Any(), paymentRef).
		Return(&domain.Payment{ID: "pay-1"}, nil)
	replayCache.EXPECT().Remember(gomock.Any(), orderNumber, paymentRef, "st-1").
		Return(nil)

	s, err := service.NewService(repo, replayCache, testPolicy, logger)
	assert.NoError(t, err)

	result, err := s.ConfirmPayment(context.Background(), confirmation())
	assert.NoError(t, err)
	assert.Equal(t, "st-1", result.SettlementID)
	assert.True(t, result.Replayed)
}

func TestService_ConfirmPaymentCacheFailureFallsThrough(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	logger, _ := zap.NewProduction()

	repo := mock.NewMockRepository(mockCtrl)
	replayCache := mock.NewMockReplayCache(mockCtrl)

	replayCache.EXPECT().Recall(gomock.Any(), orderNumber, paymentRef).
		Return("", false, errors.New("redis down"))
	repo.EXPECT().ReadOrder(gomock.Any(), orderNumber).Return(unpaidOrder(), nil)
	repo.EXPECT().MarkOrderPaid(gomock.Any(), orderNumber, paymentRef, approvedAt).
		Return(paidOrder(), nil)
	repo.EXPECT().CreateSettlement(gomock.Any(), gomock.Any()).DoAndReturn(passSettlement)
	repo.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
			return p, nil
		})
	replayCache.EXPECT().Remember(gomock.Any(), orderNumber, paymentRef, gomock.Any()).
		Return(errors.New("redis down"))

	s, err := service.NewService(repo, replayCache, testPolicy, logger)
	assert.NoError(t, err)

	result, err := s.ConfirmPayment(context.Background(), confirmation())
	assert.NoError(t, err)
	assert.False(t, result.Replayed)
}

func TestService_ReconcileUnsettled(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	logger, _ := zap.NewProduction()

	repo := mock.NewMockRepository(mockCtrl)

	healed := paidOrder()
	raced := paidOrder()
	raced.Number = "ORD-2"
	racedRef := "PK-200"
	raced.PaymentRef = &racedRef

	repo.EXPECT().ListUnsettledPaidOrders(gomock.Any(), gomock.Any()).
		Return([]*domain.Order{healed, raced}, nil)
	// The audit row preserved the gateway-reported total, so the
	// healed settlement uses it instead of the order amount.
	repo.EXPECT().ReadPaymentByRef(gomock.Any(), paymentRef).
		Return(&domain.Payment{ID: "pay-1", Amount: decimal.MustParse("60000")}, nil)
	repo.EXPECT().CreateSettlement(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *domain.Settlement) (*domain.Settlement, error) {
			assert.Equal(t, orderNumber, s.OrderNumber)
			assert.Zero(t, s.GrossAmount.Cmp(decimal.MustParse("60000")))
			assert.Zero(t, s.PayoutAmount.Cmp(decimal.MustParse("54000")))
			return s, nil
		})
	// Second order has no audit row and got settled between the
	// listing and the write.
	repo.EXPECT().ReadPaymentByRef(gomock.Any(), racedRef).
		Return(nil, domain.ErrDataNotFound)
	repo.EXPECT().CreateSettlement(gomock.Any(), gomock.Any()).
		Return(nil, domain.ErrConflictingData)

	s, err := service.NewService(repo, nil, testPolicy, logger)
	assert.NoError(t, err)

	recovered, err := s.ReconcileUnsettled(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, recovered)
}
