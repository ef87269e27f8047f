package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/config"
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/storage"
	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/storage/repository"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres when TEST_DATABASE_URI is set,
// otherwise skips. The uniqueness races below are the properties the
// mock-based service tests cannot prove.
func testRepo(t *testing.T) (*repository.Repository, *storage.DB) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URI")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URI is not set")
	}

	db, err := storage.NewDBStorage(context.Background(), &config.Database{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	repo, err := repository.NewRepository(db)
	require.NoError(t, err)
	return repo, db
}

func insertOrder(t *testing.T, db *storage.DB, number domain.OrderNumber) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO orders (number, amount, status) VALUES ($1, $2, $3)`,
		number, decimal.MustParse("50000"), domain.OrderStatusAwaitingPayment)
	require.NoError(t, err)
}

func TestRepository_MarkOrderPaidOnce(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()

	number := domain.OrderNumber(fmt.Sprintf("ORD-%s", uuid.NewString()))
	insertOrder(t, db, number)
	paidAt := time.Now().UTC().Truncate(time.Second)

	order, err := repo.MarkOrderPaid(ctx, number, "PK-"+string(number), paidAt)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAwaitingShipment, order.Status)
	require.NotNil(t, order.PaymentRef)
	assert.Equal(t, "PK-"+string(number), *order.PaymentRef)

	// Second transition attempt must lose to the stamped reference.
	_, err = repo.MarkOrderPaid(ctx, number, "PK-other", paidAt)
	assert.ErrorIs(t, err, domain.ErrConflictingData)

	stored, err := repo.ReadOrder(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, "PK-"+string(number), *stored.PaymentRef)
}

func TestRepository_ConcurrentDuplicateConfirmations(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()

	number := domain.OrderNumber(fmt.Sprintf("ORD-%s", uuid.NewString()))
	insertOrder(t, db, number)
	ref := "PK-" + string(number)
	paidAt := time.Now().UTC().Truncate(time.Second)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.MarkOrderPaid(ctx, number, ref, paidAt)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrConflictingData):
				losses++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, losses)
}

func TestRepository_SettlementUniquePerOrder(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()

	number := domain.OrderNumber(fmt.Sprintf("ORD-%s", uuid.NewString()))
	insertOrder(t, db, number)

	settlement := &domain.Settlement{
		ID:           uuid.NewString(),
		OrderNumber:  number,
		GrossAmount:  decimal.MustParse("50000"),
		PayoutAmount: decimal.MustParse("45000"),
		Status:       domain.SettlementStatusPending,
		PayoutDate:   time.Now().UTC().AddDate(0, 0, 7),
	}

	_, err := repo.CreateSettlement(ctx, settlement)
	require.NoError(t, err)

	dup := *settlement
	dup.ID = uuid.NewString()
	_, err = repo.CreateSettlement(ctx, &dup)
	assert.ErrorIs(t, err, domain.ErrConflictingData)

	stored, err := repo.ReadSettlementByOrder(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, settlement.ID, stored.ID)
}

func TestRepository_ListUnsettledPaidOrders(t *testing.T) {
	repo, db := testRepo(t)
	ctx := context.Background()

	number := domain.OrderNumber(fmt.Sprintf("ORD-%s", uuid.NewString()))
	insertOrder(t, db, number)
	paidAt := time.Now().UTC().Truncate(time.Second)

	_, err := repo.MarkOrderPaid(ctx, number, "PK-"+string(number), paidAt)
	require.NoError(t, err)

	orders, err := repo.ListUnsettledPaidOrders(ctx, 1000)
	require.NoError(t, err)

	found := false
	for _, o := range orders {
		if o.Number == number {
			found = true
		}
	}
	assert.True(t, found, "paid order without settlement should be listed")

	_, err = repo.CreateSettlement(ctx, &domain.Settlement{
		ID:           uuid.NewString(),
		OrderNumber:  number,
		GrossAmount:  decimal.MustParse("50000"),
		PayoutAmount: decimal.MustParse("45000"),
		Status:       domain.SettlementStatusPending,
		PayoutDate:   paidAt.AddDate(0, 0, 7),
	})
	require.NoError(t, err)

	orders, err = repo.ListUnsettledPaidOrders(ctx, 1000)
	require.NoError(t, err)
	for _, o := range orders {
		assert.NotEqual(t, number, o.Number, "settled order must leave the sweep")
	}
}
