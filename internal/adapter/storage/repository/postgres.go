package repository

import (
	"context"
	"time"

	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/storage"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	orderColumns      = "id, number, amount, status, payment_reference, paid_at, created_at"
	settlementColumns = "id, order_number, gross_amount, payout_amount, status, payout_date, created_at"
	paymentColumns    = "id, order_number, settlement_id, method, amount, payment_reference, status, paid_at"
)

type Repository struct {
	db *storage.DB
}

func NewRepository(db *storage.DB) (*Repository, error) {
	return &Repository{db: db}, nil
}

func (r *Repository) ReadOrder(ctx context.Context, number domain.OrderNumber) (*domain.Order, error) {
	statement := r.db.QueryBuilder.
		Select(orderColumns).
		From("orders").
		Where(sq.Eq{"number": number})

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	return scanOrder(r.db.QueryRow(ctx, sql, args...))
}

// MarkOrderPaid is the single post-payment write: one conditional
// UPDATE guarded by the reference still being unset. A concurrent
// duplicate that already claimed the row comes back as
// ErrConflictingData so the caller can fall into the replay path.
func (r *Repository) MarkOrderPaid(ctx context.Context, number domain.OrderNumber, ref string, paidAt time.Time) (*domain.Order, error) {
	statement := r.db.QueryBuilder.
		Update("orders").
		Set("status", domain.OrderStatusAwaitingShipment).
		Set("payment_reference", ref).
		Set("paid_at", paidAt).
		Where(sq.Eq{"number": number}).
		Where("payment_reference IS NULL").
		Suffix("RETURNING " + orderColumns)

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	order, err := scanOrder(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		// No row matched: the reference was already claimed.
		if err == domain.ErrDataNotFound {
			return nil, domain.ErrConflictingData
		}
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, domain.ErrConflictingData
		}
		return nil, err
	}
	return order, nil
}

func (r *Repository) ListUnsettledPaidOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	statement := r.db.QueryBuilder.
		Select("o.id, o.number, o.amount, o.status, o.payment_reference, o.paid_at, o.created_at").
		From("orders o").
		LeftJoin("settlements s ON s.order_number = o.number").
		Where("o.payment_reference IS NOT NULL").
		Where("s.id IS NULL").
		OrderBy("o.paid_at").
		Limit(uint64(limit))

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*domain.Order, 0)
	for rows.Next() {
		order := domain.Order{}
		err := rows.Scan(
			&order.ID,
			&order.Number,
			&order.Amount,
			&order.Status,
			&order.PaymentRef,
			&order.PaidAt,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		list = append(list, &order)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (r *Repository) CreateSettlement(ctx context.Context, settlement *domain.Settlement) (*domain.Settlement, error) {
	statement := r.db.QueryBuilder.
		Insert("settlements").
		Columns("id", "order_number", "gross_amount", "payout_amount", "status", "payout_date").
		Values(settlement.ID, settlement.OrderNumber, settlement.GrossAmount,
			settlement.PayoutAmount, settlement.Status, settlement.PayoutDate).
		Suffix("RETURNING created_at")

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&settlement.CreatedAt)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, domain.ErrConflictingData
		}
		return nil, err
	}
	return settlement, nil
}

func (r *Repository) ReadSettlementByOrder(ctx context.Context, number domain.OrderNumber) (*domain.Settlement, error) {
	statement := r.db.QueryBuilder.
		Select(settlementColumns).
		From("settlements").
		Where(sq.Eq{"order_number": number})

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	settlement := domain.Settlement{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&settlement.ID,
		&settlement.OrderNumber,
		&settlement.GrossAmount,
		&settlement.PayoutAmount,
		&settlement.Status,
		&settlement.PayoutDate,
		&settlement.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrDataNotFound
		}
		return nil, err
	}

	return &settlement, nil
}

func (r *Repository) CreatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	statement := r.db.QueryBuilder.
		Insert("payments").
		Columns("id", "order_number", "settlement_id", "method", "amount", "payment_reference", "status", "paid_at").
		Values(payment.ID, payment.OrderNumber, payment.SettlementID, payment.Method,
			payment.Amount, payment.PaymentRef, payment.Status, payment.PaidAt)

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	_, err = r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, domain.ErrConflictingData
		}
		return nil, err
	}
	return payment, nil
}

func (r *Repository) ReadPaymentByRef(ctx context.Context, ref string) (*domain.Payment, error) {
	statement := r.db.QueryBuilder.
		Select(paymentColumns).
		From("payments").
		Where(sq.Eq{"payment_reference": ref})

	sql, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	payment := domain.Payment{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&payment.ID,
		&payment.OrderNumber,
		&payment.SettlementID,
		&payment.Method,
		&payment.Amount,
		&payment.PaymentRef,
		&payment.Status,
		&payment.PaidAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrDataNotFound
		}
		return nil, err
	}

	return &payment, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	order := domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.Number,
		&order.Amount,
		&order.Status,
		&order.PaymentRef,
		&order.PaidAt,
		&order.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrDataNotFound
		}
		return nil, err
	}
	return &order, nil
}
