package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_type, course_id, amount, currency, status, transaction_id, start_at, end_at, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, qx any, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_type, course_id, amount, currency, status, transaction_id, start_at, end_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  status=$7, transaction_id=$8, updated_at=$12;`

	_, err := execSQL(ctx, r.pool, qx, q, s.ID, s.UserID, s.PlanType, s.CourseID, s.Amount, s.Currency, s.Status, s.TransactionID, s.StartAt, s.EndAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanType, &s.CourseID, &s.Amount, &s.Currency, &s.Status, &s.TransactionID, &s.StartAt, &s.EndAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, qx any, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindByTransactionID(ctx context.Context, qx any, transactionID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE transaction_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, transactionID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, qx any, userID string) ([]*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, qx, q, userID)
}

func (r *subscriptionRepo) FindActiveByUserAndPlan(ctx context.Context, qx any, userID string, plan model.PlanType) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1 AND plan_type=$2 AND status='active' AND end_at > NOW() LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, userID, plan)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) ExpireDue(ctx context.Context, qx any, now time.Time) (int64, error) {
	const q = `UPDATE subscriptions SET status='expired', updated_at=NOW() WHERE status='active' AND end_at <= $1;`
	cmd, err := execSQL(ctx, r.pool, qx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}

func (r *subscriptionRepo) ListPendingOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, qx, q, olderThan, limit)
}

func (r *subscriptionRepo) Delete(ctx context.Context, qx any, id string) error {
	const q = `DELETE FROM subscriptions WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) ListAll(ctx context.Context, qx any, limit, offset int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	return r.list(ctx, qx, q, limit, offset)
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, qx any) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, qx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status model.SubscriptionStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[status] = count
	}
	return out, nil
}

func (r *subscriptionRepo) list(ctx context.Context, qx any, q string, args ...interface{}) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, qx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
