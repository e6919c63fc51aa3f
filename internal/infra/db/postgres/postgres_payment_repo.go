package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, transaction_id, provider_tx_id, amount, phone_number, currency, purpose, description, status, failure_reason, webhook_received, webhook_attempts, last_webhook_payload, initiated_at, completed_at, updated_at, subscription_id`

func (r *paymentRepo) Save(ctx context.Context, qx any, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, transaction_id, provider_tx_id, amount, phone_number, currency, purpose, description, status, failure_reason, webhook_received, webhook_attempts, last_webhook_payload, initiated_at, completed_at, updated_at, subscription_id
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  provider_tx_id=$4, status=$10, failure_reason=$11, webhook_received=$12, webhook_attempts=$13, last_webhook_payload=$14, completed_at=$16, updated_at=$17, subscription_id=$18;`

	_, err := execSQL(ctx, r.pool, qx, q, p.ID, p.UserID, p.TransactionID, p.ProviderTxID, p.Amount, p.PhoneNumber, p.Currency, p.Purpose, p.Description, p.Status, p.FailureReason, p.WebhookReceived, p.WebhookAttempts, p.LastWebhookPayload, p.InitiatedAt, p.CompletedAt, p.UpdatedAt, p.SubscriptionID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// payments_one_open_per_user_purpose partial unique index
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.UserID, &p.TransactionID, &p.ProviderTxID, &p.Amount, &p.PhoneNumber, &p.Currency, &p.Purpose, &p.Description, &p.Status, &p.FailureReason, &p.WebhookReceived, &p.WebhookAttempts, &p.LastWebhookPayload, &p.InitiatedAt, &p.CompletedAt, &p.UpdatedAt, &p.SubscriptionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, qx any, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByTransactionID(ctx context.Context, qx any, transactionID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, transactionID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindNonTerminalByUserPurpose(ctx context.Context, qx any, userID string, purpose model.PaymentPurpose) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 AND purpose=$2 AND status IN ('pending','processing') ORDER BY initiated_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, userID, purpose)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// UpdateStatusIfNotTerminal applies the status change only when the stored
// state permits it: non-terminal rows may move forward, and success may move
// to refunded. First terminal write wins.
func (r *paymentRepo) UpdateStatusIfNotTerminal(ctx context.Context, qx any, id string, status model.PaymentStatus, providerTxID *string, completedAt *time.Time, failureReason string) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       provider_tx_id = COALESCE($3, provider_tx_id),
       completed_at = COALESCE($4, completed_at),
       failure_reason = CASE WHEN $5 <> '' THEN $5 ELSE failure_reason END,
       updated_at = NOW()
 WHERE id = $1
   AND (status IN ('pending','processing')
        OR (status = 'success' AND $2 = 'refunded'));`

	cmd, err := execSQL(ctx, r.pool, qx, q, id, string(status), providerTxID, completedAt, failureReason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) RecordWebhookAttempt(ctx context.Context, qx any, id string, payload []byte) error {
	const q = `UPDATE payments SET webhook_received=TRUE, webhook_attempts=webhook_attempts+1, last_webhook_payload=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, payload)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListNonTerminalOlderThan(ctx context.Context, qx any, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status IN ('pending','processing') AND initiated_at < $1 ORDER BY initiated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, qx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) SumByPeriod(ctx context.Context, qx any, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payments WHERE status='success' AND completed_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, qx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
