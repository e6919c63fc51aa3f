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

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, name, is_admin, payment_completed, payment_amount, payment_date, access_courses, access_tests, access_unlimited_ai, ai_token_limit, ai_tokens_used, created_at, updated_at`

func (r *userRepo) Save(ctx context.Context, qx any, u *model.User) error {
	const q = `
INSERT INTO users (
  id, email, name, is_admin, payment_completed, payment_amount, payment_date, access_courses, access_tests, access_unlimited_ai, ai_token_limit, ai_tokens_used, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (id) DO UPDATE SET
  email=$2, name=$3, is_admin=$4, payment_completed=$5, payment_amount=$6, payment_date=$7, access_courses=$8, access_tests=$9, access_unlimited_ai=$10, ai_token_limit=$11, ai_tokens_used=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, qx, q, u.ID, u.Email, u.Name, u.IsAdmin, u.PaymentCompleted, u.PaymentAmount, u.PaymentDate, u.Access.Courses, u.Access.Tests, u.Access.UnlimitedAI, u.Access.AITokenLimit, u.Access.AITokensUsed, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, qx any, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin, &u.PaymentCompleted, &u.PaymentAmount, &u.PaymentDate, &u.Access.Courses, &u.Access.Tests, &u.Access.UnlimitedAI, &u.Access.AITokenLimit, &u.Access.AITokensUsed, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

// MarkPaymentCompleted is a one-shot flag: the guard keeps a replayed webhook
// from overwriting the original amount/date.
func (r *userRepo) MarkPaymentCompleted(ctx context.Context, qx any, id string, amount int64, at time.Time) (bool, error) {
	const q = `UPDATE users SET payment_completed=TRUE, payment_amount=$2, payment_date=$3, updated_at=NOW() WHERE id=$1 AND payment_completed=FALSE;`
	cmd, err := execSQL(ctx, r.pool, qx, q, id, amount, at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *userRepo) UpdateAccess(ctx context.Context, qx any, id string, access model.AccessLevel) error {
	const q = `UPDATE users SET access_courses=$2, access_tests=$3, access_unlimited_ai=$4, ai_token_limit=$5, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, access.Courses, access.Tests, access.UnlimitedAI, access.AITokenLimit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) AddAITokensUsed(ctx context.Context, qx any, id string, tokens int64) error {
	const q = `UPDATE users SET ai_tokens_used=ai_tokens_used+$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, tokens)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
