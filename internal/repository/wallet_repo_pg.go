package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saburov/airfare/internal/domain"
)

type WalletRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	Provision(ctx context.Context, user *domain.User) error
	Debit(ctx context.Context, userID, amountCents int64) (int64, error)
	Credit(ctx context.Context, userID, amountCents int64) (int64, error)
}

type PGWalletRepository struct {
	pool *pgxpool.Pool
}

func NewWalletRepository(pool *pgxpool.Pool) WalletRepository {
	return &PGWalletRepository{pool: pool}
}

const userColumns = `id, external_id, name, email, wallet_balance_cents, created_at, updated_at`

func (r *PGWalletRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *PGWalletRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *PGWalletRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE external_id=$1`, externalID)
}

func (r *PGWalletRepository) getBy(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := db(ctx, r.pool).QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.ExternalID, &u.Name, &u.Email, &u.WalletBalanceCents, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Provision creates the account if it does not exist yet. A concurrent
// provision of the same external id loses the insert and reads the winner.
func (r *PGWalletRepository) Provision(ctx context.Context, user *domain.User) error {
	err := db(ctx, r.pool).QueryRow(ctx, `INSERT INTO users (external_id, name, email, wallet_balance_cents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, created_at, updated_at`,
		user.ExternalID, user.Name, user.Email, user.WalletBalanceCents).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("provision user: %w", err)
	}

	existing, err := r.GetByExternalID(ctx, user.ExternalID)
	if err != nil {
		return err
	}
	*user = *existing
	return nil
}

// Debit subtracts amountCents in a single guarded statement. The balance
// check and the write share one UPDATE, so no interleaving can drive the
// balance negative.
func (r *PGWalletRepository) Debit(ctx context.Context, userID, amountCents int64) (int64, error) {
	var balance int64
	err := db(ctx, r.pool).QueryRow(ctx, `UPDATE users
		SET wallet_balance_cents = wallet_balance_cents - $1, updated_at = now()
		WHERE id=$2 AND wallet_balance_cents >= $1
		RETURNING wallet_balance_cents`, amountCents, userID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("debit wallet: %w", err)
	}

	// No row matched: either the user is missing or the funds are short.
	if _, err := r.GetByID(ctx, userID); err != nil {
		return 0, err
	}
	return 0, domain.ErrInsufficientFunds
}

func (r *PGWalletRepository) Credit(ctx context.Context, userID, amountCents int64) (int64, error) {
	var balance int64
	err := db(ctx, r.pool).QueryRow(ctx, `UPDATE users
		SET wallet_balance_cents = wallet_balance_cents + $1, updated_at = now()
		WHERE id=$2
		RETURNING wallet_balance_cents`, amountCents, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("credit wallet: %w", err)
	}
	return balance, nil
}

var _ WalletRepository = (*PGWalletRepository)(nil)
