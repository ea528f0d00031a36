package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mithix/backend/internal/models"
)

const pgUniqueViolation = "23505"

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return r.scanOne(ctx, `
		SELECT id, handle, secret_hash, balance, created_at
		FROM accounts WHERE id = $1
	`, id)
}

func (r *AccountRepo) GetAccountByHandle(ctx context.Context, handle string) (*models.Account, error) {
	return r.scanOne(ctx, `
		SELECT id, handle, secret_hash, balance, created_at
		FROM accounts WHERE handle = $1
	`, handle)
}

func (r *AccountRepo) scanOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, query, arg).Scan(&a.ID, &a.Handle, &a.SecretHash, &a.Balance, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) CreateAccount(ctx context.Context, handle, secret string) (*models.Account, error) {
	a := &models.Account{
		ID:         uuid.NewString(),
		Handle:     handle,
		SecretHash: secret,
		Balance:    models.StartingBalance,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, handle, secret_hash, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, a.ID, a.Handle, a.SecretHash, a.Balance).Scan(&a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateHandle
		}
		return nil, err
	}
	return a, nil
}

func (r *AccountRepo) EnsureAccount(ctx context.Context, a *models.Account) error {
	if a.Balance < 0 {
		return ErrNegativeBalance
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, handle, secret_hash, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.Handle, a.SecretHash, a.Balance)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateHandle
	}
	return err
}

// SetBalance overwrites the balance inside one statement, reading the old
// value under a row lock.
func (r *AccountRepo) SetBalance(ctx context.Context, id string, balance int) (int, bool, error) {
	if balance < 0 {
		return 0, false, ErrNegativeBalance
	}
	var prev int
	err := r.pool.QueryRow(ctx, `
		WITH prev AS (SELECT balance FROM accounts WHERE id = $1 FOR UPDATE)
		UPDATE accounts SET balance = $2
		FROM prev
		WHERE accounts.id = $1
		RETURNING prev.balance
	`, id, balance).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return prev, true, nil
}

// DeductCredits atomically deducts amount from account if balance >= amount. Returns new balance or error.
func (r *AccountRepo) DeductCredits(ctx context.Context, id string, amount int) (int, error) {
	var newBalance int
	err := r.pool.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`, amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		acc, getErr := r.GetAccount(ctx, id)
		if getErr != nil {
			return 0, getErr
		}
		if acc == nil {
			return 0, ErrAccountNotFound
		}
		return acc.Balance, ErrInsufficientCredits
	}
	return newBalance, err
}

// AddCredits adds amount to account and returns new balance.
func (r *AccountRepo) AddCredits(ctx context.Context, id string, amount int) (int, error) {
	var newBalance int
	err := r.pool.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $1
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance
	`, amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		acc, getErr := r.GetAccount(ctx, id)
		if getErr != nil {
			return 0, getErr
		}
		if acc == nil {
			return 0, ErrAccountNotFound
		}
		return acc.Balance, ErrNegativeBalance
	}
	return newBalance, err
}
