package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mithix/backend/internal/models"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

func (r *CreditRepo) AppendEntry(ctx context.Context, c *models.CreditEntry) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO credit_entries (id, account_id, record_id, entry_type, delta, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.AccountID, c.RecordID, c.EntryType, c.Delta, c.BalanceAfter).Scan(&c.CreatedAt)
}

func (r *CreditRepo) ListEntriesByAccount(ctx context.Context, accountID string) ([]*models.CreditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, record_id, entry_type, delta, balance_after, created_at
		FROM credit_entries WHERE account_id = $1 ORDER BY created_at DESC, seq DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.CreditEntry{}
	for rows.Next() {
		var c models.CreditEntry
		if err := rows.Scan(&c.ID, &c.AccountID, &c.RecordID, &c.EntryType, &c.Delta, &c.BalanceAfter, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
