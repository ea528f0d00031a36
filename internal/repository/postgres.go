package repository

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PgStore is the Postgres-backed Store.
type PgStore struct {
	*AccountRepo
	*GenerationRepo
	*CreditRepo

	pool *pgxpool.Pool
}

var _ Store = (*PgStore)(nil)

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{
		AccountRepo:    NewAccountRepo(pool),
		GenerationRepo: NewGenerationRepo(pool),
		CreditRepo:     NewCreditRepo(pool),
		pool:           pool,
	}
}

// Migrate creates the tables if they do not exist yet.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
