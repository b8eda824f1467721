package inventory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentara-clinic/dentara/internal/platform/db"
)

// TxRepository is the slice of repository operations available inside a
// stock-mutation transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Item, error)
	UpdateStock(ctx context.Context, id int64, stock int) error
	InsertTxn(ctx context.Context, txn StockTxn) error
}

// Repository implements RepositoryPort over Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn with a transactional view of the repository.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}
