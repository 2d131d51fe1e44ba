package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kasmeter/kasmeter-server/internal/model"
)

// ErrOutpointSeen is returned by MarkSeen when the outpoint was already
// recorded. The watcher treats it as "already handled, skip" rather than a
// failure, but the insert itself must fail so a credit can never be applied
// twice for the same output.
var ErrOutpointSeen = errors.New("outpoint already seen")

const pqUniqueViolation = "23505"

type SeenOutpointRepository interface {
	Has(ctx context.Context, outpoint string) (bool, error)
	MarkSeen(ctx context.Context, seen model.SeenOutpoint) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SeenOutpointRepository
}

type outpointDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type seenOutpointRepo struct {
	db outpointDB
}

func NewSeenOutpointRepository(db *sqlx.DB) SeenOutpointRepository {
	return &seenOutpointRepo{db: db}
}

func (r *seenOutpointRepo) WithTx(tx *sqlx.Tx) SeenOutpointRepository {
	return &seenOutpointRepo{db: tx}
}

func (r *seenOutpointRepo) Has(ctx context.Context, outpoint string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM seen_outpoints WHERE outpoint = $1)
	`, outpoint)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *seenOutpointRepo) MarkSeen(ctx context.Context, seen model.SeenOutpoint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO seen_outpoints (outpoint, amount_sompi, seen_at)
		VALUES ($1, $2, $3)
	`, seen.Outpoint, seen.AmountSompi, seen.SeenAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrOutpointSeen
	}
	return err
}
