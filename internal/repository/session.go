package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/kasmeter/kasmeter-server/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindAll returns every session ordered by creation time, so that the
	// watcher's first-match tie-break on amount collisions is deterministic.
	FindAll(ctx context.Context) ([]model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// Credit moves the session's paid_until forward and records the outpoint
	// that paid for it. paid_until is never moved backwards.
	Credit(ctx context.Context, id string, paidUntil int64, outpoint string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindAll(ctx context.Context) ([]model.Session, error) {
	sessions := []model.Session{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (
			receiver_address, expected_amount_sompi, checkpoint_seconds,
			rate_kas_per_minute, created_at, paid_until
		)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING *
	`, params.ReceiverAddress, params.ExpectedAmountSompi, params.CheckpointSeconds,
		params.RateKasPerMinute, params.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Credit(ctx context.Context, id string, paidUntil int64, outpoint string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			paid_until = GREATEST(paid_until, $2),
			last_payment_outpoint = $3
		WHERE id = $1
	`, id, paidUntil, outpoint)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
