package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/mind-engage/mindengage-ilq/internal/engine"
)

// Executor is the part of *sql.DB and *sql.Tx the stores use.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Conn returns the transaction bound to ctx, or db itself.
func Conn(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// Store implements engine.Datastore over *sql.DB.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) BeginTx(ctx context.Context) (context.Context, engine.Tx, error) {
	if s == nil || s.DB == nil {
		return nil, nil, errors.New("db: store is nil")
	}
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return nil, nil, errors.New("db: transaction already in progress")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("db: begin tx: %w", err)
	}
	return context.WithValue(ctx, txKey{}, tx), &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx   *sql.Tx
	done bool
}

func (t *sqlTx) Commit() error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("db: commit: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// WithTx runs fn inside a transaction, joining the one already bound to ctx
// if there is one. fn's error rolls the new transaction back.
func WithTx(ctx context.Context, s *Store, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	txCtx, tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
			return
		}
		err = tx.Commit()
	}()
	return fn(txCtx)
}
