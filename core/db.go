package core

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}

	// Transactor runs fn inside a single unit of work.
	// exec is nil when the storage has no notion of transactions (in-memory).
	Transactor interface {
		RunInTx(ctx context.Context, readOnly bool, fn func(exec DBExecutor) error) error
	}
)

type sqlTransactor struct {
	db DB
}

func NewTransactor(db DB) Transactor {
	return &sqlTransactor{db: db}
}

// RunInTx begins a transaction, runs fn and commits it; it is rolled back when fn fails.
// Read-only transactions use REPEATABLE READ so that every query sees the same snapshot.
func (t *sqlTransactor) RunInTx(ctx context.Context, readOnly bool, fn func(exec DBExecutor) error) error {
	opts := &sql.TxOptions{ReadOnly: readOnly}
	if readOnly {
		opts.Isolation = sql.LevelRepeatableRead
	}
	tx, err := t.db.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

type noTxTransactor struct{}

// NoTxTransactor runs fn without a transaction, for stores that guard themselves.
var NoTxTransactor Transactor = noTxTransactor{}

func (noTxTransactor) RunInTx(_ context.Context, _ bool, fn func(exec DBExecutor) error) error {
	return fn(nil)
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
