// Package pg implements the auth and content stores over PostgreSQL using
// database/sql with the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pressline.org/internal/auth"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return db, nil
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same sub-stores serve both plain calls and WithinTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ auth.Store = (*Store)(nil)

// Store implements auth.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
	q  querier
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users(context.Context) auth.UserStore             { return &userStore{q: s.q} }
func (s *Store) Roles(context.Context) auth.RoleStore             { return &roleStore{q: s.q} }
func (s *Store) Permissions(context.Context) auth.PermissionStore { return &permissionStore{q: s.q} }
func (s *Store) RevokedTokens(context.Context) auth.RevocationStore {
	return &revocationStore{q: s.q}
}

// WithinTx runs fn against a store bound to one transaction. Any error from
// fn rolls the transaction back.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st auth.Store) error) error {
	if s.db == nil {
		// Already inside a transaction; nested calls join it.
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pg: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &Store{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// mapErr translates driver errors into the store's error vocabulary.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", auth.ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", auth.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}
