package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const undefinedTable = "42P01"

type PostgresStore struct {
	pool    *pgxpool.Pool
	rlsRole string
	maxRows int
}

// NewPostgresStore connects to databaseURL. Every read runs as rlsRole, so the
// connecting role's own privileges never reach callers.
func NewPostgresStore(ctx context.Context, databaseURL, rlsRole string, maxRows int) (*PostgresStore, error) {
	if rlsRole == "" {
		return nil, ErrRLSRoleRequired
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &PostgresStore{pool: pool, rlsRole: rlsRole, maxRows: maxRows}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ReadTable(ctx context.Context, table string, caller Caller) ([]map[string]any, error) {
	ident, err := ParseTableName(table)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.assumeCaller(ctx, tx, caller); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, "SELECT * FROM "+ident.Sanitize()+" LIMIT $1", s.maxRows)
	if err != nil {
		return nil, classify(table, err)
	}
	data, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, classify(table, err)
	}
	for _, row := range data {
		normalizeRow(row)
	}
	if data == nil {
		data = []map[string]any{}
	}
	return data, tx.Commit(ctx)
}

// assumeCaller switches the transaction to the configured role and exposes
// the caller the way PostgREST does, so existing policies keep working.
func (s *PostgresStore) assumeCaller(ctx context.Context, tx pgx.Tx, caller Caller) error {
	if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+pgx.Identifier{s.rlsRole}.Sanitize()); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	claims, err := json.Marshal(map[string]string{
		"sub":   caller.UserID,
		"email": caller.Email,
		"role":  s.rlsRole,
	})
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"SELECT set_config('request.jwt.claim.sub', $1, true), set_config('request.jwt.claims', $2, true)",
		caller.UserID, string(claims),
	); err != nil {
		return fmt.Errorf("set claims: %w", err)
	}
	return nil
}

func classify(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}
	return fmt.Errorf("read table %q: %w", table, err)
}

// normalizeRow rewrites driver values that do not serialize as callers
// expect.
func normalizeRow(row map[string]any) {
	for k, v := range row {
		switch val := v.(type) {
		case [16]byte:
			row[k] = uuid.UUID(val).String()
		case []byte:
			var decoded any
			if json.Valid(val) && json.Unmarshal(val, &decoded) == nil {
				row[k] = decoded
			} else {
				row[k] = string(val)
			}
		}
	}
}
