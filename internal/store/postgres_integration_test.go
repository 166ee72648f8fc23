//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
)

const testReaderRole = "it_reader"

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL, testReaderRole, 50)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	stmts := []string{
		`DROP TABLE IF EXISTS it_technologies`,
		`CREATE TABLE it_technologies (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			owner text NOT NULL,
			name text NOT NULL,
			attrs jsonb
		)`,
		`INSERT INTO it_technologies (owner, name, attrs) VALUES
			('alice', 'Heat pump', '{"cop": 3.2}'),
			('bob', 'PV array', NULL)`,
		`DO $$ BEGIN CREATE ROLE it_reader NOLOGIN; EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
		`GRANT it_reader TO CURRENT_USER`,
		`GRANT SELECT ON it_technologies TO it_reader`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			t.Fatalf("setup %q: %v", q, err)
		}
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "DROP TABLE IF EXISTS it_technologies")
		s.Close()
	})
	return s
}

func TestReadTable(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	rows, err := s.ReadTable(ctx, "it_technologies", Caller{UserID: "alice"})
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if _, ok := r["id"].(string); !ok {
			t.Errorf("expected id as string, got %T", r["id"])
		}
	}
}

func TestReadTableMissing(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.ReadTable(context.Background(), "it_does_not_exist", Caller{})
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestReadTableIsReadOnly(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	// A crafted name cannot reach the database, and the transaction itself
	// refuses writes.
	if _, err := s.ReadTable(ctx, "it_technologies; DELETE FROM it_technologies", Caller{}); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("expected ErrInvalidTable, got %v", err)
	}
	rows, err := s.ReadTable(ctx, "it_technologies", Caller{})
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected table intact, got %d rows (%v)", len(rows), err)
	}
}

func TestReadTableAppliesRowLevelSecurity(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for _, q := range []string{
		`ALTER TABLE it_technologies ENABLE ROW LEVEL SECURITY`,
		`CREATE POLICY it_owner ON it_technologies FOR SELECT
			USING (owner = current_setting('request.jwt.claim.sub', true))`,
	} {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			t.Fatalf("setup %q: %v", q, err)
		}
	}

	rows, err := s.ReadTable(ctx, "it_technologies", Caller{UserID: "alice"})
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Heat pump" {
		t.Errorf("expected only alice's row, got %v", rows)
	}

	rows, err = s.ReadTable(ctx, "it_technologies", Caller{UserID: "mallory"})
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows for a stranger, got %d", len(rows))
	}
}
