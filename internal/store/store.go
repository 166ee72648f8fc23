package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

var (
	ErrInvalidTable  = errors.New("invalid table name")
	ErrTableNotFound = errors.New("table not found")

	ErrRLSRoleRequired = errors.New("row-level security role is required")
)

// Caller identifies whose row-level security context a read runs under.
type Caller struct {
	UserID string
	Email  string
}

// TableReader returns every row of a table the caller is allowed to see.
type TableReader interface {
	ReadTable(ctx context.Context, table string, caller Caller) ([]map[string]any, error)
	Close() error
}

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ParseTableName accepts "table" or "schema.table" and returns a quoted-safe
// identifier. System schemas are never readable.
func ParseTableName(name string) (pgx.Identifier, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	for _, p := range parts {
		if !identPart.MatchString(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTable, name)
		}
	}
	if len(parts) == 2 {
		switch s := strings.ToLower(parts[0]); {
		case s == "pg_catalog", s == "information_schema", strings.HasPrefix(s, "pg_"):
			return nil, fmt.Errorf("%w: schema %q is not readable", ErrInvalidTable, parts[0])
		}
	}
	return pgx.Identifier(parts), nil
}
