package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedDSN is returned for connection strings that name no known database.
var ErrUnsupportedDSN = errors.New("unsupported catalog DSN")

// Dialect is the SQL flavor behind a Store.
type Dialect int

const (
	// DialectSQLite is modernc.org/sqlite.
	DialectSQLite Dialect = iota
	// DialectPostgres is PostgreSQL through pgx.
	DialectPostgres
)

// String returns the dialect name.
func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// ParseDSN picks the dialect for dsn and returns the driver-level
// connection string.
//
//	postgres://... or postgresql://...   PostgreSQL
//	sqlite://path, file:path             SQLite
//	*.db, *.sqlite, *.sqlite3, :memory:  SQLite
func ParseDSN(dsn string) (Dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, dsn, nil
	case strings.HasPrefix(lower, "sqlite://"):
		path := dsn[len("sqlite://"):]
		if path == "" {
			return 0, "", fmt.Errorf("%w: empty sqlite path", ErrUnsupportedDSN)
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(lower, "file:"), lower == ":memory:":
		return DialectSQLite, dsn, nil
	}

	path := lower
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(path, ext) {
			return DialectSQLite, dsn, nil
		}
	}
	return 0, "", fmt.Errorf("%w: %s", ErrUnsupportedDSN, redactDSN(dsn))
}

// rebind rewrites "?" placeholders to "$1, $2, ..." for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// redactDSN hides everything after the scheme so passwords never reach logs.
func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "***"
	}
	return "***"
}
