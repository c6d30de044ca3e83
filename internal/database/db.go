package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ashish13377/Intellido/internal/filter"
	_ "github.com/lib/pq"
	"modernc.org/sqlite"
)

const (
	// DriverPostgres is the lib/pq driver name
	DriverPostgres = "postgres"
	// DriverSQLite is the modernc.org/sqlite driver name
	DriverSQLite = "sqlite"

	connectTimeout = 5 * time.Second
)

//go:embed schema/*.sql
var schemaFS embed.FS

var registerFuncsOnce sync.Once

// DB wraps sql.DB with the dialect the filter compiler renders for.
type DB struct {
	*sql.DB
	driver  string
	dialect filter.Dialect
}

// New opens the store named by databaseURL, inferring the driver from it.
func New(databaseURL string) (*DB, error) {
	driverName, dsn := InferDriver(databaseURL)
	return Open(driverName, dsn)
}

// Connect opens the configured store. databaseURL wins over sqlitePath; an
// explicit driver overrides the one inferred from the URL.
func Connect(driverName, databaseURL, sqlitePath string) (*DB, error) {
	if databaseURL == "" {
		return Open(DriverSQLite, sqlitePath)
	}
	inferred, dsn := InferDriver(databaseURL)
	if driverName == "" {
		driverName = inferred
	}
	return Open(driverName, dsn)
}

// InferDriver maps a database URL to a driver name and DSN. postgres:// and
// postgresql:// URLs use lib/pq; sqlite:// URLs, file paths and ":memory:"
// use sqlite.
func InferDriver(databaseURL string) (string, string) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(databaseURL, "sqlite://")
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return DriverSQLite, strings.TrimPrefix(databaseURL, "sqlite:")
	default:
		return DriverSQLite, databaseURL
	}
}

// Open connects with an explicit driver, verifies connectivity and applies the
// schema. Connectivity failures wrap ErrStoreUnavailable.
func Open(driverName, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database location is required")
	}

	var dialect filter.Dialect
	switch driverName {
	case DriverPostgres:
		dialect = filter.Postgres
	case DriverSQLite:
		dialect = filter.SQLite
		registerFuncsOnce.Do(registerSQLiteFuncs)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driverName)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driverName == DriverSQLite {
		// every connection to ":memory:" is a separate database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w: %w", ErrStoreUnavailable, err)
	}

	db := &DB{DB: sqlDB, driver: driverName, dialect: dialect}
	if err := db.applySchema(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// Dialect returns the SQL dialect of the underlying driver.
func (db *DB) Dialect() filter.Dialect {
	return db.dialect
}

// Driver returns the driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Placeholder returns the n-th (1-based) bind placeholder.
func (db *DB) Placeholder(n int) string {
	if db.dialect == filter.SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// Placeholders returns count comma-separated placeholders starting at start.
func (db *DB) Placeholders(start, count int) string {
	ps := make([]string, count)
	for i := range ps {
		ps[i] = db.Placeholder(start + i)
	}
	return strings.Join(ps, ", ")
}

func (db *DB) applySchema(ctx context.Context) error {
	schemaSQL, err := schemaFS.ReadFile("schema/" + db.driver + ".sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", classify(err))
	}
	return nil
}

func registerSQLiteFuncs() {
	sqlite.MustRegisterDeterministicScalarFunction(filter.ContainsFoldFunc, 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			s, ok1 := textArg(args[0])
			sub, ok2 := textArg(args[1])
			if !ok1 || !ok2 {
				return int64(0), nil
			}
			if filter.ContainsFold(s, sub) {
				return int64(1), nil
			}
			return int64(0), nil
		})
}

func textArg(v driver.Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
