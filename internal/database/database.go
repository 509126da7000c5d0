package database

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

func init() {
	// modernc registers as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the database for the given driver and runs migrations.
// For SQLite the dsn is a file path (or ":memory:"); for Postgres it is a
// connection URL.
func Open(driver, dsn string) (*sqlx.DB, error) {
	var connStr string
	switch driver {
	case DriverSQLite:
		connStr = sqliteDSN(dsn)
	case DriverPostgres:
		connStr = dsn
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	switch {
	case driver == DriverSQLite && isMemory(dsn):
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	case driver == DriverPostgres:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func sqliteDSN(path string) string {
	params := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if !isMemory(path) {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

func isMemory(path string) bool {
	return strings.HasPrefix(path, ":memory:") || strings.Contains(path, "mode=memory")
}

func runMigrations(db *sqlx.DB, driver string) error {
	goose.SetBaseFS(migrations)

	dialect, dir := "sqlite3", "migrations/sqlite"
	if driver == DriverPostgres {
		dialect, dir = "postgres", "migrations/postgres"
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db.DB, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
