package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the lead store. Postgres is the production driver; sqlite3
// serves local development and tests.
func Open(ctx context.Context, driver, connStr string) (*sql.DB, error) {
	switch driver {
	case "postgres":
		connStr = withSSLMode(connStr)
	case "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := Migrate(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func withSSLMode(connStr string) string {
	if strings.Contains(connStr, "sslmode=") {
		return connStr
	}
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		if strings.Contains(connStr, "?") {
			return connStr + "&sslmode=require"
		}
		return connStr + "?sslmode=require"
	}
	return connStr + " sslmode=require"
}

var schema = map[string][]string{
	"postgres": {
		`CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			interest TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			attachment_path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'new',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS leads_status_created_idx ON leads (status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			capacity_kva DOUBLE PRECISION NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			published BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	},
	"sqlite3": {
		`CREATE TABLE IF NOT EXISTS leads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			interest TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			attachment_path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'new',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS leads_status_created_idx ON leads (status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			capacity_kva REAL NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			published BOOLEAN NOT NULL DEFAULT 1
		)`,
	},
}

// starter catalog, inserted once
var seedProducts = []Product{
	{Slug: "svc-10", Name: "SVC-10 servo voltage stabilizer", Category: CategoryStabilizer, CapacityKVA: 10, Summary: "Three-phase servo stabilizer for workshops and small lines."},
	{Slug: "svc-30", Name: "SVC-30 servo voltage stabilizer", Category: CategoryStabilizer, CapacityKVA: 30, Summary: "Three-phase servo stabilizer sized for motor loads up to 15 kVA."},
	{Slug: "svc-100", Name: "SVC-100 servo voltage stabilizer", Category: CategoryStabilizer, CapacityKVA: 100, Summary: "Industrial stabilizer with bypass and overload protection."},
	{Slug: "sg-50", Name: "SG-50 isolation transformer", Category: CategoryTransformer, CapacityKVA: 50, Summary: "Dry-type isolation transformer, Dyn11."},
	{Slug: "sg-200", Name: "SG-200 isolation transformer", Category: CategoryTransformer, CapacityKVA: 200, Summary: "Dry-type isolation transformer for production halls."},
	{Slug: "ggd-400", Name: "GGD low-voltage switchgear", Category: CategorySwitchgear, CapacityKVA: 0, Summary: "Fixed low-voltage distribution cabinet up to 400 A."},
}

// Migrate creates missing tables and seeds the catalog.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := schema[driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", driver)
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, p := range seedProducts {
		_, err := db.ExecContext(ctx,
			`INSERT INTO products (slug, name, category, capacity_kva, summary, published)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (slug) DO NOTHING`,
			p.Slug, p.Name, p.Category, p.CapacityKVA, p.Summary, true)
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.Slug, err)
		}
	}
	return nil
}
