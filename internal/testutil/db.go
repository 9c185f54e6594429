// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/chanlink/internal/config"
	"github.com/xxxsen/chanlink/internal/db"
)

func OpenTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite3",
		Path:   filepath.Join(t.TempDir(), "chanlink.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// OpenPostgresDB connects to the database named by TEST_DB_HOST and skips
// the test when it is not set. Tables are emptied before use.
func OpenPostgresDB(t *testing.T) *sqlx.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	port := 5432
	if v := os.Getenv("TEST_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	conn, err := db.Open(config.DatabaseConfig{
		Driver:   "postgres",
		Host:     host,
		Port:     port,
		User:     "chanlink",
		Password: "chanlink_pass",
		DBName:   "chanlink_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := conn.Exec("TRUNCATE channel_codes, users"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
