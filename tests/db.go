// Package testutil builds throwaway databases, services and fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/storage/database"
)

// sqliteTypes maps the postgres column types of the migrations to the ones the sqlite driver scans back into Go values.
var sqliteTypes = strings.NewReplacer("TIMESTAMPTZ", "TIMESTAMP", "BYTEA", "BLOB")

var (
	migrationsOnce sync.Once
	migrations     fstest.MapFS
	migrationsErr  error
)

// sqliteMigrations returns the embedded migrations, rewritten for sqlite.
func sqliteMigrations() (fs.FS, error) {
	migrationsOnce.Do(func() {
		src := database.MigrationsFS()
		entries, err := fs.ReadDir(src, ".")
		if err != nil {
			migrationsErr = err
			return
		}
		migrations = make(fstest.MapFS, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
				continue
			}
			data, err := fs.ReadFile(src, entry.Name())
			if err != nil {
				migrationsErr = err
				return
			}
			migrations[entry.Name()] = &fstest.MapFile{Data: []byte(sqliteTypes.Replace(string(data)))}
		}
	})
	return migrations, migrationsErr
}

// OpenDB opens a private in-memory sqlite database and runs the app migrations on it. It is closed at the end of t.
// Only one connection is kept open, so queries issued inside a transaction must go through its executor.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(core.Conf))
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	fsys, err := sqliteMigrations()
	if err != nil {
		t.Fatalf("OpenDB() failed to read migrations: %v", err)
	}
	if err = database.MigrateUp(context.Background(), sqlDB, goose.DialectSQLite3, fsys); err != nil {
		t.Fatalf("OpenDB() failed to migrate: %v", err)
	}
	return db
}

// SqlxDB shares the connection of db with sqlx, for the reporting queries.
func SqlxDB(t *testing.T, db *gorm.DB) *sqlx.DB {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("SqlxDB() failed: %v", err)
	}
	return sqlx.NewDb(sqlDB, "sqlite3")
}
