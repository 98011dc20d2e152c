// Package testing provides testing utilities and helpers for the Rotor project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/rotor/internal/database"
)

// NewTestDB creates a temp-file SQLite database for testing with automatic
// schema migration. Returns the database and an idempotent cleanup function.
//
// Supported schema names: "universe", "config", "history", "portfolio",
// "ledger". Unknown names create an empty database.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// Temporary files (not :memory:) so each test gets an isolated database
	// that behaves like the real on-disk ones
	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	profile := database.ProfileStandard
	if name == "history" {
		profile = database.ProfileHistory
	}

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		_ = db.Close()
		_ = os.Remove(tmpPath)
	}

	return db, cleanup
}
