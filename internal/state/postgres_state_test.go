package state

import (
	"context"
	"os"
	"testing"
)

// Runs only when WEBSHOP_TEST_DATABASE_URL points at a disposable database.
func TestPostgresDB_Contract(t *testing.T) {
	url := os.Getenv("WEBSHOP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("WEBSHOP_TEST_DATABASE_URL not set")
	}
	db, err := NewPostgresDB(context.Background(), url)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	for _, name := range []string{"products", "orders"} {
		tbl, _ := db.Table(name)
		_ = tbl.Truncate()
	}
	exerciseTable(t, db)
}
