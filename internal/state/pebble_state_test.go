package state

import "testing"

func TestPebbleDB_Contract(t *testing.T) {
	db, err := NewPebbleDB(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	exerciseTable(t, db)
}

func TestBadgerDB_Contract(t *testing.T) {
	db, err := NewBadgerDB(t.TempDir())
	if err != nil {
		t.Fatalf("badger open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	exerciseTable(t, db)
}

func TestPebbleDB_ReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	db, err := NewPebbleDB(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	tbl, _ := db.Table("orders")
	if err := PutJSON(tbl, 5, rec{Name: "o5"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = NewPebbleDB(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	tbl, _ = db.Table("orders")
	if last, err := MaxID(tbl); err != nil || last != 5 {
		t.Fatalf("after reopen MaxID=%d err=%v", last, err)
	}
}
