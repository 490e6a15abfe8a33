package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"pharmacore/internal/infra/kv/postgres/testutil"
)

func newStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, conn
}

func TestPostgresStoreEnsuresStateTable(t *testing.T) {
	_, conn := newStubStore(t)
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table ddl, got %v", conn.Execs)
	}
}

func TestPostgresStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store, _ := newStubStore(t)

	if _, ok, err := store.Get(ctx, "pharmacy_patients"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "pharmacy_patients", []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "pharmacy_patients", []byte(`[{"id":"p1"}]`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Set(ctx, "pharmacy_inventory", []byte(`[]`)); err != nil {
		t.Fatalf("set inventory: %v", err)
	}
	got, ok, err := store.Get(ctx, "pharmacy_patients")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != `[{"id":"p1"}]` {
		t.Fatalf("unexpected payload %s", got)
	}
	keys, err := store.Keys(ctx)
	if err != nil || len(keys) != 2 || keys[0] != "pharmacy_inventory" {
		t.Fatalf("keys: %v %v", keys, err)
	}
	if err := store.Remove(ctx, "pharmacy_patients"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "pharmacy_patients"); ok {
		t.Fatalf("expected key removed")
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if keys, _ := store.Keys(ctx); len(keys) != 0 {
		t.Fatalf("expected no keys after clear, got %v", keys)
	}
}

func TestPostgresStoreErrors(t *testing.T) {
	ctx := context.Background()
	store, conn := newStubStore(t)
	conn.FailExec = true
	if err := store.Set(ctx, "k", []byte("1")); err == nil || !strings.Contains(err.Error(), "upsert k") {
		t.Fatalf("expected wrapped upsert error, got %v", err)
	}
	if err := store.Remove(ctx, "k"); err == nil {
		t.Fatalf("expected remove error")
	}
	if err := store.Clear(ctx); err == nil {
		t.Fatalf("expected clear error")
	}
	conn.FailExec = false
	conn.FailQuery = true
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error")
	}
	if _, err := store.Keys(ctx); err == nil {
		t.Fatalf("expected keys error")
	}
}

func TestNewStoreOpenAndPingFailures(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}
