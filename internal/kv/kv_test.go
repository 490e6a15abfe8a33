package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pharmacore/internal/blob"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	mem, err := Open(ctx, Options{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	_ = mem.Close()

	lite, err := Open(ctx, Options{SQLitePath: filepath.Join(t.TempDir(), "kv.db")})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer func() { _ = lite.Close() }()
	if err := lite.Set(ctx, "k", []byte(`[1]`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := Open(ctx, Options{Driver: DriverPostgres}); err == nil {
		t.Fatalf("expected missing dsn error")
	}
	if _, err := Open(ctx, Options{Driver: "etcd"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _ := Open(ctx, Options{Driver: DriverMemory})
	blobs, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	if err != nil {
		t.Fatalf("blob open: %v", err)
	}
	if _, err := LatestBackup(ctx, blobs); !errors.Is(err, ErrNoBackup) {
		t.Fatalf("expected ErrNoBackup, got %v", err)
	}
	_ = src.Set(ctx, "pharmacy_inventory", []byte(`[{"id":"a"}]`))
	_ = src.Set(ctx, "pharmacy_notifications", []byte(`[]`))

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	info, err := Backup(ctx, src, blobs, at)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if info.Key != BackupKey(at) || info.Metadata["keys"] != "2" {
		t.Fatalf("unexpected backup info %+v", info)
	}

	_ = src.Set(ctx, "pharmacy_inventory", []byte(`[]`))
	_ = src.Set(ctx, "stray", []byte(`1`))
	n, err := Restore(ctx, src, blobs, "")
	if err != nil || n != 2 {
		t.Fatalf("restore: %d %v", n, err)
	}
	v, ok, _ := src.Get(ctx, "pharmacy_inventory")
	if !ok || string(v) != `[{"id":"a"}]` {
		t.Fatalf("unexpected restored value %q", v)
	}
	if _, ok, _ := src.Get(ctx, "stray"); ok {
		t.Fatalf("expected stray key cleared by restore")
	}
}

func TestBackupNamedKeysOnly(t *testing.T) {
	ctx := context.Background()
	src, _ := Open(ctx, Options{Driver: DriverMemory})
	blobs, _ := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	_ = src.Set(ctx, "pharmacy_patients", []byte(`[]`))
	_ = src.Set(ctx, "unrelated", []byte(`{}`))
	info, err := Backup(ctx, src, blobs, time.Now(), "pharmacy_patients", "pharmacy_prescriptions")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if info.Metadata["keys"] != "1" {
		t.Fatalf("expected only present named key, got %+v", info.Metadata)
	}
}

func TestBackupRejectsNonJSON(t *testing.T) {
	ctx := context.Background()
	src, _ := Open(ctx, Options{Driver: DriverMemory})
	blobs, _ := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	_ = src.Set(ctx, "raw", []byte("not json"))
	if _, err := Backup(ctx, src, blobs, time.Now()); err == nil {
		t.Fatalf("expected error for non-JSON value")
	}
}

func TestPruneBackupsKeepsNewest(t *testing.T) {
	ctx := context.Background()
	src, _ := Open(ctx, Options{Driver: DriverMemory})
	blobs, _ := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	_ = src.Set(ctx, "k", []byte(`{}`))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := Backup(ctx, src, blobs, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("backup %d: %v", i, err)
		}
	}
	deleted, err := PruneBackups(ctx, blobs, 2)
	if err != nil || len(deleted) != 3 {
		t.Fatalf("prune: %v %v", deleted, err)
	}
	left, _ := ListBackups(ctx, blobs)
	if len(left) != 2 || left[1].Key != BackupKey(base.Add(4*time.Hour)) {
		t.Fatalf("unexpected remaining %+v", left)
	}
	if _, err := PruneBackups(ctx, blobs, 0); err == nil {
		t.Fatalf("expected retain validation error")
	}
}
