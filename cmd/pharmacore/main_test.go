package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pharmacore/internal/config"
	"pharmacore/internal/core"
	"pharmacore/internal/kv"
	"pharmacore/pkg/domain"
)

const seedCSV = `name,category,manufacturer,batch,current,minimum,maximum,unit,expiry,supplier,unit_cost
Aspirin 100mg,otc,Bayer,B-001,120,20,300,tablets,2031-05-01,MedSupply,0.12
Empty Shelf,otc,Acme,B-002,0,10,40,tablets,2031-05-01,MedSupply,0.50
`

// setupEnv points storage at a temporary sqlite file and fs blob root.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvStorageDriver, "sqlite")
	t.Setenv(config.EnvSQLitePath, filepath.Join(dir, "pharmacore.db"))
	t.Setenv(config.EnvBlobDriver, "fs")
	t.Setenv(config.EnvBlobFSRoot, filepath.Join(dir, "blobs"))
	t.Setenv(config.EnvLogFormat, "json")
	t.Setenv(config.EnvLogLevel, "warn")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd(&out, &logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestSeedThenReport(t *testing.T) {
	dir := setupEnv(t)
	csvPath := filepath.Join(dir, "items.csv")
	if err := os.WriteFile(csvPath, []byte(seedCSV), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	if out := mustRun(t, "seed", csvPath); !strings.Contains(out, "added 2 items, skipped 0 rows") {
		t.Fatalf("unexpected seed output %q", out)
	}

	var stats core.InventoryStats
	if err := json.Unmarshal([]byte(mustRun(t, "stats")), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalItems != 2 || stats.TotalUnits != 120 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	reorder := mustRun(t, "reorder")
	if !strings.Contains(reorder, "urgent") || !strings.Contains(reorder, "Empty Shelf") {
		t.Fatalf("reorder should list the empty item as urgent:\n%s", reorder)
	}
	if strings.Contains(reorder, "Aspirin") {
		t.Fatalf("healthy item should not be suggested:\n%s", reorder)
	}

	var alerts alertListing
	if err := json.Unmarshal([]byte(mustRun(t, "alerts")), &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts.Inventory) == 0 {
		t.Fatalf("expected an out-of-stock alert, got none")
	}

	var report core.TickReport
	if err := json.Unmarshal([]byte(mustRun(t, "monitor", "--once")), &report); err != nil {
		t.Fatalf("decode tick report: %v", err)
	}
	if report.Inventory.Checked != 2 {
		t.Fatalf("expected 2 items checked, got %d", report.Inventory.Checked)
	}
	if report.Unresolved["inventory"] != len(alerts.Inventory) {
		t.Fatalf("unresolved inventory %d, listed %d", report.Unresolved["inventory"], len(alerts.Inventory))
	}

	id := alerts.Inventory[0].ID
	if out := mustRun(t, "resolve", id); !strings.Contains(out, "resolved "+id) {
		t.Fatalf("unexpected resolve output %q", out)
	}
	if err := json.Unmarshal([]byte(mustRun(t, "alerts")), &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	for _, alert := range alerts.Inventory {
		if alert.ID == id {
			t.Fatalf("resolved alert %s still listed as unresolved", id)
		}
	}
}

func TestResolveUnknownAlert(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "resolve", "missing", "--engine", "prescription")
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.Entity != domain.EntityAlert || nf.ID != "missing" {
		t.Fatalf("expected alert not found, got %v", err)
	}
	if _, err := run(t, "resolve", "x", "--engine", "billing"); err == nil {
		t.Fatalf("expected unknown engine error")
	}
}

func TestBackupAndRestore(t *testing.T) {
	setupEnv(t)
	mustRun(t, "notify", "LOW_STOCK", "itemName=Aspirin", "quantity=3", "unit=tablets")

	key := strings.TrimSpace(mustRun(t, "backup"))
	if !strings.HasPrefix(key, kv.BackupPrefix) {
		t.Fatalf("unexpected backup key %q", key)
	}

	mustRun(t, "notify", "LOW_STOCK", "itemName=Ibuprofen", "quantity=1", "unit=tablets")
	if out := mustRun(t, "restore", key); !strings.Contains(out, "restored 1 keys") {
		t.Fatalf("unexpected restore output %q", out)
	}

	var alerts alertListing
	if err := json.Unmarshal([]byte(mustRun(t, "alerts", "--all", "--notifications")), &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts.Notifications) != 1 || !strings.Contains(alerts.Notifications[0].Message, "Aspirin") {
		t.Fatalf("restore should bring back the single Aspirin notice, got %+v", alerts.Notifications)
	}
}

func TestRestoreWithoutBackupFails(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "restore")
	if !errors.Is(err, kv.ErrNoBackup) {
		t.Fatalf("expected ErrNoBackup, got %v", err)
	}
}

func TestNotifyRejectsUnknownTemplate(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "notify", "NO_SUCH_TEMPLATE")
	if !errors.Is(err, core.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestParseFields(t *testing.T) {
	data, err := parseFields([]string{"itemName=Aspirin", "note=a=b"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if data["itemName"] != "Aspirin" || data["note"] != "a=b" {
		t.Fatalf("unexpected fields %v", data)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseFields([]string{bad}); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestInvalidConfigStopsCommand(t *testing.T) {
	setupEnv(t)
	t.Setenv(config.EnvStorageDriver, "cassandra")
	if _, err := run(t, "stats"); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestMainExitCode(t *testing.T) {
	setupEnv(t)
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"pharmacore", "no-such-command"}
	main()
	if len(codes) != 1 || codes[0] != 1 {
		t.Fatalf("unexpected exit codes: %v", codes)
	}
}
