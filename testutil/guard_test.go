package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingFatal struct{ msgs []string }

func (r *recordingFatal) Fatalf(format string, args ...any) {
	r.msgs = append(r.msgs, fmt.Sprintf(format, args...))
}

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		name string
		pred func(string) bool
		in   string
		want bool
	}{
		{"internal core", InternalImport, "pharmacore/internal/core", true},
		{"internal elsewhere", InternalImport, "example.com/mod/internal/x", true},
		{"domain", InternalImport, "pharmacore/pkg/domain", false},
		{"infra kv", InfraImport, "pharmacore/internal/infra/kv/sqlite", true},
		{"kv facade", InfraImport, "pharmacore/internal/kv", false},
		{"infrastructure lookalike", InfraImport, "pharmacore/internal/infrastructure", false},
		{"pgx", DriverImport, "github.com/jackc/pgx/v5/pgxpool", true},
		{"sqlite", DriverImport, "modernc.org/sqlite", true},
		{"s3", DriverImport, "github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"decimal", DriverImport, "github.com/shopspring/decimal", false},
		{"http", TransportImport, "net/http", true},
		{"httptest", TransportImport, "net/http/httptest", true},
		{"cobra", TransportImport, "github.com/spf13/cobra", true},
		{"prometheus core", TransportImport, "github.com/prometheus/client_golang/prometheus", false},
		{"empty", DriverImport, "", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("%s: predicate(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
}

func TestAnyOf(t *testing.T) {
	pred := AnyOf(DriverImport, TransportImport)
	if !pred("net/http") || !pred("modernc.org/sqlite") || pred("fmt") {
		t.Fatalf("AnyOf should match either predicate only")
	}
	if AnyOf()("anything") {
		t.Fatalf("empty AnyOf should match nothing")
	}
}

func TestAssertNoDirectImportsIgnoresTestsAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "store.go", "package tmp\nimport (\n\t\"fmt\"\n\talias \"context\"\n)\nfunc X() { fmt.Println(alias.Background()) }\n")
	writeGo(t, dir, "store_test.go", "package tmp\nimport _ \"modernc.org/sqlite\"\n")
	writeGo(t, dir, "notes.txt", "import \"modernc.org/sqlite\"")
	sub := filepath.Join(dir, "sqlite")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGo(t, sub, "driver.go", "package sqlite\nimport _ \"modernc.org/sqlite\"\n")

	AssertNoDirectImports(t, dir, DriverImport, "engines use kv.Store")
}

func TestDirectImportViolationsReported(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package tmp\nimport _ \"github.com/jackc/pgx/v5\"\n")
	writeGo(t, dir, "b.go", "package tmp\nimport \"fmt\"\nvar _ = fmt.Sprint\n")

	viols, err := directImportViolations(dir, DriverImport)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "github.com/jackc/pgx/v5 (in a.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	rec := &recordingFatal{}
	failIfDirectViolations(rec, "no drivers", viols)
	if len(rec.msgs) != 1 || !strings.Contains(rec.msgs[0], "no drivers") {
		t.Fatalf("expected one failure naming the reason, got %v", rec.msgs)
	}
}

func TestDirectImportViolationsBadSource(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "broken.go", "this is not go")
	if _, err := directImportViolations(dir, DriverImport); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), DriverImport); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestFailIfTransitiveViolations(t *testing.T) {
	rec := &recordingFatal{}
	failIfTransitiveViolations(rec, "reason", nil)
	if len(rec.msgs) != 0 {
		t.Fatalf("no violations should not fail: %v", rec.msgs)
	}
	failIfTransitiveViolations(rec, "reason", []string{"modernc.org/sqlite"})
	if len(rec.msgs) != 1 || !strings.Contains(rec.msgs[0], "modernc.org/sqlite") {
		t.Fatalf("unexpected failure output %v", rec.msgs)
	}
}

func TestAssertNoTransitiveDependency(t *testing.T) {
	AssertNoTransitiveDependency(t, ModulePath+"/pkg/domain", AnyOf(InternalImport, DriverImport, TransportImport),
		"the domain model depends on nothing but decimal and the standard library")
}
