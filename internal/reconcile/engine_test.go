package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ticketreport/internal/domain"
)

func TestBackupPath(t *testing.T) {
	tests := []struct {
		in, suffix, want string
	}{
		{"/data/report.xlsx", "", "/data/report_backup.xlsx"},
		{"report.v2.xlsx", "_bak", "report.v2_bak.xlsx"},
		{"export", "", "export_backup"},
	}
	for _, tt := range tests {
		if got := BackupPath(tt.in, tt.suffix); got != tt.want {
			t.Errorf("BackupPath(%q, %q) = %q, want %q", tt.in, tt.suffix, got, tt.want)
		}
	}
}

func fakeEngine(t *testing.T, src, tgt domain.Dataset) (*Engine, *map[string]bool, string) {
	t.Helper()
	dir := t.TempDir()
	targetPath := filepath.Join(dir, "target.xlsx")
	if err := os.WriteFile(targetPath, []byte("original bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	var written map[string]bool
	e := NewEngine(MergeOptions{}, "")
	e.read = func(path string) (domain.Dataset, error) {
		if path == targetPath {
			return tgt, nil
		}
		return src, nil
	}
	e.write = func(path string, target domain.Dataset, changed map[string]bool) error {
		written = changed
		return os.WriteFile(path, []byte("updated"), 0644)
	}
	return e, &written, targetPath
}

func TestEngineRunBacksUpBeforeWriting(t *testing.T) {
	e, written, targetPath := fakeEngine(t,
		source("C2", "fixed"),
		target(ticket("C1", "Completed", "done"), ticket("C2", "New", "")),
	)

	res, err := e.Run(filepath.Join(filepath.Dir(targetPath), "source.xlsx"), targetPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	backup, err := os.ReadFile(res.BackupPath)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != "original bytes" {
		t.Fatalf("backup content = %q", backup)
	}
	if !(*written)["C2"] || len(*written) != 1 {
		t.Fatalf("unexpected changed set passed to writer: %v", *written)
	}
}

func TestEngineRunSchemaErrorSkipsBackup(t *testing.T) {
	e, written, targetPath := fakeEngine(t,
		domain.Dataset{Columns: []string{domain.ColCaseNumber}},
		target(ticket("C1", "New", "")),
	)

	_, err := e.Run("source.csv", targetPath)
	var serr *domain.SchemaError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if _, statErr := os.Stat(BackupPath(targetPath, "")); !os.IsNotExist(statErr) {
		t.Fatalf("backup must not exist after schema failure, stat err=%v", statErr)
	}
	if *written != nil {
		t.Fatal("target must not be written after schema failure")
	}
}

func TestEngineRunWriteFailureKeepsBackup(t *testing.T) {
	e, _, targetPath := fakeEngine(t, source(), target(ticket("C1", "New", "")))
	e.write = func(string, domain.Dataset, map[string]bool) error {
		return &domain.IOError{Op: "write", Path: targetPath, Err: errors.New("disk full")}
	}

	_, err := e.Run("source.csv", targetPath)
	var ioErr *domain.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if _, statErr := os.Stat(BackupPath(targetPath, "")); statErr != nil {
		t.Fatalf("backup should survive failed write: %v", statErr)
	}
}

func TestEngineRunNoChangesSkipsWrite(t *testing.T) {
	e, written, targetPath := fakeEngine(t, source("C1", "same"), target(ticket("C1", "New", "same")))

	res, err := e.Run("source.csv", targetPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Changed) != 0 || *written != nil {
		t.Fatalf("expected no write, changed=%v written=%v", res.Changed, *written)
	}
}
