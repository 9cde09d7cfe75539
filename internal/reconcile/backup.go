package reconcile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"ticketreport/internal/domain"
)

const DefaultBackupSuffix = "_backup"

// BackupPath derives the snapshot name: report.xlsx becomes report_backup.xlsx.
func BackupPath(target, suffix string) string {
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)
	return stem + suffix + ext
}

// Snapshot copies target to its backup path, replacing any earlier backup.
func Snapshot(target, suffix string) (string, error) {
	data, err := os.ReadFile(target)
	if err != nil {
		return "", &domain.IOError{Op: "read", Path: target, Err: err}
	}
	dst := BackupPath(target, suffix)
	if err := atomic.WriteFile(dst, bytes.NewReader(data)); err != nil {
		return "", &domain.IOError{Op: "backup", Path: dst, Err: err}
	}
	return dst, nil
}
