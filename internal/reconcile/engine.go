package reconcile

import (
	"fmt"
	"log"
	"path/filepath"

	"ticketreport/internal/domain"
	"ticketreport/internal/ingest"
	"ticketreport/internal/render"
)

// Engine runs a reconciliation against two artifacts on disk.
type Engine struct {
	Options      MergeOptions
	BackupSuffix string

	// Seams for tests.
	read  func(path string) (domain.Dataset, error)
	write func(path string, target domain.Dataset, changed map[string]bool) error
}

func NewEngine(opts MergeOptions, backupSuffix string) *Engine {
	return &Engine{
		Options:      opts,
		BackupSuffix: backupSuffix,
		read:         ingest.ReadFile,
		write:        render.ApplyRemarks,
	}
}

// Run reads both snapshots, checks their schema, backs up the target, then
// merges and writes the changed remarks back. Schema failures abort before
// the backup is taken; a failed write leaves the backup in place.
func (e *Engine) Run(sourcePath, targetPath string) (domain.ReconciliationResult, error) {
	source, err := e.read(sourcePath)
	if err != nil {
		return domain.ReconciliationResult{}, fmt.Errorf("reading source: %w", err)
	}
	target, err := e.read(targetPath)
	if err != nil {
		return domain.ReconciliationResult{}, fmt.Errorf("reading target: %w", err)
	}
	if err := CheckSchema(filepath.Base(sourcePath), source, filepath.Base(targetPath), target); err != nil {
		return domain.ReconciliationResult{}, err
	}

	backup, err := Snapshot(targetPath, e.BackupSuffix)
	if err != nil {
		return domain.ReconciliationResult{}, err
	}
	log.Printf("reconcile backup target=%s backup=%s", targetPath, backup)

	res := Merge(source, target, e.Options)
	res.BackupPath = backup
	log.Printf("reconcile merged target=%s records=%d changed=%d protected=%d not_found=%d",
		targetPath, res.Target.Len(), len(res.Changed), res.Protected, res.NotFound)

	if len(res.Changed) == 0 {
		return res, nil
	}
	if err := e.write(targetPath, res.Target, res.ChangedSet()); err != nil {
		return res, fmt.Errorf("writing target (backup kept at %s): %w", backup, err)
	}
	return res, nil
}
