package domain

import "time"

const (
	RunKindConvert   = "convert"
	RunKindReconcile = "reconcile"

	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)

// Run is one conversion or reconciliation as kept in the history table.
type Run struct {
	ID            string
	Kind          string
	InputPath     string // export for convert, target artifact for reconcile
	SourcePath    string // reconcile only
	OutputPath    string
	BackupPath    string
	Total         int
	Retained      int
	Dropped       int
	UnparsedDates int
	Changed       int
	ChangedIDs    []string
	Status        string
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}
