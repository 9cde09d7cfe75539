// Package pipeline runs the convert and reconcile operations end to end and
// records each run.
package pipeline

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticketreport/internal/config"
	"ticketreport/internal/domain"
	"ticketreport/internal/ingest"
	llm "ticketreport/internal/integrations/llm"
	slackbot "ticketreport/internal/integrations/slack"
	"ticketreport/internal/reconcile"
	"ticketreport/internal/render"
	"ticketreport/internal/report"
	"ticketreport/internal/storage/sqlite"
)

const reportSuffix = "_report.xlsx"

// Runner serialises operations so scheduled and watched conversions never overlap.
type Runner struct {
	cfg      config.Config
	db       *sql.DB
	notifier *slackbot.Notifier
	clock    domain.Clock

	mu sync.Mutex

	digestFn func(cfg config.Config, detail domain.Dataset, pivot report.PivotTable) (string, llm.LLMUsage, error)
}

// New builds a Runner. db and notifier may be nil.
func New(cfg config.Config, db *sql.DB, notifier *slackbot.Notifier, clock domain.Clock) *Runner {
	if clock == nil {
		clock = domain.SystemClock{Location: cfg.Location}
	}
	return &Runner{
		cfg:      cfg,
		db:       db,
		notifier: notifier,
		clock:    clock,
		digestFn: llm.GenerateDigest,
	}
}

// ConvertResult is what a conversion hands back to the caller for display.
type ConvertResult struct {
	Run    domain.Run
	Detail domain.Dataset
	Pivot  report.PivotTable
	Digest string
}

// Convert turns a ticket export into the two-sheet report. An empty
// outputPath places the report in the configured output directory.
func (r *Runner) Convert(inputPath, outputPath string) (ConvertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if outputPath == "" {
		outputPath = DefaultOutputPath(r.cfg.ReportOutputDir, inputPath)
	}
	run := r.newRun(domain.RunKindConvert)
	run.InputPath = inputPath
	run.OutputPath = outputPath

	res, err := r.convert(inputPath, outputPath, &run)
	res.Run = r.finish(run, err)
	if err != nil {
		return res, err
	}

	if r.cfg.DigestConfigured() {
		digest, usage, derr := r.digestFn(r.cfg, res.Detail, res.Pivot)
		if derr != nil {
			log.Printf("convert digest error run=%s: %v", run.ID, derr)
		} else {
			log.Printf("convert digest run=%s tokens=%d", run.ID, usage.TotalTokens())
			res.Digest = digest
		}
	}
	r.notify(res.Run, res.Digest)
	return res, nil
}

func (r *Runner) convert(inputPath, outputPath string, run *domain.Run) (ConvertResult, error) {
	ds, err := ingest.ReadFile(inputPath)
	if err != nil {
		return ConvertResult{}, err
	}
	if err := report.Validate(ds, domain.RequiredColumns); err != nil {
		return ConvertResult{}, err
	}

	detail, stats := report.Enrich(ds, report.EnrichOptions{
		RetainStatus: r.cfg.RetainStatus,
		Clock:        r.clock,
		Location:     r.cfg.Location,
	})
	run.Total = stats.Total
	run.Retained = stats.Retained
	run.Dropped = stats.Dropped
	run.UnparsedDates = stats.UnparsedDates

	pivot := report.BuildPivot(detail.Records, report.ByTechnician, report.ByAge)

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return ConvertResult{}, &domain.IOError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	style := render.Style{RowHeight: r.cfg.RowHeight, MaxColumnWidth: r.cfg.MaxColumnWidth}
	if err := render.WriteReport(outputPath, detail, pivot, style); err != nil {
		return ConvertResult{}, err
	}
	log.Printf("convert done input=%s output=%s total=%d retained=%d unparsed_dates=%d",
		inputPath, outputPath, stats.Total, stats.Retained, stats.UnparsedDates)
	return ConvertResult{Detail: detail, Pivot: pivot}, nil
}

// Reconcile copies remarks from sourcePath into targetPath.
func (r *Runner) Reconcile(sourcePath, targetPath string) (domain.Run, domain.ReconciliationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.newRun(domain.RunKindReconcile)
	run.InputPath = targetPath
	run.SourcePath = sourcePath
	run.OutputPath = targetPath

	engine := reconcile.NewEngine(reconcile.MergeOptions{
		ProtectedStatus: r.cfg.ProtectedStatus,
		NotFoundRemark:  r.cfg.NotFoundRemark,
	}, r.cfg.BackupSuffix)
	res, err := engine.Run(sourcePath, targetPath)
	run.BackupPath = res.BackupPath
	run.Total = res.Target.Len()
	run.Changed = len(res.Changed)
	run.ChangedIDs = res.Changed

	run = r.finish(run, err)
	r.notify(run, "")
	return run, res, err
}

func (r *Runner) newRun(kind string) domain.Run {
	return domain.Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
}

func (r *Runner) finish(run domain.Run, err error) domain.Run {
	run.FinishedAt = time.Now().UTC()
	run.Status = domain.RunStatusOK
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		log.Printf("%s failed run=%s: %v", run.Kind, run.ID, err)
	}
	if r.db != nil {
		if dbErr := sqlite.InsertRun(r.db, run); dbErr != nil {
			log.Printf("Error recording run %s: %v", run.ID, dbErr)
		}
	}
	return run
}

func (r *Runner) notify(run domain.Run, digest string) {
	if err := r.notifier.PostRun(run, digest); err != nil {
		log.Printf("notify error run=%s: %v", run.ID, err)
	}
}

// DefaultOutputPath maps tickets.csv to <dir>/tickets_report.xlsx.
func DefaultOutputPath(dir, inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	return filepath.Join(dir, stem+reportSuffix)
}

// NeedsConversion reports whether inputPath has no report yet or a report
// older than the export itself.
func NeedsConversion(inputPath, outputPath string) (bool, error) {
	in, err := os.Stat(inputPath)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", inputPath, err)
	}
	out, err := os.Stat(outputPath)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", outputPath, err)
	}
	return in.ModTime().After(out.ModTime()), nil
}

// ConvertIfStale converts inputPath into the output directory unless an up
// to date report already exists. It reports whether a conversion ran.
func (r *Runner) ConvertIfStale(inputPath string) (bool, error) {
	outputPath := DefaultOutputPath(r.cfg.ReportOutputDir, inputPath)
	need, err := NeedsConversion(inputPath, outputPath)
	if err != nil || !need {
		return false, err
	}
	_, err = r.Convert(inputPath, outputPath)
	return true, err
}
