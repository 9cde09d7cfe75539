// Package schedule converts the newest export in the inbox on a cron schedule.
package schedule

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"ticketreport/internal/config"
)

// Converter is the part of pipeline.Runner the scheduler needs.
type Converter interface {
	ConvertIfStale(inputPath string) (bool, error)
}

// LatestExport returns the most recently modified CSV in dir, or "" when there is none.
func LatestExport(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var latest string
	var latestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !IsExport(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, e.Name())
			latestMod = info.ModTime()
		}
	}
	return latest, nil
}

// IsExport reports whether name looks like a ticket export.
func IsExport(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".csv")
}

// RunOnce converts the newest export if its report is missing or stale.
func RunOnce(inboxDir string, conv Converter) (string, error) {
	latest, err := LatestExport(inboxDir)
	if err != nil {
		return "", fmt.Errorf("scanning inbox: %w", err)
	}
	if latest == "" {
		return "No export found in inbox.", nil
	}
	ran, err := conv.ConvertIfStale(latest)
	if err != nil {
		return "", err
	}
	if !ran {
		return fmt.Sprintf("%s is already up to date.", filepath.Base(latest)), nil
	}
	return fmt.Sprintf("Converted %s.", filepath.Base(latest)), nil
}

// StartAutoConvertScheduler starts the cron scheduler. The schedule is a
// standard 5-field cron expression, e.g. "0 7 * * 1-5" for weekdays at 7am.
// It returns nil when auto-convert is disabled.
func StartAutoConvertScheduler(cfg config.Config, conv Converter) *cron.Cron {
	spec := strings.TrimSpace(cfg.AutoConvertSchedule)
	if spec == "" {
		log.Println("Auto-convert disabled (auto_convert_schedule not set)")
		return nil
	}
	sched, err := config.ParseSchedule(spec)
	if err != nil {
		log.Printf("Invalid auto_convert_schedule '%s': %v; auto-convert disabled", spec, err)
		return nil
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	c.Schedule(sched, cron.FuncJob(func() {
		summary, err := RunOnce(cfg.InboxDir, conv)
		if err != nil {
			log.Printf("Auto-convert error: %v", err)
			return
		}
		log.Printf("Auto-convert complete: %s", summary)
	}))
	c.Start()

	next := sched.Next(time.Now().In(loc))
	log.Printf("Auto-convert scheduled (cron: %s) inbox=%s next=%s", spec, cfg.InboxDir, next.Format("Mon Jan 2 15:04"))
	return c
}
