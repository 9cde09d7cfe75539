// Package app wires configuration, storage and integrations into the
// ticketreport command line.
package app

import (
	"database/sql"
	"log"
	"os"

	"ticketreport/internal/config"
	"ticketreport/internal/domain"
	"ticketreport/internal/httpx"
	slackbot "ticketreport/internal/integrations/slack"
	"ticketreport/internal/pipeline"
	"ticketreport/internal/storage/sqlite"
)

// env is everything a command needs once configuration has loaded.
type env struct {
	cfg    config.Config
	db     *sql.DB
	runner *pipeline.Runner
}

func Main() {
	root := newRootCmd(setup)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and opens the run history database. asOf pins
// the reference date used for SLA ages; nil means today.
func setup(asOf domain.Clock) (*env, error) {
	cfg := config.LoadConfig()
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. OutputDir=%s Inbox=%s RetainStatus=%s ProtectedStatus=%s Timezone=%s Digest=%t Slack=%t ExternalHTTPTimeout=%s",
		cfg.ReportOutputDir,
		cfg.InboxDir,
		cfg.RetainStatus,
		cfg.ProtectedStatus,
		cfg.Timezone,
		cfg.DigestConfigured(),
		cfg.SlackConfigured(),
		appliedHTTPTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("Database initialized at %s", cfg.DBPath)

	runner := pipeline.New(cfg, db, slackbot.NewNotifier(cfg), asOf)
	return &env{cfg: cfg, db: db, runner: runner}, nil
}

func (e *env) Close() {
	if e.db != nil {
		e.db.Close()
	}
}
