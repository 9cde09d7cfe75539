package sqlite

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"ticketreport/internal/domain"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		kind           TEXT NOT NULL,
		input_path     TEXT NOT NULL DEFAULT '',
		source_path    TEXT DEFAULT '',
		output_path    TEXT DEFAULT '',
		backup_path    TEXT DEFAULT '',
		total          INTEGER DEFAULT 0,
		retained       INTEGER DEFAULT 0,
		dropped        INTEGER DEFAULT 0,
		unparsed_dates INTEGER DEFAULT 0,
		changed        INTEGER DEFAULT 0,
		changed_ids    TEXT DEFAULT '',
		status         TEXT NOT NULL,
		error          TEXT DEFAULT '',
		started_at     DATETIME NOT NULL,
		finished_at    DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func InsertRun(db *sql.DB, run domain.Run) error {
	_, err := db.Exec(
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.InputPath, run.SourcePath, run.OutputPath, run.BackupPath,
		run.Total, run.Retained, run.Dropped, run.UnparsedDates, run.Changed,
		strings.Join(run.ChangedIDs, ","), run.Status, run.Error, run.StartedAt, run.FinishedAt,
	)
	return err
}

const runColumns = `id, kind, input_path, source_path, output_path, backup_path,
	total, retained, dropped, unparsed_dates, changed, changed_ids, status, error, started_at, finished_at`

// GetRecentRuns returns up to limit runs, newest first. An empty kind matches every run.
func GetRecentRuns(db *sql.DB, kind string, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return queryRuns(db, `WHERE (? = '' OR kind = ?) ORDER BY started_at DESC, id LIMIT ?`, kind, kind, limit)
}

func GetRun(db *sql.DB, id string) (domain.Run, bool, error) {
	runs, err := queryRuns(db, `WHERE id = ?`, id)
	if err != nil || len(runs) == 0 {
		return domain.Run{}, false, err
	}
	return runs[0], true, nil
}

func queryRuns(db *sql.DB, where string, args ...any) ([]domain.Run, error) {
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		var changedIDs string
		err := rows.Scan(
			&run.ID, &run.Kind, &run.InputPath, &run.SourcePath, &run.OutputPath, &run.BackupPath,
			&run.Total, &run.Retained, &run.Dropped, &run.UnparsedDates, &run.Changed,
			&changedIDs, &run.Status, &run.Error, &run.StartedAt, &run.FinishedAt,
		)
		if err != nil {
			return nil, err
		}
		if changedIDs != "" {
			run.ChangedIDs = strings.Split(changedIDs, ",")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
