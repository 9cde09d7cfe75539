package report

import (
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"ticketreport/internal/domain"
)

type EnrichOptions struct {
	RetainStatus string
	Clock        domain.Clock
	Location     *time.Location
}

// EnrichStats summarises one Enrich pass for logging and run history.
type EnrichStats struct {
	Total         int
	Retained      int
	Dropped       int
	UnparsedDates int
}

// Enrich keeps the open tickets, computes their age in days against the
// reference date and returns them oldest first. A record with no creation
// date but an age already read from SLA keeps that age. Records whose
// creation date does not parse keep a nil age and sort after every dated record; equal
// ages fall back to case number order.
func Enrich(ds domain.Dataset, opts EnrichOptions) (domain.Dataset, EnrichStats) {
	retain := opts.RetainStatus
	if retain == "" {
		retain = domain.StatusNew
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{Location: loc}
	}
	ref := domain.DateOnly(clock.Now().In(loc))

	stats := EnrichStats{Total: len(ds.Records)}
	out := domain.Dataset{Columns: append([]string(nil), domain.DetailColumns...)}

	for _, in := range ds.Records {
		if in.Status != retain {
			stats.Dropped++
			continue
		}
		rec := in.Clone()
		if strings.TrimSpace(rec.Created) == "" && rec.Age != nil {
			// SLA already carried a day count and there is no date to recompute it from.
			out.Records = append(out.Records, withRemarks(rec))
			continue
		}
		age, err := AgeInDays(rec.Created, ref, loc)
		if err != nil {
			var perr *domain.ParseError
			if errors.As(err, &perr) {
				perr.CaseNumber = rec.CaseNumber
			}
			log.Printf("enrich: %v", err)
			stats.UnparsedDates++
			rec.Age = nil
		} else {
			rec.Age = &age
		}
		out.Records = append(out.Records, withRemarks(rec))
	}
	stats.Retained = len(out.Records)

	SortByAge(out.Records)
	return out, stats
}

func withRemarks(rec domain.Record) domain.Record {
	if !rec.HasRemarks {
		rec.Remarks = ""
		rec.HasRemarks = true
	}
	return rec
}

// AgeInDays returns the whole-day distance from created to ref. Ambiguous
// numeric dates are read day first (03/04/2024 is 3 April).
func AgeInDays(created string, ref time.Time, loc *time.Location) (int, error) {
	raw := strings.TrimSpace(created)
	if raw == "" {
		return 0, &domain.ParseError{Value: created, Err: errors.New("empty date")}
	}
	t, err := dateparse.ParseIn(raw, loc, dateparse.PreferMonthFirst(false))
	if err != nil {
		return 0, &domain.ParseError{Value: created, Err: err}
	}
	return daysBetween(t.In(loc), ref), nil
}

// daysBetween counts calendar days so DST shifts never lose or add a day.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// SortByAge orders records by age descending, unknown ages last, then by case number.
func SortByAge(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ai, aj := records[i].Age, records[j].Age
		switch {
		case ai == nil && aj == nil:
			return records[i].CaseNumber < records[j].CaseNumber
		case ai == nil:
			return false
		case aj == nil:
			return true
		case *ai != *aj:
			return *ai > *aj
		}
		return records[i].CaseNumber < records[j].CaseNumber
	})
}
