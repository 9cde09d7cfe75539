package report

import (
	"testing"
	"time"

	"ticketreport/internal/domain"
)

var refDate = time.Date(2026, 3, 20, 15, 30, 0, 0, time.UTC)

func enrichOpts() EnrichOptions {
	return EnrichOptions{
		RetainStatus: domain.StatusNew,
		Clock:        domain.FixedClock(refDate),
		Location:     time.UTC,
	}
}

func rec(id, status, tech, created string) domain.Record {
	return domain.Record{CaseNumber: id, Status: status, Technician: tech, Created: created}
}

func TestEnrichKeepsOnlyNewRecords(t *testing.T) {
	ds := domain.Dataset{Records: []domain.Record{
		rec("C1", "New", "A", "15/03/2026"),
		rec("C2", "Completed", "A", "15/03/2026"),
		rec("C3", "Scheduled", "B", "15/03/2026"),
		rec("C4", "New", "B", "18/03/2026"),
		rec("C5", "new", "B", "18/03/2026"),
	}}

	out, stats := Enrich(ds, enrichOpts())

	if out.Len() != 2 {
		t.Fatalf("expected 2 retained records, got %d", out.Len())
	}
	for _, r := range out.Records {
		if r.Status != domain.StatusNew {
			t.Fatalf("unexpected status %q in output", r.Status)
		}
	}
	if stats.Retained+stats.Dropped != stats.Total || stats.Total != 5 {
		t.Fatalf("stats do not add up: %+v", stats)
	}
}

func TestEnrichAgeIsWholeDays(t *testing.T) {
	created := refDate.AddDate(0, 0, -5).Format("02/01/2006 15:04")
	out, _ := Enrich(domain.Dataset{Records: []domain.Record{rec("C1", "New", "A", created)}}, enrichOpts())

	age := out.Records[0].Age
	if age == nil || *age != 5 {
		t.Fatalf("expected age 5, got %v", age)
	}
}

func TestAgeInDaysPrefersDayFirst(t *testing.T) {
	got, err := AgeInDays("03/04/2026", time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("AgeInDays failed: %v", err)
	}
	if got != 10 {
		t.Fatalf("expected 03/04 to read as 3 April (10 days), got %d", got)
	}
}

func TestAgeInDaysISOTimestamp(t *testing.T) {
	got, err := AgeInDays("2026-03-01 08:00:00", refDate, time.UTC)
	if err != nil {
		t.Fatalf("AgeInDays failed: %v", err)
	}
	if got != 19 {
		t.Fatalf("expected 19, got %d", got)
	}
}

func TestEnrichUnparseableDateKeepsRecord(t *testing.T) {
	ds := domain.Dataset{Records: []domain.Record{
		rec("C1", "New", "A", "not a date"),
		rec("C2", "New", "A", ""),
		rec("C3", "New", "A", "10/03/2026"),
	}}

	out, stats := Enrich(ds, enrichOpts())

	if out.Len() != 3 {
		t.Fatalf("expected all 3 records retained, got %d", out.Len())
	}
	if stats.UnparsedDates != 2 {
		t.Fatalf("expected 2 unparsed dates, got %d", stats.UnparsedDates)
	}
	if out.Records[0].CaseNumber != "C3" {
		t.Fatalf("expected dated record first, got %s", out.Records[0].CaseNumber)
	}
	for _, r := range out.Records[1:] {
		if r.Age != nil {
			t.Fatalf("expected nil age for %s, got %d", r.CaseNumber, *r.Age)
		}
	}
}

func TestEnrichSortsByAgeThenCaseNumber(t *testing.T) {
	ds := domain.Dataset{Records: []domain.Record{
		rec("C9", "New", "A", "19/03/2026"),
		rec("C2", "New", "A", "10/03/2026"),
		rec("C7", "New", "A", "bad"),
		rec("C1", "New", "A", "19/03/2026"),
		rec("C3", "New", "A", "bogus"),
	}}

	out, _ := Enrich(ds, enrichOpts())

	var got []string
	for _, r := range out.Records {
		got = append(got, r.CaseNumber)
	}
	want := []string{"C2", "C1", "C9", "C3", "C7"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestEnrichInitialisesRemarksAndDetailColumns(t *testing.T) {
	withRemark := rec("C1", "New", "A", "19/03/2026")
	withRemark.Remarks = "call back"
	withRemark.HasRemarks = true
	ds := domain.Dataset{Records: []domain.Record{withRemark, rec("C2", "New", "A", "19/03/2026")}}

	out, _ := Enrich(ds, enrichOpts())

	if cols := out.Columns; cols[len(cols)-1] != domain.ColRemarks || cols[1] != domain.ColSLA {
		t.Fatalf("unexpected detail columns: %v", cols)
	}
	for _, r := range out.Records {
		if !r.HasRemarks {
			t.Fatalf("expected remarks initialised for %s", r.CaseNumber)
		}
	}
	if out.Records[0].Remarks != "call back" {
		t.Fatalf("existing remark lost: %q", out.Records[0].Remarks)
	}
}

func TestEnrichDoesNotMutateInput(t *testing.T) {
	in := rec("C1", "New", "A", "19/03/2026")
	in.Extra = map[string]string{"Region": "North"}
	ds := domain.Dataset{Records: []domain.Record{in}}

	out, _ := Enrich(ds, enrichOpts())
	out.Records[0].Extra["Region"] = "South"

	if ds.Records[0].Age != nil || ds.Records[0].Extra["Region"] != "North" {
		t.Fatalf("input record was modified: %+v", ds.Records[0])
	}
	if out.Records[0].AgeLabel() != "1" {
		t.Fatalf("expected computed age label 1, got %q", out.Records[0].AgeLabel())
	}
}

func TestEnrichKeepsIngestedAgeWithoutCreationDate(t *testing.T) {
	var counted domain.Record
	counted.SetField(domain.ColCaseNumber, "C1")
	counted.SetField(domain.ColStatus, "New")
	counted.SetField(domain.ColSLA, "5")
	dated := rec("C2", "New", "A", "19/03/2026")
	dated.SetField(domain.ColSLA, "40")

	out, stats := Enrich(domain.Dataset{Records: []domain.Record{counted, dated}}, enrichOpts())

	if stats.UnparsedDates != 0 {
		t.Fatalf("unparsed = %d, want 0", stats.UnparsedDates)
	}
	if got := out.Records[0]; got.CaseNumber != "C1" || got.Age == nil || *got.Age != 5 {
		t.Fatalf("ingested age lost: %+v", got)
	}
	if got := out.Records[1]; got.CaseNumber != "C2" || got.AgeLabel() != "1" {
		t.Fatalf("creation date should win over a stale SLA count: %+v", got)
	}
	if !out.Records[0].HasRemarks {
		t.Fatal("remarks not initialised")
	}
}
