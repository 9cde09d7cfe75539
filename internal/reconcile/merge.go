// Package reconcile carries the remarks column from one ticket snapshot into
// another, leaving closed tickets alone and recording which rows changed.
package reconcile

import (
	"strings"

	"ticketreport/internal/domain"
)

type MergeOptions struct {
	ProtectedStatus string
	NotFoundRemark  string
}

func (o MergeOptions) withDefaults() MergeOptions {
	if o.ProtectedStatus == "" {
		o.ProtectedStatus = domain.StatusCompleted
	}
	if o.NotFoundRemark == "" {
		o.NotFoundRemark = domain.NotFoundRemark
	}
	return o
}

var (
	sourceRequired = []string{domain.ColCaseNumber, domain.ColRemarks}
	targetRequired = []string{domain.ColCaseNumber, domain.ColStatus, domain.ColRemarks}
)

// CheckSchema verifies both snapshots carry the columns Merge reads.
func CheckSchema(sourceName string, source domain.Dataset, targetName string, target domain.Dataset) error {
	if missing := missingColumns(source, sourceRequired); len(missing) > 0 {
		return &domain.SchemaError{Artifact: sourceName, Missing: missing}
	}
	if missing := missingColumns(target, targetRequired); len(missing) > 0 {
		return &domain.SchemaError{Artifact: targetName, Missing: missing}
	}
	return nil
}

func missingColumns(ds domain.Dataset, required []string) []string {
	var missing []string
	for _, col := range required {
		if !ds.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// RemarkLookup indexes source remarks by case number. A repeated case
// number keeps its last remark.
func RemarkLookup(source domain.Dataset) map[string]string {
	lookup := make(map[string]string, len(source.Records))
	for _, rec := range source.Records {
		if rec.CaseNumber == "" {
			continue
		}
		lookup[rec.CaseNumber] = rec.Remarks
	}
	return lookup
}

// Merge returns a copy of target with remarks pulled from source. Tickets in
// the protected status, and rows without a case number, are copied through
// untouched. A ticket missing from source gets the not-found remark. A row
// counts as changed only when the trimmed remark text actually differs, so
// re-running with the same source reports nothing. An empty remark replaced
// by an empty source remark is not a change.
func Merge(source, target domain.Dataset, opts MergeOptions) domain.ReconciliationResult {
	opts = opts.withDefaults()
	lookup := RemarkLookup(source)

	res := domain.ReconciliationResult{
		Target: domain.Dataset{
			Columns: append([]string(nil), target.Columns...),
			Records: make([]domain.Record, 0, len(target.Records)),
		},
	}
	for _, in := range target.Records {
		rec := in.Clone()
		if rec.Status == opts.ProtectedStatus {
			res.Protected++
			res.Target.Records = append(res.Target.Records, rec)
			continue
		}
		if rec.CaseNumber == "" {
			res.Unchanged++
			res.Target.Records = append(res.Target.Records, rec)
			continue
		}

		next, ok := lookup[rec.CaseNumber]
		if !ok {
			next = opts.NotFoundRemark
			res.NotFound++
		}
		current := strings.TrimSpace(rec.Remarks)
		wanted := strings.TrimSpace(next)
		if wanted != current {
			rec.Remarks = next
			rec.HasRemarks = true
			res.MarkChanged(rec.CaseNumber)
		} else {
			res.Unchanged++
		}
		res.Target.Records = append(res.Target.Records, rec)
	}
	return res
}
