package report

import "ticketreport/internal/domain"

// Validate checks that ds exposes every required column. All missing
// columns are reported together, in the order they were requested.
func Validate(ds domain.Dataset, required []string) error {
	var missing []string
	for _, col := range required {
		if !ds.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Missing: missing}
	}
	return nil
}
