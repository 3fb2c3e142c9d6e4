package preprocess

import (
	"fmt"
	"time"

	"fjacquet/finance-ml/internal/models"
)

// QualityReport summarizes defects in a transaction batch. The score is
// 1 minus the issue rate, floored at zero.
type QualityReport struct {
	TotalRows           int     `json:"total_rows"`
	MissingDescriptions int     `json:"missing_descriptions"`
	MissingAmounts      int     `json:"missing_amounts"`
	MissingDates        int     `json:"missing_dates"`
	DuplicateRows       int     `json:"duplicate_transactions"`
	NegativeAmounts     int     `json:"negative_amounts"`
	FutureDates         int     `json:"future_dates"`
	QualityScore        float64 `json:"quality_score"`
}

// ValidateQuality checks a batch for missing fields, duplicates, sign
// defects, and future dates. An absent amount cell parses to zero, so
// zero amounts count as missing. Negative amounts are counted but do
// not reduce the score; they are legitimate in some extracts.
func ValidateQuality(records []models.TransactionRecord) QualityReport {
	report := QualityReport{TotalRows: len(records)}
	if len(records) == 0 {
		return report
	}

	now := time.Now()
	seen := make(map[string]bool, len(records))
	for i := range records {
		tx := &records[i]
		if tx.Description == "" {
			report.MissingDescriptions++
		}
		if tx.Amount.IsZero() {
			report.MissingAmounts++
		}
		if tx.Amount.IsNegative() {
			report.NegativeAmounts++
		}
		if tx.Date.IsZero() {
			report.MissingDates++
		} else if tx.Date.After(now) {
			report.FutureDates++
		}

		key := fmt.Sprintf("%d|%s|%s|%s", tx.UserID, tx.Amount.String(), tx.Description, tx.Date.Format("2006-01-02"))
		if seen[key] {
			report.DuplicateRows++
		}
		seen[key] = true
	}

	issues := report.MissingDescriptions + report.MissingAmounts +
		report.MissingDates + report.DuplicateRows + report.FutureDates
	score := 1 - float64(issues)/float64(report.TotalRows)
	if score < 0 {
		score = 0
	}
	report.QualityScore = score
	return report
}
