package preprocess

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
)

func tx(id, userID int64, amount float64, description, day string) models.TransactionRecord {
	d, _ := time.Parse("2006-01-02", day)
	return models.TransactionRecord{
		ID:          id,
		UserID:      userID,
		Amount:      decimal.NewFromFloat(amount),
		Description: description,
		Date:        models.Date{Time: d},
		Type:        models.TypeExpense,
	}
}

func TestCleanDescription(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"POS Starbucks Coffee #12345", "starbucks coffee"},
		{"DEBIT Amazon Order 98765432", "amazon order"},
		{"  Extra   Spaces  ", "extra spaces"},
		{"payment Netflix 03-15-24", "netflix"},
		{"TRANSFER DEBIT Starbucks", "starbucks"},
		{"transfer 1234 debit starbucks", "starbucks"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanDescription(tc.in), "input %q", tc.in)
	}
}

func TestCleanDescriptionIdempotent(t *testing.T) {
	inputs := []string{
		"POS Starbucks Coffee #12345",
		"Uber Trip 99871 03-12-2024",
		"WHOLE FOODS MARKET",
		// Stacked channel prefixes must come off in one pass.
		"transfer debit starbucks",
		"payment payment netflix",
		"pos 12345 debit starbucks",
		"transfer 1234 debit starbucks",
	}
	for _, in := range inputs {
		once := CleanDescription(in)
		assert.Equal(t, once, CleanDescription(once))
	}
}

func TestExtractMerchant(t *testing.T) {
	assert.Equal(t, "starbucks coffee", ExtractMerchant("POS Starbucks Coffee #12345"))
	assert.Equal(t, "unknown", ExtractMerchant(""))
	assert.Equal(t, "migros", ExtractMerchant("Migros"))
	// Short cleaned strings come back whole.
	assert.Equal(t, "cafe du nord", ExtractMerchant("Cafe du Nord"))
	// Longer ones keep only alphabetic words above two characters.
	assert.Equal(t, "whole foods market lausanne",
		ExtractMerchant("Whole Foods Market Lausanne branch 42 receipt"))
}

func TestCategorizeAmount(t *testing.T) {
	assert.Equal(t, AmountSmall, CategorizeAmount(9.99))
	assert.Equal(t, AmountMedium, CategorizeAmount(10))
	assert.Equal(t, AmountMedium, CategorizeAmount(49.99))
	assert.Equal(t, AmountLarge, CategorizeAmount(50))
	assert.Equal(t, AmountLarge, CategorizeAmount(199.99))
	assert.Equal(t, AmountVeryLarge, CategorizeAmount(200))
}

func TestEngineerDescriptionFeatures(t *testing.T) {
	rows := Engineer([]models.TransactionRecord{
		tx(1, 10, 12.50, "POS Starbucks Coffee #12345", "2024-01-13"),
	})
	require.Len(t, rows, 1)
	row := rows[0]

	assert.Equal(t, "starbucks coffee", row.Cleaned)
	assert.Equal(t, "starbucks coffee", row.Merchant)
	assert.Equal(t, float64(len("POS Starbucks Coffee #12345")), row.DescriptionLength)
	assert.Equal(t, 2.0, row.WordCount)
	assert.Equal(t, 1.0, row.HasNumbers)
	assert.Equal(t, 1.0, row.FoodKeywords) // "coffee"
	assert.Equal(t, 0.0, row.TransportKeywords)

	// 2024-01-13 is a Saturday.
	assert.Equal(t, 5.0, row.DayOfWeek)
	assert.Equal(t, 1.0, row.IsWeekend)
	assert.Equal(t, 1.0, row.Quarter)
	assert.Equal(t, 0.0, row.IsHolidaySeason)

	assert.Equal(t, 12.50, row.Amount)
	assert.Equal(t, 0.0, row.IsRoundNumber)
	assert.Equal(t, AmountMedium, row.AmountCategory)
}

func TestEngineerEmptyDescription(t *testing.T) {
	rows := Engineer([]models.TransactionRecord{
		tx(1, 10, 20, "", "2024-03-01"),
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "unknown", rows[0].Merchant)
	assert.Equal(t, 0.0, rows[0].WordCount)
	assert.Equal(t, 1.0, rows[0].IsMonthStart)
}

func TestEngineerUserPatterns(t *testing.T) {
	records := []models.TransactionRecord{
		tx(1, 10, 10, "coffee", "2024-01-01"),
		tx(2, 10, 20, "lunch", "2024-01-02"),
		tx(3, 10, 30, "dinner", "2024-01-03"),
		tx(4, 99, 5, "snack", "2024-01-01"),
	}
	rows := Engineer(records)

	assert.InDelta(t, 20.0, rows[0].UserAvgAmount, 1e-9)
	assert.InDelta(t, 10.0, rows[0].UserStdAmount, 1e-9)
	assert.Equal(t, 3.0, rows[0].UserTxCount)
	assert.InDelta(t, 0.5, rows[0].AmountVsUserAvg, 1e-9)
	assert.InDelta(t, -1.0, rows[0].AmountUserZScore, 1e-9)

	// Single-transaction user has zero deviation; z-score divisor falls
	// back to one instead of dividing by zero.
	assert.Equal(t, 0.0, rows[3].UserStdAmount)
	assert.Equal(t, 0.0, rows[3].AmountUserZScore)
}

func TestTFIDFVocabulary(t *testing.T) {
	docs := []string{
		"starbucks coffee",
		"starbucks coffee downtown",
		"uber trip",
		"uber trip airport",
		"one off merchant",
	}
	v := NewTFIDF()
	v.Fit(docs)

	require.True(t, v.Fitted())
	assert.Contains(t, v.Terms, "starbucks")
	assert.Contains(t, v.Terms, "starbucks coffee")
	assert.Contains(t, v.Terms, "uber trip")
	// Terms in a single document fall under min_df.
	assert.NotContains(t, v.Terms, "airport")
	assert.NotContains(t, v.Terms, "merchant")
}

func TestTFIDFTransformNormalized(t *testing.T) {
	docs := []string{"starbucks coffee", "starbucks coffee", "uber trip", "uber trip"}
	v := NewTFIDF()
	v.Fit(docs)

	vec := v.Transform("starbucks coffee")
	norm := 0.0
	nonzero := 0
	for _, x := range vec {
		norm += x * x
		if x != 0 {
			nonzero++
		}
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
	assert.Greater(t, nonzero, 0)

	// Out-of-vocabulary text maps to the zero vector.
	zero := v.Transform("completely unseen words")
	for _, x := range zero {
		assert.Equal(t, 0.0, x)
	}
}

func TestStandardScaler(t *testing.T) {
	s := &StandardScaler{}
	X := [][]float64{{1, 100}, {2, 100}, {3, 100}}
	require.NoError(t, s.Fit(X))

	out, err := s.Transform(X)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out[1][0], 1e-9)
	// Constant column scales to zero rather than NaN.
	assert.Equal(t, 0.0, out[0][1])

	_, err = s.Transform([][]float64{{1}})
	assert.Error(t, err)
}

func TestLabelEncoderRoundTrip(t *testing.T) {
	e := &LabelEncoder{}
	y := e.FitTransform([]string{"food", "transport", "food", "rent"})
	assert.Equal(t, []int{0, 1, 0, 2}, y)

	name, err := e.Decode(1)
	require.NoError(t, err)
	assert.Equal(t, "transport", name)

	id, ok := e.Encode("rent")
	assert.True(t, ok)
	assert.Equal(t, 2, id)

	_, ok = e.Encode("unseen")
	assert.False(t, ok)
	_, err = e.Decode(9)
	assert.Error(t, err)
}

func TestPreprocessorFitTransform(t *testing.T) {
	var records []models.TransactionRecord
	var labels []string
	for i := 0; i < 10; i++ {
		records = append(records, tx(int64(i), 10, 5+float64(i), "starbucks coffee", "2024-01-05"))
		labels = append(labels, "food")
		records = append(records, tx(int64(100+i), 10, 40+float64(i), "uber trip", "2024-01-06"))
		labels = append(labels, "transport")
	}

	p := New(nil)
	X, y, err := p.FitTransform(records, labels)
	require.NoError(t, err)
	require.Len(t, X, 20)
	assert.Len(t, y, 20)
	assert.Equal(t, p.NumFeatures(), len(X[0]))
	assert.True(t, p.IsFitted)

	out, err := p.Transform(records[:3])
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Len(t, out[0], len(X[0]))
}

func TestPreprocessorTransformBeforeFit(t *testing.T) {
	p := New(nil)
	_, err := p.Transform([]models.TransactionRecord{tx(1, 10, 5, "coffee", "2024-01-01")})
	var notTrained *mlerror.NotTrainedError
	assert.True(t, errors.As(err, &notTrained))
}

func TestValidateQuality(t *testing.T) {
	future := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	records := []models.TransactionRecord{
		tx(1, 10, 5, "coffee", "2024-01-01"),
		tx(1, 10, 5, "coffee", "2024-01-01"), // duplicate
		tx(3, 10, 0, "", "2024-01-02"),       // missing description, missing amount
		tx(4, 10, -20, "refund", future),     // negative amount, future date
		tx(5, 10, 15, "groceries", "2024-01-03"),
	}

	report := ValidateQuality(records)
	assert.Equal(t, 5, report.TotalRows)
	assert.Equal(t, 1, report.DuplicateRows)
	assert.Equal(t, 1, report.MissingDescriptions)
	assert.Equal(t, 1, report.MissingAmounts)
	assert.Equal(t, 1, report.NegativeAmounts)
	assert.Equal(t, 1, report.FutureDates)
	// 4 scoring issues over 5 rows; the negative amount does not score.
	assert.InDelta(t, 0.2, report.QualityScore, 1e-9)
}

func TestValidateQualityEmptyBatch(t *testing.T) {
	report := ValidateQuality(nil)
	assert.Equal(t, 0, report.TotalRows)
	assert.Equal(t, 0.0, report.QualityScore)
}

func TestFeatureNamesMatchVector(t *testing.T) {
	row := Row{}
	assert.Equal(t, len(FeatureNames), len(row.Vector()), fmt.Sprintf("FeatureNames has %d entries", len(FeatureNames)))
}
