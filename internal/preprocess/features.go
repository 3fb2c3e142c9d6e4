package preprocess

import (
	"math"
	"regexp"
	"strings"
	"time"

	"fjacquet/finance-ml/internal/models"
)

// Amount bins. Bin names survive into reports, so they are stable.
const (
	AmountSmall     = "small"
	AmountMedium    = "medium"
	AmountLarge     = "large"
	AmountVeryLarge = "very_large"
)

// Keyword groups scored against cleaned descriptions. Hit counts become
// numeric features alongside the TF-IDF terms.
var (
	foodKeywords          = []string{"restaurant", "cafe", "coffee", "food", "pizza", "burger", "grocery", "market", "chips", "cold drink", "zomato", "swiggy"}
	transportKeywords     = []string{"gas", "fuel", "uber", "taxi", "parking", "metro", "bus", "train"}
	shoppingKeywords      = []string{"store", "shop", "amazon", "walmart", "target", "purchase", "buy", "cig", "blinkint", "zepto"}
	entertainmentKeywords = []string{"movie", "cinema", "netflix", "spotify", "game", "entertainment"}
)

var anyDigit = regexp.MustCompile(`\d`)
var anySpecial = regexp.MustCompile(`[^\w\s]`)

// Row carries the engineered features of one transaction. Numeric fields
// are flattened into the model input in the order of FeatureNames;
// Cleaned feeds the TF-IDF vectorizer and the string fields feed reports.
type Row struct {
	ID       int64
	UserID   int64
	Cleaned  string
	Merchant string

	DescriptionLength float64
	WordCount         float64
	AvgWordLength     float64
	HasNumbers        float64
	HasSpecialChars   float64
	IsUppercase       float64
	FoodKeywords      float64
	TransportKeywords float64
	ShoppingKeywords  float64
	EntertainKeywords float64

	DayOfWeek       float64
	DayOfMonth      float64
	Month           float64
	Quarter         float64
	IsWeekend       float64
	IsMonthStart    float64
	IsMonthEnd      float64
	IsHolidaySeason float64

	Amount         float64
	AmountLog      float64
	AmountRounded  float64
	IsRoundNumber  float64
	AmountCategory string

	UserAvgAmount    float64
	UserStdAmount    float64
	UserTxCount      float64
	AmountVsUserAvg  float64
	AmountUserZScore float64
}

// FeatureNames lists the numeric features in vector order.
var FeatureNames = []string{
	"description_length", "word_count", "avg_word_length",
	"has_numbers", "has_special_chars", "is_uppercase",
	"food_keywords", "transport_keywords", "shopping_keywords", "entertainment_keywords",
	"day_of_week", "day_of_month", "month", "quarter",
	"is_weekend", "is_month_start", "is_month_end", "is_holiday_season",
	"amount", "amount_log", "amount_rounded", "is_round_number",
	"user_avg_amount", "user_std_amount", "user_transaction_count",
	"amount_vs_user_avg", "amount_zscore",
}

// Vector flattens the numeric features in FeatureNames order.
func (r *Row) Vector() []float64 {
	return []float64{
		r.DescriptionLength, r.WordCount, r.AvgWordLength,
		r.HasNumbers, r.HasSpecialChars, r.IsUppercase,
		r.FoodKeywords, r.TransportKeywords, r.ShoppingKeywords, r.EntertainKeywords,
		r.DayOfWeek, r.DayOfMonth, r.Month, r.Quarter,
		r.IsWeekend, r.IsMonthStart, r.IsMonthEnd, r.IsHolidaySeason,
		r.Amount, r.AmountLog, r.AmountRounded, r.IsRoundNumber,
		r.UserAvgAmount, r.UserStdAmount, r.UserTxCount,
		r.AmountVsUserAvg, r.AmountUserZScore,
	}
}

// Engineer derives feature rows for a batch of transactions. Rows with a
// missing description or date get zeroed features for the missing part
// rather than failing the batch.
func Engineer(records []models.TransactionRecord) []Row {
	rows := make([]Row, len(records))
	for i := range records {
		rows[i] = engineerOne(&records[i])
	}
	addUserPatterns(rows, records)
	return rows
}

func engineerOne(tx *models.TransactionRecord) Row {
	row := Row{ID: tx.ID, UserID: tx.UserID, Merchant: "unknown"}

	if tx.Description != "" {
		cleaned := CleanDescription(tx.Description)
		row.Cleaned = cleaned
		row.Merchant = ExtractMerchant(tx.Description)
		row.DescriptionLength = float64(len(tx.Description))

		words := strings.Fields(cleaned)
		row.WordCount = float64(len(words))
		if len(words) > 0 {
			total := 0
			for _, w := range words {
				total += len(w)
			}
			row.AvgWordLength = float64(total) / float64(len(words))
		}

		row.HasNumbers = boolFeature(anyDigit.MatchString(tx.Description))
		row.HasSpecialChars = boolFeature(anySpecial.MatchString(tx.Description))
		row.IsUppercase = boolFeature(isUpper(tx.Description))
		row.FoodKeywords = keywordHits(cleaned, foodKeywords)
		row.TransportKeywords = keywordHits(cleaned, transportKeywords)
		row.ShoppingKeywords = keywordHits(cleaned, shoppingKeywords)
		row.EntertainKeywords = keywordHits(cleaned, entertainmentKeywords)
	}

	if !tx.Date.IsZero() {
		d := tx.Date.Time
		row.DayOfWeek = float64(mondayWeekday(d))
		row.DayOfMonth = float64(d.Day())
		row.Month = float64(d.Month())
		row.Quarter = float64((int(d.Month())-1)/3 + 1)
		row.IsWeekend = boolFeature(mondayWeekday(d) >= 5)
		row.IsMonthStart = boolFeature(d.Day() <= 3)
		row.IsMonthEnd = boolFeature(d.Day() >= 28)
		row.IsHolidaySeason = boolFeature(d.Month() == time.November || d.Month() == time.December)
	}

	amount := math.Abs(tx.AmountFloat())
	row.Amount = amount
	row.AmountLog = math.Log1p(amount)
	row.AmountRounded = math.Round(amount)
	row.IsRoundNumber = boolFeature(amount == math.Round(amount))
	row.AmountCategory = CategorizeAmount(amount)

	return row
}

// CategorizeAmount bins an absolute amount by size.
func CategorizeAmount(amount float64) string {
	switch {
	case amount < 10:
		return AmountSmall
	case amount < 50:
		return AmountMedium
	case amount < 200:
		return AmountLarge
	default:
		return AmountVeryLarge
	}
}

// addUserPatterns joins per-user amount statistics onto every row. A user
// with constant spending has zero deviation; the z-score denominator is
// swapped to one so the feature stays finite.
func addUserPatterns(rows []Row, records []models.TransactionRecord) {
	type stats struct {
		sum, sumSq float64
		count      int
	}
	byUser := make(map[int64]*stats)
	for i := range records {
		s := byUser[records[i].UserID]
		if s == nil {
			s = &stats{}
			byUser[records[i].UserID] = s
		}
		amt := records[i].AmountFloat()
		s.sum += amt
		s.sumSq += amt * amt
		s.count++
	}

	for i := range rows {
		s := byUser[rows[i].UserID]
		mean := s.sum / float64(s.count)
		variance := 0.0
		if s.count > 1 {
			variance = (s.sumSq - s.sum*s.sum/float64(s.count)) / float64(s.count-1)
			if variance < 0 {
				variance = 0
			}
		}
		std := math.Sqrt(variance)

		rows[i].UserAvgAmount = mean
		rows[i].UserStdAmount = std
		rows[i].UserTxCount = float64(s.count)
		if mean != 0 {
			rows[i].AmountVsUserAvg = records[i].AmountFloat() / mean
		}
		denom := std
		if denom == 0 {
			denom = 1
		}
		rows[i].AmountUserZScore = (records[i].AmountFloat() - mean) / denom
	}
}

func keywordHits(cleaned string, keywords []string) float64 {
	hits := 0.0
	for _, kw := range keywords {
		if strings.Contains(cleaned, kw) {
			hits++
		}
	}
	return hits
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// mondayWeekday maps time.Weekday to Monday=0..Sunday=6.
func mondayWeekday(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if 'a' <= r && r <= 'z' {
			return false
		}
		if 'A' <= r && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
