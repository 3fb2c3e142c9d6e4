// Package models defines the typed rows exchanged with the surrounding
// application: transaction and category extracts coming in, prediction
// records going out. The canonical data lives outside this module; these
// types only describe the denormalized batches the ML core reads.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Date wraps time.Time so transaction extracts can be read and written
// with gocsv using the ISO date layout.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// UnmarshalCSV parses an ISO date. An empty cell leaves the zero value.
func (d *Date) UnmarshalCSV(s string) error {
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MarshalCSV renders the date in ISO layout, empty for the zero value.
func (d Date) MarshalCSV() (string, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(dateLayout), nil
}

// TransactionRecord is one immutable row of the transaction extract.
// CategoryID is nil for uncategorized transactions.
type TransactionRecord struct {
	ID          int64           `csv:"id" json:"id"`
	UserID      int64           `csv:"user_id" json:"user_id"`
	Amount      decimal.Decimal `csv:"amount" json:"amount"`
	Description string          `csv:"description" json:"description"`
	Date        Date            `csv:"date" json:"date"`
	Type        TransactionType `csv:"type" json:"type"`
	CategoryID  *int64          `csv:"category_id" json:"category_id,omitempty"`
	Merchant    string          `csv:"merchant" json:"merchant,omitempty"`
}

// AmountFloat returns the amount as a float64 for feature space. Decimal
// precision only matters at the data boundary.
func (t TransactionRecord) AmountFloat() float64 {
	f, _ := t.Amount.Float64()
	return f
}

// IsExpense reports whether the transaction is an expense.
func (t TransactionRecord) IsExpense() bool {
	return t.Type == TypeExpense
}

// IsCategorized reports whether a category has been assigned.
func (t TransactionRecord) IsCategorized() bool {
	return t.CategoryID != nil
}
