package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PredictionKind identifies what a prediction record describes.
type PredictionKind string

const (
	KindCategory PredictionKind = "category"
	KindSpending PredictionKind = "spending_forecast"
)

// PredictionRecord is the row handed to the persistence callback whenever
// the core produces a category prediction above threshold or a spending
// forecast. Ownership passes to the collaborator on store.
type PredictionRecord struct {
	UserID          int64           `csv:"user_id" json:"user_id"`
	CategoryID      *int64          `csv:"category_id" json:"category_id,omitempty"`
	Kind            PredictionKind  `csv:"kind" json:"kind"`
	Period          string          `csv:"period" json:"period"`
	PredictedAmount decimal.Decimal `csv:"predicted_amount" json:"predicted_amount"`
	Confidence      float64         `csv:"confidence" json:"confidence"`
	ModelVersion    string          `csv:"model_version" json:"model_version"`
	CreatedAt       time.Time       `csv:"-" json:"created_at"`
	ValidFrom       time.Time       `csv:"-" json:"valid_from"`
	ValidUntil      time.Time       `csv:"-" json:"valid_until"`
}

// PredictionSink is the persistence callback owned by the surrounding
// application. The core never reads predictions back.
type PredictionSink interface {
	StorePrediction(record PredictionRecord) error
}

// PredictionSinkFunc adapts a function to the PredictionSink interface.
type PredictionSinkFunc func(record PredictionRecord) error

// StorePrediction calls the wrapped function.
func (f PredictionSinkFunc) StorePrediction(record PredictionRecord) error {
	return f(record)
}
