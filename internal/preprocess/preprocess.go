// Package preprocess turns raw transaction rows into the numeric feature
// matrices the estimators consume. It owns description cleaning, feature
// engineering, TF-IDF text vectorization, scaling, and label encoding,
// plus the batch quality report.
package preprocess

import (
	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
)

// Preprocessor bundles the fitted transformation state shared between
// training and inference. Fields are exported so the whole pipeline
// round-trips through the artifact store in one gob blob.
type Preprocessor struct {
	Vectorizer *TFIDF
	Scaler     *StandardScaler
	Encoder    *LabelEncoder
	IsFitted   bool

	log logging.Logger
}

// New returns an unfitted preprocessor.
func New(logger logging.Logger) *Preprocessor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Preprocessor{
		Vectorizer: NewTFIDF(),
		Scaler:     &StandardScaler{},
		Encoder:    &LabelEncoder{},
		log:        logger,
	}
}

// SetLogger restores the logger after an artifact load.
func (p *Preprocessor) SetLogger(logger logging.Logger) {
	if logger != nil {
		p.log = logger
	}
}

func (p *Preprocessor) logger() logging.Logger {
	if p.log == nil {
		return logging.NewNop()
	}
	return p.log
}

// FitTransform engineers features for a training batch, fits the
// vectorizer, scaler, and label encoder on it, and returns the scaled
// matrix with encoded labels. labels[i] names the category of records[i].
func (p *Preprocessor) FitTransform(records []models.TransactionRecord, labels []string) ([][]float64, []int, error) {
	if len(records) == 0 {
		return nil, nil, &mlerror.DataValidationError{Errors: []string{"empty training batch"}}
	}
	if len(labels) != len(records) {
		return nil, nil, &mlerror.DataValidationError{Errors: []string{"label count does not match record count"}}
	}

	p.logger().WithField("count", len(records)).Info("Fitting preprocessor")

	rows := Engineer(records)
	docs := make([]string, len(rows))
	for i := range rows {
		docs[i] = rows[i].Cleaned
	}
	p.Vectorizer.Fit(docs)

	X := p.combine(rows)
	if err := p.Scaler.Fit(X); err != nil {
		return nil, nil, err
	}
	scaled, err := p.Scaler.Transform(X)
	if err != nil {
		return nil, nil, err
	}

	y := p.Encoder.FitTransform(labels)
	p.IsFitted = true

	p.logger().WithFields(
		logging.Field{Key: "rows", Value: len(scaled)},
		logging.Field{Key: "features", Value: len(scaled[0])},
		logging.Field{Key: "classes", Value: len(p.Encoder.Classes)},
	).Info("Preprocessor fitted")
	return scaled, y, nil
}

// Transform maps a batch through the fitted pipeline. Returns
// NotTrainedError before FitTransform has run.
func (p *Preprocessor) Transform(records []models.TransactionRecord) ([][]float64, error) {
	if !p.IsFitted {
		return nil, &mlerror.NotTrainedError{Component: "preprocessor"}
	}
	rows := Engineer(records)
	return p.Scaler.Transform(p.combine(rows))
}

// TransformRows scales already engineered rows. Used when the caller
// needs the Row metadata alongside the matrix.
func (p *Preprocessor) TransformRows(rows []Row) ([][]float64, error) {
	if !p.IsFitted {
		return nil, &mlerror.NotTrainedError{Component: "preprocessor"}
	}
	return p.Scaler.Transform(p.combine(rows))
}

// NumFeatures reports the width of the transformed matrix.
func (p *Preprocessor) NumFeatures() int {
	return len(FeatureNames) + len(p.Vectorizer.Terms)
}

func (p *Preprocessor) combine(rows []Row) [][]float64 {
	X := make([][]float64, len(rows))
	for i := range rows {
		numeric := rows[i].Vector()
		text := p.Vectorizer.Transform(rows[i].Cleaned)
		combined := make([]float64, 0, len(numeric)+len(text))
		combined = append(combined, numeric...)
		combined = append(combined, text...)
		X[i] = combined
	}
	return X
}
