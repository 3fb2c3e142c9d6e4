// Package predictor trains and serves the spending forecast model. The
// expense history is aggregated into a per-period series, four candidate
// regressors are raced on chronological splits, and the lowest
// cross-validated MAE wins.
package predictor

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"fjacquet/finance-ml/internal/artifact"
	"fjacquet/finance-ml/internal/estimator"
	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
)

const (
	// MinPeriods is the shortest series a training run accepts.
	MinPeriods = 10

	// DefaultAnomalyThreshold is the z-score above which a period is
	// flagged.
	DefaultAnomalyThreshold = 2.0

	artifactName = "predictor"
)

// Score holds one candidate's evaluation during training.
type Score struct {
	MAE   float64 `json:"mae"`
	MSE   float64 `json:"mse"`
	RMSE  float64 `json:"rmse"`
	R2    float64 `json:"r2"`
	CVMAE float64 `json:"cv_mae"`
}

// Model is the trained state swapped in atomically. Fields are exported
// for gob.
type Model struct {
	Regressor   estimator.Regressor
	Algorithm   string
	Performance map[string]Score
	Period      Period
	TrainedAt   time.Time
	Periods     int
}

// PointForecast is one future period's prediction with its 95% interval.
type PointForecast struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
	Lower  float64   `json:"lower"`
	Upper  float64   `json:"upper"`
}

// Forecast is the result of a future-spending prediction.
type Forecast struct {
	Predictions []PointForecast `json:"predictions"`
	ModelUsed   string          `json:"model_used"`
	PeriodType  Period          `json:"period_type"`
}

// Anomaly is one period whose spending deviates from the user's norm.
type Anomaly struct {
	Period   string  `json:"period"`
	Spending float64 `json:"spending"`
	ZScore   float64 `json:"z_score"`
	Type     string  `json:"anomaly_type"`
	Severity string  `json:"severity"`
}

// Predictor serves forecasts from an atomically swapped model handle, so
// Train and the predict methods are safe to call concurrently.
type Predictor struct {
	model     atomic.Pointer[Model]
	artifacts *artifact.Store
	sink      models.PredictionSink
	log       logging.Logger
}

// New wires a predictor to its artifact store and prediction sink. sink
// may be nil when persistence is not wanted.
func New(artifacts *artifact.Store, sink models.PredictionSink, logger logging.Logger) *Predictor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Predictor{artifacts: artifacts, sink: sink, log: logger}
}

// Trained reports whether a model is available for inference.
func (p *Predictor) Trained() bool {
	return p.model.Load() != nil
}

// Performance returns the per-candidate scores of the active model.
func (p *Predictor) Performance() map[string]Score {
	m := p.model.Load()
	if m == nil {
		return nil
	}
	return m.Performance
}

// Algorithm returns the name of the winning regressor, empty before
// training.
func (p *Predictor) Algorithm() string {
	m := p.model.Load()
	if m == nil {
		return ""
	}
	return m.Algorithm
}

// ModelPeriod returns the granularity the active model was trained on.
func (p *Predictor) ModelPeriod() Period {
	m := p.model.Load()
	if m == nil {
		return ""
	}
	return m.Period
}

// candidates returns the regressor slate. Slice order is the
// deterministic tie-break when CV scores are equal.
func candidates() []estimator.RegressorCandidate {
	return []estimator.RegressorCandidate{
		{Name: "random_forest", New: func() estimator.Regressor { return estimator.NewRandomForestRegressor() }},
		{Name: "gradient_boosting", New: func() estimator.Regressor { return estimator.NewGradientBoostingRegressor() }},
		{Name: "linear_regression", New: func() estimator.Regressor { return estimator.NewLinearRegression() }},
		{Name: "ridge_regression", New: func() estimator.Regressor { return estimator.NewRidgeRegression() }},
	}
}

// Train aggregates the expense history into a period series and fits the
// candidate slate. userID zero trains on all users combined.
func (p *Predictor) Train(records []models.TransactionRecord, userID int64, period Period) (map[string]Score, error) {
	if !period.Valid() {
		return nil, &mlerror.DataValidationError{Errors: []string{"period must be day, week, or month"}}
	}

	stats := AggregatePeriods(records, userID, period)
	if len(stats) < MinPeriods {
		return nil, &mlerror.InsufficientDataError{
			Component: "predictor",
			Unit:      "periods",
			Got:       len(stats),
			Want:      MinPeriods,
		}
	}

	p.log.WithFields(
		logging.Field{Key: "periods", Value: len(stats)},
		logging.Field{Key: "granularity", Value: string(period)},
	).Info("Training spending predictor")

	X, y := seriesMatrix(stats)
	trainIdx, testIdx := estimator.ChronoSplit(len(y), 0.2)
	trainX, trainY := gather(X, y, trainIdx)
	testX, testY := gather(X, y, testIdx)

	scores := make(map[string]Score, 4)
	bestName, bestCV := "", math.Inf(1)
	for _, cand := range candidates() {
		reg := cand.New()
		if err := reg.Fit(trainX, trainY); err != nil {
			p.log.WithError(err).WithField("model", cand.Name).Error("Candidate training failed")
			scores[cand.Name] = Score{MAE: math.Inf(1), CVMAE: math.Inf(1)}
			continue
		}

		pred := make([]float64, len(testY))
		predictErr := false
		for i := range testX {
			v, err := reg.Predict(testX[i])
			if err != nil {
				p.log.WithError(err).WithField("model", cand.Name).Error("Candidate evaluation failed")
				predictErr = true
				break
			}
			pred[i] = v
		}
		if predictErr {
			scores[cand.Name] = Score{MAE: math.Inf(1), CVMAE: math.Inf(1)}
			continue
		}

		cvMAE, err := estimator.CrossValMAE(cand.New, trainX, trainY, 3)
		if err != nil {
			p.log.WithError(err).WithField("model", cand.Name).Error("Cross-validation failed")
			cvMAE = math.Inf(1)
		}

		s := Score{
			MAE:   estimator.MAE(testY, pred),
			MSE:   estimator.MSE(testY, pred),
			RMSE:  estimator.RMSE(testY, pred),
			R2:    estimator.R2(testY, pred),
			CVMAE: cvMAE,
		}
		scores[cand.Name] = s

		p.log.WithFields(
			logging.Field{Key: "model", Value: cand.Name},
			logging.Field{Key: "mae", Value: s.MAE},
			logging.Field{Key: "cv_mae", Value: s.CVMAE},
		).Info("Candidate evaluated")

		if cvMAE < bestCV {
			bestCV = cvMAE
			bestName = cand.Name
		}
	}

	if bestName == "" {
		return scores, &mlerror.DataValidationError{Errors: []string{"no regressor candidate trained successfully"}}
	}

	var winner estimator.Regressor
	for _, cand := range candidates() {
		if cand.Name == bestName {
			winner = cand.New()
		}
	}
	if err := winner.Fit(X, y); err != nil {
		return scores, err
	}

	p.model.Store(&Model{
		Regressor:   winner,
		Algorithm:   bestName,
		Performance: scores,
		Period:      period,
		TrainedAt:   time.Now().UTC(),
		Periods:     len(stats),
	})

	p.log.WithFields(
		logging.Field{Key: "model", Value: bestName},
		logging.Field{Key: "cv_mae", Value: bestCV},
	).Info("Spending predictor trained")
	return scores, nil
}

// PredictFutureSpending forecasts the next periodsAhead periods of a
// user's spending. Point forecasts are clamped non-negative and carry a
// 95% interval derived from the backtest error of the winning algorithm.
func (p *Predictor) PredictFutureSpending(records []models.TransactionRecord, userID int64, periodsAhead int) (*Forecast, error) {
	m := p.model.Load()
	if m == nil {
		return nil, &mlerror.NotTrainedError{Component: "predictor"}
	}
	if periodsAhead <= 0 {
		periodsAhead = 4
	}

	stats := AggregatePeriods(records, userID, m.Period)
	if len(stats) < MinPeriods {
		return nil, &mlerror.InsufficientDataError{
			Component: "predictor",
			Unit:      "periods",
			Got:       len(stats),
			Want:      MinPeriods,
		}
	}

	errEstimate := p.backtestError(m, stats)
	last := stats[len(stats)-1].Start

	forecast := &Forecast{ModelUsed: m.Algorithm, PeriodType: m.Period}
	for step := 1; step <= periodsAhead; step++ {
		futureStart := m.Period.Next(last, step)
		value, err := m.Regressor.Predict(futureFeatures(stats, futureStart))
		if err != nil {
			return nil, err
		}
		if value < 0 {
			value = 0
		}

		point := PointForecast{
			Date:   futureStart,
			Amount: value,
			Lower:  math.Max(0, value-1.96*errEstimate),
			Upper:  value + 1.96*errEstimate,
		}
		forecast.Predictions = append(forecast.Predictions, point)
		p.persist(userID, m, point)
	}
	return forecast, nil
}

// backtestError refits the winning algorithm on growing prefixes of the
// series and averages the absolute error over the last few periods.
func (p *Predictor) backtestError(m *Model, stats []PeriodStat) float64 {
	X, y := seriesMatrix(stats)

	var factory func() estimator.Regressor
	for _, cand := range candidates() {
		if cand.Name == m.Algorithm {
			factory = cand.New
		}
	}

	var errs []float64
	holdout := 5
	if holdout > len(y)-1 {
		holdout = len(y) - 1
	}
	for i := len(y) - holdout; i < len(y); i++ {
		reg := factory()
		if err := reg.Fit(X[:i], y[:i]); err != nil {
			continue
		}
		pred, err := reg.Predict(X[i])
		if err != nil {
			continue
		}
		errs = append(errs, math.Abs(pred-y[i]))
	}
	if len(errs) == 0 {
		return seriesStd(y)
	}
	sum := 0.0
	for _, e := range errs {
		sum += e
	}
	return sum / float64(len(errs))
}

// HoldoutPredictions refits a fresh copy of the winning algorithm on the
// first 80% of the user's series and predicts the held-out tail. The
// active model is never touched, so scoring stays read-only.
func (p *Predictor) HoldoutPredictions(records []models.TransactionRecord, userID int64) (actual, predicted []float64, dates []time.Time, err error) {
	m := p.model.Load()
	if m == nil {
		return nil, nil, nil, &mlerror.NotTrainedError{Component: "predictor"}
	}

	stats := AggregatePeriods(records, userID, m.Period)
	if len(stats) < MinPeriods {
		return nil, nil, nil, &mlerror.InsufficientDataError{
			Component: "predictor",
			Unit:      "periods",
			Got:       len(stats),
			Want:      MinPeriods,
		}
	}

	X, y := seriesMatrix(stats)
	trainIdx, testIdx := estimator.ChronoSplit(len(y), 0.2)
	trainX, trainY := gather(X, y, trainIdx)

	var factory func() estimator.Regressor
	for _, cand := range candidates() {
		if cand.Name == m.Algorithm {
			factory = cand.New
		}
	}
	reg := factory()
	if err := reg.Fit(trainX, trainY); err != nil {
		return nil, nil, nil, err
	}

	for _, i := range testIdx {
		v, err := reg.Predict(X[i])
		if err != nil {
			return nil, nil, nil, err
		}
		actual = append(actual, y[i])
		predicted = append(predicted, v)
		dates = append(dates, stats[i].Start)
	}
	return actual, predicted, dates, nil
}

// DetectSpendingAnomalies flags periods whose total spending deviates
// from the series mean by more than threshold standard deviations. A
// constant series has no anomalies.
func (p *Predictor) DetectSpendingAnomalies(records []models.TransactionRecord, userID int64, period Period, threshold float64) ([]Anomaly, error) {
	if !period.Valid() {
		return nil, &mlerror.DataValidationError{Errors: []string{"period must be day, week, or month"}}
	}
	if threshold <= 0 {
		threshold = DefaultAnomalyThreshold
	}

	stats := AggregatePeriods(records, userID, period)
	if len(stats) < MinPeriods {
		return nil, &mlerror.InsufficientDataError{
			Component: "predictor",
			Unit:      "periods",
			Got:       len(stats),
			Want:      MinPeriods,
		}
	}

	totals := make([]float64, len(stats))
	for i := range stats {
		totals[i] = stats[i].TotalSpending
	}
	mean := seriesMean(totals)
	std := seriesStd(totals)
	if std == 0 {
		return nil, nil
	}

	var anomalies []Anomaly
	for i := range stats {
		z := math.Abs((totals[i] - mean) / std)
		if z <= threshold {
			continue
		}
		kind := "low"
		if totals[i] > mean {
			kind = "high"
		}
		severity := "medium"
		if z > 3.0 {
			severity = "high"
		}
		anomalies = append(anomalies, Anomaly{
			Period:   stats[i].Start.Format("2006-01-02"),
			Spending: totals[i],
			ZScore:   z,
			Type:     kind,
			Severity: severity,
		})
	}
	return anomalies, nil
}

// Save persists the active model to the artifact store.
func (p *Predictor) Save() error {
	m := p.model.Load()
	if m == nil {
		return &mlerror.NotTrainedError{Component: "predictor"}
	}
	metrics := make(map[string]float64, len(m.Performance))
	for name, s := range m.Performance {
		if !math.IsInf(s.CVMAE, 1) {
			metrics[name+"_cv_mae"] = s.CVMAE
		}
	}
	return p.artifacts.Save(artifactName, m, artifact.Metadata{
		Algorithm: m.Algorithm,
		TrainedAt: m.TrainedAt,
		Rows:      m.Periods,
		Metrics:   metrics,
		Extra:     map[string]string{"period": string(m.Period)},
	})
}

// Load restores the model from the artifact store and installs it.
func (p *Predictor) Load() error {
	var m Model
	if _, err := p.artifacts.Load(artifactName, &m); err != nil {
		return err
	}
	p.model.Store(&m)
	return nil
}

func (p *Predictor) persist(userID int64, m *Model, point PointForecast) {
	if p.sink == nil {
		return
	}
	record := models.PredictionRecord{
		UserID:          userID,
		Kind:            models.KindSpending,
		Period:          string(m.Period),
		PredictedAmount: decimal.NewFromFloat(point.Amount),
		Confidence:      0.95,
		ModelVersion:    m.Algorithm,
		CreatedAt:       time.Now().UTC(),
		ValidFrom:       point.Date,
		ValidUntil:      m.Period.Next(point.Date, 1),
	}
	if err := p.sink.StorePrediction(record); err != nil {
		p.log.WithError(err).Warn("Failed to persist spending forecast")
	}
}

func gather(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	outX := make([][]float64, len(idx))
	outY := make([]float64, len(idx))
	for pos, i := range idx {
		outX[pos] = X[i]
		outY[pos] = y[i]
	}
	return outX, outY
}

func seriesMean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func seriesStd(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	mean := seriesMean(v)
	ss := 0.0
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(v)-1))
}
