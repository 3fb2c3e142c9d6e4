// Package categorizer trains and serves the transaction category model.
// Training races three candidate classifiers, keeps the cross-validation
// winner, and retrains it on the full batch; inference consults the
// merchant feedback mappings before falling back to the model.
package categorizer

import (
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"fjacquet/finance-ml/internal/artifact"
	"fjacquet/finance-ml/internal/estimator"
	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
	"fjacquet/finance-ml/internal/preprocess"
	"fjacquet/finance-ml/internal/store"
)

const (
	// MinTrainingRows is the smallest categorized batch a training run
	// accepts.
	MinTrainingRows = 50

	// PersistThreshold is the default confidence above which predictions
	// are handed to the persistence sink, used when no threshold is
	// configured.
	PersistThreshold = 0.5

	artifactName = "categorizer"
)

// Score holds one candidate's evaluation during training.
type Score struct {
	TestAccuracy float64 `json:"test_accuracy"`
	CVAccuracy   float64 `json:"cv_accuracy"`
	CVStd        float64 `json:"std_cv"`
}

// Model is the immutable trained state swapped in atomically after a
// successful train or load. Fields are exported for gob.
type Model struct {
	Preprocessor   *preprocess.Preprocessor
	Classifier     estimator.Classifier
	Algorithm      string
	CategoryByName map[string]int64
	Performance    map[string]Score
	TrainedAt      time.Time
	TrainingRows   int
}

// Prediction is the outcome of categorizing one transaction.
type Prediction struct {
	CategoryID    *int64             `json:"predicted_category_id"`
	CategoryName  string             `json:"predicted_category_name"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"all_probabilities,omitempty"`
	Source        string             `json:"source"`
}

// Suggestion is one ranked category candidate for a description.
type Suggestion struct {
	CategoryID   *int64  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Confidence   float64 `json:"confidence"`
}

// Categorizer serves category predictions from an atomically swapped
// model handle, so Train and the Predict methods are safe to call
// concurrently.
type Categorizer struct {
	model            atomic.Pointer[Model]
	artifacts        *artifact.Store
	rules            *store.RuleStore
	sink             models.PredictionSink
	persistThreshold float64
	log              logging.Logger
}

// New wires a categorizer to its artifact store, rule store, and
// prediction sink. sink may be nil when persistence is not wanted.
// persistThreshold gates which predictions reach the sink; zero or
// negative falls back to PersistThreshold.
func New(artifacts *artifact.Store, rules *store.RuleStore, sink models.PredictionSink, persistThreshold float64, logger logging.Logger) *Categorizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if persistThreshold <= 0 {
		persistThreshold = PersistThreshold
	}
	return &Categorizer{
		artifacts:        artifacts,
		rules:            rules,
		sink:             sink,
		persistThreshold: persistThreshold,
		log:              logger,
	}
}

// Trained reports whether a model is available for inference.
func (c *Categorizer) Trained() bool {
	return c.model.Load() != nil
}

// Performance returns the per-candidate scores of the active model.
func (c *Categorizer) Performance() map[string]Score {
	m := c.model.Load()
	if m == nil {
		return nil
	}
	return m.Performance
}

// Algorithm returns the name of the winning classifier, empty before
// training.
func (c *Categorizer) Algorithm() string {
	m := c.model.Load()
	if m == nil {
		return ""
	}
	return m.Algorithm
}

// candidates returns the classifier slate. Slice order is the
// deterministic tie-break when CV scores are equal.
func candidates() []estimator.ClassifierCandidate {
	return []estimator.ClassifierCandidate{
		{Name: "random_forest", New: func() estimator.Classifier { return estimator.NewRandomForestClassifier() }},
		{Name: "logistic_regression", New: func() estimator.Classifier { return estimator.NewLogisticRegression() }},
		{Name: "naive_bayes", New: func() estimator.Classifier { return estimator.NewMultinomialNB() }},
	}
}

// Train fits the candidate slate on the categorized subset of the batch
// and installs the winner. Requests from in-flight Predict calls keep the
// previous model until the swap.
func (c *Categorizer) Train(transactions []models.TransactionRecord, categories []models.CategoryRecord) (map[string]Score, error) {
	nameByID := make(map[int64]string, len(categories))
	byName := make(map[string]int64, len(categories))
	for i := range categories {
		nameByID[categories[i].ID] = categories[i].Name
		if _, seen := byName[categories[i].Name]; !seen {
			byName[categories[i].Name] = categories[i].ID
		}
	}

	var labeled []models.TransactionRecord
	var labels []string
	for i := range transactions {
		if !transactions[i].IsCategorized() {
			continue
		}
		name, ok := nameByID[*transactions[i].CategoryID]
		if !ok {
			continue
		}
		labeled = append(labeled, transactions[i])
		labels = append(labels, name)
	}

	if len(labeled) < MinTrainingRows {
		return nil, &mlerror.InsufficientDataError{
			Component: "categorizer",
			Unit:      "categorized transactions",
			Got:       len(labeled),
			Want:      MinTrainingRows,
		}
	}

	c.log.WithFields(
		logging.Field{Key: "rows", Value: len(labeled)},
		logging.Field{Key: "categories", Value: countDistinct(labels)},
	).Info("Training categorizer")

	pre := preprocess.New(c.log)
	X, y, err := pre.FitTransform(labeled, labels)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx := estimator.StratifiedSplit(y, 0.2, estimator.Seed)
	trainX, trainY := gather(X, y, trainIdx)
	testX, testY := gather(X, y, testIdx)

	scores := make(map[string]Score, 3)
	bestName, bestCV := "", -1.0
	for _, cand := range candidates() {
		inTrain, inTest := trainX, testX
		if cand.Name == "naive_bayes" {
			inTrain, inTest = absMatrix(trainX), absMatrix(testX)
		}

		clf := cand.New()
		if err := clf.Fit(inTrain, trainY); err != nil {
			c.log.WithError(err).WithField("model", cand.Name).Error("Candidate training failed")
			scores[cand.Name] = Score{}
			continue
		}

		testAcc, err := holdoutAccuracy(clf, inTest, testY)
		if err != nil {
			c.log.WithError(err).WithField("model", cand.Name).Error("Candidate evaluation failed")
			scores[cand.Name] = Score{}
			continue
		}

		cvAcc, err := estimator.CrossValAccuracy(cand.New, inTrain, trainY, 5)
		if err != nil {
			c.log.WithError(err).WithField("model", cand.Name).Error("Cross-validation failed")
			scores[cand.Name] = Score{TestAccuracy: testAcc}
			continue
		}

		scores[cand.Name] = Score{TestAccuracy: testAcc, CVAccuracy: cvAcc}
		c.log.WithFields(
			logging.Field{Key: "model", Value: cand.Name},
			logging.Field{Key: "test_accuracy", Value: testAcc},
			logging.Field{Key: "cv_accuracy", Value: cvAcc},
		).Info("Candidate evaluated")

		if cvAcc > bestCV {
			bestCV = cvAcc
			bestName = cand.Name
		}
	}

	if bestName == "" {
		return scores, &mlerror.DataValidationError{Errors: []string{"no classifier candidate trained successfully"}}
	}

	// Retrain the winner on the full batch.
	var winner estimator.Classifier
	for _, cand := range candidates() {
		if cand.Name == bestName {
			winner = cand.New()
		}
	}
	full := X
	if bestName == "naive_bayes" {
		full = absMatrix(X)
	}
	if err := winner.Fit(full, y); err != nil {
		return scores, err
	}

	model := &Model{
		Preprocessor:   pre,
		Classifier:     winner,
		Algorithm:      bestName,
		CategoryByName: byName,
		Performance:    scores,
		TrainedAt:      time.Now().UTC(),
		TrainingRows:   len(labeled),
	}
	c.model.Store(model)

	c.log.WithFields(
		logging.Field{Key: "model", Value: bestName},
		logging.Field{Key: "cv_accuracy", Value: bestCV},
	).Info("Categorizer trained")
	return scores, nil
}

// PredictCategory categorizes one transaction. A merchant feedback
// mapping wins over the model; predictions above the persistence
// threshold are forwarded to the sink.
func (c *Categorizer) PredictCategory(tx models.TransactionRecord) (Prediction, error) {
	m := c.model.Load()
	if m == nil {
		return Prediction{}, &mlerror.NotTrainedError{Component: "categorizer"}
	}

	if pred, ok := c.merchantOverride(m, tx); ok {
		c.persist(tx, pred)
		return pred, nil
	}

	probs, err := c.proba(m, tx)
	if err != nil {
		return Prediction{}, err
	}

	best, conf := 0, -1.0
	for class, p := range probs {
		if p > conf {
			best, conf = class, p
		}
	}
	name, err := m.Preprocessor.Encoder.Decode(best)
	if err != nil {
		return Prediction{}, err
	}

	pred := Prediction{
		CategoryName:  name,
		Confidence:    conf,
		Probabilities: c.probaByName(m, probs),
		Source:        m.Algorithm,
	}
	if id, ok := m.CategoryByName[name]; ok {
		pred.CategoryID = &id
	}

	c.persist(tx, pred)
	return pred, nil
}

// PredictBatch categorizes transactions in order. One bad row fails the
// batch; partial results are not returned.
func (c *Categorizer) PredictBatch(records []models.TransactionRecord) ([]Prediction, error) {
	out := make([]Prediction, len(records))
	for i := range records {
		pred, err := c.PredictCategory(records[i])
		if err != nil {
			return nil, err
		}
		out[i] = pred
	}
	return out, nil
}

// Suggestions returns the topK categories for a bare description, ranked
// by model probability.
func (c *Categorizer) Suggestions(description string, topK int) ([]Suggestion, error) {
	m := c.model.Load()
	if m == nil {
		return nil, &mlerror.NotTrainedError{Component: "categorizer"}
	}
	if topK <= 0 {
		topK = 3
	}

	tx := models.TransactionRecord{
		Description: description,
		Amount:      decimal.Zero,
		Date:        models.Date{Time: time.Now()},
	}
	probs, err := c.proba(m, tx)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		class int
		p     float64
	}
	order := make([]ranked, len(probs))
	for class, p := range probs {
		order[class] = ranked{class, p}
	}
	sort.SliceStable(order, func(a, b int) bool { return order[a].p > order[b].p })
	if topK > len(order) {
		topK = len(order)
	}

	suggestions := make([]Suggestion, 0, topK)
	for _, r := range order[:topK] {
		name, err := m.Preprocessor.Encoder.Decode(r.class)
		if err != nil {
			return nil, err
		}
		s := Suggestion{CategoryName: name, Confidence: r.p}
		if id, ok := m.CategoryByName[name]; ok {
			s.CategoryID = &id
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}

// FeatureImportance reports per-feature weight for the active model.
// Forests expose split frequencies; logistic regression exposes mean
// absolute coefficients; naive Bayes has no comparable notion and yields
// an empty map.
func (c *Categorizer) FeatureImportance() (map[string]float64, error) {
	m := c.model.Load()
	if m == nil {
		return nil, &mlerror.NotTrainedError{Component: "categorizer"}
	}

	var weights []float64
	switch clf := m.Classifier.(type) {
	case *estimator.RandomForestClassifier:
		weights = clf.FeatureImportances()
	case *estimator.LogisticRegression:
		weights = make([]float64, clf.NumInputs)
		for _, row := range clf.Weights {
			for j, w := range row {
				weights[j] += math.Abs(w)
			}
		}
		for j := range weights {
			weights[j] /= float64(len(clf.Weights))
		}
	default:
		return map[string]float64{}, nil
	}

	out := make(map[string]float64, len(weights))
	for i, w := range weights {
		out[featureName(m, i)] = w
	}
	return out, nil
}

// RecordFeedback stores a corrected categorization as a merchant mapping
// so future predictions for the merchant bypass the model.
func (c *Categorizer) RecordFeedback(tx models.TransactionRecord, categoryName string) error {
	merchant := preprocess.ExtractMerchant(tx.Description)
	if merchant == "unknown" {
		return &mlerror.DataValidationError{Errors: []string{"cannot derive merchant from description"}}
	}

	c.log.WithFields(
		logging.Field{Key: "transaction_id", Value: tx.ID},
		logging.Field{Key: "merchant", Value: merchant},
		logging.Field{Key: "category", Value: categoryName},
	).Info("Recording categorization feedback")
	return c.rules.SaveMerchantMappings(map[string]string{merchant: categoryName})
}

// Save persists the active model to the artifact store.
func (c *Categorizer) Save() error {
	m := c.model.Load()
	if m == nil {
		return &mlerror.NotTrainedError{Component: "categorizer"}
	}
	metrics := make(map[string]float64, len(m.Performance))
	for name, s := range m.Performance {
		metrics[name+"_cv_accuracy"] = s.CVAccuracy
	}
	return c.artifacts.Save(artifactName, m, artifact.Metadata{
		Algorithm: m.Algorithm,
		TrainedAt: m.TrainedAt,
		Rows:      m.TrainingRows,
		Metrics:   metrics,
	})
}

// Load restores the model from the artifact store and installs it.
func (c *Categorizer) Load() error {
	var m Model
	if _, err := c.artifacts.Load(artifactName, &m); err != nil {
		return err
	}
	m.Preprocessor.SetLogger(c.log)
	c.model.Store(&m)
	return nil
}

func (c *Categorizer) proba(m *Model, tx models.TransactionRecord) ([]float64, error) {
	X, err := m.Preprocessor.Transform([]models.TransactionRecord{tx})
	if err != nil {
		return nil, err
	}
	x := X[0]
	if m.Algorithm == "naive_bayes" {
		x = absVector(x)
	}
	return m.Classifier.PredictProba(x)
}

func (c *Categorizer) probaByName(m *Model, probs []float64) map[string]float64 {
	out := make(map[string]float64, len(probs))
	for class, p := range probs {
		if name, err := m.Preprocessor.Encoder.Decode(class); err == nil {
			out[name] = p
		}
	}
	return out
}

func (c *Categorizer) merchantOverride(m *Model, tx models.TransactionRecord) (Prediction, bool) {
	if c.rules == nil {
		return Prediction{}, false
	}
	mappings, err := c.rules.LoadMerchantMappings()
	if err != nil {
		c.log.WithError(err).Warn("Failed to load merchant mappings")
		return Prediction{}, false
	}
	merchant := preprocess.ExtractMerchant(tx.Description)
	name, ok := mappings[merchant]
	if !ok {
		return Prediction{}, false
	}

	pred := Prediction{CategoryName: name, Confidence: 1.0, Source: "merchant_mapping"}
	if id, exists := m.CategoryByName[name]; exists {
		pred.CategoryID = &id
	}
	return pred, true
}

func (c *Categorizer) persist(tx models.TransactionRecord, pred Prediction) {
	if c.sink == nil || pred.Confidence <= c.persistThreshold {
		return
	}
	record := models.PredictionRecord{
		UserID:          tx.UserID,
		CategoryID:      pred.CategoryID,
		Kind:            models.KindCategory,
		PredictedAmount: tx.Amount,
		Confidence:      pred.Confidence,
		ModelVersion:    pred.Source,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.sink.StorePrediction(record); err != nil {
		c.log.WithError(err).Warn("Failed to persist category prediction")
	}
}

func featureName(m *Model, i int) string {
	if i < len(preprocess.FeatureNames) {
		return preprocess.FeatureNames[i]
	}
	terms := m.Preprocessor.Vectorizer.Terms
	if j := i - len(preprocess.FeatureNames); j < len(terms) {
		return "tfidf:" + terms[j]
	}
	return "feature_" + strconv.Itoa(i)
}

func holdoutAccuracy(clf estimator.Classifier, X [][]float64, y []int) (float64, error) {
	pred := make([]int, len(y))
	for i := range X {
		label, _, err := estimator.PredictClass(clf, X[i])
		if err != nil {
			return 0, err
		}
		pred[i] = label
	}
	return estimator.Accuracy(y, pred), nil
}

func gather(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for pos, i := range idx {
		outX[pos] = X[i]
		outY[pos] = y[i]
	}
	return outX, outY
}

func absMatrix(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = absVector(row)
	}
	return out
}

func absVector(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = math.Abs(v)
	}
	return out
}

func countDistinct(labels []string) int {
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		seen[l] = true
	}
	return len(seen)
}
