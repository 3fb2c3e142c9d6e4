// Package recommender clusters users by spending behavior and generates
// personalized budget recommendations from the cluster profiles, the
// configured budget styles, and the user's own history.
package recommender

import (
	"sync/atomic"
	"time"

	"fjacquet/finance-ml/internal/artifact"
	"fjacquet/finance-ml/internal/estimator"
	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
	"fjacquet/finance-ml/internal/predictor"
	"fjacquet/finance-ml/internal/preprocess"
	"fjacquet/finance-ml/internal/store"
)

const (
	// MinUsers is the smallest user population clustering accepts.
	MinUsers = 5

	// DefaultBudgetStyle is used when the requested style is unknown.
	DefaultBudgetStyle = "balanced"

	artifactName = "recommender"
)

// Model is the trained clustering state swapped in atomically. Fields
// are exported for gob.
type Model struct {
	KMeans       *estimator.KMeans
	Scaler       *preprocess.StandardScaler
	UserClusters map[int64]int
	Profiles     map[int]models.ClusterProfile
	TrainedAt    time.Time
	Users        int
}

// ClusterResult reports the outcome of a clustering run.
type ClusterResult struct {
	NumClusters  int                           `json:"n_clusters"`
	UserClusters map[int64]int                 `json:"user_clusters"`
	Profiles     map[int]models.ClusterProfile `json:"cluster_profiles"`
}

// Recommender serves budget recommendations from an atomically swapped
// cluster model, so training and recommendation calls are safe to run
// concurrently.
type Recommender struct {
	model     atomic.Pointer[Model]
	artifacts *artifact.Store
	rules     *store.RuleStore
	forecasts *predictor.Predictor
	log       logging.Logger
}

// New wires a recommender to its artifact store, rule store, and an
// optional spending predictor used to attach forecasts.
func New(artifacts *artifact.Store, rules *store.RuleStore, forecasts *predictor.Predictor, logger logging.Logger) *Recommender {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recommender{artifacts: artifacts, rules: rules, forecasts: forecasts, log: logger}
}

// Trained reports whether a cluster model is installed.
func (r *Recommender) Trained() bool {
	return r.model.Load() != nil
}

// ClusterProfiles returns the active cluster profiles.
func (r *Recommender) ClusterProfiles() map[int]models.ClusterProfile {
	m := r.model.Load()
	if m == nil {
		return nil
	}
	return m.Profiles
}

// UserCluster returns the cluster id a user was assigned during the last
// training run.
func (r *Recommender) UserCluster(userID int64) (int, bool) {
	m := r.model.Load()
	if m == nil {
		return 0, false
	}
	id, ok := m.UserClusters[userID]
	return id, ok
}

// CreateUserClusters profiles every user in the batch and groups them by
// behavioral similarity. nClusters zero picks k by silhouette score over
// 2..min(8, users/2).
func (r *Recommender) CreateUserClusters(records []models.TransactionRecord, categories []models.CategoryRecord, nClusters int) (*ClusterResult, error) {
	userIDs := distinctUsers(records)
	if len(userIDs) < MinUsers {
		return nil, &mlerror.InsufficientDataError{
			Component: "recommender",
			Unit:      "users",
			Got:       len(userIDs),
			Want:      MinUsers,
		}
	}

	r.log.WithField("users", len(userIDs)).Info("Creating user clusters")

	var profiles []*UserProfile
	for _, id := range userIDs {
		profile, err := AnalyzeUserProfile(records, categories, id)
		if err != nil {
			r.log.WithField("user_id", id).Debug("Skipping user without expense history")
			continue
		}
		profiles = append(profiles, profile)
	}
	if len(profiles) < MinUsers {
		return nil, &mlerror.InsufficientDataError{
			Component: "recommender",
			Unit:      "profiled users",
			Got:       len(profiles),
			Want:      MinUsers,
		}
	}

	raw := make([][]float64, len(profiles))
	for i, p := range profiles {
		raw[i] = clusterFeatures(p)
	}
	scaler := &preprocess.StandardScaler{}
	if err := scaler.Fit(raw); err != nil {
		return nil, err
	}
	X, err := scaler.Transform(raw)
	if err != nil {
		return nil, err
	}

	if nClusters <= 0 {
		nClusters = optimalClusters(X, minInt(8, len(userIDs)/2))
	}

	km := estimator.NewKMeans(nClusters)
	assign, err := km.Fit(X)
	if err != nil {
		return nil, err
	}

	userClusters := make(map[int64]int, len(profiles))
	for i, p := range profiles {
		userClusters[p.UserID] = assign[i]
	}
	clusterProfiles := buildClusterProfiles(profiles, assign)

	r.model.Store(&Model{
		KMeans:       km,
		Scaler:       scaler,
		UserClusters: userClusters,
		Profiles:     clusterProfiles,
		TrainedAt:    time.Now().UTC(),
		Users:        len(profiles),
	})

	r.log.WithField("clusters", nClusters).Info("User clusters created")
	return &ClusterResult{
		NumClusters:  nClusters,
		UserClusters: userClusters,
		Profiles:     clusterProfiles,
	}, nil
}

// optimalClusters picks k by the best mean silhouette over candidate
// values.
func optimalClusters(X [][]float64, maxClusters int) int {
	bestK, bestScore := 2, -1.0
	for k := 2; k <= maxClusters && k < len(X); k++ {
		km := estimator.NewKMeans(k)
		assign, err := km.Fit(X)
		if err != nil {
			continue
		}
		score := estimator.Silhouette(X, assign)
		if score > bestScore {
			bestScore = score
			bestK = k
		}
	}
	return bestK
}

func buildClusterProfiles(profiles []*UserProfile, assign []int) map[int]models.ClusterProfile {
	type agg struct {
		count                                             int
		monthly, variance, frequency, impulse, consistent float64
	}
	byCluster := make(map[int]*agg)
	for i, p := range profiles {
		a := byCluster[assign[i]]
		if a == nil {
			a = &agg{}
			byCluster[assign[i]] = a
		}
		a.count++
		a.monthly += p.Stats.AvgMonthlySpending
		a.variance += p.Stats.SpendingVariance
		a.frequency += p.Stats.TxFrequency
		a.impulse += p.Behavior.ImpulseScore
		a.consistent += p.Behavior.Consistency
	}

	out := make(map[int]models.ClusterProfile, len(byCluster))
	for id, a := range byCluster {
		n := float64(a.count)
		profile := models.ClusterProfile{
			ClusterID:            id,
			MemberCount:          a.count,
			AvgMonthlySpending:   a.monthly / n,
			SpendingVariance:     a.variance / n,
			TransactionFrequency: a.frequency / n,
			ImpulseScore:         a.impulse / n,
			Consistency:          a.consistent / n,
		}
		profile.SpendingLevel = spendingLevel(profile.AvgMonthlySpending)
		profile.BehaviorType = behaviorType(profile.ImpulseScore, profile.Consistency)
		out[id] = profile
	}
	return out
}

func spendingLevel(avgMonthly float64) models.SpendingLevel {
	switch {
	case avgMonthly < 1000:
		return models.SpendingLow
	case avgMonthly < 3000:
		return models.SpendingMedium
	default:
		return models.SpendingHigh
	}
}

func behaviorType(impulse, consistency float64) models.BehaviorType {
	switch {
	case impulse > 2.0:
		return models.BehaviorImpulsive
	case consistency < 0.3:
		return models.BehaviorConsistent
	default:
		return models.BehaviorModerate
	}
}

// Save persists the active cluster model to the artifact store.
func (r *Recommender) Save() error {
	m := r.model.Load()
	if m == nil {
		return &mlerror.NotTrainedError{Component: "recommender"}
	}
	return r.artifacts.Save(artifactName, m, artifact.Metadata{
		Algorithm: "kmeans",
		TrainedAt: m.TrainedAt,
		Rows:      m.Users,
		Metrics:   map[string]float64{"clusters": float64(m.KMeans.K)},
	})
}

// Load restores the cluster model from the artifact store.
func (r *Recommender) Load() error {
	var m Model
	if _, err := r.artifacts.Load(artifactName, &m); err != nil {
		return err
	}
	r.model.Store(&m)
	return nil
}

func distinctUsers(records []models.TransactionRecord) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for i := range records {
		if !seen[records[i].UserID] {
			seen[records[i].UserID] = true
			out = append(out, records[i].UserID)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
