package models

// SpendingLevel is the qualitative monthly-spending label of a cluster.
type SpendingLevel string

const (
	SpendingLow    SpendingLevel = "low"
	SpendingMedium SpendingLevel = "medium"
	SpendingHigh   SpendingLevel = "high"
)

// BehaviorType is the qualitative behavior label of a cluster.
type BehaviorType string

const (
	BehaviorImpulsive  BehaviorType = "impulsive"
	BehaviorConsistent BehaviorType = "consistent"
	BehaviorModerate   BehaviorType = "moderate"
)

// ClusterProfile summarizes one group of behaviorally similar users.
// Profiles are rebuilt wholesale on every recommendation-engine training
// run; there is no incremental update.
type ClusterProfile struct {
	ClusterID            int           `json:"cluster_id"`
	MemberCount          int           `json:"member_count"`
	AvgMonthlySpending   float64       `json:"avg_monthly_spending"`
	SpendingVariance     float64       `json:"spending_variance"`
	TransactionFrequency float64       `json:"transaction_frequency"`
	ImpulseScore         float64       `json:"impulse_score"`
	Consistency          float64       `json:"consistency"`
	SpendingLevel        SpendingLevel `json:"spending_level"`
	BehaviorType         BehaviorType  `json:"behavior_type"`
}
