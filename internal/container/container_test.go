package container

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/finance-ml/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Log:            config.LogConfig{Level: "error", Format: "text"},
		Models:         config.ModelsConfig{Directory: filepath.Join(dir, "models"), Save: true},
		Rules:          config.RulesConfig{Directory: filepath.Join(dir, "rules")},
		Plots:          config.PlotsConfig{Directory: filepath.Join(dir, "plots")},
		History:        config.HistoryConfig{Directory: filepath.Join(dir, "logs")},
		Training:       config.TrainingConfig{MinPerCategory: 10, MaxPredictionUsers: 10},
		Prediction:     config.PredictionConfig{Period: "week", ForecastPeriods: 4, AnomalyThreshold: 2.5},
		Categorization: config.CategorizationConfig{ConfidenceThreshold: 0.5},
		Recommendation: config.RecommendationConfig{BudgetStyle: "balanced"},
	}
}

func TestNewContainerNilConfig(t *testing.T) {
	c, err := NewContainer(nil, nil)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "configuration cannot be nil")
}

func TestNewContainerWiring(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(cfg, nil)
	require.NoError(t, err)

	assert.NotNil(t, c.GetLogger())
	assert.Same(t, cfg, c.GetConfig())
	assert.NotNil(t, c.GetArtifacts())
	assert.NotNil(t, c.GetRules())
	assert.NotNil(t, c.GetCategorizer())
	assert.NotNil(t, c.GetPredictor())
	assert.NotNil(t, c.GetRecommender())
	assert.NotNil(t, c.GetEvaluator())
	assert.NotNil(t, c.GetTrainer())

	assert.False(t, c.GetCategorizer().Trained())
	assert.False(t, c.GetPredictor().Trained())
	assert.False(t, c.GetRecommender().Trained())
}

func TestLoadModelsWithoutArtifacts(t *testing.T) {
	c, err := NewContainer(testConfig(t), nil)
	require.NoError(t, err)

	// No artifacts on disk: engines stay untrained, nothing panics.
	c.LoadModels()
	assert.False(t, c.GetCategorizer().Trained())
}
