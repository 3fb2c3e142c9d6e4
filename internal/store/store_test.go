package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBudgetStylesDefaults(t *testing.T) {
	s := NewRuleStore(t.TempDir(), nil)
	styles, err := s.LoadBudgetStyles()
	require.NoError(t, err)

	require.Contains(t, styles, "balanced")
	assert.Equal(t, 4, styles["balanced"].EmergencyFundMonths)
	assert.InDelta(t, 0.15, styles["balanced"].SavingsRate, 1e-9)
	assert.Equal(t, 6, styles["conservative"].EmergencyFundMonths)
	assert.InDelta(t, 0.50, styles["aggressive"].DiscretionarySpending, 1e-9)
}

func TestLoadBudgetStylesFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "frugal:\n  emergency_fund_months: 12\n  savings_rate: 0.4\n  discretionary_spending: 0.1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "budget_styles.yaml"), []byte(content), 0600))

	s := NewRuleStore(dir, nil)
	styles, err := s.LoadBudgetStyles()
	require.NoError(t, err)
	require.Contains(t, styles, "frugal")
	assert.Equal(t, 12, styles["frugal"].EmergencyFundMonths)
}

func TestPriorityClassification(t *testing.T) {
	rules := DefaultPriorityRules()
	assert.Equal(t, "essential", rules.Priority("Food & Dining"))
	assert.Equal(t, "essential", rules.Priority("Rent"))
	assert.Equal(t, "important", rules.Priority("Public Transport"))
	assert.Equal(t, "discretionary", rules.Priority("Entertainment"))
}

func TestMerchantMappingsRoundTrip(t *testing.T) {
	s := NewRuleStore(t.TempDir(), nil)

	mappings, err := s.LoadMerchantMappings()
	require.NoError(t, err)
	assert.Empty(t, mappings)

	require.NoError(t, s.SaveMerchantMappings(map[string]string{"Starbucks": "Food"}))
	require.NoError(t, s.SaveMerchantMappings(map[string]string{"uber": "Transport"}))

	mappings, err = s.LoadMerchantMappings()
	require.NoError(t, err)
	// Keys are lowered on save and earlier entries survive later merges.
	assert.Equal(t, "Food", mappings["starbucks"])
	assert.Equal(t, "Transport", mappings["uber"])
}

func TestLoadPriorityRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "essential:\n  - housing\nimportant:\n  - childcare\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "priorities.yaml"), []byte(content), 0600))

	s := NewRuleStore(dir, nil)
	rules, err := s.LoadPriorityRules()
	require.NoError(t, err)
	assert.Equal(t, "essential", rules.Priority("Housing"))
	assert.Equal(t, "important", rules.Priority("Childcare"))
	assert.Equal(t, "discretionary", rules.Priority("Food"))
}
