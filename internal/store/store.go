// Package store persists the rule configuration the recommendation and
// categorization pipelines consult: budget styles, category priority
// keywords, and the merchant-to-category mappings accumulated from user
// feedback. Everything is YAML on disk with built-in defaults when a file
// is absent.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fjacquet/finance-ml/internal/logging"
)

// BudgetStyle holds the allocation rules of one budgeting temperament.
type BudgetStyle struct {
	EmergencyFundMonths   int     `yaml:"emergency_fund_months"`
	SavingsRate           float64 `yaml:"savings_rate"`
	DiscretionarySpending float64 `yaml:"discretionary_spending"`
}

// PriorityRules maps keyword groups to budget priorities. A category
// matching no group is discretionary.
type PriorityRules struct {
	Essential []string `yaml:"essential"`
	Important []string `yaml:"important"`
}

// DefaultBudgetStyles returns the built-in styles.
func DefaultBudgetStyles() map[string]BudgetStyle {
	return map[string]BudgetStyle{
		"conservative": {EmergencyFundMonths: 6, SavingsRate: 0.20, DiscretionarySpending: 0.30},
		"balanced":     {EmergencyFundMonths: 4, SavingsRate: 0.15, DiscretionarySpending: 0.40},
		"aggressive":   {EmergencyFundMonths: 3, SavingsRate: 0.10, DiscretionarySpending: 0.50},
	}
}

// DefaultPriorityRules returns the built-in priority keyword groups.
func DefaultPriorityRules() PriorityRules {
	return PriorityRules{
		Essential: []string{"food", "grocery", "utilities", "rent", "mortgage", "healthcare"},
		Important: []string{"transport", "education", "insurance"},
	}
}

// Priority classifies a category name against the rules.
func (r PriorityRules) Priority(categoryName string) string {
	lower := strings.ToLower(categoryName)
	for _, kw := range r.Essential {
		if strings.Contains(lower, kw) {
			return "essential"
		}
	}
	for _, kw := range r.Important {
		if strings.Contains(lower, kw) {
			return "important"
		}
	}
	return "discretionary"
}

// RuleStore reads and writes rule files under one configuration
// directory.
type RuleStore struct {
	Dir           string
	BudgetFile    string
	PriorityFile  string
	MerchantsFile string

	log logging.Logger
}

// NewRuleStore returns a store rooted at dir with default file names.
func NewRuleStore(dir string, logger logging.Logger) *RuleStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RuleStore{
		Dir:           dir,
		BudgetFile:    "budget_styles.yaml",
		PriorityFile:  "priorities.yaml",
		MerchantsFile: "merchants.yaml",
		log:           logger,
	}
}

// LoadBudgetStyles reads the budget style file, falling back to the
// built-in defaults when the file does not exist.
func (s *RuleStore) LoadBudgetStyles() (map[string]BudgetStyle, error) {
	path := filepath.Join(s.Dir, s.BudgetFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.WithField("file", path).Debug("Budget styles file not found, using defaults")
			return DefaultBudgetStyles(), nil
		}
		return nil, fmt.Errorf("error reading budget styles file: %w", err)
	}

	var styles map[string]BudgetStyle
	if err := yaml.Unmarshal(data, &styles); err != nil {
		return nil, fmt.Errorf("error parsing budget styles: %w", err)
	}
	if len(styles) == 0 {
		return DefaultBudgetStyles(), nil
	}
	s.log.WithField("count", len(styles)).Debug("Loaded budget styles")
	return styles, nil
}

// LoadPriorityRules reads the priority keyword file, falling back to the
// built-in defaults when the file does not exist.
func (s *RuleStore) LoadPriorityRules() (PriorityRules, error) {
	path := filepath.Join(s.Dir, s.PriorityFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPriorityRules(), nil
		}
		return PriorityRules{}, fmt.Errorf("error reading priorities file: %w", err)
	}

	var rules PriorityRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return PriorityRules{}, fmt.Errorf("error parsing priorities: %w", err)
	}
	if len(rules.Essential) == 0 && len(rules.Important) == 0 {
		return DefaultPriorityRules(), nil
	}
	return rules, nil
}

// LoadMerchantMappings reads the merchant-to-category feedback file. A
// missing file is an empty map, not an error.
func (s *RuleStore) LoadMerchantMappings() (map[string]string, error) {
	path := filepath.Join(s.Dir, s.MerchantsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.WithField("file", path).Debug("Merchant mappings file not found")
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("error reading merchant mappings file: %w", err)
	}

	var mappings map[string]string
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("error parsing merchant mappings: %w", err)
	}
	if mappings == nil {
		mappings = map[string]string{}
	}
	s.log.WithField("count", len(mappings)).Debug("Loaded merchant mappings")
	return mappings, nil
}

// SaveMerchantMappings merges the given mappings into the merchant file.
// Existing entries for other merchants are preserved.
func (s *RuleStore) SaveMerchantMappings(mappings map[string]string) error {
	existing, err := s.LoadMerchantMappings()
	if err != nil {
		return err
	}
	for merchant, category := range mappings {
		existing[strings.ToLower(merchant)] = category
	}

	data, err := yaml.Marshal(existing)
	if err != nil {
		return fmt.Errorf("error marshaling merchant mappings: %w", err)
	}
	if err := os.MkdirAll(s.Dir, 0750); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	path := filepath.Join(s.Dir, s.MerchantsFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error writing merchant mappings file: %w", err)
	}

	s.log.WithField("count", len(existing)).Info("Saved merchant mappings")
	return nil
}
