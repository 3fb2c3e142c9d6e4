package recommender

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"fjacquet/finance-ml/internal/models"
	"fjacquet/finance-ml/internal/predictor"
	"fjacquet/finance-ml/internal/store"
)

// CategoryRecommendation is one category's budget advice.
type CategoryRecommendation struct {
	CategoryName         string  `json:"category_name"`
	HistoricalAmount     float64 `json:"historical_amount"`
	HistoricalPercentage float64 `json:"historical_percentage"`
	RecommendedAmount    float64 `json:"recommended_amount"`
	RecommendedPercent   float64 `json:"recommended_percentage"`
	Adjustment           float64 `json:"adjustment"`
	Priority             string  `json:"priority"`
}

// OverallRecommendations compares the target budget to history and flags
// risky behavior.
type OverallRecommendations struct {
	TotalBudget            float64  `json:"total_budget"`
	BudgetChange           float64  `json:"budget_change"`
	BudgetChangePercentage float64  `json:"budget_change_percentage"`
	VarianceWarning        bool     `json:"spending_variance_warning"`
	ImpulseWarning         bool     `json:"impulse_spending_warning"`
	Adjustments            []string `json:"recommended_adjustments"`
}

// EmergencyFund sizes the emergency reserve by the chosen budget style.
type EmergencyFund struct {
	TargetMonths  int     `json:"target_months"`
	MonthlyAmount float64 `json:"monthly_amount"`
	TotalTarget   float64 `json:"total_target"`
}

// SavingsRate recommends a monthly savings amount. IncomeBasedAmount is
// only set when the user has income history.
type SavingsRate struct {
	RecommendedPercent float64 `json:"recommended_percentage"`
	MonthlyAmount      float64 `json:"monthly_amount"`
	IncomeBasedAmount  float64 `json:"income_based_amount,omitempty"`
}

// BudgetVsIncome relates the target budget to observed income.
type BudgetVsIncome struct {
	Income           float64 `json:"income"`
	Budget           float64 `json:"budget"`
	SurplusDeficit   float64 `json:"surplus_deficit"`
	SavingsPotential float64 `json:"savings_potential"`
}

// FinancialRecommendations bundle the savings-side advice.
type FinancialRecommendations struct {
	EmergencyFund  EmergencyFund   `json:"emergency_fund"`
	SavingsRate    SavingsRate     `json:"savings_rate"`
	BudgetVsIncome *BudgetVsIncome `json:"budget_vs_income,omitempty"`
}

// BudgetRecommendations is the full personalized budget advice for one
// user.
type BudgetRecommendations struct {
	UserID       int64                    `json:"user_id"`
	TargetBudget float64                  `json:"target_budget"`
	BudgetStyle  string                   `json:"budget_style"`
	Categories   []CategoryRecommendation `json:"category_recommendations"`
	Overall      OverallRecommendations   `json:"overall_recommendations"`
	Financial    FinancialRecommendations `json:"financial_recommendations"`
	Forecast     *predictor.Forecast      `json:"future_predictions,omitempty"`
	Insights     []string                 `json:"insights"`
	GeneratedAt  time.Time                `json:"generated_at"`
}

// GenerateBudgetRecommendations builds personalized budget advice from
// the user's profile, the chosen budget style, and the priority rules. A
// targetBudget of zero defaults to historical monthly spending plus a 10%
// buffer. An unknown style falls back to balanced.
func (r *Recommender) GenerateBudgetRecommendations(records []models.TransactionRecord, categories []models.CategoryRecord, userID int64, targetBudget float64, style string) (*BudgetRecommendations, error) {
	r.log.WithField("user_id", userID).Info("Generating budget recommendations")

	profile, err := AnalyzeUserProfile(records, categories, userID)
	if err != nil {
		return nil, err
	}

	historical := profile.Stats.AvgMonthlySpending
	if targetBudget <= 0 {
		targetBudget = historical * 1.1
	}

	styles, err := r.rules.LoadBudgetStyles()
	if err != nil {
		return nil, err
	}
	rules, ok := styles[style]
	if !ok {
		style = DefaultBudgetStyle
		rules = styles[DefaultBudgetStyle]
	}
	priorities, err := r.rules.LoadPriorityRules()
	if err != nil {
		return nil, err
	}

	result := &BudgetRecommendations{
		UserID:       userID,
		TargetBudget: targetBudget,
		BudgetStyle:  style,
		Categories:   categoryRecommendations(profile, targetBudget, priorities),
		Overall:      overallRecommendations(profile, targetBudget),
		Financial:    financialRecommendations(profile, targetBudget, rules),
		GeneratedAt:  time.Now().UTC(),
	}
	result.Insights = budgetInsights(profile, result.Categories)

	if r.forecasts != nil && r.forecasts.Trained() {
		if forecast, err := r.forecasts.PredictFutureSpending(records, userID, 3); err == nil {
			result.Forecast = forecast
		} else {
			r.log.WithField("user_id", userID).Debug("Skipping forecast attachment")
		}
	}
	return result, nil
}

func categoryRecommendations(profile *UserProfile, targetBudget float64, priorities store.PriorityRules) []CategoryRecommendation {
	out := make([]CategoryRecommendation, 0, len(profile.Categories))
	for _, cat := range profile.Categories {
		lower := strings.ToLower(cat.Name)
		var pct float64
		switch {
		case strings.Contains(lower, "food"):
			pct = math.Min(30, cat.Percentage*1.1)
		case strings.Contains(lower, "transport"):
			pct = math.Min(15, cat.Percentage*1.1)
		case strings.Contains(lower, "entertainment"):
			pct = math.Min(10, cat.Percentage*0.9)
		default:
			pct = cat.Percentage
		}
		amount := pct / 100 * targetBudget
		out = append(out, CategoryRecommendation{
			CategoryName:         cat.Name,
			HistoricalAmount:     cat.Total,
			HistoricalPercentage: cat.Percentage,
			RecommendedAmount:    amount,
			RecommendedPercent:   pct,
			Adjustment:           amount - cat.Total,
			Priority:             priorities.Priority(cat.Name),
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].RecommendedAmount != out[b].RecommendedAmount {
			return out[a].RecommendedAmount > out[b].RecommendedAmount
		}
		return out[a].CategoryName < out[b].CategoryName
	})
	return out
}

func overallRecommendations(profile *UserProfile, targetBudget float64) OverallRecommendations {
	historical := profile.Stats.AvgMonthlySpending
	overall := OverallRecommendations{
		TotalBudget:     targetBudget,
		BudgetChange:    targetBudget - historical,
		VarianceWarning: profile.Behavior.Consistency > 0.5,
		ImpulseWarning:  profile.Behavior.ImpulseScore > 2.0,
	}
	if historical > 0 {
		overall.BudgetChangePercentage = (targetBudget - historical) / historical * 100
	}

	if profile.Temporal.Volatility > 1.0 {
		overall.Adjustments = append(overall.Adjustments,
			"Consider setting up automatic savings to smooth spending volatility")
	}
	if profile.Behavior.ImpulseScore > 2.0 {
		overall.Adjustments = append(overall.Adjustments,
			"Set up a separate account for discretionary spending to control impulse purchases")
	}
	if profile.Temporal.WeekdayAvg > 0 && profile.Temporal.WeekendAvg/profile.Temporal.WeekdayAvg > 1.5 {
		overall.Adjustments = append(overall.Adjustments,
			"Monitor weekend spending - consider setting a weekend budget limit")
	}
	return overall
}

func financialRecommendations(profile *UserProfile, targetBudget float64, rules store.BudgetStyle) FinancialRecommendations {
	recs := FinancialRecommendations{
		EmergencyFund: EmergencyFund{
			TargetMonths:  rules.EmergencyFundMonths,
			MonthlyAmount: targetBudget,
			TotalTarget:   targetBudget * float64(rules.EmergencyFundMonths),
		},
		SavingsRate: SavingsRate{
			RecommendedPercent: rules.SavingsRate * 100,
			MonthlyAmount:      targetBudget * rules.SavingsRate,
		},
	}
	if profile.Income != nil {
		income := profile.Income.AvgMonthlyIncome
		recs.SavingsRate.IncomeBasedAmount = income * rules.SavingsRate
		recs.BudgetVsIncome = &BudgetVsIncome{
			Income:           income,
			Budget:           targetBudget,
			SurplusDeficit:   income - targetBudget,
			SavingsPotential: math.Max(0, income-targetBudget),
		}
	}
	return recs
}

func budgetInsights(profile *UserProfile, categories []CategoryRecommendation) []string {
	var insights []string
	if profile.Behavior.Consistency < 0.3 {
		insights = append(insights, "Your spending is quite consistent - this makes budgeting easier!")
	} else {
		insights = append(insights, "Your spending varies significantly month-to-month. Consider tracking weekly budgets.")
	}
	if len(categories) > 0 {
		top := categories[0]
		insights = append(insights, fmt.Sprintf("Your largest expense category is %s (%.1f%% of spending)",
			top.CategoryName, top.HistoricalPercentage))
	}
	if profile.Behavior.ImpulseScore > 2.0 {
		insights = append(insights, "You have some large, irregular purchases. Consider planning for these expenses.")
	}
	return insights
}
