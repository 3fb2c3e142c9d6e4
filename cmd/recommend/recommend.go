// Package recommend handles budget recommendation commands
package recommend

import (
	"fmt"

	"github.com/spf13/cobra"

	"fjacquet/finance-ml/cmd/root"
)

// Cmd represents the recommend command
var Cmd = &cobra.Command{
	Use:   "recommend",
	Short: "Generate budget recommendations for a user",
	Long: `Generate per-category budget recommendations, overall adjustments and
financial advice for a user from their transaction history and the
trained recommendation engine.`,
	RunE: recommendFunc,
}

func init() {
	Cmd.Flags().Int64VarP(&root.UserID, "user", "u", 0, "User ID to recommend for (required)")
	Cmd.Flags().Float64VarP(&root.Budget, "budget", "b", 0, "Target monthly budget (default: derived from history)")
	Cmd.Flags().StringVarP(&root.Style, "style", "s", "", "Budget style (default from config)")
	Cmd.MarkFlagRequired("user")
}

func recommendFunc(cmd *cobra.Command, args []string) error {
	root.Log.Info("Recommend command called")

	if root.SharedFlags.Transactions == "" || root.SharedFlags.Categories == "" {
		return fmt.Errorf("both --transactions and --categories are required")
	}
	transactions, err := root.LoadTransactions()
	if err != nil {
		return err
	}
	categories, err := root.LoadCategories()
	if err != nil {
		return err
	}

	app := root.App()
	app.LoadModels()

	style := root.Style
	if style == "" {
		style = app.GetConfig().Recommendation.BudgetStyle
	}

	recommendations, err := app.GetRecommender().GenerateBudgetRecommendations(
		transactions, categories, root.UserID, root.Budget, style)
	if err != nil {
		return err
	}
	root.Log.Infof("Generated %d category recommendations for user %d (target %.2f)",
		len(recommendations.Categories), root.UserID, recommendations.TargetBudget)
	return root.WriteJSON(root.SharedFlags.Output, recommendations)
}
