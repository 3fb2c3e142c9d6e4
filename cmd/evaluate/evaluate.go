// Package evaluate handles model evaluation commands
package evaluate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fjacquet/finance-ml/cmd/root"
)

var jsonPath string

// Cmd represents the evaluate command
var Cmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate all trained models on a held-out extract",
	Long: `Evaluate the categorization, prediction and recommendation models on a
transaction extract, write evaluation plots, and produce a markdown
report. Models that are not trained are reported as such without
failing the run.`,
	RunE: evaluateFunc,
}

func init() {
	Cmd.Flags().Int64VarP(&root.UserID, "user", "u", 0, "User ID for prediction evaluation (default: first user in extract)")
	Cmd.Flags().StringVar(&jsonPath, "json", "", "Also write the full evaluation bundle as JSON to this file")
}

func evaluateFunc(cmd *cobra.Command, args []string) error {
	root.Log.Info("Evaluate command called")

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
	e := app.GetEvaluator()

	userID := root.UserID
	if userID == 0 && len(transactions) > 0 {
		userID = transactions[0].UserID
	}

	cat := e.EvaluateCategorization(app.GetCategorizer(), transactions, categories)
	pred := e.EvaluatePrediction(app.GetPredictor(), transactions, userID)
	rec := e.EvaluateRecommendation(app.GetRecommender(), transactions, categories, nil)

	for name, failure := range map[string]string{
		"categorization": cat.Err,
		"prediction":     pred.Err,
		"recommendation": rec.Err,
	} {
		if failure != "" {
			root.Log.Warnf("Evaluation of %s model failed: %s", name, failure)
		}
	}

	if jsonPath != "" {
		bundle := map[string]interface{}{
			"categorization": cat,
			"prediction":     pred,
			"recommendation": rec,
		}
		if err := root.WriteJSON(jsonPath, bundle); err != nil {
			return err
		}
	}

	report := e.Report(cat, pred, rec)
	if root.SharedFlags.Output == "" {
		fmt.Println(report)
		return nil
	}
	if err := os.WriteFile(root.SharedFlags.Output, []byte(report), 0600); err != nil {
		return fmt.Errorf("error writing evaluation report: %w", err)
	}
	root.Log.Infof("Evaluation report written to %s", root.SharedFlags.Output)
	return nil
}
