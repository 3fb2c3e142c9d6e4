// Package train handles the model training commands
package train

import (
	"fmt"

	"github.com/spf13/cobra"

	"fjacquet/finance-ml/cmd/root"
)

// Cmd represents the train command
var Cmd = &cobra.Command{
	Use:   "train",
	Short: "Train all models from CSV extracts",
	Long: `Train the categorization, prediction and recommendation models from a
transaction extract and a category extract. Models that are already
up to date are skipped unless --force is given.`,
	RunE: trainFunc,
}

func init() {
	Cmd.Flags().BoolVarP(&root.Force, "force", "f", false, "Retrain even when saved models are up to date")
}

func trainFunc(cmd *cobra.Command, args []string) error {
	root.Log.Info("Train command called")

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

	result, err := root.App().GetTrainer().TrainAll(transactions, categories, root.Force)
	if err != nil {
		if result != nil {
			for _, msg := range result.Validation.Errors {
				root.Log.Errorf("Validation error: %s", msg)
			}
		}
		return err
	}

	root.Log.Infof("Training finished with status: %s (%d/%d models)",
		result.Summary.OverallStatus, result.Summary.Successful, result.Summary.TotalModels)
	if result.Categorization != nil && result.Categorization.BestModel != "" {
		root.Log.Infof("Best categorization model: %s", result.Categorization.BestModel)
	}

	return root.WriteJSON(root.SharedFlags.Output, result)
}
