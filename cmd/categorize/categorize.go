// Package categorize handles transaction categorization commands
package categorize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fjacquet/finance-ml/cmd/root"
	"fjacquet/finance-ml/internal/models"
)

// Cmd represents the categorize command
var Cmd = &cobra.Command{
	Use:   "categorize",
	Short: "Categorize transactions with the trained model",
	Long: `Categorize a single transaction given on the command line, or a whole
transaction extract given with --transactions.`,
	RunE: categorizeFunc,
}

func init() {
	Cmd.Flags().StringVarP(&root.Description, "description", "d", "", "Transaction description to categorize")
	Cmd.Flags().Float64VarP(&root.Amount, "amount", "a", 0, "Transaction amount")
	Cmd.Flags().StringVar(&root.Feedback, "feedback", "", "Record the correct category for the given transaction")
}

func categorizeFunc(cmd *cobra.Command, args []string) error {
	root.Log.Info("Categorize command called")

	app := root.App()
	app.LoadModels()
	c := app.GetCategorizer()

	if root.SharedFlags.Transactions != "" {
		return categorizeBatch(cmd)
	}
	if root.Description == "" {
		return fmt.Errorf("either --description or --transactions is required")
	}

	tx := models.TransactionRecord{
		Description: root.Description,
		Amount:      decimal.NewFromFloat(root.Amount),
		Date:        models.Date{Time: time.Now()},
		Type:        models.TypeExpense,
	}

	if root.Feedback != "" {
		if err := c.RecordFeedback(tx, root.Feedback); err != nil {
			return err
		}
		root.Log.Infof("Recorded feedback: %q -> %s", root.Description, root.Feedback)
		return nil
	}

	prediction, err := c.PredictCategory(tx)
	if err != nil {
		return err
	}
	root.Log.Infof("Transaction categorized as: %s (confidence %.2f, source %s)",
		prediction.CategoryName, prediction.Confidence, prediction.Source)
	return root.WriteJSON(root.SharedFlags.Output, prediction)
}

func categorizeBatch(cmd *cobra.Command) error {
	transactions, err := root.LoadTransactions()
	if err != nil {
		return err
	}

	predictions, err := root.App().GetCategorizer().PredictBatch(transactions)
	if err != nil {
		return err
	}
	root.Log.Infof("Categorized %d transactions", len(predictions))
	return root.WriteJSON(root.SharedFlags.Output, predictions)
}
