// Package suggest handles category suggestion commands
package suggest

import (
	"github.com/spf13/cobra"

	"fjacquet/finance-ml/cmd/root"
)

// Cmd represents the suggest command
var Cmd = &cobra.Command{
	Use:   "suggest",
	Short: "List ranked category suggestions for a description",
	Long:  `List the top ranked category candidates for a transaction description, with a confidence score per candidate.`,
	RunE:  suggestFunc,
}

func init() {
	Cmd.Flags().StringVarP(&root.Description, "description", "d", "", "Transaction description (required)")
	Cmd.Flags().IntVarP(&root.TopK, "top", "k", 3, "Number of suggestions to list")
	Cmd.MarkFlagRequired("description")
}

func suggestFunc(cmd *cobra.Command, args []string) error {
	root.Log.Info("Suggest command called")

	app := root.App()
	app.LoadModels()

	suggestions, err := app.GetCategorizer().Suggestions(root.Description, root.TopK)
	if err != nil {
		return err
	}
	for _, s := range suggestions {
		root.Log.Infof("%s (confidence %.2f)", s.CategoryName, s.Confidence)
	}
	return root.WriteJSON(root.SharedFlags.Output, suggestions)
}
