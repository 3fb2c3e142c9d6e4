// Package status reports the state of the trained model artifacts
package status

import (
	"github.com/spf13/cobra"

	"fjacquet/finance-ml/cmd/root"
)

// Cmd represents the status command
var Cmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of all trained models",
	Long:  `Show which models are trained, which artifacts exist on disk, and when the last training run completed.`,
	RunE:  statusFunc,
}

func statusFunc(cmd *cobra.Command, args []string) error {
	root.Log.Info("Status command called")

	app := root.App()
	app.LoadModels()

	report := app.GetTrainer().Status()
	return root.WriteJSON(root.SharedFlags.Output, report)
}
