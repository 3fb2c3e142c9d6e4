// Package forecast handles spending forecast and anomaly commands
package forecast

import (
	"fmt"

	"github.com/spf13/cobra"

	"fjacquet/finance-ml/cmd/root"
)

// Cmd represents the forecast command
var Cmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast future spending for a user",
	Long: `Forecast a user's spending for the next periods from their transaction
history, using the trained prediction model. With --anomalies the
command reports unusual spending periods instead.`,
	RunE: forecastFunc,
}

func init() {
	Cmd.Flags().Int64VarP(&root.UserID, "user", "u", 0, "User ID to forecast (required)")
	Cmd.Flags().IntVarP(&root.Periods, "periods", "p", 0, "Number of periods ahead (default from config)")
	Cmd.Flags().BoolVar(&root.Anomalies, "anomalies", false, "Detect spending anomalies instead of forecasting")
	Cmd.MarkFlagRequired("user")
}

func forecastFunc(cmd *cobra.Command, args []string) error {
	root.Log.Info("Forecast command called")

	if root.SharedFlags.Transactions == "" {
		return fmt.Errorf("--transactions is required")
	}
	transactions, err := root.LoadTransactions()
	if err != nil {
		return err
	}

	app := root.App()
	app.LoadModels()
	cfg := app.GetConfig()

	if root.Anomalies {
		anomalies, err := app.GetPredictor().DetectSpendingAnomalies(
			transactions, root.UserID, cfg.Period(), cfg.Prediction.AnomalyThreshold)
		if err != nil {
			return err
		}
		root.Log.Infof("Found %d anomalous periods for user %d", len(anomalies), root.UserID)
		return root.WriteJSON(root.SharedFlags.Output, anomalies)
	}

	periods := root.Periods
	if periods <= 0 {
		periods = cfg.Prediction.ForecastPeriods
	}

	forecast, err := app.GetPredictor().PredictFutureSpending(transactions, root.UserID, periods)
	if err != nil {
		return err
	}
	root.Log.Infof("Forecast for user %d: %d periods using %s",
		root.UserID, len(forecast.Predictions), forecast.ModelUsed)
	return root.WriteJSON(root.SharedFlags.Output, forecast)
}
