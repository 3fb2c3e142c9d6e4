// Package root contains the root command for the application
package root

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fjacquet/finance-ml/internal/config"
	"fjacquet/finance-ml/internal/container"
	"fjacquet/finance-ml/internal/dataset"
	"fjacquet/finance-ml/internal/models"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Transactions string
	Categories   string
	Output       string
}

var (
	// Log is the shared logger instance for commands
	Log = logrus.New()

	app *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "finance-ml",
		Short: "Train and serve personal-finance ML models from the command line.",
		Long: `finance-ml trains transaction categorization, spending prediction and
budget recommendation models from CSV extracts and serves predictions,
forecasts and recommendations from the saved model artifacts.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to finance-ml!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv(Log)

			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}
			Log = config.ConfigureLoggingFromConfig(cfg)

			app, err = container.NewContainer(cfg, nil)
			return err
		},
	}

	// Common flags accessible to all commands
	SharedFlags = CommonFlags{}

	// Specific categorize command flags
	Description string
	Amount      float64
	TopK        int
	Feedback    string

	// Specific forecast command flags
	UserID    int64
	Periods   int
	Anomalies bool

	// Specific recommend command flags
	Budget float64
	Style  string

	// Specific train command flags
	Force bool
)

// App returns the wired dependency container. It is only valid inside a
// command Run function, after PersistentPreRunE has built it.
func App() *container.Container {
	return app
}

// SetApp overrides the container, used by command tests.
func SetApp(c *container.Container) {
	app = c
}

// LoadTransactions reads the shared --transactions extract.
func LoadTransactions() ([]models.TransactionRecord, error) {
	return dataset.LoadTransactions(SharedFlags.Transactions)
}

// LoadCategories reads the shared --categories extract.
func LoadCategories() ([]models.CategoryRecord, error) {
	return dataset.LoadCategories(SharedFlags.Categories)
}

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Transactions, "transactions", "i", "", "Transaction extract CSV file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Categories, "categories", "c", "", "Category extract CSV file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Output file")
}
