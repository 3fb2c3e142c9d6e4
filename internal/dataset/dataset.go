// Package dataset loads the tabular extracts the ML core consumes. The
// surrounding application produces denormalized CSV batches; this package
// validates their shape at the boundary so feature code never has to.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"

	"github.com/gocarina/gocsv"
)

// Required columns per extract. Columns beyond these are ignored.
var (
	TransactionColumns = []string{"id", "user_id", "amount", "description", "date", "type"}
	CategoryColumns    = []string{"id", "name", "type"}
)

var log = logging.NewNop()

// SetLogger sets the package logger used for batch loading.
func SetLogger(logger logging.Logger) {
	if logger != nil {
		log = logger
	}
}

// CheckColumns verifies that every required column is present in the
// header and returns a SchemaError naming the missing ones otherwise.
func CheckColumns(header []string, entity string, required []string) error {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[strings.TrimSpace(strings.ToLower(col))] = true
	}

	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &mlerror.SchemaError{Entity: entity, Missing: missing}
	}
	return nil
}

// LoadTransactions reads a transaction extract from a CSV file, checking
// the header against TransactionColumns first.
func LoadTransactions(path string) ([]models.TransactionRecord, error) {
	var rows []models.TransactionRecord
	if err := loadCSV(path, "transaction", TransactionColumns, &rows); err != nil {
		return nil, err
	}
	log.WithFields(
		logging.Field{Key: "file", Value: path},
		logging.Field{Key: "count", Value: len(rows)},
	).Info("Loaded transaction extract")
	return rows, nil
}

// LoadCategories reads a category extract from a CSV file, checking the
// header against CategoryColumns first.
func LoadCategories(path string) ([]models.CategoryRecord, error) {
	var rows []models.CategoryRecord
	if err := loadCSV(path, "category", CategoryColumns, &rows); err != nil {
		return nil, err
	}
	log.WithFields(
		logging.Field{Key: "file", Value: path},
		logging.Field{Key: "count", Value: len(rows)},
	).Info("Loaded category extract")
	return rows, nil
}

// WritePredictions writes prediction records to a CSV file. Used by the
// CLI's file-backed prediction sink.
func WritePredictions(path string, records []models.PredictionRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating predictions file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.WithError(err).Warn("Failed to close predictions file")
		}
	}()

	if err := gocsv.MarshalFile(&records, file); err != nil {
		return fmt.Errorf("error writing predictions file: %w", err)
	}
	return nil
}

func loadCSV(path, entity string, required []string, out interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening %s extract: %w", entity, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.WithError(err).Warn("Failed to close extract file")
		}
	}()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		if err == io.EOF {
			return &mlerror.SchemaError{Entity: entity, Missing: required}
		}
		return fmt.Errorf("error reading %s header: %w", entity, err)
	}
	if err := CheckColumns(header, entity, required); err != nil {
		return err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("error rewinding %s extract: %w", entity, err)
	}
	if err := gocsv.UnmarshalFile(file, out); err != nil {
		return fmt.Errorf("error parsing %s extract: %w", entity, err)
	}
	return nil
}
