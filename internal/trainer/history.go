package trainer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record is one training-history entry, one per completed sub-pipeline
// run.
type Record struct {
	ModelType       string             `json:"model_type"`
	Timestamp       time.Time          `json:"timestamp"`
	Status          string             `json:"status"`
	TrainingRows    int                `json:"training_data_size,omitempty"`
	TrainingSeconds float64            `json:"training_time_seconds"`
	BestModel       string             `json:"best_model,omitempty"`
	Scores          map[string]float64 `json:"scores,omitempty"`
	Err             string             `json:"error,omitempty"`
}

// HistorySink receives append-only training records. The trainer never
// reads records back through the sink.
type HistorySink interface {
	Append(record Record) error
}

// HistorySinkFunc adapts a function to the HistorySink interface.
type HistorySinkFunc func(record Record) error

// Append calls the wrapped function.
func (f HistorySinkFunc) Append(record Record) error { return f(record) }

// FileHistory appends records to one JSON log file per calendar month
// under its directory.
type FileHistory struct {
	Dir string
}

// NewFileHistory returns a sink writing under dir.
func NewFileHistory(dir string) *FileHistory {
	return &FileHistory{Dir: dir}
}

// Append loads the current month's log, appends the record, and writes
// the file back. A corrupt log file is replaced rather than failing the
// training run.
func (h *FileHistory) Append(record Record) error {
	if err := os.MkdirAll(h.Dir, 0750); err != nil {
		return fmt.Errorf("error creating history directory: %w", err)
	}
	path := h.logPath(record.Timestamp)

	var records []Record
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &records); err != nil {
			records = nil
		}
	}
	records = append(records, record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling training log: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error writing training log: %w", err)
	}
	return nil
}

// Load returns the records of the month containing t.
func (h *FileHistory) Load(t time.Time) ([]Record, error) {
	data, err := os.ReadFile(h.logPath(t))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error parsing training log: %w", err)
	}
	return records, nil
}

func (h *FileHistory) logPath(t time.Time) string {
	return filepath.Join(h.Dir, fmt.Sprintf("training_log_%s.json", t.Format("200601")))
}
