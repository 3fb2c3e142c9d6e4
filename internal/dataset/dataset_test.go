package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	err := os.WriteFile(path, []byte(content), 0600)
	require.NoError(t, err)
}

func TestCheckColumns(t *testing.T) {
	header := []string{"id", "user_id", "Amount", " description", "date", "type", "extra"}
	assert.NoError(t, CheckColumns(header, "transaction", TransactionColumns))

	err := CheckColumns([]string{"id", "user_id"}, "transaction", TransactionColumns)
	var schemaErr *mlerror.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Missing, "amount")
	assert.Contains(t, schemaErr.Missing, "date")
}

func TestLoadTransactions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transactions.csv")
	writeFile(t, path, `id,user_id,amount,description,date,type,category_id,merchant
1,10,5.75,Starbucks Coffee,2024-01-15,expense,3,starbucks
2,10,1200.00,Monthly Salary,2024-01-01,income,,
3,11,42.10,POS Migros Lausanne,2024-01-16,expense,,migros
`)

	rows, err := LoadTransactions(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, int64(1), rows[0].ID)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromFloat(5.75)))
	assert.Equal(t, models.TypeExpense, rows[0].Type)
	require.NotNil(t, rows[0].CategoryID)
	assert.Equal(t, int64(3), *rows[0].CategoryID)

	assert.Equal(t, models.TypeIncome, rows[1].Type)
	assert.Nil(t, rows[1].CategoryID)
	assert.Equal(t, 2024, rows[2].Date.Year())
}

func TestLoadTransactionsMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	writeFile(t, path, "id,user_id,description,date,type\n1,10,coffee,2024-01-15,expense\n")

	_, err := LoadTransactions(path)
	var schemaErr *mlerror.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"amount"}, schemaErr.Missing)
}

func TestLoadTransactionsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	writeFile(t, path, "")

	_, err := LoadTransactions(path)
	var schemaErr *mlerror.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
}

func TestLoadCategories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.csv")
	writeFile(t, path, `id,name,type,parent_id
1,Food,expense,
2,Restaurants,expense,1
`)

	rows, err := LoadCategories(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Food", rows[0].Name)
	assert.Nil(t, rows[0].ParentID)
	require.NotNil(t, rows[1].ParentID)
	assert.Equal(t, int64(1), *rows[1].ParentID)
}

func TestWritePredictions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predictions.csv")
	catID := int64(3)
	records := []models.PredictionRecord{
		{
			UserID:          10,
			CategoryID:      &catID,
			Kind:            models.KindCategory,
			PredictedAmount: decimal.NewFromFloat(5.75),
			Confidence:      0.91,
			ModelVersion:    "random_forest",
		},
	}

	require.NoError(t, WritePredictions(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "category")
	assert.Contains(t, string(data), "random_forest")
}
