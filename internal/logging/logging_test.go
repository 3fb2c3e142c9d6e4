package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLogrusAdapter(t *testing.T) {
	logger := NewLogrusAdapter("debug", "json")
	assert.NotNil(t, logger)

	adapter, ok := logger.(*LogrusAdapter)
	assert.True(t, ok)
	assert.Equal(t, logrus.DebugLevel, adapter.logger.GetLevel())
}

func TestNewLogrusAdapterInvalidLevel(t *testing.T) {
	logger := NewLogrusAdapter("nonsense", "text")
	adapter, ok := logger.(*LogrusAdapter)
	assert.True(t, ok)
	assert.Equal(t, logrus.InfoLevel, adapter.logger.GetLevel())
}

func TestMockLoggerCapturesEntries(t *testing.T) {
	mock := NewMockLogger()
	mock.Info("training started", Field{Key: "component", Value: "categorizer"})
	mock.Warn("low sample count")

	entries := mock.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "training started", entries[0].Message)
	assert.True(t, mock.HasEntry("WARN", "low sample count"))
}

func TestMockLoggerSharedRecorder(t *testing.T) {
	mock := NewMockLogger()
	child := mock.WithField("user_id", 7).WithError(assert.AnError)
	child.Error("training failed")

	entries := mock.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, assert.AnError, entries[0].Error)
	assert.Equal(t, "user_id", entries[0].Fields[0].Key)
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	// Must not panic and chaining must keep returning a usable logger.
	logger.WithField("k", "v").WithError(assert.AnError).Info("ignored")
}
