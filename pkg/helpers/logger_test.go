package helpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "mailmerge", "production", "")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	LogError(logger, "send failed", errors.New("535 rejected"), logrus.Fields{"row": 2})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "send failed", entry["msg"])
	assert.Equal(t, "535 rejected", entry["error"])
	assert.Equal(t, float64(2), entry["row"])
}

func TestNewLoggerLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, logrus.DebugLevel, newLogger(&buf, "mailmerge", "development", "").GetLevel())
	assert.Equal(t, logrus.WarnLevel, newLogger(&buf, "mailmerge", "development", "warn").GetLevel())
	assert.Equal(t, logrus.InfoLevel, newLogger(&buf, "mailmerge", "production", "loud").GetLevel())
}

func TestLogInfoNilFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "mailmerge", "production", "")
	LogInfo(logger, "run finished", nil)
	LogWarn(logger, "skipped", nil)
	assert.Contains(t, buf.String(), "run finished")
	assert.Contains(t, buf.String(), "skipped")
}
