package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 5, 7, 0, time.UTC)

	assert.Equal(t, filepath.Join("logs", "strike.20260501_090507.log"), LogFilePath("logs", "strike", start))
	assert.Equal(t, filepath.Join("plugins", "Strike", "logs", "strike.20260501_090507.log"),
		LogFilePath(filepath.Join("plugins", "Strike", "logs"), "strike", start))
	assert.Equal(t, filepath.Join("logs", "strike-test.20260501_090507.log"),
		LogFilePath("./logs/", "strike-test", start), "the directory is cleaned")
}
