package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFormatter(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "debug", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	log.WithFields(logrus.Fields{"stage": "analyze_gaps", "query": "acme spine recall"}).Warn("search_failed")

	line := buf.String()
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[WARN\] \[logger_test\.go:\d+\] search_failed`, line)
	assert.Contains(t, line, ` query="acme spine recall" stage=analyze_gaps`)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Options{Level: "chatty", Output: &buf})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestLogFileReceivesCopy(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	log, closer, err := New(Options{Level: "info", File: path, Output: &buf})
	require.NoError(t, err)

	log.Info("analysis_complete")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(raw))
}
