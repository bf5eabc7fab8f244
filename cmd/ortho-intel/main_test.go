package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JesseHenson/ortho-intel-sub001/internal/competitiveintel"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRecordAndReplayAreExclusive(t *testing.T) {
	_, _, err := buildOrchestrator(context.Background(), settings{RecordPath: "a.db", ReplayPath: "b.db"}, quietLogger())
	assert.Error(t, err)
}

func TestBuildOrchestratorRejectsBadPolicy(t *testing.T) {
	_, _, err := buildOrchestrator(context.Background(), settings{FailurePolicy: "retry-forever"}, quietLogger())
	assert.Error(t, err)
}

func TestBuildOrchestratorRequiresSearchProvider(t *testing.T) {
	_, _, err := buildOrchestrator(context.Background(), settings{LLMAPIKey: "k"}, quietLogger())
	assert.ErrorContains(t, err, "search")
}

func TestReplayWithEmptyStoreStillReports(t *testing.T) {
	s := settings{ReplayPath: filepath.Join(t.TempDir(), "empty.db"), MarketShare: true}
	orch, cleanup, err := buildOrchestrator(context.Background(), s, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	report, err := orch.RunAnalysis(context.Background(), competitiveintel.Request{Competitors: []string{"Globus Medical"}, FocusArea: "spine_fusion"})
	require.NoError(t, err)
	assert.Equal(t, competitiveintel.ReportModeComplete, report.Mode)
	assert.Equal(t, "replay", report.Metadata.Model)
	assert.NotEmpty(t, report.Metadata.Errors)
	assert.Contains(t, report.Summary, "Globus Medical")
}

func TestWriteReportFormats(t *testing.T) {
	report := &competitiveintel.FinalReport{
		CompetitorsAnalyzed: []string{"Acme"},
		FocusArea:           "spine_fusion",
		Summary:             "Short summary.",
		ClinicalGaps:        []competitiveintel.ClinicalGap{},
		MarketOpportunities: []competitiveintel.MarketOpportunity{},
		Mode:                competitiveintel.ReportModeComplete,
	}

	var js bytes.Buffer
	require.NoError(t, writeReport(&js, report, "json"))
	var env map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &env))
	assert.Equal(t, "COMPLETE", env["report_mode"])
	assert.NotEmpty(t, env["disclaimer"])

	var md bytes.Buffer
	require.NoError(t, writeReport(&md, report, "markdown"))
	assert.Contains(t, md.String(), "## Executive Summary")

	var page bytes.Buffer
	require.NoError(t, writeReport(&page, report, "html"))
	assert.Contains(t, page.String(), "<h1>Competitive Intelligence Report</h1>")

	assert.Error(t, writeReport(io.Discard, report, "pdf"))
}

func TestLLMKeyFollowsProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-secret")
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ORTHO_INTEL_LLM_API_KEY", "")
	t.Cleanup(viper.Reset)

	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "openai-key"},
		{"anthropic", "anthropic-secret"},
		{"gemini", ""},
		{"cohere", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Setenv("ORTHO_INTEL_LLM_PROVIDER", tt.provider)
			viper.Reset()
			configureEnv()
			s := loadSettings()
			assert.Equal(t, tt.provider, s.LLMProvider)
			assert.Equal(t, tt.want, s.LLMAPIKey)
		})
	}
}

func TestExplicitLLMKeyWins(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-secret")
	t.Setenv("ORTHO_INTEL_LLM_PROVIDER", "openai")
	t.Setenv("ORTHO_INTEL_LLM_API_KEY", "explicit")
	t.Cleanup(viper.Reset)
	viper.Reset()
	configureEnv()
	assert.Equal(t, "explicit", loadSettings().LLMAPIKey)
}

func TestUnknownFormatRejectedBeforeRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(out, []byte("previous report"), 0o644))

	flags := analyzeCmd.Flags()
	require.NoError(t, flags.Set("format", "pdf"))
	require.NoError(t, flags.Set("out", out))
	t.Cleanup(func() {
		_ = flags.Set("format", "json")
		_ = flags.Set("out", "")
	})

	err := runAnalyze(analyzeCmd, nil)
	assert.ErrorContains(t, err, `unknown format "pdf"`)
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous report", string(raw))
}
