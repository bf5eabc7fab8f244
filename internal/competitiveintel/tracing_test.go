package competitiveintel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JesseHenson/ortho-intel-sub001/internal/websearch"
)

func TestStagesAndCallsAreTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := &scriptedResearcher{fn: func(q string) ([]websearch.Result, error) {
		return nil, errors.New("timeout")
	}}
	s := &scriptedSynth{fn: func(string) (string, error) { return "", nil }}
	o := newTestOrchestrator(t, r, s, Options{DisableMarketShare: true})

	_, err := o.RunAnalysis(context.Background(), Request{Competitors: []string{"Acme"}, FocusArea: "spine"})
	require.NoError(t, err)

	counts := map[string]int{}
	failedSearches := 0
	for _, span := range rec.Ended() {
		counts[span.Name()]++
		if span.Name() == "web_research.search" && span.Status().Code == codes.Error {
			failedSearches++
		}
	}
	assert.Equal(t, 6, counts["stage.detect_category"]+counts["stage.initialize"]+counts["stage.research_competitor"]+
		counts["stage.analyze_gaps"]+counts["stage.identify_opportunities"]+counts["stage.synthesize_report"])
	assert.Zero(t, counts["stage.market_share_analysis"])
	assert.Equal(t, 3, counts["web_research.search"])
	assert.Equal(t, 3, failedSearches)
	assert.Equal(t, 1, counts["synthesizer.complete"])
}
