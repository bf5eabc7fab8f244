package competitiveintel

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JesseHenson/ortho-intel-sub001/internal/websearch"
)

const tracerName = "github.com/JesseHenson/ortho-intel-sub001/internal/competitiveintel"

type Stage string

const (
	StageDetectCategory        Stage = "detect_category"
	StageInitialize            Stage = "initialize"
	StageResearchCompetitor    Stage = "research_competitor"
	StageAnalyzeGaps           Stage = "analyze_gaps"
	StageMarketShareAnalysis   Stage = "market_share_analysis"
	StageIdentifyOpportunities Stage = "identify_opportunities"
	StageSynthesizeReport      Stage = "synthesize_report"
	StageEnd                   Stage = "end"
)

// ResearchFailurePolicy decides what a failed search on a competitor's last
// allowed attempt does to the rest of the research loop.
type ResearchFailurePolicy string

const (
	// StopResearchOnFinalAttemptFailure ends research and moves to gap analysis,
	// leaving later competitors unresearched.
	StopResearchOnFinalAttemptFailure ResearchFailurePolicy = "stop"
	// AdvanceOnFinalAttemptFailure records the failure and moves to the next competitor.
	AdvanceOnFinalAttemptFailure ResearchFailurePolicy = "advance"
)

func ParseResearchFailurePolicy(s string) (ResearchFailurePolicy, error) {
	switch ResearchFailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StopResearchOnFinalAttemptFailure:
		return StopResearchOnFinalAttemptFailure, nil
	case AdvanceOnFinalAttemptFailure:
		return AdvanceOnFinalAttemptFailure, nil
	default:
		return "", fmt.Errorf("unknown research failure policy %q (want stop or advance)", s)
	}
}

// WebResearcher runs one web search. Implementations cap the number of hits.
type WebResearcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// Synthesizer turns a prompt into free text.
type Synthesizer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func StageNameFromError(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

type StageProgressFn func(stage Stage, message string)

type Options struct {
	FailurePolicy      ResearchFailurePolicy
	DisableMarketShare bool
	Logger             logrus.FieldLogger
}

type Orchestrator struct {
	classifier *Classifier
	queries    *QueryGenerator
	researcher WebResearcher
	synth      Synthesizer
	opts       Options
	log        logrus.FieldLogger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewOrchestrator(catalog Catalog, researcher WebResearcher, synth Synthesizer, opts Options) (*Orchestrator, error) {
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	if researcher == nil {
		return nil, errors.New("web researcher is required")
	}
	if synth == nil {
		return nil, errors.New("synthesizer is required")
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = StopResearchOnFinalAttemptFailure
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		classifier: NewClassifier(catalog),
		queries:    NewQueryGenerator(catalog),
		researcher: researcher,
		synth:      synth,
		opts:       opts,
		log:        logger.WithField("component", "competitive-intel"),
		tracer:     otel.Tracer(tracerName),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (o *Orchestrator) run(ctx context.Context, competitors []string, focusArea string, progress StageProgressFn) (report *FinalReport) {
	st := newAnalysisState(competitors, focusArea)
	st.StartedAt = o.now()
	stage := StageDetectCategory

	defer func() {
		if r := recover(); r != nil {
			o.log.WithFields(logrus.Fields{"stage": stage, "panic": r}).Errorf("run_panic\n%s", debug.Stack())
			report = o.finalizeDegraded(st, stage, fmt.Errorf("%s panicked: %v", stage, r))
		}
	}()

	for stage != StageEnd {
		next, err := o.step(ctx, st, stage, progress)
		if err != nil {
			return o.finalizeDegraded(st, stage, &StageError{Stage: stage, Err: err})
		}
		stage = next
	}
	return st.FinalReport
}

// step executes one stage and returns the stage that follows it.
func (o *Orchestrator) step(ctx context.Context, st *AnalysisState, stage Stage, progress StageProgressFn) (Stage, error) {
	ctx, span := o.tracer.Start(ctx, "stage."+string(stage), trace.WithAttributes(attribute.String("stage", string(stage))))
	defer span.End()
	start := time.Now()
	st.StagesExecuted = append(st.StagesExecuted, stage)

	next, err := o.dispatch(ctx, st, stage, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.log.WithFields(logrus.Fields{
		"stage":      stage,
		"next":       next,
		"elapsed_ms": time.Since(start).Milliseconds(),
		"errors":     len(st.ErrorMessages),
	}).Debug("stage_complete")
	return next, err
}

func (o *Orchestrator) dispatch(ctx context.Context, st *AnalysisState, stage Stage, progress StageProgressFn) (Stage, error) {
	switch stage {
	case StageDetectCategory:
		emit(progress, stage, "Detecting device category...")
		o.detectCategory(st)
		return StageInitialize, nil
	case StageInitialize:
		emit(progress, stage, "Generating research queries...")
		o.initialize(st)
		return StageResearchCompetitor, nil
	case StageResearchCompetitor:
		o.researchCompetitors(ctx, st, progress)
		return StageAnalyzeGaps, nil
	case StageAnalyzeGaps:
		emit(progress, stage, "Analyzing clinical gaps...")
		o.analyzeGaps(ctx, st)
		if o.opts.DisableMarketShare {
			return StageIdentifyOpportunities, nil
		}
		return StageMarketShareAnalysis, nil
	case StageMarketShareAnalysis:
		emit(progress, stage, "Analyzing market share...")
		o.analyzeMarketShare(ctx, st)
		return StageIdentifyOpportunities, nil
	case StageIdentifyOpportunities:
		emit(progress, stage, "Identifying market opportunities...")
		o.identifyOpportunities(ctx, st)
		return StageSynthesizeReport, nil
	case StageSynthesizeReport:
		emit(progress, stage, "Synthesizing report...")
		o.synthesizeReport(ctx, st)
		return StageEnd, nil
	default:
		return StageEnd, fmt.Errorf("unknown stage %q", stage)
	}
}

// complete calls the synthesizer and contains its failure inside the stage.
func (o *Orchestrator) complete(ctx context.Context, st *AnalysisState, stage Stage, subject, prompt string) (string, bool) {
	ctx, span := o.tracer.Start(ctx, "synthesizer.complete", trace.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("subject", subject),
	))
	defer span.End()
	start := time.Now()
	text, err := o.synth.Complete(ctx, prompt)
	fields := logrus.Fields{"stage": stage, "subject": subject, "elapsed_ms": time.Since(start).Milliseconds()}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.WithFields(fields).WithError(err).Warn("synthesizer_failed")
		st.recordError(fmt.Sprintf("%s: synthesizer failed for %s: %v", stage, subject, err))
		return "", false
	}
	o.log.WithFields(fields).WithField("response_chars", len(text)).Debug("synthesizer_complete")
	return strings.TrimSpace(text), true
}

func (o *Orchestrator) finalize(st *AnalysisState, report *FinalReport) *FinalReport {
	completed := o.now()
	report.CompetitorsAnalyzed = append([]string(nil), st.Competitors...)
	report.FocusArea = st.FocusArea
	report.DeviceCategory = st.DeviceCategory
	if report.ClinicalGaps == nil {
		report.ClinicalGaps = []ClinicalGap{}
	}
	if report.MarketOpportunities == nil {
		report.MarketOpportunities = []MarketOpportunity{}
	}
	if report.MarketShareInsights == nil {
		report.MarketShareInsights = []MarketShareInsight{}
	}
	if report.Mode == "" {
		report.Mode = ReportModeComplete
	}
	report.ResearchTimestamp = completed
	report.Metadata = ReportMetadata{
		TotalSearches:      st.SearchAttempts,
		SuccessfulSearches: st.SuccessfulSearches,
		ErrorsEncountered:  len(st.ErrorMessages),
		QueriesGenerated:   len(st.SearchQueries),
		ResearchVisits:     st.ResearchVisits,
		StagesExecuted:     append([]Stage(nil), st.StagesExecuted...),
		StageFailed:        report.Metadata.StageFailed,
		Errors:             append([]string(nil), st.ErrorMessages...),
		Model:              o.synth.ModelName(),
		StartedAt:          st.StartedAt,
		CompletedAt:        completed,
		DurationMS:         completed.Sub(st.StartedAt).Milliseconds(),
	}
	st.FinalReport = report
	return report
}

// finalizeDegraded replaces any partial findings with the degraded result shape.
func (o *Orchestrator) finalizeDegraded(st *AnalysisState, failed Stage, err error) *FinalReport {
	o.log.WithFields(logrus.Fields{"stage": failed}).WithError(err).Error("run_degraded")
	st.recordError(err.Error())
	report := &FinalReport{
		Summary:  fmt.Sprintf("Competitive analysis could not be completed: %s failed.", failed),
		Mode:     ReportModeDegraded,
		Error:    err.Error(),
		Metadata: ReportMetadata{StageFailed: failed},
	}
	return o.finalize(st, report)
}

func emit(progress StageProgressFn, stage Stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}
