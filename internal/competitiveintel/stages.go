package competitiveintel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func (o *Orchestrator) detectCategory(st *AnalysisState) {
	st.DeviceCategory = o.classifier.DetectCategory(st.Competitors, st.FocusArea)
	o.log.WithFields(logrus.Fields{
		"category":    st.DeviceCategory,
		"competitors": len(st.Competitors),
	}).Info("category_detected")
}

func (o *Orchestrator) initialize(st *AnalysisState) {
	for _, competitor := range st.Competitors {
		qs := o.queries.CompetitorQueries(competitor, st.FocusArea, st.DeviceCategory)
		st.CompetitorQueries[competitor] = qs
		st.SearchQueries = append(st.SearchQueries, qs...)
	}
	st.SearchQueries = append(st.SearchQueries, o.queries.MarketQueries(st.FocusArea, st.DeviceCategory)...)
	if len(st.Competitors) > 0 {
		st.CurrentCompetitor = st.Competitors[0]
	}
	st.ResearchIteration = 0
	o.log.WithField("queries", len(st.SearchQueries)).Info("queries_generated")
}

// researchCompetitors runs up to ResearchAttemptsPerCompetitor searches for
// each competitor in order. Failures are recorded, never propagated.
func (o *Orchestrator) researchCompetitors(ctx context.Context, st *AnalysisState, progress StageProgressFn) {
	defer func() {
		st.CurrentCompetitor = ""
		st.ResearchIteration = 0
	}()
	for i, competitor := range st.Competitors {
		st.CurrentCompetitor = competitor
		st.ResearchIteration = 0
		emit(progress, StageResearchCompetitor, fmt.Sprintf("Researching %s (%d/%d)...", competitor, i+1, len(st.Competitors)))
		for attempt := 0; attempt < ResearchAttemptsPerCompetitor; attempt++ {
			st.ResearchIteration = attempt
			st.ResearchVisits++
			query := st.queryFor(competitor, attempt)
			if err := o.search(ctx, st, competitor, query, attempt); err != nil {
				last := attempt >= ResearchAttemptsPerCompetitor-1
				if last && o.opts.FailurePolicy == StopResearchOnFinalAttemptFailure {
					o.log.WithFields(logrus.Fields{"competitor": competitor, "attempt": attempt + 1}).Warn("research_stopped_on_final_attempt_failure")
					return
				}
			}
		}
	}
}

func (o *Orchestrator) search(ctx context.Context, st *AnalysisState, competitor, query string, attempt int) error {
	ctx, span := o.tracer.Start(ctx, "web_research.search", trace.WithAttributes(
		attribute.String("competitor", competitor),
		attribute.Int("attempt", attempt+1),
	))
	defer span.End()
	start := time.Now()
	fields := logrus.Fields{"competitor": competitor, "attempt": attempt + 1, "query": query}

	st.SearchAttempts++
	hits, err := o.researcher.Search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.WithFields(fields).WithError(err).Warn("search_failed")
		st.recordError(fmt.Sprintf("search failed for %s (attempt %d): %v", competitor, attempt+1, err))
		return err
	}
	st.SuccessfulSearches++
	for _, h := range hits {
		st.RawResearchResults = append(st.RawResearchResults, ResearchResult{
			Competitor: competitor,
			Query:      query,
			URL:        h.URL,
			Title:      h.Title,
			Content:    h.Content,
			Score:      h.Score,
		})
	}
	o.log.WithFields(fields).WithFields(logrus.Fields{
		"hits":       len(hits),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("search_complete")
	return nil
}

func (s *AnalysisState) queryFor(competitor string, iteration int) string {
	qs := s.CompetitorQueries[competitor]
	if iteration < len(qs) {
		return qs[iteration]
	}
	return fallbackQuery(competitor, s.FocusArea)
}

func (o *Orchestrator) analyzeGaps(ctx context.Context, st *AnalysisState) {
	var gaps []ClinicalGap
	for _, competitor := range st.Competitors {
		results := st.ResultsFor(competitor)
		gaps = append(gaps, ExtractClinicalGaps(results, competitor)...)
		if len(results) == 0 {
			continue
		}
		text, ok := o.complete(ctx, st, StageAnalyzeGaps, competitor, gapAnalysisPrompt(competitor, st.FocusArea, st.DeviceCategory, head(results, gapSummaryResultLimit)))
		if !ok || utf8.RuneCountInString(text) <= MinNarrativeChars {
			continue
		}
		gaps = append(gaps, ClinicalGap{
			Competitor:  competitor,
			GapType:     "synthesized_analysis",
			Description: truncateWithEllipsis(text, DescriptionLimit),
			Evidence:    truncate(text, EvidenceLimit),
			Severity:    SeverityMedium,
			SourceURL:   results[0].URL,
		})
	}
	st.ClinicalGaps = gaps
	o.log.WithField("gaps", len(gaps)).Info("gaps_analyzed")
}

func (o *Orchestrator) analyzeMarketShare(ctx context.Context, st *AnalysisState) {
	insights := make([]MarketShareInsight, 0, len(st.Competitors))
	for _, competitor := range st.Competitors {
		results := st.ResultsFor(competitor)
		insight := MarketShareInsight{
			Competitor:     competitor,
			MarketPosition: NotSpecified,
			GrowthTrend:    NotSpecified,
			Summary:        "No research results available.",
		}
		if len(results) > 0 {
			insight.SourceURLs = sourceURLs(head(results, gapSummaryResultLimit))
			text, ok := o.complete(ctx, st, StageMarketShareAnalysis, competitor, marketSharePrompt(competitor, st.FocusArea, st.DeviceCategory, head(results, gapSummaryResultLimit)))
			if ok && text != "" {
				insight.MarketPosition = ParseMarketPosition(text)
				insight.GrowthTrend = ParseGrowthTrend(text)
				insight.Summary = truncateWithEllipsis(text, EvidenceLimit)
			} else {
				insight.Summary = "Market share analysis unavailable."
			}
		}
		insights = append(insights, insight)
	}
	st.MarketShareInsights = insights
}

func (o *Orchestrator) identifyOpportunities(ctx context.Context, st *AnalysisState) {
	opps := ExtractMarketOpportunities(st.RawResearchResults)
	if len(st.RawResearchResults) > 0 {
		top := topByScore(st.RawResearchResults, opportunityResultLimit)
		text, ok := o.complete(ctx, st, StageIdentifyOpportunities, "market", opportunityPrompt(st.FocusArea, st.DeviceCategory, st.Competitors, top))
		if ok && utf8.RuneCountInString(text) > MinNarrativeChars {
			opps = append(opps, MarketOpportunity{
				OpportunityType:      "strategic_synthesis",
				Description:          truncateWithEllipsis(text, DescriptionLimit),
				MarketSizeIndicator:  MarketSizeTBD,
				CompetitiveLandscape: LandscapeAnalyzed,
				Evidence:             truncate(text, EvidenceLimit),
			})
		}
	}
	st.MarketOpportunities = opps
	o.log.WithField("opportunities", len(opps)).Info("opportunities_identified")
}

func (o *Orchestrator) synthesizeReport(ctx context.Context, st *AnalysisState) {
	summary, ok := o.complete(ctx, st, StageSynthesizeReport, "executive_summary", summaryPrompt(st))
	if !ok || summary == "" {
		summary = fallbackSummary(st)
	}
	o.finalize(st, &FinalReport{
		ClinicalGaps:        st.ClinicalGaps,
		MarketOpportunities: st.MarketOpportunities,
		MarketShareInsights: st.MarketShareInsights,
		Summary:             summary,
		Mode:                ReportModeComplete,
	})
}

func fallbackSummary(st *AnalysisState) string {
	return fmt.Sprintf("Competitive analysis of %d competitors (%s) in %s identified %d clinical gaps and %d market opportunities.",
		len(st.Competitors), strings.Join(st.Competitors, ", "), st.DeviceCategory, len(st.ClinicalGaps), len(st.MarketOpportunities))
}

func head(results []ResearchResult, n int) []ResearchResult {
	if len(results) <= n {
		return results
	}
	return results[:n]
}

// topByScore returns the n highest-scoring results; equal scores keep arrival order.
func topByScore(results []ResearchResult, n int) []ResearchResult {
	sorted := append([]ResearchResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	return head(sorted, n)
}

func sourceURLs(results []ResearchResult) []string {
	var urls []string
	for _, r := range results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
