package competitiveintel

import "time"

const (
	MinCompetitors = 1
	MaxCompetitors = 5

	// ResearchAttemptsPerCompetitor caps research_competitor visits for one competitor.
	ResearchAttemptsPerCompetitor = 3

	DescriptionLimit = 200
	EvidenceLimit    = 500

	// MinNarrativeChars is the length a synthesizer response must exceed to become a finding.
	MinNarrativeChars = 50

	gapSummaryResultLimit  = 3
	opportunityResultLimit = 5
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type ReportMode string

const (
	ReportModeComplete ReportMode = "COMPLETE"
	ReportModeDegraded ReportMode = "DEGRADED"
)

const (
	PositionLeader       = "Market Leader"
	PositionChallenger   = "Challenger"
	PositionFollower     = "Follower"
	PositionNichePlayer  = "Niche Player"
	TrendGrowing         = "Growing"
	TrendDeclining       = "Declining"
	TrendStable          = "Stable"
	NotSpecified         = "Not specified"
	MarketSizeTBD        = "TBD"
	LandscapeUnderserved = "Underserved"
	LandscapeAnalyzed    = "Analyzed"
)

// ResearchResult is one search hit attributed to the competitor it was found for.
type ResearchResult struct {
	Competitor string  `json:"competitor"`
	Query      string  `json:"query"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type ClinicalGap struct {
	Competitor  string   `json:"competitor"`
	GapType     string   `json:"gap_type"`
	Description string   `json:"description"`
	Evidence    string   `json:"evidence"`
	Severity    Severity `json:"severity"`
	SourceURL   string   `json:"source_url,omitempty"`
}

type MarketOpportunity struct {
	OpportunityType      string `json:"opportunity_type"`
	Description          string `json:"description"`
	MarketSizeIndicator  string `json:"market_size_indicator,omitempty"`
	CompetitiveLandscape string `json:"competitive_landscape"`
	Evidence             string `json:"evidence"`
	SourceURL            string `json:"source_url,omitempty"`
}

type MarketShareInsight struct {
	Competitor     string   `json:"competitor"`
	MarketPosition string   `json:"market_position"`
	GrowthTrend    string   `json:"growth_trend"`
	Summary        string   `json:"summary"`
	SourceURLs     []string `json:"source_urls,omitempty"`
}

type ReportMetadata struct {
	TotalSearches      int       `json:"total_searches"`
	SuccessfulSearches int       `json:"successful_searches"`
	ErrorsEncountered  int       `json:"errors_encountered"`
	QueriesGenerated   int       `json:"queries_generated"`
	ResearchVisits     int       `json:"research_visits"`
	StagesExecuted     []Stage   `json:"stages_executed"`
	StageFailed        Stage     `json:"stage_failed,omitempty"`
	Errors             []string  `json:"errors,omitempty"`
	Model              string    `json:"model,omitempty"`
	StartedAt          time.Time `json:"started_at"`
	CompletedAt        time.Time `json:"completed_at"`
	DurationMS         int64     `json:"duration_ms"`
}

// FinalReport is the run output. A degraded run carries Mode DEGRADED, empty
// finding collections and a non-empty Error.
type FinalReport struct {
	CompetitorsAnalyzed []string             `json:"competitors_analyzed"`
	DeviceCategory      string               `json:"device_category,omitempty"`
	FocusArea           string               `json:"focus_area"`
	ClinicalGaps        []ClinicalGap        `json:"clinical_gaps"`
	MarketOpportunities []MarketOpportunity  `json:"market_opportunities"`
	MarketShareInsights []MarketShareInsight `json:"market_share_insights"`
	Summary             string               `json:"summary"`
	ResearchTimestamp   time.Time            `json:"research_timestamp"`
	Metadata            ReportMetadata       `json:"metadata"`
	Mode                ReportMode           `json:"mode"`
	Error               string               `json:"error,omitempty"`
}

// AnalysisState is owned by a single run and mutated only by the stage that owns each field.
type AnalysisState struct {
	Competitors    []string
	FocusArea      string
	DeviceCategory string

	SearchQueries     []string
	CompetitorQueries map[string][]string

	RawResearchResults []ResearchResult
	CurrentCompetitor  string
	ResearchIteration  int
	ResearchVisits     int
	SearchAttempts     int
	SuccessfulSearches int

	ClinicalGaps        []ClinicalGap
	MarketOpportunities []MarketOpportunity
	MarketShareInsights []MarketShareInsight
	ErrorMessages       []string

	StagesExecuted []Stage
	StartedAt      time.Time
	FinalReport    *FinalReport
}

func newAnalysisState(competitors []string, focusArea string) *AnalysisState {
	return &AnalysisState{
		Competitors:       append([]string(nil), competitors...),
		FocusArea:         focusArea,
		CompetitorQueries: map[string][]string{},
		StartedAt:         time.Now().UTC(),
	}
}

// ResultsFor returns the research results attributed to competitor, in arrival order.
func (s *AnalysisState) ResultsFor(competitor string) []ResearchResult {
	var out []ResearchResult
	for _, r := range s.RawResearchResults {
		if r.Competitor == competitor {
			out = append(out, r)
		}
	}
	return out
}

func (s *AnalysisState) recordError(msg string) {
	s.ErrorMessages = append(s.ErrorMessages, msg)
}
