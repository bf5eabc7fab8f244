package competitiveintel

import (
	"strings"
	"unicode/utf8"
)

var (
	gapKeywords         = []string{"limitation", "complication", "failure", "recall", "warning"}
	opportunityKeywords = []string{"unmet need", "gap", "opportunity", "emerging", "trend"}
)

// Ordered: the first matching group wins.
var positionKeywords = []struct {
	position string
	keywords []string
}{
	{PositionLeader, []string{"market leader", "leading", "leader", "dominant"}},
	{PositionChallenger, []string{"challenger"}},
	{PositionFollower, []string{"follower"}},
	{PositionNichePlayer, []string{"niche"}},
}

var trendKeywords = []struct {
	trend    string
	keywords []string
}{
	{TrendDeclining, []string{"declining", "decline", "decreasing", "shrinking", "losing share"}},
	{TrendGrowing, []string{"growing", "increasing", "expanding", "gaining share"}},
	{TrendStable, []string{"stable", "flat", "steady"}},
}

// ExtractClinicalGaps emits one medium-severity gap for every result whose
// content mentions a gap keyword.
func ExtractClinicalGaps(results []ResearchResult, competitor string) []ClinicalGap {
	var gaps []ClinicalGap
	for _, r := range results {
		if !containsAny(strings.ToLower(r.Content), gapKeywords) {
			continue
		}
		gaps = append(gaps, ClinicalGap{
			Competitor:  competitor,
			GapType:     "clinical_limitation",
			Description: truncateWithEllipsis(r.Content, DescriptionLimit),
			Evidence:    truncate(r.Content, EvidenceLimit),
			Severity:    SeverityMedium,
			SourceURL:   r.URL,
		})
	}
	return gaps
}

func ExtractMarketOpportunities(results []ResearchResult) []MarketOpportunity {
	var opps []MarketOpportunity
	for _, r := range results {
		if !containsAny(strings.ToLower(r.Content), opportunityKeywords) {
			continue
		}
		opps = append(opps, MarketOpportunity{
			OpportunityType:      "market_gap",
			Description:          truncateWithEllipsis(r.Content, DescriptionLimit),
			MarketSizeIndicator:  MarketSizeTBD,
			CompetitiveLandscape: LandscapeUnderserved,
			Evidence:             truncate(r.Content, EvidenceLimit),
			SourceURL:            r.URL,
		})
	}
	return opps
}

func ParseMarketPosition(text string) string {
	lower := strings.ToLower(text)
	for _, p := range positionKeywords {
		if containsAny(lower, p.keywords) {
			return p.position
		}
	}
	return NotSpecified
}

func ParseGrowthTrend(text string) string {
	lower := strings.ToLower(text)
	for _, t := range trendKeywords {
		if containsAny(lower, t.keywords) {
			return t.trend
		}
	}
	return NotSpecified
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func truncateWithEllipsis(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
