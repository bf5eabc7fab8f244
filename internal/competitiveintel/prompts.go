package competitiveintel

import (
	"fmt"
	"strings"
)

const promptSnippetChars = 800

func gapAnalysisPrompt(competitor, focusArea, category string, results []ResearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze clinical gaps for %s in the %s market (category: %s).\n\n", competitor, focusArea, category)
	writeEvidence(&b, results)
	fmt.Fprintf(&b, "Identify the clinical limitations, complications, or unmet surgeon needs these sources reveal about %s. ", competitor)
	b.WriteString("Be specific and cite the source number for each point. If the sources show nothing relevant, say so briefly.")
	return b.String()
}

func marketSharePrompt(competitor, focusArea, category string, results []ResearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess the market position of %s in the %s market (category: %s).\n\n", competitor, focusArea, category)
	writeEvidence(&b, results)
	b.WriteString("State the market position using one of: market leader, challenger, follower, niche player. ")
	b.WriteString("State the growth trend using one of: growing, declining, stable. ")
	b.WriteString("Then give two sentences of supporting evidence.")
	return b.String()
}

func opportunityPrompt(focusArea, category string, competitors []string, results []ResearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Identify market opportunities in the %s market (category: %s) given these competitors: %s.\n\n", focusArea, category, strings.Join(competitors, ", "))
	writeEvidence(&b, results)
	b.WriteString("Describe the most important underserved needs or emerging segments a new entrant could target, with the evidence behind each.")
	return b.String()
}

func summaryPrompt(st *AnalysisState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a concise executive summary of a competitive intelligence analysis.\n\n")
	fmt.Fprintf(&b, "Focus area: %s\nDevice category: %s\nCompetitors: %s\n", st.FocusArea, st.DeviceCategory, strings.Join(st.Competitors, ", "))
	fmt.Fprintf(&b, "Clinical gaps found: %d\nMarket opportunities found: %d\n\n", len(st.ClinicalGaps), len(st.MarketOpportunities))
	for i, g := range head3Gaps(st.ClinicalGaps) {
		fmt.Fprintf(&b, "Gap %d (%s): %s\n", i+1, g.Competitor, g.Description)
	}
	for i, op := range head3Opportunities(st.MarketOpportunities) {
		fmt.Fprintf(&b, "Opportunity %d: %s\n", i+1, op.Description)
	}
	for _, ms := range st.MarketShareInsights {
		fmt.Fprintf(&b, "Position of %s: %s, trend %s\n", ms.Competitor, ms.MarketPosition, ms.GrowthTrend)
	}
	b.WriteString("\nKeep it under 200 words and end with the single most actionable recommendation.")
	return b.String()
}

func writeEvidence(b *strings.Builder, results []ResearchResult) {
	b.WriteString("Sources:\n")
	for i, r := range results {
		fmt.Fprintf(b, "[%d] %s (%s)\n%s\n\n", i+1, r.Title, r.URL, truncate(r.Content, promptSnippetChars))
	}
}

func head3Gaps(gaps []ClinicalGap) []ClinicalGap {
	if len(gaps) > 3 {
		return gaps[:3]
	}
	return gaps
}

func head3Opportunities(opps []MarketOpportunity) []MarketOpportunity {
	if len(opps) > 3 {
		return opps[:3]
	}
	return opps
}
