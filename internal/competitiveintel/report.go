package competitiveintel

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const Disclaimer = "This is an automated competitive intelligence summary built from public web sources. " +
	"Findings are leads for analyst review, not verified clinical or market facts."

type ResponseEnvelope struct {
	Report         *FinalReport `json:"report"`
	ReportMode     ReportMode   `json:"report_mode"`
	ReportMarkdown string       `json:"report_markdown"`
	Disclaimer     string       `json:"disclaimer"`
}

func BuildResponse(report *FinalReport) ResponseEnvelope {
	return ResponseEnvelope{
		Report:         report,
		ReportMode:     report.Mode,
		ReportMarkdown: BuildReportMarkdown(report),
		Disclaimer:     Disclaimer,
	}
}

func BuildReportMarkdown(r *FinalReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Competitive Intelligence Report\n\n")
	fmt.Fprintf(&b, "- Competitors: %s\n", sanitize(strings.Join(r.CompetitorsAnalyzed, ", ")))
	fmt.Fprintf(&b, "- Focus area: %s\n", sanitize(r.FocusArea))
	if r.DeviceCategory != "" {
		fmt.Fprintf(&b, "- Device category: %s\n", sanitize(r.DeviceCategory))
	}
	fmt.Fprintf(&b, "- Researched: %s\n", r.ResearchTimestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Mode: %s\n\n", r.Mode)
	fmt.Fprintf(&b, "%s\n\n", Disclaimer)

	if r.Mode == ReportModeDegraded {
		fmt.Fprintf(&b, "> DEGRADED: stage `%s` failed. %s\n\n", sanitize(string(r.Metadata.StageFailed)), sanitize(r.Error))
	}

	fmt.Fprintf(&b, "## Executive Summary\n\n%s\n\n", strings.TrimSpace(r.Summary))

	fmt.Fprintf(&b, "## Clinical Gaps\n\n")
	if len(r.ClinicalGaps) == 0 {
		fmt.Fprintf(&b, "No clinical gaps identified.\n\n")
	} else {
		fmt.Fprintf(&b, "| Competitor | Type | Severity | Description | Source |\n|---|---|---|---|---|\n")
		for _, g := range r.ClinicalGaps {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", sanitizeCell(g.Competitor), sanitizeCell(g.GapType), g.Severity, sanitizeCell(g.Description), sourceLink(g.SourceURL))
		}
		b.WriteString("\n")
	}

	if len(r.MarketShareInsights) > 0 {
		fmt.Fprintf(&b, "## Market Position\n\n")
		fmt.Fprintf(&b, "| Competitor | Position | Growth Trend |\n|---|---|---|\n")
		for _, ms := range r.MarketShareInsights {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", sanitizeCell(ms.Competitor), ms.MarketPosition, ms.GrowthTrend)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Market Opportunities\n\n")
	if len(r.MarketOpportunities) == 0 {
		fmt.Fprintf(&b, "No market opportunities identified.\n\n")
	} else {
		for i, op := range r.MarketOpportunities {
			fmt.Fprintf(&b, "%d. **%s** (%s, market size %s): %s", i+1, sanitize(op.OpportunityType), sanitize(op.CompetitiveLandscape), sanitize(op.MarketSizeIndicator), sanitize(op.Description))
			if op.SourceURL != "" {
				fmt.Fprintf(&b, " %s", sourceLink(op.SourceURL))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	m := r.Metadata
	fmt.Fprintf(&b, "## Research Metadata\n\n")
	fmt.Fprintf(&b, "- Searches: %d total, %d successful\n", m.TotalSearches, m.SuccessfulSearches)
	fmt.Fprintf(&b, "- Queries generated: %d\n", m.QueriesGenerated)
	fmt.Fprintf(&b, "- Errors encountered: %d\n", m.ErrorsEncountered)
	if m.Model != "" {
		fmt.Fprintf(&b, "- Model: %s\n", m.Model)
	}
	for _, e := range m.Errors {
		fmt.Fprintf(&b, "  - %s\n", sanitize(e))
	}
	return b.String()
}

// RenderHTML converts report markdown into a standalone HTML page.
func RenderHTML(markdown string) (string, error) {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString("Competitive Intelligence Report") + "</title>" +
		"<style>body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;line-height:1.5} " +
		"table{width:100%;border-collapse:collapse;font-size:0.9rem} th,td{border:1px solid #ccc;padding:0.35rem;text-align:left;vertical-align:top} " +
		"blockquote{border-left:4px solid #b45309;margin:0;padding-left:1rem;color:#78350f}</style>" +
		"</head><body>" + content.String() + "</body></html>", nil
}

func sourceLink(url string) string {
	if url == "" {
		return "-"
	}
	return "[link](" + strings.ReplaceAll(url, ")", "%29") + ")"
}

func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

func sanitizeCell(s string) string {
	return strings.ReplaceAll(sanitize(s), "|", "\\|")
}
