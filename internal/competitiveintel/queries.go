package competitiveintel

import "strings"

// QueryGenerator expands category templates into search queries. It holds no
// state beyond the catalog.
type QueryGenerator struct {
	catalog Catalog
}

func NewQueryGenerator(catalog Catalog) *QueryGenerator {
	return &QueryGenerator{catalog: catalog}
}

func (g *QueryGenerator) CompetitorQueries(competitor, focusArea, category string) []string {
	return expandTemplates(g.category(category).CompetitorTemplates, competitor, focusArea)
}

func (g *QueryGenerator) MarketQueries(focusArea, category string) []string {
	return expandTemplates(g.category(category).MarketTemplates, "", focusArea)
}

func (g *QueryGenerator) category(id string) Category {
	if cat, ok := g.catalog.Category(id); ok {
		return cat
	}
	return g.catalog.defaultCategory()
}

func expandTemplates(templates []string, competitor, focusArea string) []string {
	r := strings.NewReplacer("{competitor}", competitor, "{focus_area}", focusArea)
	out := make([]string, 0, len(templates))
	for _, t := range templates {
		out = append(out, strings.Join(strings.Fields(r.Replace(t)), " "))
	}
	return out
}

// fallbackQuery is used when the research loop runs past a competitor's generated queries.
func fallbackQuery(competitor, focusArea string) string {
	return strings.Join(strings.Fields(competitor+" "+focusArea+" clinical outcomes"), " ")
}
