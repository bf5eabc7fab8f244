package competitiveintel

import "strings"

// KeywordBonus is added to a category's score when the context mentions one of its keywords.
const KeywordBonus = 1

type Classifier struct {
	catalog Catalog
}

func NewClassifier(catalog Catalog) *Classifier {
	return &Classifier{catalog: catalog}
}

// DetectCategory picks the best-scoring category for the competitor list.
// Ties keep the earlier declared category; with no positive score the
// catalog default is returned. It never fails.
func (c *Classifier) DetectCategory(competitors []string, context string) string {
	best := ""
	bestScore := 0
	ctx := strings.ToLower(context)
	for _, cat := range c.catalog.Categories {
		score := 0
		for _, name := range competitors {
			if matchesKnownCompetitor(name, cat.Competitors) {
				score++
			}
		}
		if containsAny(ctx, cat.Keywords) {
			score += KeywordBonus
		}
		if score > bestScore {
			best, bestScore = cat.ID, score
		}
	}
	if best == "" {
		return c.catalog.DefaultCategory
	}
	return best
}

func matchesKnownCompetitor(name string, known []string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	for _, k := range known {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if n == k || strings.Contains(n, k) || strings.Contains(k, n) {
			return true
		}
	}
	return false
}

func containsAny(lowerText string, keywords []string) bool {
	if lowerText == "" {
		return false
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}
