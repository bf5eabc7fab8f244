package competitiveintel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCategory(t *testing.T) {
	c := NewClassifier(DefaultCatalog())
	tests := []struct {
		name        string
		competitors []string
		context     string
		want        string
	}{
		{"known competitors", []string{"Exactech", "Conformis"}, "", "joint_replacement"},
		{"case insensitive", []string{"EXACTECH"}, "", "joint_replacement"},
		{"substring of known name", []string{"Acumed LLC"}, "", "trauma_fixation"},
		{"keyword bonus only", []string{"Acme"}, "ACL reconstruction", "sports_medicine"},
		{"no matches falls back to default", []string{"Acme Spine", "Beta Ortho"}, "spine_fusion", "spine_fusion"},
		{"empty list", nil, "", DefaultCategoryID},
		{"blank names never match", []string{"", "  "}, "", DefaultCategoryID},
		{"competitors outweigh keyword", []string{"Bioventus", "Cerapedics"}, "knee", "orthobiologics"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.DetectCategory(tt.competitors, tt.context))
		})
	}
}

func TestDetectCategoryTieKeepsDeclarationOrder(t *testing.T) {
	catalog := Catalog{
		DefaultCategory: "third",
		Categories: []Category{
			{ID: "first", Competitors: []string{"Shared Co"}, CompetitorTemplates: []string{"{competitor}"}},
			{ID: "second", Competitors: []string{"Shared Co"}, CompetitorTemplates: []string{"{competitor}"}},
			{ID: "third", CompetitorTemplates: []string{"{competitor}"}},
		},
	}
	c := NewClassifier(catalog)
	assert.Equal(t, "first", c.DetectCategory([]string{"shared co"}, ""))
}

func TestDetectCategoryIsDeterministic(t *testing.T) {
	c := NewClassifier(DefaultCatalog())
	in := []string{"Stryker", "Smith & Nephew"}
	first := c.DetectCategory(in, "hip")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.DetectCategory(in, "hip"))
	}
}
