package competitiveintel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Validate())
	for _, cat := range c.Categories {
		assert.Len(t, cat.CompetitorTemplates, 3, cat.ID)
		assert.Len(t, cat.MarketTemplates, 2, cat.ID)
		assert.NotEmpty(t, cat.Keywords, cat.ID)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_category: cardio
categories:
  - id: cardio
    name: Cardiovascular
    competitors: [Abbott, Boston Scientific]
    keywords: [stent, valve]
    competitor_templates:
      - "{competitor} {focus_area} stent thrombosis"
    market_templates:
      - "{focus_area} structural heart trend"
`), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "cardio", c.DefaultCategory)
	assert.Equal(t, "cardio", NewClassifier(c).DetectCategory([]string{"abbott"}, ""))
	assert.Equal(t, []string{"Abbott tavr stent thrombosis"}, NewQueryGenerator(c).CompetitorQueries("Abbott", "tavr", "cardio"))
}

func TestCatalogValidate(t *testing.T) {
	tmpl := []string{"{competitor}"}
	tests := []struct {
		name    string
		catalog Catalog
	}{
		{"empty", Catalog{}},
		{"missing id", Catalog{DefaultCategory: "a", Categories: []Category{{CompetitorTemplates: tmpl}}}},
		{"duplicate", Catalog{DefaultCategory: "a", Categories: []Category{{ID: "a", CompetitorTemplates: tmpl}, {ID: "a", CompetitorTemplates: tmpl}}}},
		{"no templates", Catalog{DefaultCategory: "a", Categories: []Category{{ID: "a"}}}},
		{"unknown default", Catalog{DefaultCategory: "b", Categories: []Category{{ID: "a", CompetitorTemplates: tmpl}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.catalog.Validate())
		})
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("categories: [::"), 0o644))
	_, err = LoadCatalog(bad)
	assert.Error(t, err)
}
