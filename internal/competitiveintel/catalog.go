package competitiveintel

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultCategoryID = "spine_fusion"

// Category describes one device category: who competes in it, how it is
// recognised in free text, and how it is researched.
type Category struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	Competitors         []string `yaml:"competitors"`
	Keywords            []string `yaml:"keywords"`
	CompetitorTemplates []string `yaml:"competitor_templates"`
	MarketTemplates     []string `yaml:"market_templates"`
}

// Catalog is the static category configuration. It is read once and never
// mutated after Validate succeeds.
type Catalog struct {
	DefaultCategory string     `yaml:"default_category"`
	Categories      []Category `yaml:"categories"`
}

// DefaultCatalog returns the built-in orthopedic device categories.
func DefaultCatalog() Catalog {
	return Catalog{
		DefaultCategory: DefaultCategoryID,
		Categories: []Category{
			{
				ID:          "spine_fusion",
				Name:        "Spine Fusion",
				Competitors: []string{"Medtronic", "Globus Medical", "Stryker Spine", "NuVasive", "Zimmer Biomet Spine", "Orthofix", "SI-BONE", "Alphatec"},
				Keywords:    []string{"spine", "spinal", "fusion", "interbody", "pedicle", "cervical", "lumbar", "vertebral"},
				CompetitorTemplates: []string{
					"{competitor} {focus_area} clinical limitations complications",
					"{competitor} spinal fusion device recall FDA warning",
					"{competitor} {focus_area} surgeon feedback outcomes study",
				},
				MarketTemplates: []string{
					"{focus_area} spine market unmet need emerging technology",
					"{focus_area} spinal device market share trend",
				},
			},
			{
				ID:          "joint_replacement",
				Name:        "Joint Replacement",
				Competitors: []string{"Zimmer Biomet", "Stryker", "DePuy Synthes", "Smith & Nephew", "Exactech", "Corin", "Conformis"},
				Keywords:    []string{"knee", "hip", "shoulder", "arthroplasty", "joint replacement", "implant revision"},
				CompetitorTemplates: []string{
					"{competitor} {focus_area} implant revision rate complications",
					"{competitor} joint replacement recall FDA warning",
					"{competitor} {focus_area} registry outcomes limitation",
				},
				MarketTemplates: []string{
					"{focus_area} arthroplasty market unmet need",
					"{focus_area} joint replacement robotic surgery trend",
				},
			},
			{
				ID:          "trauma_fixation",
				Name:        "Trauma Fixation",
				Competitors: []string{"DePuy Synthes Trauma", "Stryker Trauma", "Smith & Nephew Trauma", "Acumed", "Arthrex Trauma", "OrthoPediatrics"},
				Keywords:    []string{"trauma", "fracture", "plate", "nail", "fixation", "external fixator"},
				CompetitorTemplates: []string{
					"{competitor} {focus_area} fracture fixation complications nonunion",
					"{competitor} trauma plate screw recall FDA warning",
					"{competitor} {focus_area} clinical outcomes failure rate",
				},
				MarketTemplates: []string{
					"{focus_area} trauma fixation market unmet need",
					"{focus_area} orthopedic trauma emerging technology trend",
				},
			},
			{
				ID:          "sports_medicine",
				Name:        "Sports Medicine",
				Competitors: []string{"Arthrex", "Smith & Nephew Sports Medicine", "CONMED", "Stryker Sports Medicine", "DePuy Mitek"},
				Keywords:    []string{"arthroscopy", "acl", "rotator cuff", "meniscus", "soft tissue", "sports medicine"},
				CompetitorTemplates: []string{
					"{competitor} {focus_area} arthroscopic repair failure complications",
					"{competitor} sports medicine anchor recall FDA warning",
					"{competitor} {focus_area} return to play outcomes study",
				},
				MarketTemplates: []string{
					"{focus_area} sports medicine market unmet need",
					"{focus_area} soft tissue repair emerging trend",
				},
			},
			{
				ID:          "orthobiologics",
				Name:        "Orthobiologics",
				Competitors: []string{"Bioventus", "Kuros", "Cerapedics", "Baxter Bone Graft", "MTF Biologics"},
				Keywords:    []string{"bone graft", "biologic", "orthobiologic", "bmp", "allograft", "substitute"},
				CompetitorTemplates: []string{
					"{competitor} {focus_area} bone graft substitute limitations",
					"{competitor} orthobiologic safety warning recall",
					"{competitor} {focus_area} fusion rate clinical evidence",
				},
				MarketTemplates: []string{
					"{focus_area} orthobiologics market unmet need",
					"{focus_area} bone graft substitute emerging trend",
				},
			},
		},
	}
}

// LoadCatalog reads a YAML catalog file. Fields left out of the file are not
// backfilled; the result must validate on its own.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func (c Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return errors.New("no categories defined")
	}
	seen := map[string]bool{}
	for i, cat := range c.Categories {
		id := strings.TrimSpace(cat.ID)
		if id == "" {
			return fmt.Errorf("category %d has no id", i)
		}
		if seen[id] {
			return fmt.Errorf("duplicate category %q", id)
		}
		seen[id] = true
		if len(cat.CompetitorTemplates) == 0 {
			return fmt.Errorf("category %q has no competitor templates", id)
		}
	}
	if !seen[c.DefaultCategory] {
		return fmt.Errorf("default category %q is not defined", c.DefaultCategory)
	}
	return nil
}

// Category looks up a category by id.
func (c Catalog) Category(id string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

func (c Catalog) defaultCategory() Category {
	cat, _ := c.Category(c.DefaultCategory)
	return cat
}
