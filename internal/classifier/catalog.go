package classifier

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spec-kit/query-triage/internal/domain"
)

// defaultBasePriority applies to categories missing from a catalog.
const defaultBasePriority = 3

// CategoryConfig is the administrative definition of one category.
type CategoryConfig struct {
	Name         domain.Category `yaml:"name" json:"name"`
	DisplayName  string          `yaml:"display_name" json:"display_name"`
	Order        int             `yaml:"order" json:"order"`
	BasePriority int             `yaml:"base_priority" json:"base_priority"`
	Keywords     []string        `yaml:"keywords" json:"keywords"`
	Disabled     bool            `yaml:"disabled" json:"disabled"`
}

// Catalog is an immutable snapshot of the category configuration. Build a new
// one to change anything; never mutate a Catalog after NewCatalog returns.
type Catalog struct {
	scored         []CategoryConfig
	all            []CategoryConfig
	base           map[domain.Category]int
	urgentKeywords []string
}

var knownCategories = map[domain.Category]struct{}{
	domain.CategoryQuestion:  {},
	domain.CategoryRequest:   {},
	domain.CategoryComplaint: {},
	domain.CategoryFeedback:  {},
	domain.CategoryUrgent:    {},
	domain.CategoryGeneral:   {},
}

// NewCatalog validates the definitions and freezes them. Scoring order is the
// ascending Order field; equal orders keep their position in categories.
func NewCatalog(categories []CategoryConfig, urgentKeywords []string) (*Catalog, error) {
	seen := make(map[domain.Category]struct{}, len(categories))
	all := make([]CategoryConfig, 0, len(categories))
	for _, cfg := range categories {
		if _, ok := knownCategories[cfg.Name]; !ok {
			return nil, fmt.Errorf("unknown category %q", cfg.Name)
		}
		if _, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", cfg.Name)
		}
		seen[cfg.Name] = struct{}{}
		if cfg.BasePriority < domain.MinPriority || cfg.BasePriority > domain.MaxPriority {
			return nil, fmt.Errorf("category %q: base priority %d out of range", cfg.Name, cfg.BasePriority)
		}
		cfg.Keywords = normalizeKeywords(cfg.Keywords)
		all = append(all, cfg)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Order < all[j].Order })

	cat := &Catalog{
		all:            all,
		base:           make(map[domain.Category]int, len(all)),
		urgentKeywords: normalizeKeywords(urgentKeywords),
	}
	for _, cfg := range all {
		cat.base[cfg.Name] = cfg.BasePriority
		// general is the fallback and never wins by score
		if cfg.Name == domain.CategoryGeneral || cfg.Disabled {
			continue
		}
		cat.scored = append(cat.scored, cfg)
	}
	return cat, nil
}

// Categories returns a copy of every configured category in scoring order.
func (c *Catalog) Categories() []CategoryConfig {
	out := make([]CategoryConfig, len(c.all))
	for i, cfg := range c.all {
		cfg.Keywords = slices.Clone(cfg.Keywords)
		out[i] = cfg
	}
	return out
}

// UrgentKeywords returns a copy of the priority boost keyword list.
func (c *Catalog) UrgentKeywords() []string {
	return slices.Clone(c.urgentKeywords)
}

// BasePriority returns the intrinsic priority of category.
func (c *Catalog) BasePriority(category domain.Category) int {
	if p, ok := c.base[category]; ok {
		return p
	}
	return defaultBasePriority
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.TrimSpace(kw) == "" {
			continue
		}
		out = append(out, kw)
	}
	return out
}

// DefaultCatalog returns the built-in keyword set.
func DefaultCatalog() *Catalog {
	cat, err := NewCatalog(DefaultCategories(), DefaultUrgentKeywords())
	if err != nil {
		panic(err)
	}
	return cat
}

// DefaultUrgentKeywords boost priority regardless of the winning category.
func DefaultUrgentKeywords() []string {
	return []string{"urgent", "emergency", "asap", "critical", "broken", "not working"}
}

// DefaultCategories is the built-in category configuration.
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{
			Name: domain.CategoryQuestion, DisplayName: "Question", Order: 1, BasePriority: 2,
			Keywords: []string{
				"how", "what", "when", "where", "why", "which",
				"can i", "could you", "would you", "is it possible",
				"?", "question", "asking", "wondering", "clarification",
			},
		},
		{
			Name: domain.CategoryRequest, DisplayName: "Request", Order: 2, BasePriority: 3,
			Keywords: []string{
				"need", "want", "require", "request", "please",
				"can you", "could you", "would like", "looking for",
				"seeking", "interested in", "get", "provide",
			},
		},
		{
			Name: domain.CategoryComplaint, DisplayName: "Complaint", Order: 3, BasePriority: 4,
			Keywords: []string{
				"disappointed", "terrible", "awful", "bad", "poor", "worst",
				"complaint", "complain", "dissatisfied", "unhappy", "angry",
				"frustrated", "unacceptable", "disgusted", "horrible", "hate",
			},
		},
		{
			Name: domain.CategoryFeedback, DisplayName: "Feedback", Order: 4, BasePriority: 2,
			Keywords: []string{
				"feedback", "suggestion", "suggest", "recommend",
				"improvement", "enhance", "feature", "love", "great",
				"excellent", "amazing", "wonderful", "appreciate",
			},
		},
		{
			Name: domain.CategoryUrgent, DisplayName: "Urgent", Order: 5, BasePriority: 5,
			Keywords: []string{
				"urgent", "emergency", "asap", "immediately", "critical",
				"not working", "broken", "down", "crashed", "error",
				"help!", "quickly", "right now", "serious",
			},
		},
		{Name: domain.CategoryGeneral, DisplayName: "General", Order: 6, BasePriority: 3},
	}
}
