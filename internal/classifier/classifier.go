// Package classifier assigns a category and a priority to inbound text using
// keyword heuristics. Classification is pure; the active keyword set is an
// immutable Catalog that can be swapped atomically at runtime.
package classifier

import (
	"strings"
	"sync/atomic"

	"github.com/spec-kit/query-triage/internal/domain"
)

// Result is the outcome of classifying one message.
type Result struct {
	Category domain.Category
	Priority int
}

// Classify scores text against the catalog.
func (c *Catalog) Classify(subject, body string) Result {
	text := strings.ToLower(subject + " " + body)

	category := domain.CategoryGeneral
	best := 0
	for _, cfg := range c.scored {
		score := 0
		for _, kw := range cfg.Keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > best {
			best = score
			category = cfg.Name
		}
	}

	return Result{Category: category, Priority: c.priority(category, text)}
}

// priority expects already-normalized text. Boosts are summed, then clamped once.
func (c *Catalog) priority(category domain.Category, text string) int {
	p := c.BasePriority(category)
	for _, kw := range c.urgentKeywords {
		if strings.Contains(text, kw) {
			p++
			break
		}
	}
	if strings.Count(text, "!") >= 2 {
		p++
	}
	return min(domain.MaxPriority, p)
}

// Classifier holds the active catalog. Safe for concurrent use.
type Classifier struct {
	current atomic.Pointer[Catalog]
}

// New returns a classifier serving catalog, or the defaults when nil.
func New(catalog *Catalog) *Classifier {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	c := &Classifier{}
	c.current.Store(catalog)
	return c
}

// Classify runs against a single snapshot so a concurrent Swap is never
// observed halfway.
func (c *Classifier) Classify(subject, body string) Result {
	return c.current.Load().Classify(subject, body)
}

// Catalog returns the active snapshot.
func (c *Classifier) Catalog() *Catalog {
	return c.current.Load()
}

// Swap installs catalog and returns the previous one.
func (c *Classifier) Swap(catalog *Catalog) *Catalog {
	return c.current.Swap(catalog)
}
