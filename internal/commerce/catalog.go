package commerce

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/gradecart/gradecart/internal/metrics"
	"github.com/gradecart/gradecart/internal/scan"
)

// Search-term cleaning: supply lists say "2 boxes of Crayola crayons (24
// count)", the catalog indexes "Crayola Crayons". Strip quantities, pack
// sizes, and parenthetical notes before searching.
var (
	leadingQuantity = regexp.MustCompile(`(?i)^\d+\s*(x\s*)?(boxes?|packs?|packages?|sets?|reams?|bottles?|rolls?|pairs?|dozen)?\s*(of\s+)?`)
	packSize        = regexp.MustCompile(`(?i)\b\d+\s*(-?\s*)?(ct|count|pack|pk|oz|inch|in\.?|sheets?|pages?)\b\.?`)
	parenthetical   = regexp.MustCompile(`\([^)]*\)`)
	extraSpace      = regexp.MustCompile(`\s+`)
)

// CleanSearchTerm reduces a scanned line to a catalog search query
func CleanSearchTerm(term string) string {
	cleaned := parenthetical.ReplaceAllString(term, " ")
	cleaned = leadingQuantity.ReplaceAllString(strings.TrimSpace(cleaned), "")
	cleaned = packSize.ReplaceAllString(cleaned, " ")
	cleaned = strings.Trim(cleaned, " -–,.:;")
	cleaned = extraSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// ProductSearcher is the catalog lookup capability
type ProductSearcher interface {
	SearchProducts(ctx context.Context, term string) ([]Product, error)
}

// SearchCache stores raw search responses by cleaned term. Optional: a nil
// cache just means every lookup hits the store.
type SearchCache interface {
	GetSearch(term string) ([]byte, bool)
	PutSearch(term string, payload []byte) error
}

// Matcher resolves scanned items to catalog products. Matching is required
// before checkout: an item's local id never doubles as a product id.
type Matcher struct {
	searcher ProductSearcher
	cache    SearchCache
	logger   *zap.Logger
}

// NewMatcher creates a catalog matcher
func NewMatcher(searcher ProductSearcher, logger *zap.Logger) *Matcher {
	return &Matcher{
		searcher: searcher,
		logger:   logger,
	}
}

// WithCache attaches a search cache to the matcher
func (m *Matcher) WithCache(cache SearchCache) *Matcher {
	m.cache = cache
	return m
}

// search consults the cache before the remote catalog
func (m *Matcher) search(ctx context.Context, term string) ([]Product, error) {
	if m.cache != nil {
		if payload, ok := m.cache.GetSearch(term); ok {
			var products []Product
			if err := json.Unmarshal(payload, &products); err == nil {
				return products, nil
			}
		}
	}

	products, err := m.searcher.SearchProducts(ctx, term)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if payload, err := json.Marshal(products); err == nil {
			if err := m.cache.PutSearch(term, payload); err != nil {
				m.logger.Debug("Failed to cache product search", zap.Error(err))
			}
		}
	}
	return products, nil
}

// Match looks up every item against the catalog and returns the items with
// product details filled in. Items that find no product are returned
// unchanged with ProductID zero; lookup failures degrade the same way so a
// flaky catalog never blocks reviewing the list.
func (m *Matcher) Match(ctx context.Context, items []scan.CartItem) []scan.CartItem {
	matched := make([]scan.CartItem, len(items))
	copy(matched, items)

	for i := range matched {
		if matched[i].ProductID != 0 {
			continue
		}

		term := CleanSearchTerm(matched[i].OriginalTerm)
		if term == "" {
			term = matched[i].Name
		}

		products, err := m.search(ctx, term)
		if err != nil {
			metrics.CatalogMatches.WithLabelValues("error").Inc()
			m.logger.Warn("Catalog search failed",
				zap.String("term", term),
				zap.Error(err),
			)
			continue
		}
		if len(products) == 0 {
			metrics.CatalogMatches.WithLabelValues("unmatched").Inc()
			m.logger.Debug("No catalog match", zap.String("term", term))
			continue
		}

		product := products[0]
		matched[i].ProductID = product.ID
		matched[i].Name = product.Name
		matched[i].Price = product.PriceValue()
		matched[i].Brand = product.Brand()
		matched[i].Image = product.ImageURL()
		metrics.CatalogMatches.WithLabelValues("matched").Inc()
	}

	return matched
}
