package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-pricescout/infrastructure/matching"
	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

const catalogStore = "catalog"

// codeMatchBonus is added when the query is exactly an entry's code.
const codeMatchBonus = 0.5

// CatalogEntry is one product of the internal catalog.
type CatalogEntry struct {
	Code       string  `yaml:"code"`
	Name       string  `yaml:"name"`
	Price      float64 `yaml:"price"`
	Stock      int     `yaml:"stock"`
	Laboratory string  `yaml:"laboratory"`
}

type catalogFile struct {
	Entries []CatalogEntry `yaml:"entries"`
}

// CatalogSource loads every catalog entry.
type CatalogSource func(ctx context.Context) ([]CatalogEntry, error)

// FileSource reads catalog entries from a YAML file.
func FileSource(path string) CatalogSource {
	return func(context.Context) ([]CatalogEntry, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
		return f.Entries, nil
	}
}

// Scorer scores a candidate name against a query in [0,1].
type Scorer interface {
	Score(query, candidate string) float64
}

var _ ports.CatalogLookup = (*Catalog)(nil)

// Catalog answers item lookups from the internal product list. Entries are
// cached for a TTL; concurrent reloads collapse into one source read.
type Catalog struct {
	source CatalogSource
	scorer Scorer
	ttl    time.Duration
	now    func() time.Time
	logger log.FieldLogger

	mu       sync.RWMutex
	entries  []CatalogEntry
	loadedAt time.Time
	reload   singleflight.Group
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCatalogClock replaces time.Now, mainly for tests.
func WithCatalogClock(now func() time.Time) CatalogOption { return func(c *Catalog) { c.now = now } }

// WithCatalogLogger overrides the logger.
func WithCatalogLogger(l log.FieldLogger) CatalogOption { return func(c *Catalog) { c.logger = l } }

// NewCatalog creates a catalog over source. A non-positive ttl reloads on
// every lookup.
func NewCatalog(source CatalogSource, scorer Scorer, ttl time.Duration, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		source: source,
		scorer: scorer,
		ttl:    ttl,
		now:    time.Now,
		logger: log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the best entry scoring at or above threshold, or nil.
// An exact code match adds a bonus to the name score; equal scores prefer
// the entry whose name is closest by edit distance, then the lower code.
func (c *Catalog) Lookup(ctx context.Context, itemName string, threshold float64) (*domain.NormalizedOffer, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(itemName)
	if query == "" || len(entries) == 0 {
		return nil, nil
	}
	normQuery := matching.NormalizeText(query)

	type scored struct {
		entry    CatalogEntry
		score    float64
		distance int
	}
	var matches []scored
	for _, e := range entries {
		s := c.scorer.Score(query, e.Name)
		if e.Code != "" && strings.EqualFold(strings.TrimSpace(e.Code), query) {
			s += codeMatchBonus
		}
		if s < threshold {
			continue
		}
		matches = append(matches, scored{
			entry:    e,
			score:    s,
			distance: levenshtein.ComputeDistance(normQuery, matching.NormalizeText(e.Name)),
		})
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		switch {
		case a.score != b.score:
			return a.score > b.score
		case a.distance != b.distance:
			return a.distance < b.distance
		default:
			return a.entry.Code < b.entry.Code
		}
	})

	best := matches[0]
	price := best.entry.Price
	if price <= 0 {
		price = domain.UnknownPrice
	}
	return &domain.NormalizedOffer{
		Provider:   domain.ProviderInternal,
		Name:       best.entry.Name,
		Code:       best.entry.Code,
		Laboratory: best.entry.Laboratory,
		Price:      price,
		Stock:      max(best.entry.Stock, 0),
		Similarity: min(best.score, 1),
	}, nil
}

// Len returns the number of cached entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Catalog) load(ctx context.Context) ([]CatalogEntry, error) {
	c.mu.RLock()
	entries, fresh := c.entries, c.loadedAt
	c.mu.RUnlock()
	if !fresh.IsZero() && c.ttl > 0 && c.now().Sub(fresh) < c.ttl {
		return entries, nil
	}

	v, err, _ := c.reload.Do("catalog", func() (any, error) {
		loaded, err := c.source(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries = loaded
		c.loadedAt = c.now()
		c.mu.Unlock()
		c.logger.WithFields(log.Fields{
			"event":   "catalog_loaded",
			"entries": len(loaded),
		}).Debug("Catalog loaded")
		return loaded, nil
	})
	if err != nil {
		// Stale entries outlive a failed reload.
		if !fresh.IsZero() {
			c.logger.WithField("event", "catalog_reload_failed").WithError(err).Warn("Catalog reload failed; serving cached entries")
			return entries, nil
		}
		return nil, ports.NewStoreError(catalogStore, "load", err)
	}
	return v.([]CatalogEntry), nil
}
