package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-pricescout/infrastructure/matching"
	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

var _ ports.Provider = (*StaticProvider)(nil)

// StaticEntry is one canned answer of a StaticProvider. An entry answers a
// query when every Match term occurs in the normalized query.
type StaticEntry struct {
	Match  []string          `yaml:"match"`
	Offers []domain.RawOffer `yaml:"offers"`
}

// StaticFixture is the on-disk shape of a static provider.
type StaticFixture struct {
	// Delay simulates provider latency. It honors cancellation.
	Delay   time.Duration `yaml:"delay"`
	Entries []StaticEntry `yaml:"entries"`
}

// StaticProvider answers searches from a fixed table. It backs demos,
// offline runs and providers whose feed is exported to a file.
type StaticProvider struct {
	id      domain.ProviderID
	delay   time.Duration
	entries []StaticEntry
}

// NewStaticProvider creates a provider that serves fixture.
func NewStaticProvider(id domain.ProviderID, fixture StaticFixture) *StaticProvider {
	entries := make([]StaticEntry, 0, len(fixture.Entries))
	for _, e := range fixture.Entries {
		terms := make([]string, 0, len(e.Match))
		for _, m := range e.Match {
			if n := matching.NormalizeText(m); n != "" {
				terms = append(terms, n)
			}
		}
		entries = append(entries, StaticEntry{Match: terms, Offers: e.Offers})
	}
	return &StaticProvider{id: id, delay: fixture.Delay, entries: entries}
}

// LoadStaticProvider reads a YAML fixture from path.
func LoadStaticProvider(id domain.ProviderID, path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture for %s: %w", id, err)
	}
	var fixture StaticFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture for %s: %w", id, err)
	}
	return NewStaticProvider(id, fixture), nil
}

// ID returns the provider identity.
func (s *StaticProvider) ID() domain.ProviderID { return s.id }

// Search returns the offers of every entry matching query.
func (s *StaticProvider) Search(ctx context.Context, query string) ([]domain.RawOffer, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	q := matching.NormalizeText(query)
	var out []domain.RawOffer
	for _, e := range s.entries {
		if !matchesAll(q, e.Match) {
			continue
		}
		for _, o := range e.Offers {
			o.Provider = s.id
			out = append(out, o)
		}
	}
	return out, nil
}

func matchesAll(q string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		if !strings.Contains(q, t) {
			return false
		}
	}
	return true
}
