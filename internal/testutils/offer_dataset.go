// Package testutils provides utilities for testing, including synthetic
// offer datasets for benchmarks and demo fixtures. These components are
// intended for internal use within the project's test suites and tools and
// are not part of the public API.
package testutils

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-pricescout/infrastructure/provider"
	"github.com/ahrav/go-pricescout/internal/domain"
)

// DatasetProviders are the provider IDs offers are generated for.
var DatasetProviders = []domain.ProviderID{"sufarmed", "difarmer", "nadro", "fanasa"}

var (
	ingredients = []string{
		"paracetamol", "ibuprofeno", "naproxeno", "amoxicilina", "loratadina",
		"omeprazol", "metformina", "losartan", "diclofenaco", "cetirizina",
		"azitromicina", "ciprofloxacino", "ranitidina", "clonazepam", "atorvastatina",
	}
	strengths    = []string{"5", "10", "20", "40", "100", "250", "400", "500", "750", "850"}
	forms        = []string{"TABLETAS", "TABS", "CAPSULAS", "CAPS", "SUSPENSION", "GRAGEAS"}
	packs        = []string{"C/10", "C/14", "C/20", "C/30", "10", "20"}
	laboratories = []string{"GENOMMA", "ULTRA", "PISA", "AMSA", "SENOSIAIN", "ALTIA", ""}
	stockTexts   = []string{"disponible", "si", "agotado", "no disponible", "0", "3", "12", "1,200", "entrega mañana"}
)

// DatasetItem is one item query with the offers each provider returns.
type DatasetItem struct {
	Query  string                                `yaml:"query"`
	Offers map[domain.ProviderID][]domain.RawOffer `yaml:"offers"`
}

// OfferDataset is a reproducible set of synthetic item queries.
type OfferDataset struct {
	Seed  int64         `yaml:"seed"`
	Items []DatasetItem `yaml:"items"`
}

// AllOffers flattens the offers of one item across providers in provider
// order.
func (it DatasetItem) AllOffers() []domain.RawOffer {
	var out []domain.RawOffer
	for _, id := range DatasetProviders {
		out = append(out, it.Offers[id]...)
	}
	return out
}

// GenerateOfferDataset creates size item queries. The seed controls
// randomization; a fixed seed reproduces the same dataset.
func GenerateOfferDataset(size int, seed int64) *OfferDataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &OfferDataset{Seed: seed, Items: make([]DatasetItem, 0, size)}

	for range size {
		ingredient := ingredients[rng.Intn(len(ingredients))]
		strength := strengths[rng.Intn(len(strengths))]
		item := DatasetItem{
			Query:  fmt.Sprintf("%s %smg", ingredient, strength),
			Offers: make(map[domain.ProviderID][]domain.RawOffer, len(DatasetProviders)),
		}
		for _, id := range DatasetProviders {
			n := rng.Intn(4)
			for range n {
				item.Offers[id] = append(item.Offers[id], generateOffer(rng, id, ingredient, strength))
			}
		}
		ds.Items = append(ds.Items, item)
	}
	return ds
}

func generateOffer(rng *rand.Rand, id domain.ProviderID, ingredient, strength string) domain.RawOffer {
	// A third of the offers are near misses: other strength or ingredient.
	switch rng.Intn(6) {
	case 0:
		strength = strengths[rng.Intn(len(strengths))]
	case 1:
		ingredient = ingredients[rng.Intn(len(ingredients))]
	}

	dose := strength + "MG"
	if rng.Intn(2) == 0 {
		dose = strength + " MG"
	}
	name := strings.Join([]string{
		strings.ToUpper(ingredient), dose, forms[rng.Intn(len(forms))], packs[rng.Intn(len(packs))],
	}, " ")

	return domain.RawOffer{
		Provider:   id,
		Name:       name,
		Price:      generatePrice(rng),
		Stock:      stockTexts[rng.Intn(len(stockTexts))],
		Code:       fmt.Sprintf("750%010d", rng.Int63n(1e10)),
		Laboratory: laboratories[rng.Intn(len(laboratories))],
	}
}

// generatePrice renders a price in one of the formats providers use.
func generatePrice(rng *rand.Rand) string {
	cents := 500 + rng.Intn(250000)
	whole, frac := cents/100, cents%100
	switch rng.Intn(6) {
	case 0:
		return fmt.Sprintf("$%d.%02d", whole, frac)
	case 1:
		return fmt.Sprintf("%d,%02d", whole, frac)
	case 2:
		if whole >= 1000 {
			return fmt.Sprintf("$%d,%03d.%02d", whole/1000, whole%1000, frac)
		}
		return fmt.Sprintf("$ %d.%02d", whole, frac)
	case 3:
		return fmt.Sprintf("%d", whole)
	case 4:
		return ""
	default:
		return fmt.Sprintf("%d.%02d MXN", whole, frac)
	}
}

// StaticFixtures converts the dataset into one static provider fixture per
// provider. Each item becomes an entry matched on its ingredient and
// strength.
func (ds *OfferDataset) StaticFixtures() map[domain.ProviderID]provider.StaticFixture {
	out := make(map[domain.ProviderID]provider.StaticFixture, len(DatasetProviders))
	for _, id := range DatasetProviders {
		var fixture provider.StaticFixture
		for _, it := range ds.Items {
			offers := it.Offers[id]
			if len(offers) == 0 {
				continue
			}
			fixture.Entries = append(fixture.Entries, provider.StaticEntry{
				Match:  strings.Fields(it.Query),
				Offers: offers,
			})
		}
		out[id] = fixture
	}
	return out
}

// SaveStaticFixtures writes <provider>.yaml files into dir and returns the
// written paths in sorted order.
func SaveStaticFixtures(ds *OfferDataset, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create fixture directory: %w", err)
	}

	var paths []string
	for id, fixture := range ds.StaticFixtures() {
		data, err := yaml.Marshal(fixture)
		if err != nil {
			return nil, fmt.Errorf("failed to encode fixture for %s: %w", id, err)
		}
		path := filepath.Join(dir, string(id)+".yaml")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write fixture for %s: %w", id, err)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// DatasetStatistics summarizes a dataset.
type DatasetStatistics struct {
	Items             int
	Offers            int
	OffersPerProvider map[domain.ProviderID]int
	EmptyItems        int
}

// ComputeDatasetStatistics counts offers per provider and items nobody
// answered.
func ComputeDatasetStatistics(ds *OfferDataset) DatasetStatistics {
	stats := DatasetStatistics{Items: len(ds.Items), OffersPerProvider: make(map[domain.ProviderID]int)}
	for _, it := range ds.Items {
		n := 0
		for id, offers := range it.Offers {
			stats.OffersPerProvider[id] += len(offers)
			n += len(offers)
		}
		stats.Offers += n
		if n == 0 {
			stats.EmptyItems++
		}
	}
	return stats
}
