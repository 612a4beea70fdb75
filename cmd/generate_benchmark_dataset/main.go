// Command generate_benchmark_dataset writes a synthetic offer dataset as
// static provider fixtures, one YAML file per provider, for load tests and
// offline demos.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/ahrav/go-pricescout/internal/testutils"
)

func main() {
	var (
		size   = flag.Int("size", 200, "Number of item queries to generate")
		output = flag.String("output", "testdata/benchmark_fixtures", "Output directory")
		seed   = flag.Int64("seed", 0, "Random seed; 0 uses the current time")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	dataset := testutils.GenerateOfferDataset(*size, *seed)

	paths, err := testutils.SaveStaticFixtures(dataset, *output)
	if err != nil {
		log.Fatalf("Failed to save fixtures: %v", err)
	}

	stats := testutils.ComputeDatasetStatistics(dataset)

	fmt.Printf("Generated offer dataset (seed %d):\n", dataset.Seed)
	fmt.Printf("- Item queries: %d\n", stats.Items)
	fmt.Printf("- Offers: %d\n", stats.Offers)
	fmt.Printf("- Offers per provider: %v\n", stats.OffersPerProvider)
	fmt.Printf("- Items without offers: %d\n", stats.EmptyItems)
	for _, p := range paths {
		fmt.Printf("- Wrote %s\n", p)
	}
}
