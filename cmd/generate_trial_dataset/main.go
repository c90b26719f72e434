package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ahrav/go-nns/infrastructure/trialdata"
	"github.com/ahrav/go-nns/internal/testutils"
)

func main() {
	defaults := testutils.DefaultMovementOptions()
	var (
		output      = flag.String("output", "testdata/ABD_30", "Dataset directory to write")
		repetitions = flag.Int("repetitions", 9, "Number of repetitions besides the template")
		samples     = flag.Int("samples", defaults.Samples, "Samples in the template trial")
		degrees     = flag.Float64("amplitude", 30, "Peak rotation in degrees")
		noise       = flag.Float64("noise", defaults.Noise, "Per-sample Gaussian noise")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	if *repetitions < 1 {
		log.Fatalf("repetitions must be at least 1, got %d", *repetitions)
	}

	opts := defaults
	opts.Samples = *samples
	opts.Amplitude = *degrees * math.Pi / 180
	opts.Noise = *noise

	template, reps := testutils.GenerateTrialDataset(opts, *repetitions, *seed)
	if err := trialdata.WriteDataset(*output, template, reps); err != nil {
		log.Fatalf("Failed to write dataset: %v", err)
	}

	fmt.Printf("Generated trial dataset:\n")
	fmt.Printf("- Path: %s\n", *output)
	fmt.Printf("- Template samples: %d\n", template.Len())
	fmt.Printf("- Repetitions: %d\n", len(reps))
	fmt.Printf("- Seed: %d\n", *seed)
	fmt.Printf("\nThis is a synthetic dataset for testing; it does not represent recorded motion.\n")
}
