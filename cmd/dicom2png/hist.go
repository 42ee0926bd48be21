package main

import (
	"fmt"
	"os"

	"github.com/aybabtme/uniplot/histogram"
)

// printIntensityHistogram summarizes the raw pixel samples on the terminal,
// which helps when choosing a window center and width by hand.
func printIntensityHistogram(samples []int) error {
	if len(samples) == 0 {
		return fmt.Errorf("no pixel samples to summarize")
	}

	vals := make([]float64, len(samples))
	for i, v := range samples {
		vals[i] = float64(v)
	}

	// The number of buckets is arbitrary
	hist := histogram.Hist(25, vals)

	return histogram.Fprint(os.Stdout, hist, histogram.Linear(40))
}
