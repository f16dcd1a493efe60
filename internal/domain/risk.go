package domain

import (
	"fmt"
	"math"
	"sort"
)

// RiskWeights are relative emergency-transport rates by five-year age band,
// normalized so the 40–44 band is 1.0. Source: Tokyo Fire Department,
// "Current state of emergency activities", 2023 edition.
var RiskWeights = map[string]float64{
	"0-4":   0.71,
	"5-9":   0.16,
	"10-14": 0.18,
	"15-19": 0.51,
	"20-24": 0.76,
	"25-29": 0.43,
	"30-34": 0.69,
	"35-39": 0.57,
	"40-44": 1.00,
	"45-49": 1.12,
	"50-54": 2.33,
	"55-59": 2.59,
	"60-64": 4.00,
	"65-69": 4.35,
	"70-74": 6.73,
	"75-79": 11.63,
	"80-84": 19.45,
	"85-89": 30.78,
	"90-94": 50.02,
	"95-99": 72.24,
	"100+":  72.24,
}

// RiskWeightedPopulation folds a population broken down by age band into a
// single region weight. Unknown bands and negative counts are rejected.
func RiskWeightedPopulation(bands map[string]float64) (float64, error) {
	keys := make([]string, 0, len(bands))
	for k := range bands {
		keys = append(keys, k)
	}
	// Fixed summation order keeps weights reproducible.
	sort.Strings(keys)

	var total float64
	for _, band := range keys {
		count := bands[band]
		w, ok := RiskWeights[band]
		if !ok {
			return 0, fmt.Errorf("unknown age band %q", band)
		}
		if count < 0 || math.IsNaN(count) || math.IsInf(count, 0) {
			return 0, fmt.Errorf("age band %q: invalid population %v", band, count)
		}
		total += count * w
	}
	return total, nil
}
