package ebay

import (
	"sort"
	"strconv"
)

// PriceStats summarizes the asking prices of a set of active listings.
type PriceStats struct {
	Average    float64 `json:"average"`
	Median     float64 `json:"median"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	SampleSize int     `json:"sampleSize"`
	Currency   string  `json:"currency,omitempty"`
}

// ComputePriceStats derives price statistics from listing summaries.
// Items with unparseable price values are skipped; the currency of the
// first priced item is reported for the whole sample.
func ComputePriceStats(items []ItemSummary) PriceStats {
	var (
		values   []float64
		currency string
	)

	for _, item := range items {
		v, err := strconv.ParseFloat(item.Price.Value, 64)
		if err != nil {
			continue
		}
		if currency == "" {
			currency = item.Price.Currency
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return PriceStats{}
	}

	sort.Float64s(values)

	var sum float64
	for _, v := range values {
		sum += v
	}

	n := len(values)
	median := values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}

	return PriceStats{
		Average:    sum / float64(n),
		Median:     median,
		Min:        values[0],
		Max:        values[n-1],
		SampleSize: n,
		Currency:   currency,
	}
}
