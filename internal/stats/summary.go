package stats

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// whiskerReach is the box-plot whisker length in interquartile ranges.
const whiskerReach = 1.5

// BoxSummary is the five-number summary of a sample plus its whiskers,
// mean and standard deviation.
type BoxSummary struct {
	Count        int     `json:"count"`
	Min          float64 `json:"min"`
	Q1           float64 `json:"q1"`
	Median       float64 `json:"median"`
	Q3           float64 `json:"q3"`
	Max          float64 `json:"max"`
	LowerWhisker float64 `json:"lower_whisker"`
	UpperWhisker float64 `json:"upper_whisker"`
	Outliers     int     `json:"outliers"`
	Mean         float64 `json:"mean"`
	Std          float64 `json:"std"`
}

// Summarize computes a BoxSummary with empirical quantiles. Whiskers end
// at the most extreme values within 1.5 IQR of the box; values beyond
// them are counted as outliers.
func Summarize(values []float64) (BoxSummary, error) {
	if len(values) == 0 {
		return BoxSummary{}, errors.New("summary requires at least one value")
	}
	for i, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return BoxSummary{}, errors.Errorf("summary value %d is not finite: %f", i, value)
		}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	summary := BoxSummary{
		Count:  len(sorted),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		summary.Mean, summary.Std = stat.MeanStdDev(sorted, nil)
	} else {
		summary.Mean = sorted[0]
	}

	reach := whiskerReach * (summary.Q3 - summary.Q1)
	low, high := summary.Q1-reach, summary.Q3+reach
	summary.LowerWhisker, summary.UpperWhisker = summary.Median, summary.Median
	first := true
	for _, value := range sorted {
		if value < low || value > high {
			summary.Outliers++
			continue
		}
		if first {
			summary.LowerWhisker = value
			first = false
		}
		summary.UpperWhisker = value
	}
	return summary, nil
}

// TrialSummary pairs the training and testing summaries of one batch.
type TrialSummary struct {
	Training BoxSummary `json:"training"`
	Testing  BoxSummary `json:"testing"`
}

func SummarizeTrials(training, testing []float64) (TrialSummary, error) {
	train, err := Summarize(training)
	if err != nil {
		return TrialSummary{}, errors.Wrap(err, "training")
	}
	test, err := Summarize(testing)
	if err != nil {
		return TrialSummary{}, errors.Wrap(err, "testing")
	}
	return TrialSummary{Training: train, Testing: test}, nil
}
