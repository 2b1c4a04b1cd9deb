package churn

// Risk Scoring
//
// Applies a trained model to one ModelRow: standardize the raw feature
// vector with the model's stored statistics, take the linear combination
// plus bias through the sigmoid and scale to a 0-100 percentage. Each score
// carries ranked per-feature contribution explanations so the dashboard can
// show why a customer is at risk.
//
// Score is a pure function of (row, model); whenever the model is replaced,
// every row is re-scored rather than patching stale outputs.

import (
	"math"
	"sort"
)

const driverLimit = 5

// Score produces the ScoredRow for one customer under the given model.
func Score(row ModelRow, model TrainedModel) ScoredRow {
	contributions := make([]float64, len(model.Weights))
	linear := model.Bias
	for j, weight := range model.Weights {
		z := 0.0
		if j < len(row.Features) {
			z = (row.Features[j] - model.Means[j]) / model.Stddevs[j]
		}
		contributions[j] = weight * z
		linear += contributions[j]
	}

	risk := round2(sigmoid(linear) * 100)

	return ScoredRow{
		ModelRow:      row,
		ChurnRisk:     risk,
		BufferingRate: round2(clamp01(row.ServiceCalls/8) * 6),
		Satisfaction:  clamp(math.Round(100-risk*0.7), 20, 99),
		Drivers:       rankDrivers(contributions),
	}
}

// ScoreAll scores every row against the model, preserving input order.
func ScoreAll(rows []ModelRow, model TrainedModel) []ScoredRow {
	scored := make([]ScoredRow, len(rows))
	for i, row := range rows {
		scored[i] = Score(row, model)
	}
	return scored
}

// rankDrivers returns the top contributions by absolute magnitude. Ties keep
// the original feature-definition order (stable sort), so explanations are
// deterministic.
func rankDrivers(contributions []float64) []RiskDriver {
	order := make([]int, len(contributions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(contributions[order[a]]) > math.Abs(contributions[order[b]])
	})

	limit := driverLimit
	if limit > len(order) {
		limit = len(order)
	}

	drivers := make([]RiskDriver, 0, limit)
	for _, j := range order[:limit] {
		direction := "up"
		if contributions[j] < 0 {
			direction = "down"
		}
		drivers = append(drivers, RiskDriver{
			Feature:   FeatureDefs[j].DisplayName,
			Direction: direction,
			Impact:    round3(math.Abs(contributions[j])),
		})
	}
	return drivers
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
