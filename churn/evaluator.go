package churn

// DefaultThreshold is the risk percentage at which a prediction counts as a
// churner. It is echoed in ModelStats so downstream churner counts stay
// consistent with the cutoff evaluation actually used.
const DefaultThreshold = 50.0

// Evaluate accumulates a confusion matrix over scored rows against their
// ground-truth labels and derives the quality metrics as percentages rounded
// to 2 decimals. Degenerate cells (empty input, unanimous predictions) yield
// 0 rather than NaN.
func Evaluate(scored []ScoredRow, threshold float64) ModelStats {
	stats := ModelStats{Threshold: threshold}

	for _, row := range scored {
		predicted := row.ChurnRisk >= threshold
		actual := row.Label == 1
		switch {
		case predicted && actual:
			stats.TruePositives++
		case predicted && !actual:
			stats.FalsePositives++
		case !predicted && actual:
			stats.FalseNegatives++
		default:
			stats.TrueNegatives++
		}
	}

	total := stats.TruePositives + stats.TrueNegatives + stats.FalsePositives + stats.FalseNegatives
	if total > 0 {
		stats.Accuracy = round2(float64(stats.TruePositives+stats.TrueNegatives) / float64(total) * 100)
	}
	if stats.TruePositives+stats.FalsePositives > 0 {
		stats.Precision = round2(float64(stats.TruePositives) / float64(stats.TruePositives+stats.FalsePositives) * 100)
	}
	if stats.TruePositives+stats.FalseNegatives > 0 {
		stats.Recall = round2(float64(stats.TruePositives) / float64(stats.TruePositives+stats.FalseNegatives) * 100)
	}
	if stats.Precision+stats.Recall > 0 {
		stats.F1 = round2(2 * stats.Precision * stats.Recall / (stats.Precision + stats.Recall))
	}

	return stats
}
