package churn

// Model Training
//
// Fits a standardized logistic-regression model with full-batch gradient
// descent and L2 regularization. Termination is purely epoch-count-based:
// there is no convergence check or early stopping, which keeps training cost
// fixed and the output reproducible for identical input ordering.

import "math"

// TrainingConfig controls the gradient-descent run.
type TrainingConfig struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learningRate"`
	L2           float64 `json:"l2"`
}

// DefaultTrainingConfig returns the tuning used by the live pipeline.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{Epochs: 300, LearningRate: 0.05, L2: 1e-3}
}

// Train fits a TrainedModel over the supplied rows. An empty row set yields a
// degenerate all-zero model so the pipeline stays alive on ingestion edge
// cases; every downstream score then sits at the sigmoid midpoint.
func Train(rows []ModelRow, cfg TrainingConfig) TrainedModel {
	featureCount := len(FeatureDefs)
	model := TrainedModel{
		Weights: make([]float64, featureCount),
		Means:   make([]float64, featureCount),
		Stddevs: make([]float64, featureCount),
	}
	for j := range model.Stddevs {
		model.Stddevs[j] = 1
	}

	n := len(rows)
	if n == 0 {
		return model
	}

	// Standardization statistics: per-feature mean and sample (n-1) stddev,
	// substituting 1.0 when a feature is constant.
	for _, row := range rows {
		for j, val := range row.Features {
			model.Means[j] += val
		}
	}
	for j := range model.Means {
		model.Means[j] /= float64(n)
	}
	if n > 1 {
		variance := make([]float64, featureCount)
		for _, row := range rows {
			for j, val := range row.Features {
				diff := val - model.Means[j]
				variance[j] += diff * diff
			}
		}
		for j := range variance {
			sd := math.Sqrt(variance[j] / float64(n-1))
			if sd == 0 {
				sd = 1
			}
			model.Stddevs[j] = sd
		}
	}

	standardized := make([][]float64, n)
	for i, row := range rows {
		z := make([]float64, featureCount)
		for j, val := range row.Features {
			z[j] = (val - model.Means[j]) / model.Stddevs[j]
		}
		standardized[i] = z
	}

	gradW := make([]float64, featureCount)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for i, z := range standardized {
			linear := model.Bias
			for j, val := range z {
				linear += model.Weights[j] * val
			}
			residual := sigmoid(linear) - float64(rows[i].Label)
			for j, val := range z {
				gradW[j] += residual * val
			}
			gradB += residual
		}

		for j := range model.Weights {
			model.Weights[j] -= cfg.LearningRate * (gradW[j]/float64(n) + cfg.L2*model.Weights[j])
		}
		model.Bias -= cfg.LearningRate * (gradB / float64(n))
	}

	return model
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
