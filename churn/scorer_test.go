package churn

import (
	"math"
	"testing"
)

// identityModel standardizes nothing (mean 0, stddev 1) so feature values
// flow straight into the contributions.
func identityModel(weights map[int]float64, bias float64) TrainedModel {
	model := TrainedModel{
		Weights: make([]float64, len(FeatureDefs)),
		Bias:    bias,
		Means:   make([]float64, len(FeatureDefs)),
		Stddevs: make([]float64, len(FeatureDefs)),
	}
	for j := range model.Stddevs {
		model.Stddevs[j] = 1
	}
	for idx, w := range weights {
		model.Weights[idx] = w
	}
	return model
}

func TestScoreDeterministic(t *testing.T) {
	t.Parallel()

	model := identityModel(map[int]float64{4: 0.8, 9: 1.2}, -0.3)
	row := syntheticRow(1, map[int]float64{4: 1.5, 9: 2})

	first := Score(row, model)
	for i := 0; i < 25; i++ {
		again := Score(row, model)
		if again.ChurnRisk != first.ChurnRisk || again.Satisfaction != first.Satisfaction {
			t.Fatalf("score not deterministic on run %d", i)
		}
		for j := range first.Drivers {
			if again.Drivers[j] != first.Drivers[j] {
				t.Fatalf("drivers not deterministic on run %d", i)
			}
		}
	}
}

func TestScoreBounds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		model TrainedModel
		row   ModelRow
	}{
		{identityModel(map[int]float64{0: 50}, 10), syntheticRow(1, map[int]float64{0: 100})},
		{identityModel(map[int]float64{0: -50}, -10), syntheticRow(0, map[int]float64{0: 100})},
		{identityModel(nil, 0), syntheticRow(0, nil)},
	}

	for i, tc := range cases {
		tc.row.ServiceCalls = float64(i * 10) // 0, 10, 20 -> clamped buffering
		scored := Score(tc.row, tc.model)

		if scored.ChurnRisk < 0 || scored.ChurnRisk > 100 {
			t.Errorf("case %d: churn risk out of range: %f", i, scored.ChurnRisk)
		}
		if scored.Satisfaction < 20 || scored.Satisfaction > 99 {
			t.Errorf("case %d: satisfaction out of range: %f", i, scored.Satisfaction)
		}
		if scored.BufferingRate < 0 || scored.BufferingRate > 6 {
			t.Errorf("case %d: buffering rate out of range: %f", i, scored.BufferingRate)
		}
	}
}

func TestSatisfactionTransform(t *testing.T) {
	t.Parallel()

	// Saturated positive model: risk ~100, satisfaction 100-70=30.
	high := Score(syntheticRow(1, map[int]float64{0: 100}), identityModel(map[int]float64{0: 10}, 0))
	if high.ChurnRisk != 100 {
		t.Fatalf("expected saturated risk, got %f", high.ChurnRisk)
	}
	if high.Satisfaction != 30 {
		t.Fatalf("expected satisfaction 30 at full risk, got %f", high.Satisfaction)
	}

	// Saturated negative model: risk ~0, satisfaction clamps at 99.
	low := Score(syntheticRow(0, map[int]float64{0: 100}), identityModel(map[int]float64{0: -10}, 0))
	if low.ChurnRisk != 0 {
		t.Fatalf("expected zero risk, got %f", low.ChurnRisk)
	}
	if low.Satisfaction != 99 {
		t.Fatalf("expected satisfaction cap 99 at zero risk, got %f", low.Satisfaction)
	}
}

func TestBufferingRateProxy(t *testing.T) {
	t.Parallel()

	model := identityModel(nil, 0)

	cases := []struct {
		calls float64
		want  float64
	}{
		{0, 0},
		{4, 3},
		{8, 6},
		{20, 6},
	}
	for _, tc := range cases {
		row := syntheticRow(0, nil)
		row.ServiceCalls = tc.calls
		if got := Score(row, model).BufferingRate; got != tc.want {
			t.Errorf("buffering for %v calls: expected %v, got %v", tc.calls, tc.want, got)
		}
	}
}

func TestDriversRankedByMagnitude(t *testing.T) {
	t.Parallel()

	model := identityModel(map[int]float64{0: 0.5, 4: -3, 6: 2, 9: 1}, 0)
	row := syntheticRow(0, map[int]float64{0: 1, 4: 1, 6: 1, 9: 1})

	scored := Score(row, model)

	if len(scored.Drivers) != 5 {
		t.Fatalf("expected 5 drivers, got %d", len(scored.Drivers))
	}
	if scored.Drivers[0].Feature != FeatureDefs[4].DisplayName || scored.Drivers[0].Direction != "down" {
		t.Fatalf("expected dominant negative driver first, got %+v", scored.Drivers[0])
	}
	if scored.Drivers[1].Feature != FeatureDefs[6].DisplayName || scored.Drivers[1].Direction != "up" {
		t.Fatalf("expected second driver at slot 6, got %+v", scored.Drivers[1])
	}
	for i := 1; i < len(scored.Drivers); i++ {
		if scored.Drivers[i].Impact > scored.Drivers[i-1].Impact {
			t.Fatalf("driver impacts not descending at %d", i)
		}
	}
	for _, d := range scored.Drivers {
		if d.Impact < 0 {
			t.Fatalf("driver impact must be non-negative, got %f", d.Impact)
		}
		if d.Impact != math.Round(d.Impact*1000)/1000 {
			t.Fatalf("driver impact not rounded to 3 decimals: %v", d.Impact)
		}
	}
}

func TestDriverTiesKeepFeatureOrder(t *testing.T) {
	t.Parallel()

	// Slots 2 and 3 contribute equal magnitude; the earlier definition wins.
	model := identityModel(map[int]float64{2: 1, 3: -1}, 0)
	row := syntheticRow(0, map[int]float64{2: 1, 3: 1})

	scored := Score(row, model)

	if scored.Drivers[0].Feature != FeatureDefs[2].DisplayName {
		t.Fatalf("expected tie broken by definition order, got %s", scored.Drivers[0].Feature)
	}
	if scored.Drivers[1].Feature != FeatureDefs[3].DisplayName {
		t.Fatalf("expected slot 3 second, got %s", scored.Drivers[1].Feature)
	}
}
