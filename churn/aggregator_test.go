package churn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeDatasetCSV writes a synthetic customer dataset with n rows, labels
// alternating churn/retain, and returns its path.
func writeDatasetCSV(t *testing.T, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "customers.csv")
	content := "state,area code,phone number,account length,international plan,voice mail plan," +
		"number vmail messages,total day minutes,total day calls,total eve minutes,total eve calls," +
		"total night minutes,total intl minutes,customer service calls,churn\n"
	for i := 0; i < n; i++ {
		label := "False."
		day := 95.0 + float64(i%7)
		calls := 1
		if i%2 == 0 {
			label = "True."
			day = 270.0 + float64(i%11)
			calls = 5
		}
		content += fmt.Sprintf("KS,415,382-%04d,%d,no,yes,12,%.1f,98,%.1f,87,201.5,10.2,%d,%s\n",
			i, 100+i, day, 180.0+float64(i%5), calls, label)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write dataset fixture: %v", err)
	}
	return path
}

func newReadyAggregator(t *testing.T, rows int) *Aggregator {
	t.Helper()

	agg := NewAggregator(TrainingConfig{Epochs: 40, LearningRate: 0.1, L2: 1e-3})
	if err := agg.Reload(writeDatasetCSV(t, rows)); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	return agg
}

func TestTickBeforeReload(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(DefaultTrainingConfig())
	if _, ok := agg.Tick(); ok {
		t.Fatal("expected no snapshot before a dataset is loaded")
	}
	if agg.Ready() {
		t.Fatal("aggregator must not report ready before reload")
	}
}

func TestWindowTrendAndFeedBounds(t *testing.T) {
	t.Parallel()

	agg := newReadyAggregator(t, 30)

	for i := 0; i < 40; i++ {
		snap, ok := agg.Tick()
		if !ok {
			t.Fatalf("tick %d produced no snapshot", i)
		}
		if snap.KPIs.ActiveSessions > windowCap {
			t.Fatalf("window exceeded cap on tick %d: %d", i, snap.KPIs.ActiveSessions)
		}
		if len(snap.Trend) > trendCap {
			t.Fatalf("trend exceeded cap on tick %d: %d", i, len(snap.Trend))
		}
		if len(snap.LiveFeed) > feedCap {
			t.Fatalf("feed exceeded cap on tick %d: %d", i, len(snap.LiveFeed))
		}
	}

	snap := agg.Snapshot()
	if snap.KPIs.ActiveSessions != windowCap {
		t.Fatalf("expected saturated window of %d, got %d", windowCap, snap.KPIs.ActiveSessions)
	}
	if len(snap.Trend) != trendCap {
		t.Fatalf("expected %d trend points, got %d", trendCap, len(snap.Trend))
	}
}

func TestRiskBandsPartitionWindow(t *testing.T) {
	t.Parallel()

	agg := newReadyAggregator(t, 60)

	for i := 0; i < 10; i++ {
		snap, ok := agg.Tick()
		if !ok {
			t.Fatalf("tick %d produced no snapshot", i)
		}
		sum := 0
		for _, band := range snap.RiskBands {
			sum += band.Count
		}
		if sum != snap.KPIs.ActiveSessions {
			t.Fatalf("tick %d: band counts sum to %d, window is %d", i, sum, snap.KPIs.ActiveSessions)
		}
	}
}

func TestRiskBandBoundariesHalfOpen(t *testing.T) {
	t.Parallel()

	window := []ScoredRow{
		scoredWith(0, 0),
		scoredWith(33.99, 0),
		scoredWith(34, 0),
		scoredWith(66.99, 0),
		scoredWith(67, 1),
		scoredWith(100, 1),
	}

	bands := computeRiskBands(window)

	if bands[0].Count != 2 {
		t.Fatalf("expected 2 Low rows (34 belongs to Medium), got %d", bands[0].Count)
	}
	if bands[1].Count != 2 {
		t.Fatalf("expected 2 Medium rows (67 belongs to High), got %d", bands[1].Count)
	}
	if bands[2].Count != 2 {
		t.Fatalf("expected 2 High rows, got %d", bands[2].Count)
	}
}

func TestCyclicCursorCoversEveryRow(t *testing.T) {
	t.Parallel()

	const rows = 10
	agg := newReadyAggregator(t, rows)

	// Two ticks draw 90 samples; every one of the 10 rows must appear at
	// least floor(90/10) = 9 times in the window.
	agg.Tick()
	agg.Tick()

	counts := make(map[string]int)
	agg.mu.RLock()
	for _, row := range agg.window {
		counts[row.ID]++
	}
	agg.mu.RUnlock()

	if len(counts) != rows {
		t.Fatalf("expected all %d rows sampled, saw %d distinct", rows, len(counts))
	}
	for id, n := range counts {
		if n < 9 {
			t.Fatalf("row %s drawn %d times, expected at least 9", id, n)
		}
	}
}

func TestSegmentsAlwaysComplete(t *testing.T) {
	t.Parallel()

	summaries := computeSegments(nil)

	if len(summaries) != len(Segments) {
		t.Fatalf("expected %d segment summaries, got %d", len(Segments), len(summaries))
	}
	for i, summary := range summaries {
		if summary.Segment != Segments[i] {
			t.Fatalf("segment order changed at %d: %s", i, summary.Segment)
		}
		if summary.ActiveUsers != 0 || summary.AvgRisk != 0 || summary.AvgSatisfaction != 0 {
			t.Fatalf("empty segment %s must report zeroes, got %+v", summary.Segment, summary)
		}
	}
}

func TestLeaderboardSizeAndStableTies(t *testing.T) {
	t.Parallel()

	window := make([]ScoredRow, 0, 20)
	for i := 0; i < 20; i++ {
		row := scoredWith(80, 1) // all tied
		row.ID = fmt.Sprintf("cust-%02d", i)
		window = append(window, row)
	}

	ranked := topRisk(window)

	if len(ranked) != leaderboardSize {
		t.Fatalf("expected leaderboard of %d, got %d", leaderboardSize, len(ranked))
	}
	for i, row := range ranked {
		want := fmt.Sprintf("cust-%02d", i)
		if row.ID != want {
			t.Fatalf("tie-break must preserve window order: slot %d is %s", i, row.ID)
		}
	}
}

func TestAlertPolicyOrderingAndCap(t *testing.T) {
	t.Parallel()

	// More alerting segments than the cap: criticals are generated first in
	// iteration order, so the cohort-concentration warning is dropped.
	segments := make([]SegmentSummary, 0, 10)
	for i := 0; i < 10; i++ {
		segments = append(segments, SegmentSummary{
			Segment:     fmt.Sprintf("segment-%d", i),
			ActiveUsers: 5,
			AvgRisk:     70,
		})
	}
	bands := []RiskBand{{Band: "Low"}, {Band: "Medium"}, {Band: "High", Count: 50}}

	alerts := computeAlerts(segments, bands)

	if len(alerts) != alertCap {
		t.Fatalf("expected alerts capped at %d, got %d", alertCap, len(alerts))
	}
	for i, alert := range alerts {
		if alert.Severity != "critical" {
			t.Fatalf("expected only critical alerts to survive truncation, slot %d is %s", i, alert.Severity)
		}
		if alert.Segment != segments[i].Segment {
			t.Fatalf("critical alerts out of segment order at %d", i)
		}
	}

	// With room to spare the warning lands last.
	few := segments[:2]
	alerts = computeAlerts(few, bands)
	if len(alerts) != 3 {
		t.Fatalf("expected 2 criticals + 1 warning, got %d", len(alerts))
	}
	if alerts[2].Severity != "warning" {
		t.Fatalf("expected trailing warning, got %s", alerts[2].Severity)
	}
}

func TestReloadFailurePreservesState(t *testing.T) {
	t.Parallel()

	agg := newReadyAggregator(t, 25)
	agg.Tick()

	before, statsBefore := agg.Health()

	err := agg.Reload(filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Fatal("expected reload of missing dataset to fail")
	}
	if !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}

	after, statsAfter := agg.Health()
	if after != before {
		t.Fatalf("dataset info changed after failed reload: %+v vs %+v", after, before)
	}
	if statsAfter != statsBefore {
		t.Fatalf("model stats changed after failed reload")
	}

	// The aggregator keeps ticking on the previous state.
	if _, ok := agg.Tick(); !ok {
		t.Fatal("aggregator must stay live after a failed reload")
	}
}

func TestReloadResetsDerivedState(t *testing.T) {
	t.Parallel()

	agg := newReadyAggregator(t, 25)
	for i := 0; i < 5; i++ {
		agg.Tick()
	}

	if err := agg.Reload(writeDatasetCSV(t, 40)); err != nil {
		t.Fatalf("second reload failed: %v", err)
	}

	snap, ok := agg.Tick()
	if !ok {
		t.Fatal("expected snapshot after reload")
	}
	if len(snap.Trend) != 1 {
		t.Fatalf("trend history must restart after reload, got %d points", len(snap.Trend))
	}
	if snap.KPIs.ActiveSessions != batchSize {
		t.Fatalf("window must restart after reload, got %d sessions", snap.KPIs.ActiveSessions)
	}
	if snap.Dataset.Rows != 40 {
		t.Fatalf("dataset info must reflect the new dataset, got %d rows", snap.Dataset.Rows)
	}
}

func TestMalformedDatasetRejected(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.csv")
	if err := os.WriteFile(path, []byte("a,b\n\"unterminated\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	agg := NewAggregator(DefaultTrainingConfig())
	err := agg.Reload(path)
	if err == nil {
		t.Fatal("expected malformed dataset to fail reload")
	}
	if !errors.Is(err, ErrDatasetMalformed) {
		t.Fatalf("expected ErrDatasetMalformed, got %v", err)
	}
	if agg.Ready() {
		t.Fatal("aggregator must stay uninitialized after failed first reload")
	}
}
