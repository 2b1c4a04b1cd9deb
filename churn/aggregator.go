package churn

// Streaming Aggregation
//
// The Aggregator owns all mutable analytics state: the trained model, the
// scored dataset, the cyclic sampling cursor, the bounded sliding window and
// the trend history. Records are replayed through the window in round-robin
// order and every published aggregate is recomputed from the current window
// on each tick.
//
// Ownership rules:
//
//  1. Single owner: ticks and reloads are mutually exclusive; a reload swaps
//     model, rows, cursor, window and trend as one unit, so a tick can never
//     observe half-updated state.
//  2. A failed reload leaves all prior state untouched and reports the error
//     to the caller.
//  3. Ticks are blocking, synchronous and bounded-cost: fixed batch size,
//     fixed window cap, O(window) recomputation.

import (
	"sort"
	"sync"
	"time"
)

const (
	batchSize       = 45
	windowCap       = 620
	trendCap        = 24
	feedCap         = 30
	leaderboardSize = 14
	alertCap        = 8

	segmentAlertRisk   = 62.0
	highBandAlertCount = 40
)

// Aggregator drives the windowed replay of scored records and derives the
// published analytics snapshot on every tick.
type Aggregator struct {
	mu sync.RWMutex

	cfg     TrainingConfig
	model   TrainedModel
	rows    []ScoredRow
	cursor  int
	window  []ScoredRow
	trend   []TrendPoint
	feed    []LiveEvent
	stats   ModelStats
	dataset DatasetInfo
	last    AnalyticsSnapshot
	ready   bool
}

// NewAggregator returns an uninitialized aggregator. It becomes ready after
// the first successful Reload.
func NewAggregator(cfg TrainingConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Reload ingests a new dataset, retrains the model and re-scores every row,
// then replaces all derived state atomically. The window, cursor, trend
// history and live feed restart empty. On any failure the previous state is
// preserved and the error returned to the caller.
func (a *Aggregator) Reload(path string) error {
	records, err := LoadDataset(path)
	if err != nil {
		return err
	}

	rows := ExtractAll(records)
	model := Train(rows, a.cfg)
	scored := ScoreAll(rows, model)
	stats := Evaluate(scored, DefaultThreshold)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.model = model
	a.rows = scored
	a.cursor = 0
	a.window = nil
	a.trend = nil
	a.feed = nil
	a.stats = stats
	a.dataset = DatasetInfo{Rows: len(scored), Path: path, UpdatedAt: time.Now()}
	a.last = AnalyticsSnapshot{}
	a.ready = true

	return nil
}

// Ready reports whether a dataset has been loaded.
func (a *Aggregator) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Tick advances the cyclic cursor by one batch, refreshes the window and
// recomputes every published aggregate. It returns the new snapshot, or
// false when no dataset is loaded.
func (a *Aggregator) Tick() (AnalyticsSnapshot, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ready || len(a.rows) == 0 {
		return AnalyticsSnapshot{}, false
	}

	// Draw the next batch; wrap-around is silent and lossless so every row
	// is revisited in round-robin order.
	batch := make([]ScoredRow, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		batch = append(batch, a.rows[a.cursor])
		a.cursor = (a.cursor + 1) % len(a.rows)
	}

	a.window = append(a.window, batch...)
	if len(a.window) > windowCap {
		trimmed := make([]ScoredRow, windowCap)
		copy(trimmed, a.window[len(a.window)-windowCap:])
		a.window = trimmed
	}

	kpis := computeKPIs(a.window, a.stats.Threshold)
	segments := computeSegments(a.window)
	bands := computeRiskBands(a.window)

	timestamp := time.Now().Format("15:04:05")
	a.trend = append(a.trend, TrendPoint{
		Timestamp:      timestamp,
		AvgRisk:        kpis.AvgRisk,
		Churners:       kpis.PredictedChurners,
		ActiveSessions: kpis.ActiveSessions,
	})
	if len(a.trend) > trendCap {
		a.trend = a.trend[len(a.trend)-trendCap:]
	}

	// Live pulse from the newest sampled row, prepended so consumers render
	// the feed newest first.
	if len(batch) > 0 {
		pulse := batch[len(batch)-1]
		a.feed = append([]LiveEvent{{
			Timestamp: timestamp,
			ID:        pulse.ID,
			Segment:   pulse.Segment,
			Tier:      pulse.Tier,
			Risk:      pulse.ChurnRisk,
		}}, a.feed...)
		if len(a.feed) > feedCap {
			a.feed = a.feed[:feedCap]
		}
	}

	a.last = AnalyticsSnapshot{
		KPIs:       kpis,
		Segments:   segments,
		RiskBands:  bands,
		Trend:      append([]TrendPoint(nil), a.trend...),
		LiveFeed:   append([]LiveEvent(nil), a.feed...),
		TopRisk:    topRisk(a.window),
		Alerts:     computeAlerts(segments, bands),
		ModelStats: a.stats,
		Dataset:    a.dataset,
	}

	return a.last, true
}

// Snapshot returns the most recently published snapshot.
func (a *Aggregator) Snapshot() AnalyticsSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// Health exposes dataset metadata and model quality for status probes.
func (a *Aggregator) Health() (DatasetInfo, ModelStats) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataset, a.stats
}

func computeKPIs(window []ScoredRow, threshold float64) KPIBlock {
	kpis := KPIBlock{ActiveSessions: len(window)}
	if len(window) == 0 {
		return kpis
	}

	var riskSum, minutesSum, callsSum float64
	for _, row := range window {
		riskSum += row.ChurnRisk
		minutesSum += row.UsageMinutes
		callsSum += row.ServiceCalls
		if row.ChurnRisk >= threshold {
			kpis.PredictedChurners++
		}
	}

	kpis.AvgRisk = round2(riskSum / float64(len(window)))
	kpis.TotalMinutes = round2(minutesSum)
	kpis.AvgServiceCalls = round2(callsSum / float64(len(window)))
	return kpis
}

// computeSegments summarises the window for every configured segment, in
// configured order. Segments with no members report zeroes rather than being
// dropped from the output.
func computeSegments(window []ScoredRow) []SegmentSummary {
	type bucket struct {
		count        int
		risk         float64
		calls        float64
		minutes      float64
		satisfaction float64
	}

	buckets := make(map[string]*bucket, len(Segments))
	for _, name := range Segments {
		buckets[name] = &bucket{}
	}
	for _, row := range window {
		b, ok := buckets[row.Segment]
		if !ok {
			continue
		}
		b.count++
		b.risk += row.ChurnRisk
		b.calls += row.ServiceCalls
		b.minutes += row.UsageMinutes
		b.satisfaction += row.Satisfaction
	}

	summaries := make([]SegmentSummary, 0, len(Segments))
	for _, name := range Segments {
		b := buckets[name]
		summary := SegmentSummary{Segment: name, ActiveUsers: b.count}
		if b.count > 0 {
			summary.AvgRisk = round2(b.risk / float64(b.count))
			summary.AvgServiceLoad = round2(b.calls / float64(b.count))
			summary.AvgMinutes = round2(b.minutes / float64(b.count))
			summary.AvgSatisfaction = round2(b.satisfaction / float64(b.count))
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// computeRiskBands buckets the window into the half-open bands Low [0,34),
// Medium [34,67) and High [67,101). Counts always sum to the window size.
func computeRiskBands(window []ScoredRow) []RiskBand {
	bands := []RiskBand{
		{Band: "Low"},
		{Band: "Medium"},
		{Band: "High"},
	}
	for _, row := range window {
		switch {
		case row.ChurnRisk < 34:
			bands[0].Count++
		case row.ChurnRisk < 67:
			bands[1].Count++
		default:
			bands[2].Count++
		}
	}
	if len(window) > 0 {
		for i := range bands {
			bands[i].Percent = round2(float64(bands[i].Count) / float64(len(window)) * 100)
		}
	}
	return bands
}

// topRisk sorts the window descending by risk and keeps the leaderboard
// prefix. The stable sort preserves window order on ties.
func topRisk(window []ScoredRow) []ScoredRow {
	ranked := append([]ScoredRow(nil), window...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ChurnRisk > ranked[j].ChurnRisk
	})
	if len(ranked) > leaderboardSize {
		ranked = ranked[:leaderboardSize]
	}
	return ranked
}

// computeAlerts applies the alert policy: one critical alert per segment
// whose mean risk exceeds the threshold, generated in segment iteration
// order, followed by a single cohort-concentration warning when the High
// band runs hot. The cap truncates after concatenation, so the warning is
// dropped first when many segments alert at once.
func computeAlerts(segments []SegmentSummary, bands []RiskBand) []Alert {
	alerts := make([]Alert, 0, alertCap)
	for _, segment := range segments {
		if segment.AvgRisk > segmentAlertRisk {
			alerts = append(alerts, Alert{
				Severity: "critical",
				Segment:  segment.Segment,
				Message:  "churn risk critical for " + segment.Segment,
				Load:     segment.AvgRisk,
			})
		}
	}
	for _, band := range bands {
		if band.Band == "High" && band.Count > highBandAlertCount {
			alerts = append(alerts, Alert{
				Severity: "warning",
				Message:  "high-risk cohort concentration in window",
				Load:     float64(band.Count),
			})
		}
	}
	if len(alerts) > alertCap {
		alerts = alerts[:alertCap]
	}
	return alerts
}
