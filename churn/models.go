package churn

import "time"

// RawRecord maps a source column name to its string value for one customer.
// Records are immutable once loaded from the dataset.
type RawRecord map[string]string

// FeatureKind describes how a raw column is coerced into a numeric feature.
type FeatureKind int

const (
	// FeatureNumeric parses the column leniently as a float (malformed → 0).
	FeatureNumeric FeatureKind = iota
	// FeatureBooleanYesNo yields 1 iff the trimmed value equals "yes"
	// case-insensitively, 0 otherwise.
	FeatureBooleanYesNo
)

// FeatureDef describes one slot of the fixed-length feature vector. The
// definition order is shared by training and scoring and never changes within
// the lifetime of a TrainedModel.
type FeatureDef struct {
	Key         string      `json:"key"`
	DisplayName string      `json:"displayName"`
	Kind        FeatureKind `json:"kind"`
}

// ModelRow is the typed, derived view of one customer record. Created once
// per dataset load and immutable thereafter.
type ModelRow struct {
	ID           string    `json:"id"`
	Segment      string    `json:"segment"`
	Tier         string    `json:"tier"`
	Label        int       `json:"label"`
	UsageMinutes float64   `json:"usageMinutes"`
	ServiceCalls float64   `json:"serviceCalls"`
	Pulse        float64   `json:"pulse"`
	Features     []float64 `json:"-"`
	Raw          RawRecord `json:"-"`
}

// TrainedModel holds the fitted logistic-regression parameters together with
// the standardization statistics used to fit them. Immutable after training;
// replaced as a whole on dataset reload.
type TrainedModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	Stddevs []float64 `json:"stddevs"`
}

// RiskDriver is one ranked feature contribution explaining a risk score.
type RiskDriver struct {
	Feature   string  `json:"feature"`
	Direction string  `json:"direction"` // "up" or "down"
	Impact    float64 `json:"impact"`
}

// ScoredRow augments a ModelRow with the model outputs.
type ScoredRow struct {
	ModelRow
	ChurnRisk     float64      `json:"churnRisk"`
	BufferingRate float64      `json:"bufferingRate"`
	Satisfaction  float64      `json:"satisfaction"`
	Drivers       []RiskDriver `json:"drivers"`
}

// ModelStats reports confusion-matrix quality metrics for a trained model.
// Threshold is the risk cutoff (0-100) the matrix was binarized at.
type ModelStats struct {
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	TruePositives  int     `json:"truePositives"`
	TrueNegatives  int     `json:"trueNegatives"`
	FalsePositives int     `json:"falsePositives"`
	FalseNegatives int     `json:"falseNegatives"`
	Threshold      float64 `json:"threshold"`
}

// KPIBlock holds the headline numbers recomputed over the window each tick.
type KPIBlock struct {
	ActiveSessions    int     `json:"activeSessions"`
	AvgRisk           float64 `json:"avgRisk"`
	PredictedChurners int     `json:"predictedChurners"`
	TotalMinutes      float64 `json:"totalMinutes"`
	AvgServiceCalls   float64 `json:"avgServiceCalls"`
}

// SegmentSummary aggregates the window per configured segment. Segments with
// no members in the window report zeroes rather than being omitted.
type SegmentSummary struct {
	Segment         string  `json:"segment"`
	ActiveUsers     int     `json:"activeUsers"`
	AvgRisk         float64 `json:"avgRisk"`
	AvgServiceLoad  float64 `json:"avgServiceLoad"`
	AvgMinutes      float64 `json:"avgMinutes"`
	AvgSatisfaction float64 `json:"avgSatisfaction"`
}

// RiskBand is one bucket of the 3-band risk distribution.
type RiskBand struct {
	Band    string  `json:"band"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// TrendPoint is one tick of the bounded trend history.
type TrendPoint struct {
	Timestamp      string  `json:"timestamp"`
	AvgRisk        float64 `json:"avgRisk"`
	Churners       int     `json:"churners"`
	ActiveSessions int     `json:"activeSessions"`
}

// LiveEvent is one entry of the live feed, derived from the newest sampled
// row of a tick's batch.
type LiveEvent struct {
	Timestamp string  `json:"timestamp"`
	ID        string  `json:"id"`
	Segment   string  `json:"segment"`
	Tier      string  `json:"tier"`
	Risk      float64 `json:"risk"`
}

// Alert flags a cohort whose aggregate risk crossed a policy threshold.
type Alert struct {
	Severity string  `json:"severity"` // "critical" or "warning"
	Segment  string  `json:"segment,omitempty"`
	Message  string  `json:"message"`
	Load     float64 `json:"load"`
}

// DatasetInfo describes the currently loaded dataset.
type DatasetInfo struct {
	Rows      int       `json:"rows"`
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AnalyticsSnapshot is the full published analytics state. Each emission is a
// complete replacement; consumers must not assume incremental diffs.
type AnalyticsSnapshot struct {
	KPIs       KPIBlock         `json:"kpis"`
	Segments   []SegmentSummary `json:"segments"`
	RiskBands  []RiskBand       `json:"riskBands"`
	Trend      []TrendPoint     `json:"trend"`
	LiveFeed   []LiveEvent      `json:"liveFeed"`
	TopRisk    []ScoredRow      `json:"topRisk"`
	Alerts     []Alert          `json:"alerts"`
	ModelStats ModelStats       `json:"modelStats"`
	Dataset    DatasetInfo      `json:"dataset"`
}
