package churn

// Feature Extraction
//
// Maps a raw field-keyed customer record into the fixed-length numeric
// feature vector shared by training and scoring, plus derived attributes
// (segment, cohort tier, identifier). Extraction is total: malformed or
// missing numeric fields coerce to 0 and boolean fields to false, so no
// input record can fail the pipeline.

import (
	"fmt"
	"strconv"
	"strings"
)

const hashModulus = 2147483647 // polynomial rolling hash, base 31

// Segments is the configured segment set. Segment assignment is a pure
// deterministic function of state, area code and record index, so cohort
// cardinality always matches this list.
var Segments = []string{
	"StreamFlix",
	"CineMax+",
	"PrimeStream",
	"VidVault",
	"NovaPlay",
	"ZenithTV",
}

// Cohort tier names, from usage thresholds on day and evening minutes.
const (
	TierPremium  = "Premium"
	TierStandard = "Standard"
	TierMobile   = "Mobile"
)

// FeatureDefs defines the feature vector layout. The order is invariant for
// the lifetime of a loaded model; tests depend on it for driver tie-breaks.
var FeatureDefs = []FeatureDef{
	{Key: "account length", DisplayName: "Account Length", Kind: FeatureNumeric},
	{Key: "international plan", DisplayName: "International Plan", Kind: FeatureBooleanYesNo},
	{Key: "voice mail plan", DisplayName: "Voice Mail Plan", Kind: FeatureBooleanYesNo},
	{Key: "number vmail messages", DisplayName: "Voicemail Messages", Kind: FeatureNumeric},
	{Key: "total day minutes", DisplayName: "Day Minutes", Kind: FeatureNumeric},
	{Key: "total day calls", DisplayName: "Day Calls", Kind: FeatureNumeric},
	{Key: "total eve minutes", DisplayName: "Evening Minutes", Kind: FeatureNumeric},
	{Key: "total night minutes", DisplayName: "Night Minutes", Kind: FeatureNumeric},
	{Key: "total intl minutes", DisplayName: "International Minutes", Kind: FeatureNumeric},
	{Key: "customer service calls", DisplayName: "Service Calls", Kind: FeatureNumeric},
}

// Extract builds the ModelRow for one raw record. It never fails: lenient
// parsing is a deliberate policy so a handful of malformed cells cannot take
// down a dataset reload.
func Extract(record RawRecord, index int) ModelRow {
	features := FeatureVector(record)

	dayMinutes := lenientFloat(record["total day minutes"])
	eveMinutes := lenientFloat(record["total eve minutes"])
	nightMinutes := lenientFloat(record["total night minutes"])
	intlMinutes := lenientFloat(record["total intl minutes"])
	serviceCalls := lenientFloat(record["customer service calls"])
	dayCalls := lenientFloat(record["total day calls"])
	eveCalls := lenientFloat(record["total eve calls"])

	id := strings.TrimSpace(record["phone number"])
	if id == "" {
		id = fmt.Sprintf("cust-%04d", index)
	}

	return ModelRow{
		ID:           id,
		Segment:      assignSegment(record["state"], record["area code"], index),
		Tier:         cohortTier(dayMinutes, eveMinutes),
		Label:        churnLabel(record["churn"]),
		UsageMinutes: dayMinutes + eveMinutes + nightMinutes + intlMinutes,
		ServiceCalls: serviceCalls,
		Pulse:        dayCalls + eveCalls,
		Features:     features,
		Raw:          record,
	}
}

// FeatureVector maps a raw record onto the FeatureDefs layout.
func FeatureVector(record RawRecord) []float64 {
	vec := make([]float64, len(FeatureDefs))
	for i, def := range FeatureDefs {
		switch def.Kind {
		case FeatureBooleanYesNo:
			if strings.EqualFold(strings.TrimSpace(record[def.Key]), "yes") {
				vec[i] = 1
			}
		default:
			vec[i] = lenientFloat(record[def.Key])
		}
	}
	return vec
}

// assignSegment hashes "state-area-index" with a polynomial rolling hash
// (base 31, modulus 2147483647) and takes it modulo the segment set size.
// The algorithm is fixed: segment assignment must be bit-exact across runs.
func assignSegment(state, area string, index int) string {
	key := fmt.Sprintf("%s-%s-%d", strings.TrimSpace(state), strings.TrimSpace(area), index)
	var hash int64
	for _, ch := range key {
		hash = (hash*31 + int64(ch)) % hashModulus
	}
	return Segments[hash%int64(len(Segments))]
}

// cohortTier thresholds summed day+evening usage: > 420 minutes is Premium,
// day minutes alone > 210 is Standard, everything else Mobile.
func cohortTier(dayMinutes, eveMinutes float64) string {
	switch {
	case dayMinutes+eveMinutes > 420:
		return TierPremium
	case dayMinutes > 210:
		return TierStandard
	default:
		return TierMobile
	}
}

func churnLabel(value string) int {
	switch strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "."))) {
	case "true", "yes", "1":
		return 1
	default:
		return 0
	}
}

// lenientFloat parses a numeric field, coercing malformed or missing values
// to 0 rather than failing.
func lenientFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return parsed
}
