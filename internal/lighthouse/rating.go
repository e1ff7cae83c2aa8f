package lighthouse

import "github.com/law-makers/psibatch/pkg/models"

// Rating is a coarse quality bucket used by reports.
type Rating string

const (
	RatingGood             Rating = "good"
	RatingAverage          Rating = "average"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
	RatingUnknown          Rating = "unknown"
)

// ClassifyScore buckets a 0..100 category score.
func ClassifyScore(score int) Rating {
	switch {
	case score >= 90:
		return RatingGood
	case score >= 50:
		return RatingAverage
	default:
		return RatingPoor
	}
}

type threshold struct{ good, poor float64 }

// Thresholds in the audit's numeric unit (ms, or unitless for CLS).
var metricThresholds = map[string]threshold{
	models.MetricFCP: {1800, 3000},
	models.MetricLCP: {2500, 4000},
	models.MetricTBT: {200, 600},
	models.MetricCLS: {0.1, 0.25},
	models.MetricSI:  {3400, 5800},
	models.MetricTTI: {3800, 7300},
}

// ClassifyMetric buckets a metric by its numeric value. Metrics without a
// numeric value or without thresholds are unknown.
func ClassifyMetric(metric string, m models.Metric) Rating {
	th, ok := metricThresholds[metric]
	if !ok || m.Numeric == nil {
		return RatingUnknown
	}
	v := *m.Numeric
	switch {
	case v <= th.good:
		return RatingGood
	case v <= th.poor:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}
