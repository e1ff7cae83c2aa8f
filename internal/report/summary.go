package report

import "github.com/law-makers/psibatch/pkg/models"

// Summary aggregates a run.
type Summary struct {
	Total   int            `json:"total"`
	OK      int            `json:"ok"`
	Partial int            `json:"partial"`
	Failed  int            `json:"failed"`
	Reasons map[string]int `json:"reasons,omitempty"`

	// Averages holds the mean score per device and category over the items
	// that reported it.
	Averages map[models.Device]map[string]float64 `json:"averages,omitempty"`

	// BelowThreshold lists URLs with any category score under 90.
	BelowThreshold []string `json:"below_threshold,omitempty"`
}

// Summarize computes counts and averages for run.
func Summarize(run *models.BatchRun) Summary {
	s := Summary{
		Total:    len(run.Items),
		OK:       run.Count(models.StatusOK),
		Partial:  run.Count(models.StatusPartial),
		Failed:   run.Count(models.StatusFailed),
		Reasons:  map[string]int{},
		Averages: map[models.Device]map[string]float64{},
	}

	type acc struct {
		sum   int
		count int
	}
	sums := map[models.Device]map[string]*acc{}
	for _, item := range run.Items {
		if item.Status == models.StatusFailed {
			s.Reasons[item.Reason]++
		}
		below := false
		for _, d := range models.Devices {
			dr := item.Result.Device(d)
			if dr == nil {
				continue
			}
			if sums[d] == nil {
				sums[d] = map[string]*acc{}
			}
			for c, v := range dr.Scores {
				a := sums[d][c]
				if a == nil {
					a = &acc{}
					sums[d][c] = a
				}
				a.sum += v
				a.count++
				if v < 90 {
					below = true
				}
			}
		}
		if below {
			s.BelowThreshold = append(s.BelowThreshold, item.URL)
		}
	}

	for d, cats := range sums {
		s.Averages[d] = map[string]float64{}
		for c, a := range cats {
			s.Averages[d][c] = float64(a.sum) / float64(a.count)
		}
	}
	if len(s.Reasons) == 0 {
		s.Reasons = nil
	}
	return s
}
