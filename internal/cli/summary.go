package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/law-makers/psibatch/internal/report"
	"github.com/law-makers/psibatch/internal/ui"
	"github.com/law-makers/psibatch/pkg/models"
)

// printSummary writes the end-of-run overview.
func printSummary(w io.Writer, run *models.BatchRun, outputDir string) {
	if run == nil {
		return
	}
	s := report.Summarize(run)

	fmt.Fprintf(w, "\n%s\n", ui.Bold("Summary"))
	fmt.Fprintf(w, "  %-10s %d\n", "URLs", s.Total)
	fmt.Fprintf(w, "  %-10s %s\n", "ok", ui.Success(fmt.Sprint(s.OK)))
	fmt.Fprintf(w, "  %-10s %s\n", "partial", ui.Warn(fmt.Sprint(s.Partial)))
	fmt.Fprintf(w, "  %-10s %s\n", "failed", ui.Error(fmt.Sprint(s.Failed)))

	if s.Partial+s.Failed > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.Bold("Issues"))
		reasons := make([]string, 0, len(s.Reasons))
		for r := range s.Reasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(w, "  %-22s %d\n", r, s.Reasons[r])
		}
		for _, item := range run.Items {
			if item.Status == models.StatusOK {
				continue
			}
			detail := item.Reason
			if item.Error != "" {
				detail += ": " + item.Error
			}
			fmt.Fprintf(w, "  %s %s %s\n", ui.Status(string(item.Status)), item.URL, ui.Dim(detail))
		}
	}

	if len(s.Averages) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.Bold("Average scores"))
	}
	for _, d := range models.Devices {
		avg, ok := s.Averages[d]
		if !ok {
			continue
		}
		parts := make([]string, 0, len(models.Categories))
		for _, c := range models.Categories {
			if v, ok := avg[c]; ok {
				parts = append(parts, fmt.Sprintf("%s %.1f", c, v))
			}
		}
		fmt.Fprintf(w, "  %-10s %s\n", d, strings.Join(parts, "  "))
	}

	if len(s.BelowThreshold) > 0 {
		fmt.Fprintf(w, "\n%s %d URL(s) scored under 90 in at least one category\n", ui.Warn("!"), len(s.BelowThreshold))
	}
	fmt.Fprintf(w, "\n%s %s\n", ui.Dim("Results in"), ui.Accent(outputDir))
}
