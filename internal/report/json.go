package report

import (
	"encoding/json"
	"os"

	"github.com/law-makers/psibatch/pkg/models"
)

type jsonReport struct {
	*models.BatchRun
	Summary Summary `json:"summary"`
}

// WriteJSON writes the full run, with its summary, as indented JSON.
func WriteJSON(run *models.BatchRun, path string) error {
	content, err := json.MarshalIndent(jsonReport{BatchRun: run, Summary: Summarize(run)}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644)
}
