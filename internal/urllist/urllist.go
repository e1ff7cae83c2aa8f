// Package urllist reads line-oriented URL lists.
package urllist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	urlutil "github.com/law-makers/psibatch/internal/utils/url"
	"github.com/law-makers/psibatch/pkg/models"
)

// Result holds the accepted URLs and the per-line problems, both in input order.
type Result struct {
	URLs        []models.ValidatedURL
	Diagnostics []models.Diagnostic
}

// Entries splits r into raw line entries.
func Entries(r io.Reader) ([]models.UrlEntry, error) {
	var entries []models.UrlEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Text()
		if line == 1 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		value := strings.TrimSpace(raw)
		entries = append(entries, models.UrlEntry{
			Raw:       raw,
			Line:      line,
			Value:     value,
			IsBlank:   value == "",
			IsComment: strings.HasPrefix(value, "#"),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return entries, nil
}

// Validate filters entries. Blank and comment lines are skipped silently.
// Invalid lines produce an InvalidUrl diagnostic; repeats of an already
// accepted URL produce a DuplicateUrl diagnostic and the first one wins.
func Validate(entries []models.UrlEntry) Result {
	var res Result
	seen := make(map[string]int)
	for _, e := range entries {
		if e.IsBlank || e.IsComment {
			continue
		}
		normalized, err := urlutil.Normalize(e.Value)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Kind:    models.DiagInvalidURL,
				Line:    e.Line,
				Content: e.Value,
				Message: err.Error(),
			})
			continue
		}
		if first, dup := seen[normalized]; dup {
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Kind:    models.DiagDuplicateURL,
				Line:    e.Line,
				Content: e.Value,
				Message: fmt.Sprintf("duplicate of line %d", first),
			})
			continue
		}
		seen[normalized] = e.Line
		res.URLs = append(res.URLs, models.ValidatedURL{URL: normalized, Line: e.Line})
	}
	return res
}

// Load reads and validates a URL list.
func Load(r io.Reader) (Result, error) {
	entries, err := Entries(r)
	if err != nil {
		return Result{}, err
	}
	return Validate(entries), nil
}

// LoadFile reads and validates the URL list at path.
func LoadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close()
	return Load(f)
}
