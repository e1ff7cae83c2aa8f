// Package screenshot captures full-page images of the analysis report.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/psibatch/internal/engine"
	urlutil "github.com/law-makers/psibatch/internal/utils/url"
	"github.com/law-makers/psibatch/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultWidth is the capture width in CSS pixels.
const DefaultWidth = 1920

// Capturer writes one image per device class for each analyzed URL.
type Capturer struct {
	dir   string
	width int
}

// New creates a Capturer writing into a fresh timestamped directory under base.
func New(base string, width int, startedAt time.Time) *Capturer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Capturer{
		dir:   filepath.Join(base, "screenshots-"+startedAt.Format("20060102-150405")),
		width: width,
	}
}

// Dir returns the output directory.
func (c *Capturer) Dir() string { return c.dir }

// FileName returns the image name for one device and URL.
func FileName(d models.Device, index int, url string) string {
	return fmt.Sprintf("fullhd_%s_%03d_%s.png", d, index, urlutil.SafeName(url))
}

// Capture renders the report for each device class. Devices that fail are
// skipped; the returned error describes them and is never fatal.
func (c *Capturer) Capture(ctx context.Context, s engine.Session, index int, url string) ([]models.Screenshot, error) {
	shooter, ok := s.(engine.Screenshotter)
	if !ok {
		return nil, engine.NewEngineError(engine.ErrCodeCapture, "session cannot render screenshots", nil)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeCapture, "create screenshot dir", err)
	}

	var shots []models.Screenshot
	var errs []error
	for _, d := range models.Devices {
		buf, err := shooter.CaptureFullPage(ctx, d, c.width)
		if err == nil && len(buf) == 0 {
			err = errors.New("empty image")
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
			continue
		}
		path := filepath.Join(c.dir, FileName(d, index, url))
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
			continue
		}
		log.Debug().Str("url", url).Str("device", string(d)).Str("path", path).Int("bytes", len(buf)).Msg("Screenshot saved")
		shots = append(shots, models.Screenshot{Device: d, Path: path})
	}

	if len(errs) > 0 {
		return shots, engine.NewEngineError(engine.ErrCodeCapture, "screenshot capture failed", errors.Join(errs...))
	}
	return shots, nil
}
