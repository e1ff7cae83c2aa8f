package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/law-makers/psibatch/pkg/models"
)

// Session is one analysis page bound to a single target URL.
type Session interface {
	// Target returns the URL under analysis.
	Target() string

	// Probe reports which payloads the page currently publishes.
	Probe(ctx context.Context) (models.Availability, error)

	// ReadPayload returns a snapshot of the payload for d, or ErrNoPayload.
	ReadPayload(ctx context.Context, d models.Device) ([]byte, error)

	// FinalURL returns the page URL with its query removed.
	FinalURL(ctx context.Context) (string, error)

	Close() error
}

// Opener starts sessions.
type Opener interface {
	Open(ctx context.Context, target string) (Session, error)
}

// Screenshotter is implemented by sessions able to render the report page.
type Screenshotter interface {
	CaptureFullPage(ctx context.Context, d models.Device, width int) ([]byte, error)
}

// Window globals the analysis page assigns once a report is ready.
const (
	MobileGlobal  = "__LIGHTHOUSE_MOBILE_JSON__"
	DesktopGlobal = "__LIGHTHOUSE_DESKTOP_JSON__"
)

// ProbeScript evaluates to a JSON string of the form {"mobile":bool,"desktop":bool}.
const ProbeScript = `JSON.stringify({mobile: !!window.` + MobileGlobal + `, desktop: !!window.` + DesktopGlobal + `})`

// GlobalFor returns the window global holding the payload for d.
func GlobalFor(d models.Device) string {
	if d == models.DeviceDesktop {
		return DesktopGlobal
	}
	return MobileGlobal
}

// PayloadScript evaluates to the serialized payload for d, or "" when absent.
// Serializing in-page yields a consistent snapshot in one round trip.
func PayloadScript(d models.Device) string {
	return fmt.Sprintf(`(function(){var v = window.%s; return v ? JSON.stringify(v) : "";})()`, GlobalFor(d))
}

type probeResult struct {
	Mobile  bool `json:"mobile"`
	Desktop bool `json:"desktop"`
}

// DecodeProbe parses the result of ProbeScript.
func DecodeProbe(s string) (models.Availability, error) {
	var pr probeResult
	if err := json.Unmarshal([]byte(s), &pr); err != nil {
		return models.AvailNone, fmt.Errorf("decode probe result: %w", err)
	}
	return models.AvailabilityOf(pr.Mobile, pr.Desktop), nil
}
