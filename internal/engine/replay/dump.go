// Package replay re-runs extraction against payloads captured in debug mode.
package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/law-makers/psibatch/internal/engine"
	urlutil "github.com/law-makers/psibatch/internal/utils/url"
	"github.com/law-makers/psibatch/pkg/models"
)

// Globals recorded next to the payloads.
const (
	TargetGlobal   = "__PSIBATCH_TARGET__"
	FinalURLGlobal = "__PSIBATCH_FINAL_URL__"
)

// Dump is everything read from one analysis page.
type Dump struct {
	Target   string
	FinalURL string
	Payloads map[models.Device][]byte
}

// DumpName returns the file name used for the index-th URL.
func DumpName(index int, target string) string {
	return fmt.Sprintf("%03d_%s.js", index, urlutil.SafeName(target))
}

// WriteDump stores d as a script that recreates the page globals, so the
// same probe and payload scripts can be evaluated against it later.
func WriteDump(dir string, index int, d Dump) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dump dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("// psibatch debug dump\n")
	for _, kv := range []struct{ name, value string }{{TargetGlobal, d.Target}, {FinalURLGlobal, d.FinalURL}} {
		quoted, err := json.Marshal(kv.value)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&buf, "window.%s = %s;\n", kv.name, quoted)
	}
	for _, dev := range models.Devices {
		raw, ok := d.Payloads[dev]
		if !ok || len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			return "", fmt.Errorf("%s payload is not valid JSON", dev)
		}
		fmt.Fprintf(&buf, "window.%s = %s;\n", engine.GlobalFor(dev), escapeLineTerminators(raw))
	}

	path := filepath.Join(dir, DumpName(index, d.Target))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write dump: %w", err)
	}
	return path, nil
}

// JSON allows U+2028 and U+2029 inside strings; older script grammars do not.
func escapeLineTerminators(raw []byte) []byte {
	raw = bytes.ReplaceAll(raw, []byte("\u2028"), []byte(`\u2028`))
	return bytes.ReplaceAll(raw, []byte("\u2029"), []byte(`\u2029`))
}
