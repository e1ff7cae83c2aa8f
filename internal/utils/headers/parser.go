package headers

import (
	"strings"
)

// ParseHeaders converts "Key: Value" strings into a map. Entries without a
// colon or with an empty key are returned separately so callers can warn.
func ParseHeaders(h []string) (map[string]string, []string) {
	m := make(map[string]string)
	var invalid []string
	for _, hdr := range h {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			invalid = append(invalid, hdr)
			continue
		}
		m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return m, invalid
}
