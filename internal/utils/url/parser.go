package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ValidateURL performs comprehensive URL validation
func ValidateURL(urlStr string) error {
	_, err := parse(urlStr)
	return err
}

func parse(urlStr string) (*url.URL, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		if parsed.Scheme == "" {
			return nil, fmt.Errorf("invalid URL: not an absolute http(s) URL")
		}
		return nil, fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}

	return parsed, nil
}

// Normalize validates urlStr and returns it with a lower-cased scheme and
// host and without a fragment.
func Normalize(urlStr string) (string, error) {
	parsed, err := parse(strings.TrimSpace(urlStr))
	if err != nil {
		return "", err
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String(), nil
}

// StripQuery drops the query and fragment from urlStr.
func StripQuery(urlStr string) string {
	if i := strings.IndexAny(urlStr, "?#"); i >= 0 {
		return urlStr[:i]
	}
	return urlStr
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

const maxSafeNameLen = 100

// SafeName derives a filesystem-safe name from the host and path of urlStr.
func SafeName(urlStr string) string {
	host, path := urlStr, ""
	if parsed, err := url.Parse(urlStr); err == nil && parsed.Host != "" {
		host, path = parsed.Host, parsed.Path
	}
	name := unsafeChars.ReplaceAllString(host+path, "_")
	name = strings.Trim(name, "_.")
	if len(name) > maxSafeNameLen {
		name = strings.TrimRight(name[:maxSafeNameLen], "_.")
	}
	if name == "" {
		return "url"
	}
	return name
}
