package notify

import (
	"errors"
	"fmt"
	"net/url"
	"path"
)

const (
	DefaultBaseURL = "https://api.airbrake.io"
)

// Endpoint identifies the project that notices are filed under.
type Endpoint struct {
	BaseURL    string
	ProjectID  string
	ProjectKey string
}

// NoticesURL returns the absolute URL notices are posted to.
func (e Endpoint) NoticesURL() (string, error) {
	if e.ProjectID == "" {
		return "", errors.New("notify: project ID is required")
	}
	if e.ProjectKey == "" {
		return "", errors.New("notify: project key is required")
	}

	base := e.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("notify: invalid base URL %q: %+v", base, err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("notify: base URL %q must use http or https", base)
	} else if u.Host == "" {
		return "", fmt.Errorf("notify: base URL %q has no host", base)
	}

	// RawPath keeps a project ID containing "/" as a single path segment.
	u.RawPath = path.Join("/", u.EscapedPath(), "api", "v3", "projects", url.PathEscape(e.ProjectID), "notices")
	u.Path = path.Join("/", u.Path, "api", "v3", "projects", e.ProjectID, "notices")
	u.RawQuery = url.Values{"key": []string{e.ProjectKey}}.Encode()

	return u.String(), nil
}
