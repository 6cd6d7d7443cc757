package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidURL is returned when a target address cannot be resolved to
// a package name.
var ErrInvalidURL = errors.New("invalid app link")

// Target is a checkable application link registered by a user.
//
// (UserKey, PackageName) is unique: adding the same package twice is a
// no-op in every store implementation.
type Target struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	ID      string `json:"id"`
	UserKey string `json:"user_key"`

	// URL is the address handed to the prober.
	URL string `json:"url"`

	// PackageName is derived from URL (the "id" query parameter of a store
	// listing) and used for de-duplication and display.
	PackageName string `json:"package_name"`

	// ─────────────────────────────
	// Observation
	// ─────────────────────────────

	// AppName is filled from the first successful probe when empty.
	AppName string `json:"app_name,omitempty"`

	// LastActive mirrors the latest probe outcome. nil until checked.
	LastActive *bool `json:"last_active,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the package name, falling back to the URL.
func (t *Target) DisplayName() string {
	if t.PackageName != "" {
		return t.PackageName
	}
	return t.URL
}

// NewTarget validates rawURL and builds a Target owned by userKey.
func NewTarget(userKey, rawURL string, now time.Time) (*Target, error) {
	rawURL = strings.TrimSpace(rawURL)
	pkg, err := PackageName(rawURL)
	if err != nil {
		return nil, err
	}
	return &Target{
		ID:          NewID(),
		UserKey:     userKey,
		URL:         rawURL,
		PackageName: pkg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// PackageName derives the stable identifier of an app link.
//
// Store listings carry the package in the "id" query parameter
// (https://play.google.com/store/apps/details?id=com.example.app). Other
// links fall back to host + path so they still de-duplicate sensibly.
func PackageName(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if id := strings.TrimSpace(u.Query().Get("id")); id != "" {
		return id, nil
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return strings.ToLower(u.Hostname()), nil
	}
	return strings.ToLower(u.Hostname()) + "/" + path, nil
}
