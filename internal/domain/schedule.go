package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime is returned for schedule times outside 00:00..23:59.
var ErrInvalidTime = errors.New("invalid schedule time")

// TimeLayout is the wall-clock format used for schedules and ticks.
const TimeLayout = "15:04"

// Schedule triggers a run for its owner every day at Time.
// At most one Schedule exists per (UserKey, Time).
type Schedule struct {
	ID        string    `json:"id"`
	UserKey   string    `json:"user_key"`
	Time      string    `json:"time"` // "HH:MM", 24h
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeTime accepts "H:MM" or "HH:MM" and returns the canonical
// zero-padded "HH:MM" form.
func NormalizeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// digits reports whether s is made of ASCII digits only. strconv.Atoi
// alone would let "+9" or "-0" through.
func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ClockTime formats t as "HH:MM" with seconds truncated.
func ClockTime(t time.Time) string {
	return t.Format(TimeLayout)
}
