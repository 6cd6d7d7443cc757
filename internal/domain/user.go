package domain

import "time"

// User is the owner of targets, proxies and schedules.
//
// A User is identified by Key, the opaque identity handed to us by the
// messaging side (a Telegram chat id, for example). Key is also the
// address used when notifying the user.
type User struct {
	Key       string    `json:"key"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile holds the mutable profile fields refreshed on each interaction.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// Apply copies non-empty profile fields onto the user.
func (u *User) Apply(p Profile, now time.Time) {
	if p.Username != "" {
		u.Username = p.Username
	}
	if p.FirstName != "" {
		u.FirstName = p.FirstName
	}
	if p.LastName != "" {
		u.LastName = p.LastName
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}
