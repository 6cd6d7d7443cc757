package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPackageName(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "store listing",
			url:  "https://play.google.com/store/apps/details?id=com.example.app",
			want: "com.example.app",
		},
		{
			name: "store listing with extra params",
			url:  "https://play.google.com/store/apps/details?hl=en&id=org.demo.reader&gl=US",
			want: "org.demo.reader",
		},
		{
			name: "plain link falls back to host and path",
			url:  "https://Example.com/apps/reader/",
			want: "example.com/apps/reader",
		},
		{
			name: "host only",
			url:  "http://example.com",
			want: "example.com",
		},
		{
			name:    "unsupported scheme",
			url:     "ftp://example.com/file",
			wantErr: true,
		},
		{
			name:    "not a url",
			url:     "com.example.app",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PackageName(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("PackageName(%q) error = %v, want ErrInvalidURL", tt.url, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PackageName(%q) unexpected error: %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("PackageName(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestNewTarget(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	target, err := NewTarget("42", "  https://play.google.com/store/apps/details?id=com.a  ", now)
	if err != nil {
		t.Fatalf("NewTarget() error = %v", err)
	}
	if target.ID == "" {
		t.Error("NewTarget() should assign an ID")
	}
	if target.UserKey != "42" || target.PackageName != "com.a" {
		t.Errorf("NewTarget() = %+v", target)
	}
	if target.URL != "https://play.google.com/store/apps/details?id=com.a" {
		t.Errorf("NewTarget() should trim the url, got %q", target.URL)
	}
	if target.DisplayName() != "com.a" {
		t.Errorf("DisplayName() = %q", target.DisplayName())
	}
}
