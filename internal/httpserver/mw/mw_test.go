package mw

import (
	"testing"
	"time"
)

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"watch.example.com", "watch.example.com", true},
		{"a.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"badexample.com", "*.example.com", false},
		{"other.com", "watch.example.com", false},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestLimiterRefill(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Burst: 2, RefillPerMin: 60, Now: func() time.Time { return now }})

	for i := 0; i < 2; i++ {
		if ok, _, _ := l.allow("ip", now); !ok {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	ok, _, retry := l.allow("ip", now)
	if ok || retry != 1 {
		t.Fatalf("allow() = %v, retry %d; want rejection with retry 1", ok, retry)
	}

	// Another client has its own bucket.
	if ok, _, _ := l.allow("other", now); !ok {
		t.Error("other client rejected")
	}

	if ok, _, _ := l.allow("ip", now.Add(time.Second)); !ok {
		t.Error("token not refilled after one second")
	}
}

func TestLimiterSweepsIdle(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Burst: 1, RefillPerMin: 1, IdleTTL: time.Minute, SweepInterval: time.Minute, Now: func() time.Time { return now }})

	l.allow("a", now)
	l.allow("b", now.Add(2*time.Minute))
	if _, ok := l.buckets["a"]; ok {
		t.Error("idle bucket not swept")
	}
}
