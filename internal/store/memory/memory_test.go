package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/store"
)

func TestAddTargetDeduplicatesByPackage(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &domain.Target{ID: "t1", UserKey: "u1", PackageName: "com.a"}
	dup := &domain.Target{ID: "t2", UserKey: "u1", PackageName: "com.a"}
	other := &domain.Target{ID: "t3", UserKey: "u2", PackageName: "com.a"}

	for _, tc := range []struct {
		target *domain.Target
		want   bool
	}{{first, true}, {dup, false}, {other, true}} {
		created, err := s.AddTarget(ctx, tc.target)
		if err != nil {
			t.Fatalf("AddTarget(%s) error = %v", tc.target.ID, err)
		}
		if created != tc.want {
			t.Errorf("AddTarget(%s) created = %v, want %v", tc.target.ID, created, tc.want)
		}
	}

	n, _ := s.CountTargets(ctx, "u1")
	if n != 1 {
		t.Errorf("CountTargets(u1) = %d, want 1", n)
	}
}

func TestListTargetsKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, id := range []string{"c", "a", "b"} {
		if _, err := s.AddTarget(ctx, &domain.Target{ID: id, UserKey: "u", PackageName: "pkg." + id}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListTargets(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	order := ""
	for _, tg := range got {
		order += tg.ID
	}
	if order != "cab" {
		t.Errorf("ListTargets() order = %q, want cab", order)
	}

	if err := s.DeleteTarget(ctx, "u", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTarget(ctx, "other", "b"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteTarget() of a foreign target error = %v, want ErrNotFound", err)
	}
	got, _ = s.ListTargets(ctx, "u")
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("after delete ListTargets() = %v", got)
	}
}

func TestListActiveProxiesAndMarkUsed(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.AddProxy(ctx, &domain.Proxy{ID: "p1", UserKey: "u", Active: true})
	_ = s.AddProxy(ctx, &domain.Proxy{ID: "p2", UserKey: "u", Active: false})
	_ = s.AddProxy(ctx, &domain.Proxy{ID: "p3", UserKey: "u", Active: true})

	active, _ := s.ListActiveProxies(ctx, "u")
	if len(active) != 2 || active[0].ID != "p1" || active[1].ID != "p3" {
		t.Fatalf("ListActiveProxies() = %v", active)
	}

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.MarkUsed(ctx, "p3", at); err != nil {
		t.Fatal(err)
	}
	// Mutating a returned copy must not leak into the store.
	active[0].Active = false

	active, _ = s.ListActiveProxies(ctx, "u")
	if len(active) != 2 {
		t.Fatalf("store was mutated through a returned copy")
	}
	if active[1].LastUsedAt == nil || !active[1].LastUsedAt.Equal(at) {
		t.Errorf("MarkUsed() not persisted: %v", active[1].LastUsedAt)
	}

	if err := s.MarkUsed(ctx, "missing", at); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("MarkUsed(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListUsersWithActiveScheduleAt(t *testing.T) {
	ctx := context.Background()
	s := New()

	_ = s.PutSchedule(ctx, &domain.Schedule{UserKey: "a", Time: "09:30", Active: true})
	_ = s.PutSchedule(ctx, &domain.Schedule{UserKey: "b", Time: "09:30", Active: false})
	_ = s.PutSchedule(ctx, &domain.Schedule{UserKey: "c", Time: "10:00", Active: true})

	tests := []struct {
		clock string
		want  []string
	}{
		{"09:30", []string{"a"}},
		{"09:31", nil},
		{"10:00", []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			got, err := s.ListUsersWithActiveScheduleAt(ctx, tt.clock)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestLatestResults(t *testing.T) {
	ctx := context.Background()
	s := New()

	t0 := time.Now()
	_ = s.AppendResult(ctx, &domain.CheckResult{ID: "r1", TargetID: "t1", Available: false, CheckedAt: t0})
	_ = s.AppendResult(ctx, &domain.CheckResult{ID: "r2", TargetID: "t1", Available: true, CheckedAt: t0.Add(time.Minute)})

	latest, err := s.LatestResults(ctx, []string{"t1", "never"})
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 1 || latest["t1"].ID != "r2" {
		t.Errorf("LatestResults() = %v", latest)
	}
	if got := len(s.Results("t1")); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.AddProxy(ctx, &domain.Proxy{ID: "p", UserKey: "u", Active: true})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.MarkUsed(ctx, "p", time.Now())
		}()
		go func() {
			defer wg.Done()
			_, _ = s.ListActiveProxies(ctx, "u")
		}()
	}
	wg.Wait()
}
