package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/store"
)

// newTestStore runs against an in-process miniredis. Setting
// PLAYWATCH_TEST_REDIS_ADDR points the same tests at a real server (DB 15,
// flushed first).
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	addr := os.Getenv("PLAYWATCH_TEST_REDIS_ADDR")
	db := 15
	if addr == "" {
		addr, db = miniredis.RunT(t).Addr(), 0
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis unreachable at %s: %v", addr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return NewStore(client)
}

func TestRedisTargets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &domain.Target{ID: "t1", UserKey: "u", PackageName: "com.a", URL: "https://x/?id=com.a"}
	b := &domain.Target{ID: "t2", UserKey: "u", PackageName: "com.b", URL: "https://x/?id=com.b"}
	dup := &domain.Target{ID: "t3", UserKey: "u", PackageName: "com.a"}

	for _, tg := range []*domain.Target{a, b} {
		if created, err := s.AddTarget(ctx, tg); err != nil || !created {
			t.Fatalf("AddTarget(%s) = %v, %v", tg.ID, created, err)
		}
	}
	if created, err := s.AddTarget(ctx, dup); err != nil || created {
		t.Fatalf("duplicate AddTarget() = %v, %v; want false, nil", created, err)
	}

	got, err := s.ListTargets(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Fatalf("ListTargets() = %v", got)
	}

	if err := s.DeleteTarget(ctx, "u", "t1"); err != nil {
		t.Fatal(err)
	}
	// The package is free again after deletion.
	if created, _ := s.AddTarget(ctx, dup); !created {
		t.Error("AddTarget() after delete should succeed")
	}
}

func TestRedisProxiesAndSchedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.AddProxy(ctx, &domain.Proxy{ID: "p1", UserKey: "u", Host: "1.1.1.1", Port: 80, Type: domain.ProxyHTTP, Active: true})
	_ = s.AddProxy(ctx, &domain.Proxy{ID: "p2", UserKey: "u", Host: "2.2.2.2", Port: 80, Type: domain.ProxyHTTP, Active: true})

	if err := s.SetProxyActive(ctx, "u", "p1", false); err != nil {
		t.Fatal(err)
	}
	active, _ := s.ListActiveProxies(ctx, "u")
	if len(active) != 1 || active[0].ID != "p2" {
		t.Fatalf("ListActiveProxies() = %v", active)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.MarkUsed(ctx, "p2", at); err != nil {
		t.Fatal(err)
	}
	active, _ = s.ListActiveProxies(ctx, "u")
	if active[0].LastUsedAt == nil || !active[0].LastUsedAt.Equal(at) {
		t.Errorf("LastUsedAt = %v, want %v", active[0].LastUsedAt, at)
	}

	_ = s.PutSchedule(ctx, &domain.Schedule{UserKey: "u", Time: "09:30", Active: true})
	due, _ := s.ListUsersWithActiveScheduleAt(ctx, "09:30")
	if len(due) != 1 || due[0] != "u" {
		t.Fatalf("due = %v", due)
	}
	_ = s.PutSchedule(ctx, &domain.Schedule{UserKey: "u", Time: "09:30", Active: false})
	due, _ = s.ListUsersWithActiveScheduleAt(ctx, "09:30")
	if len(due) != 0 {
		t.Errorf("inactive schedule still due: %v", due)
	}
	if err := s.DeleteSchedule(ctx, "u", "10:00"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteSchedule(missing) error = %v", err)
	}
}

func TestRedisLatestResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.AppendResult(ctx, &domain.CheckResult{ID: "r1", TargetID: "t1"})
	_ = s.AppendResult(ctx, &domain.CheckResult{ID: "r2", TargetID: "t1", Available: true})

	latest, err := s.LatestResults(ctx, []string{"t1", "t2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 1 || latest["t1"].ID != "r2" {
		t.Errorf("LatestResults() = %v", latest)
	}
}

func TestRedisEnsureUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return first }
	u, err := s.EnsureUser(ctx, "42", domain.Profile{Username: "ada", FirstName: "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Key != "42" || u.Username != "ada" || !u.CreatedAt.Equal(first) {
		t.Fatalf("EnsureUser() = %+v", u)
	}

	later := first.Add(time.Hour)
	s.now = func() time.Time { return later }
	if _, err := s.EnsureUser(ctx, "42", domain.Profile{LastName: "Lovelace"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetUser(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "ada" || got.LastName != "Lovelace" || !got.CreatedAt.Equal(first) || !got.UpdatedAt.Equal(later) {
		t.Errorf("GetUser() = %+v", got)
	}

	if _, err := s.GetUser(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRedisDueSetFollowsSchedules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, u := range []string{"b", "a"} {
		if err := s.PutSchedule(ctx, &domain.Schedule{UserKey: u, Time: "07:00", Active: true}); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.PutSchedule(ctx, &domain.Schedule{UserKey: "a", Time: "08:15", Active: true})

	due, err := s.ListUsersWithActiveScheduleAt(ctx, "07:00")
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 || due[0] != "a" || due[1] != "b" {
		t.Fatalf("due at 07:00 = %v, want [a b]", due)
	}

	if err := s.DeleteSchedule(ctx, "b", "07:00"); err != nil {
		t.Fatal(err)
	}
	due, _ = s.ListUsersWithActiveScheduleAt(ctx, "07:00")
	if len(due) != 1 || due[0] != "a" {
		t.Errorf("due after delete = %v, want [a]", due)
	}

	list, _ := s.ListSchedules(ctx, "a")
	if len(list) != 2 || list[0].Time != "07:00" || list[1].Time != "08:15" {
		t.Errorf("ListSchedules(a) = %v", list)
	}
}
