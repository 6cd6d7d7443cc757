package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/store/memory"
)

func newService(limits Limits) (*Service, *memory.Store) {
	st := memory.New()
	return New(st, limits, domain.ProxyHTTP, logger.New("error", false)), st
}

func link(pkg string) string {
	return "https://play.google.com/store/apps/details?id=" + pkg
}

func TestAddTargets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(Limits{Targets: 3})

	res, err := svc.AddTargets(ctx, "u1", []string{
		link("com.a"),
		"not a link",
		link("com.a"),
		"",
		link("com.b"),
	})
	if err != nil {
		t.Fatalf("AddTargets() error = %v", err)
	}
	if len(res.Added) != 2 {
		t.Errorf("added = %d, want 2", len(res.Added))
	}
	if len(res.Duplicates) != 1 || res.Duplicates[0] != "com.a" {
		t.Errorf("duplicates = %v, want [com.a]", res.Duplicates)
	}
	if len(res.Invalid) != 1 {
		t.Errorf("invalid = %v, want one entry", res.Invalid)
	}

	// Only one slot left: partial accept.
	res, err = svc.AddTargets(ctx, "u1", []string{link("com.c"), link("com.d"), link("com.b")})
	if err != nil {
		t.Fatalf("AddTargets() error = %v", err)
	}
	if len(res.Added) != 1 || res.Added[0].PackageName != "com.c" {
		t.Errorf("added = %v, want [com.c]", res.Added)
	}
	if len(res.OverLimit) != 1 {
		t.Errorf("over limit = %v, want [com.d]", res.OverLimit)
	}
	if len(res.Duplicates) != 1 {
		t.Errorf("duplicates = %v, want [com.b]", res.Duplicates)
	}

	// Full: nothing fits.
	_, err = svc.AddTargets(ctx, "u1", []string{link("com.e")})
	if !errors.Is(err, ErrLimitReached) {
		t.Errorf("AddTargets() on full list error = %v, want ErrLimitReached", err)
	}

	// Caps are per user.
	if _, err := svc.AddTargets(ctx, "u2", []string{link("com.e")}); err != nil {
		t.Errorf("other user AddTargets() error = %v", err)
	}
}

func TestRemoveTarget(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(Limits{})

	res, _ := svc.AddTargets(ctx, "u1", []string{link("com.a"), link("com.b"), link("com.c")})
	_ = st.AppendResult(ctx, &domain.CheckResult{ID: "r1", TargetID: res.Added[1].ID, CheckedAt: time.Now()})

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "by position", ref: "2", want: "com.b"},
		{name: "by package", ref: "COM.C", want: "com.c"},
		{name: "by id", ref: res.Added[0].ID, want: "com.a"},
		{name: "gone", ref: "com.a", wantErr: ErrNotFound},
		{name: "out of range", ref: "9", wantErr: ErrNotFound},
		{name: "empty", ref: " ", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.RemoveTarget(ctx, "u1", tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RemoveTarget(%q) error = %v, want %v", tt.ref, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RemoveTarget(%q) error = %v", tt.ref, err)
			}
			if got.PackageName != tt.want {
				t.Errorf("RemoveTarget(%q) = %s, want %s", tt.ref, got.PackageName, tt.want)
			}
		})
	}

	if hist := st.Results(res.Added[1].ID); len(hist) != 0 {
		t.Errorf("result history kept after removal: %d entries", len(hist))
	}
}

func TestRemoveTargetOtherUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(Limits{})
	res, _ := svc.AddTargets(ctx, "u1", []string{link("com.a")})

	if _, err := svc.RemoveTarget(ctx, "u2", res.Added[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveTarget() by other user error = %v, want ErrNotFound", err)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(Limits{})
	res, _ := svc.AddTargets(ctx, "u1", []string{link("com.a"), link("com.b")})

	old := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	_ = st.AppendResult(ctx, &domain.CheckResult{ID: "r1", TargetID: res.Added[0].ID, Available: false, CheckedAt: old})
	_ = st.AppendResult(ctx, &domain.CheckResult{ID: "r2", TargetID: res.Added[0].ID, Available: true, CheckedAt: old.Add(time.Hour)})

	got, err := svc.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Status() returned %d entries, want 2", len(got))
	}
	if got[0].Result == nil || got[0].Result.ID != "r2" {
		t.Errorf("latest for com.a = %+v, want r2", got[0].Result)
	}
	if got[1].Result != nil {
		t.Errorf("com.b was never checked, got %+v", got[1].Result)
	}

	empty, err := svc.Status(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Errorf("Status(nobody) = %v, %v", empty, err)
	}
}

func TestAddProxies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(Limits{Proxies: 2})

	res, err := svc.AddProxies(ctx, "u1", []string{
		"10.0.0.1:8080",
		"garbage",
		"socks5://10.0.0.2:1080",
		"10.0.0.3:8080:user:pass",
	}, domain.ProxyHTTPS)
	if err != nil {
		t.Fatalf("AddProxies() error = %v", err)
	}
	if len(res.Added) != 2 {
		t.Fatalf("added = %d, want 2", len(res.Added))
	}
	if res.Added[0].Type != domain.ProxyHTTPS {
		t.Errorf("batch type = %s, want HTTPS", res.Added[0].Type)
	}
	if res.Added[1].Type != domain.ProxySOCKS5 {
		t.Errorf("explicit scheme type = %s, want SOCKS5", res.Added[1].Type)
	}
	if len(res.Invalid) != 1 || len(res.OverLimit) != 1 {
		t.Errorf("invalid = %v, over limit = %v", res.Invalid, res.OverLimit)
	}
	for _, p := range res.Added {
		if p.ID == "" || p.UserKey != "u1" || !p.Active {
			t.Errorf("proxy not initialised: %+v", p)
		}
	}

	if _, err := svc.AddProxies(ctx, "u1", []string{"10.0.0.9:80"}, ""); !errors.Is(err, ErrLimitReached) {
		t.Errorf("AddProxies() on full list error = %v, want ErrLimitReached", err)
	}
}

func TestAddProxiesDefaultType(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := New(st, Limits{}, domain.ProxySOCKS5, logger.New("error", false))

	res, err := svc.AddProxies(ctx, "u1", []string{"10.0.0.1:1080"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Added[0].Type != domain.ProxySOCKS5 {
		t.Errorf("type = %s, want SOCKS5", res.Added[0].Type)
	}
}

func TestProxyLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(Limits{})
	_, _ = svc.AddProxies(ctx, "u1", []string{"10.0.0.1:8080", "10.0.0.2:8080"}, "")

	p, err := svc.DeactivateProxy(ctx, "u1", "1")
	if err != nil {
		t.Fatalf("DeactivateProxy() error = %v", err)
	}
	if p.Active {
		t.Error("DeactivateProxy() returned an active proxy")
	}
	active, _ := st.ListActiveProxies(ctx, "u1")
	if len(active) != 1 || active[0].Host != "10.0.0.2" {
		t.Errorf("active proxies = %v, want only 10.0.0.2", active)
	}

	// Deactivated proxies stay listed.
	all, _ := svc.ListProxies(ctx, "u1")
	if len(all) != 2 {
		t.Errorf("ListProxies() = %d entries, want 2", len(all))
	}

	if _, err := svc.ActivateProxy(ctx, "u1", "10.0.0.1:8080"); err != nil {
		t.Errorf("ActivateProxy() by address error = %v", err)
	}

	if _, err := svc.DeleteProxy(ctx, "u1", "2"); err != nil {
		t.Fatalf("DeleteProxy() error = %v", err)
	}
	all, _ = svc.ListProxies(ctx, "u1")
	if len(all) != 1 {
		t.Errorf("ListProxies() after delete = %d entries, want 1", len(all))
	}

	if _, err := svc.DeleteProxy(ctx, "u1", "5"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteProxy(5) error = %v, want ErrNotFound", err)
	}
}

func TestSchedules(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(Limits{Schedules: 2})

	sc, err := svc.AddSchedule(ctx, "u1", "9:30")
	if err != nil {
		t.Fatalf("AddSchedule() error = %v", err)
	}
	if sc.Time != "09:30" || !sc.Active {
		t.Errorf("AddSchedule() = %+v", sc)
	}

	// Same time again: no second entry.
	if _, err := svc.AddSchedule(ctx, "u1", "09:30"); err != nil {
		t.Fatalf("AddSchedule() duplicate error = %v", err)
	}
	list, _ := svc.ListSchedules(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("schedules = %d, want 1", len(list))
	}

	if _, err := svc.AddSchedule(ctx, "u1", "25:00"); !errors.Is(err, domain.ErrInvalidTime) {
		t.Errorf("AddSchedule(25:00) error = %v, want ErrInvalidTime", err)
	}

	if _, err := svc.AddSchedule(ctx, "u1", "18:00"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddSchedule(ctx, "u1", "20:00"); !errors.Is(err, ErrLimitReached) {
		t.Errorf("third AddSchedule() error = %v, want ErrLimitReached", err)
	}

	// An inactive entry is reactivated rather than counted again.
	list[0].Active = false
	_ = st.PutSchedule(ctx, list[0])
	sc, err = svc.AddSchedule(ctx, "u1", "09:30")
	if err != nil {
		t.Fatalf("reactivate error = %v", err)
	}
	if !sc.Active {
		t.Error("schedule not reactivated")
	}
	due, _ := st.ListUsersWithActiveScheduleAt(ctx, "09:30")
	if len(due) != 1 {
		t.Errorf("due at 09:30 = %v, want [u1]", due)
	}

	if err := svc.RemoveSchedule(ctx, "u1", "9:30"); err != nil {
		t.Fatalf("RemoveSchedule() error = %v", err)
	}
	if err := svc.RemoveSchedule(ctx, "u1", "9:30"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveSchedule() error = %v, want ErrNotFound", err)
	}
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(Limits{})

	if _, err := svc.EnsureUser(ctx, "", domain.Profile{}); err == nil {
		t.Error("EnsureUser(\"\") should fail")
	}
	u, err := svc.EnsureUser(ctx, "42", domain.Profile{Username: "ann"})
	if err != nil {
		t.Fatal(err)
	}
	u, _ = svc.EnsureUser(ctx, "42", domain.Profile{FirstName: "Ann"})
	if u.Username != "ann" || u.FirstName != "Ann" {
		t.Errorf("profile = %+v", u)
	}
}

func TestResolve(t *testing.T) {
	items := []string{"a", "b", "c"}
	keys := func(s string) []string { return []string{s} }

	for ref, want := range map[string]string{"1": "a", "3": "c", "B": "b", "0": "", "4": "", "x": ""} {
		if got := resolve(items, ref, keys); got != want {
			t.Errorf("resolve(%q) = %q, want %q", ref, got, want)
		}
	}
}
