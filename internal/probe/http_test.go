package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
)

var testRules = Rules{
	Markers:  []string{"not found", "not be found", "unavailable"},
	Selector: ".error-section",
}

const availablePage = `<html><head><title>Reader - Apps</title>
<script>var s = "not found";</script></head>
<body><h1>Store</h1><h1 itemprop="name"><span>Demo Reader</span></h1><p>Install</p></body></html>`

const markerPage = `<html><body><h1>Oops</h1><div>We're sorry, the requested URL was not found on this server.</div></body></html>`

const selectorPage = `<html><body><div class="box error-section">Gone</div></body></html>`

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("probe sent no User-Agent")
		}
		switch r.URL.Query().Get("id") {
		case "ok":
			fmt.Fprint(w, availablePage)
		case "marker":
			fmt.Fprint(w, markerPage)
		case "selector":
			fmt.Fprint(w, selectorPage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name      string
		id        string
		available bool
		wantName  string
		wantMsg   string
	}{
		{name: "available", id: "ok", available: true, wantName: "Demo Reader"},
		{name: "marker in text", id: "marker", available: false, wantName: "Oops", wantMsg: UnavailableMessage},
		{name: "selector present", id: "selector", available: false, wantMsg: UnavailableMessage},
		{name: "http 404", id: "gone", available: false, wantMsg: "HTTP 404"},
	}

	p := NewHTTP(HTTPConfig{Timeout: 5 * time.Second, Rules: testRules}, logger.NewNop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Probe(context.Background(), srv.URL+"/store/apps/details?id="+tt.id, nil)
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if out.Available != tt.available {
				t.Errorf("Available = %v, want %v", out.Available, tt.available)
			}
			if out.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q, want %q", out.DisplayName, tt.wantName)
			}
			if !strings.Contains(out.ErrorMessage, tt.wantMsg) {
				t.Errorf("ErrorMessage = %q, want it to contain %q", out.ErrorMessage, tt.wantMsg)
			}
		})
	}
}

func TestHTTPProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTP(HTTPConfig{Timeout: 50 * time.Millisecond, Rules: testRules}, logger.NewNop())

	start := time.Now()
	_, err := p.Probe(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("Probe() should fail on timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Probe() took %v, timeout not enforced", elapsed)
	}
}

func TestHTTPProbeThroughHTTPProxy(t *testing.T) {
	var hits atomic.Int32
	// A forward proxy receives absolute-form request URIs.
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Host != "apps.invalid" {
			t.Errorf("proxy got host %q", r.URL.Host)
		}
		fmt.Fprint(w, availablePage)
	}))
	defer proxySrv.Close()

	u, _ := url.Parse(proxySrv.URL)
	port, _ := strconv.Atoi(u.Port())
	proxy := &domain.Proxy{Host: u.Hostname(), Port: port, Type: domain.ProxyHTTP}

	p := NewHTTP(HTTPConfig{Timeout: 5 * time.Second, Rules: testRules}, logger.NewNop())
	out, err := p.Probe(context.Background(), "http://apps.invalid/details?id=x", proxy)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !out.Available || hits.Load() != 1 {
		t.Errorf("Probe() = %+v with %d proxy hits", out, hits.Load())
	}
}

func TestTransportRejectsUnknownType(t *testing.T) {
	p := NewHTTP(HTTPConfig{}, logger.NewNop())
	if _, err := p.transport(&domain.Proxy{Host: "h", Port: 1, Type: "FTP"}); err == nil {
		t.Error("transport() should reject unknown proxy types")
	}
	tr, err := p.transport(&domain.Proxy{Host: "127.0.0.1", Port: 1080, Type: domain.ProxySOCKS5})
	if err != nil || tr.DialContext == nil {
		t.Errorf("transport(socks5) = %v, %v; want custom dialer", tr, err)
	}
}
