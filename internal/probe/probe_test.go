package probe

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
)

func TestRulesVerdict(t *testing.T) {
	r := Rules{Markers: []string{"not found", "unavailable"}}

	tests := []struct {
		name     string
		text     string
		selector bool
		want     bool
	}{
		{"clean page", "Install Demo Reader", false, true},
		{"marker any case", "This item is UNAVAILABLE in your country", false, false},
		{"selector hit", "Install", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Verdict(tt.text, tt.selector)
			if got.Available != tt.want {
				t.Errorf("Verdict() = %+v, want available=%v", got, tt.want)
			}
			if !got.Available && got.ErrorMessage == "" {
				t.Error("unavailable verdict must carry a message")
			}
		})
	}
}

func TestInspect(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><head><style>.x{}</style></head>
<body><h1>First</h1><div id="error-box">x</div><noscript>not found</noscript></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	pg := inspect(doc, "#error-box")
	if pg.name != "First" {
		t.Errorf("name = %q, want First", pg.name)
	}
	if !pg.selectorFound {
		t.Error("selector #error-box not found")
	}
	if strings.Contains(pg.text, "not found") || strings.Contains(pg.text, ".x{}") {
		t.Errorf("text should skip noscript/style, got %q", pg.text)
	}

	if pg := inspect(doc, "section"); pg.selectorFound {
		t.Error("tag selector matched a missing element")
	}
	if pg := inspect(doc, ""); pg.selectorFound {
		t.Error("empty selector must never match")
	}
}

func TestProxyServer(t *testing.T) {
	tests := []struct {
		proxy *domain.Proxy
		want  string
	}{
		{nil, ""},
		{&domain.Proxy{Host: "1.2.3.4", Port: 8080, Type: domain.ProxyHTTP, Username: "u", Password: "p"}, "http://1.2.3.4:8080"},
		{&domain.Proxy{Host: "1.2.3.4", Port: 1080, Type: domain.ProxySOCKS5}, "socks5://1.2.3.4:1080"},
	}
	for _, tt := range tests {
		if got := proxyServer(tt.proxy); got != tt.want {
			t.Errorf("proxyServer() = %q, want %q", got, tt.want)
		}
	}
}
