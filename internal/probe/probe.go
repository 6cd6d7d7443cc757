// Package probe performs a single availability check of one app link.
//
// Two implementations share the same verdict rules: HTTPProber fetches
// the page and inspects the static HTML, BrowserProber renders it in
// headless Chrome. Which markup means "unavailable" is configuration,
// not code, because store pages change their wording over time.
package probe

import (
	"context"
	"math/rand"
	"strings"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
)

// Outcome is the result of one probe.
type Outcome struct {
	Available    bool
	ErrorMessage string
	// DisplayName is the human-readable app name found on the page, if any.
	DisplayName string
}

// Prober checks address, optionally through proxy. A returned error is a
// probe failure (network, timeout, navigation); the caller records it as
// unavailable. Implementations bound their own execution time.
type Prober interface {
	Probe(ctx context.Context, address string, proxy *domain.Proxy) (Outcome, error)
}

// Func adapts a function to Prober.
type Func func(ctx context.Context, address string, proxy *domain.Proxy) (Outcome, error)

func (f Func) Probe(ctx context.Context, address string, proxy *domain.Proxy) (Outcome, error) {
	return f(ctx, address, proxy)
}

// UnavailableMessage is reported when the page itself says the app is gone.
const UnavailableMessage = "App is temporarily unavailable"

// Rules decide whether a loaded page is an "unavailable" page.
type Rules struct {
	// Markers are lower-case phrases; any one found in the visible text
	// marks the page unavailable.
	Markers []string
	// Selector names an element whose presence marks the page unavailable.
	// The browser prober takes any CSS selector; the HTTP prober accepts
	// "#id", ".class" or a bare tag name.
	Selector string
}

// Verdict applies the rules to the visible text of a page.
func (r Rules) Verdict(text string, selectorFound bool) Outcome {
	if selectorFound || r.hasMarker(text) {
		return Outcome{Available: false, ErrorMessage: UnavailableMessage}
	}
	return Outcome{Available: true}
}

func (r Rules) hasMarker(text string) bool {
	text = strings.ToLower(text)
	for _, m := range r.Markers {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

func pickUserAgent(agents []string) string {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return agents[rand.Intn(len(agents))]
}
