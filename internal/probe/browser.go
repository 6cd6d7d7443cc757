package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
)

type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome on first use.
	RemoteURL  string
	Timeout    time.Duration
	Rules      Rules
	UserAgents []string
}

// BrowserProber renders the page in Chrome with stealth patches applied.
// Every probe gets its own browser context, so a proxy only applies to
// the probe that asked for it.
type BrowserProber struct {
	cfg BrowserConfig
	log logger.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher

	// authMu serialises probes through credentialed proxies: Chrome answers
	// proxy auth challenges at browser level, not per context.
	authMu sync.Mutex
}

func NewBrowser(cfg BrowserConfig, log logger.Logger) *BrowserProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &BrowserProber{cfg: cfg, log: log}
}

func (b *BrowserProber) Probe(ctx context.Context, address string, proxy *domain.Proxy) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	browser, err := b.connect()
	if err != nil {
		return Outcome{}, err
	}
	browser = browser.Context(ctx)

	bctx, err := proto.TargetCreateBrowserContext{
		DisposeOnDetach: true,
		ProxyServer:     proxyServer(proxy),
	}.Call(browser)
	if err != nil {
		return Outcome{}, fmt.Errorf("browser: create context: %w", err)
	}
	defer func() {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: bctx.BrowserContextID}.Call(browser)
	}()

	if proxy != nil && proxy.Username != "" {
		b.authMu.Lock()
		defer b.authMu.Unlock()
		wait := browser.HandleAuth(proxy.Username, proxy.Password)
		go func() { _ = wait() }()
	}

	page, err := browser.Page(proto.TargetCreateTarget{BrowserContextID: bctx.BrowserContextID})
	if err != nil {
		return Outcome{}, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		return Outcome{}, fmt.Errorf("browser: stealth: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      pickUserAgent(b.cfg.UserAgents),
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		b.log.Warn("browser: set user agent failed", logger.Error(err))
	}

	if err := page.Navigate(address); err != nil {
		return Outcome{}, fmt.Errorf("browser: navigate %s: %w", address, err)
	}
	if err := page.WaitLoad(); err != nil {
		b.log.Warn("browser: wait load timeout", logger.String("address", address), logger.Error(err))
	}

	text, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return Outcome{}, fmt.Errorf("browser: read page: %w", err)
	}

	found := false
	if sel := b.cfg.Rules.Selector; sel != "" {
		found, _, err = page.Has(sel)
		if err != nil {
			return Outcome{}, fmt.Errorf("browser: query %q: %w", sel, err)
		}
	}

	out := b.cfg.Rules.Verdict(text.Value.Str(), found)
	out.DisplayName = appName(page)
	return out, nil
}

// appName mirrors the HTTP prober: h1[itemprop=name], else the first h1.
func appName(page *rod.Page) string {
	for _, sel := range []string{`h1[itemprop="name"]`, "h1"} {
		ok, el, err := page.Has(sel)
		if err != nil || !ok {
			continue
		}
		if t, err := el.Text(); err == nil && t != "" {
			return t
		}
	}
	return ""
}

// connect returns the shared browser, launching or dialing it once.
func (b *BrowserProber) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.log.Info("browser: launched local chrome", logger.String("url", wsURL))
	} else {
		b.log.Info("browser: connecting to remote", logger.String("url", wsURL))
	}

	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		if b.lnch != nil {
			b.lnch.Cleanup()
			b.lnch = nil
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	b.browser = browser
	return browser, nil
}

// Close shuts down the browser and any Chrome process we launched.
func (b *BrowserProber) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return err
}

// proxyServer renders a proxy for Chrome's --proxy-server syntax. Chrome
// takes credentials out of band, so they are left out here.
func proxyServer(p *domain.Proxy) string {
	if p == nil {
		return ""
	}
	return p.Type.Scheme() + "://" + p.Addr()
}
