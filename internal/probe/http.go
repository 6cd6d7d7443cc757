package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Jigsaw-Code/outline-sdk/x/configurl"
	"golang.org/x/net/html"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/utils"
)

// maxBody caps how much of a page is read; store listings are well below it.
const maxBody = 4 << 20

type HTTPConfig struct {
	Timeout    time.Duration
	Rules      Rules
	UserAgents []string // empty => built-in desktop agents
}

// HTTPProber fetches the page with net/http. HTTP and HTTPS proxies go
// through Transport.Proxy; SOCKS5 proxies through an outline-sdk dialer.
type HTTPProber struct {
	cfg     HTTPConfig
	log     logger.Logger
	dialers *configurl.ConfigToDialer
}

func NewHTTP(cfg HTTPConfig, log logger.Logger) *HTTPProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPProber{cfg: cfg, log: log, dialers: configurl.NewDefaultConfigToDialer()}
}

func (p *HTTPProber) Probe(ctx context.Context, address string, proxy *domain.Proxy) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	transport, err := p.transport(proxy)
	if err != nil {
		return Outcome{}, err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", pickUserAgent(p.cfg.UserAgents))
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("request failed: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.log.Debug("probe got non-2xx",
			logger.String("address", address),
			logger.Int("status", resp.StatusCode))
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return Outcome{
			Available:    false,
			ErrorMessage: fmt.Sprintf("%s (HTTP %d)", UnavailableMessage, resp.StatusCode),
		}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Outcome{}, fmt.Errorf("read of page body failed: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to parse page: %w", err)
	}

	pg := inspect(doc, p.cfg.Rules.Selector)
	out := p.cfg.Rules.Verdict(pg.text, pg.selectorFound)
	out.DisplayName = pg.name
	return out, nil
}

func (p *HTTPProber) transport(proxy *domain.Proxy) (*http.Transport, error) {
	base := &http.Transport{
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   p.cfg.Timeout,
		ResponseHeaderTimeout: p.cfg.Timeout,
	}
	if proxy == nil {
		return base, nil
	}

	switch proxy.Type {
	case domain.ProxyHTTP, domain.ProxyHTTPS:
		base.Proxy = http.ProxyURL(proxy.URL())
		return base, nil

	case domain.ProxySOCKS5:
		dialer, err := p.dialers.NewStreamDialer(proxy.URL().String())
		if err != nil {
			return nil, fmt.Errorf("could not create dialer for %s: %w", proxy, err)
		}
		base.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if !strings.HasPrefix(network, "tcp") {
				return nil, fmt.Errorf("protocol not supported: %v", network)
			}
			return dialer.DialStream(ctx, addr)
		}
		return base, nil

	default:
		return nil, fmt.Errorf("unsupported proxy type %q", proxy.Type)
	}
}
