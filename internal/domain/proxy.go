package domain

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidProxy is returned for proxy lines that cannot be parsed.
var ErrInvalidProxy = errors.New("invalid proxy")

// ProxyType is the protocol spoken by a proxy.
type ProxyType string

const (
	ProxyHTTP   ProxyType = "HTTP"
	ProxyHTTPS  ProxyType = "HTTPS"
	ProxySOCKS5 ProxyType = "SOCKS5"
)

// ParseProxyType maps a user supplied name ("http", "socks5", ...) to a ProxyType.
func ParseProxyType(s string) (ProxyType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HTTP":
		return ProxyHTTP, nil
	case "HTTPS":
		return ProxyHTTPS, nil
	case "SOCKS5", "SOCKS":
		return ProxySOCKS5, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidProxy, s)
	}
}

// Scheme returns the URL scheme for the proxy type.
func (t ProxyType) Scheme() string {
	return strings.ToLower(string(t))
}

// Proxy is a user owned egress proxy. Only Active proxies take part in
// rotation; LastUsedAt drives least-recently-used selection.
type Proxy struct {
	ID         string     `json:"id"`
	UserKey    string     `json:"user_key"`
	Host       string     `json:"host"`
	Port       int        `json:"port"`
	Username   string     `json:"username,omitempty"`
	Password   string     `json:"password,omitempty"`
	Type       ProxyType  `json:"type"`
	Active     bool       `json:"active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Addr returns host:port.
func (p *Proxy) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the proxy as scheme://[user:pass@]host:port.
func (p *Proxy) URL() *url.URL {
	u := &url.URL{Scheme: p.Type.Scheme(), Host: p.Addr()}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// String is safe for logs and chat output: credentials are masked.
func (p *Proxy) String() string {
	if p.Username != "" {
		return fmt.Sprintf("%s://%s:***@%s", p.Type.Scheme(), p.Username, p.Addr())
	}
	return fmt.Sprintf("%s://%s", p.Type.Scheme(), p.Addr())
}

// ParseProxyLine parses one of:
//
//	host:port
//	host:port:user:pass
//	scheme://[user:pass@]host:port
//
// A line with an explicit scheme keeps its own type; other lines get def.
func ParseProxyLine(line string, def ProxyType) (*Proxy, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrInvalidProxy)
	}

	p := &Proxy{Type: def, Active: true}

	if strings.Contains(line, "://") {
		u, err := url.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
		}
		t, err := ParseProxyType(u.Scheme)
		if err != nil {
			return nil, err
		}
		p.Type = t
		if u.User != nil {
			p.Username = u.User.Username()
			p.Password, _ = u.User.Password()
		}
		return withHostPort(p, u.Hostname(), u.Port(), line)
	}

	parts := strings.Split(line, ":")
	switch len(parts) {
	case 2:
		return withHostPort(p, parts[0], parts[1], line)
	case 4:
		p.Username = parts[2]
		p.Password = parts[3]
		return withHostPort(p, parts[0], parts[1], line)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, line)
	}
}

func withHostPort(p *Proxy, host, port, line string) (*Proxy, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidProxy, line)
	}
	port = strings.TrimSpace(port)
	n, err := strconv.Atoi(port)
	if err != nil || !digits(port) || n < 1 || n > 65535 {
		return nil, fmt.Errorf("%w: bad port in %q", ErrInvalidProxy, line)
	}
	p.Host = host
	p.Port = n
	return p, nil
}
