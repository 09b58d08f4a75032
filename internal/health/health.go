package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/AppsFlyer/go-sundheit/checks"
	healthhttp "github.com/AppsFlyer/go-sundheit/http"
)

const dialTimeout = 2 * time.Second

// Checker backs /healthz. The only check is a TCP dial to the peer, so the
// peer never sees extra HTTP requests from it.
//
// /healthz answers 503 while the peer is down. Use it as a readiness check
// only: as a liveness check it would restart a relay that is working as
// intended by answering 500.
type Checker struct {
	h gosundheit.Health
}

// New registers the peer check, run every interval. A non-positive interval
// leaves the checker without checks, which always reports healthy.
func New(peerURL string, interval time.Duration) (*Checker, error) {
	h := gosundheit.New()
	c := &Checker{h: h}
	if interval <= 0 {
		return c, nil
	}

	addr, err := dialAddr(peerURL)
	if err != nil {
		return nil, err
	}
	err = h.RegisterCheck(
		&checks.CustomCheck{
			CheckName: "peer_reachable",
			CheckFunc: func(ctx context.Context) (interface{}, error) {
				d := net.Dialer{Timeout: dialTimeout}
				conn, err := d.DialContext(ctx, "tcp", addr)
				if err != nil {
					return addr, fmt.Errorf("dial %s: %w", addr, err)
				}
				_ = conn.Close()
				return addr, nil
			},
		},
		gosundheit.ExecutionPeriod(interval),
		gosundheit.ExecutionTimeout(dialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("register peer check: %w", err)
	}
	return c, nil
}

func dialAddr(peerURL string) (string, error) {
	u, err := url.Parse(peerURL)
	if err != nil {
		return "", fmt.Errorf("parse peer url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("peer url %q has no host", peerURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Handler renders the check results as JSON; 503 when unhealthy. Mount it
// for readiness, not liveness.
func (c *Checker) Handler() http.Handler {
	return healthhttp.HandleHealthJSON(c.h)
}

// Close stops the background checks.
func (c *Checker) Close() {
	c.h.DeregisterAll()
}
