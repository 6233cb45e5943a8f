package oidckit

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	DefaultTimeout      = 45 * time.Second
	DefaultMaxRedirects = 5
)

// HTTPOptions shapes the client used for the token and userinfo calls.
type HTTPOptions struct {
	Timeout            time.Duration
	MaxRedirects       int
	InsecureSkipVerify bool
}

// NewHTTPClient returns a pooled client with a fixed timeout and a redirect cap.
func NewHTTPClient(o HTTPOptions) *http.Client {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRedirects := o.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	tr := cleanhttp.DefaultPooledTransport()
	if o.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Clients hands out one shared client per TLS posture so connection pools
// survive across requests even though configuration is loaded per request.
type Clients struct {
	mu   sync.Mutex
	opts HTTPOptions
	m    map[bool]*http.Client
}

func NewClients(opts HTTPOptions) *Clients {
	return &Clients{opts: opts, m: make(map[bool]*http.Client, 2)}
}

// Get returns the client for the requested verification posture.
func (c *Clients) Get(insecureSkipVerify bool) *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.m[insecureSkipVerify]; ok {
		return hc
	}
	o := c.opts
	o.InsecureSkipVerify = insecureSkipVerify
	hc := NewHTTPClient(o)
	c.m[insecureSkipVerify] = hc
	return hc
}

// Set pins the client used for a posture (tests inject httptest clients here).
func (c *Clients) Set(insecureSkipVerify bool, hc *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[insecureSkipVerify] = hc
}
