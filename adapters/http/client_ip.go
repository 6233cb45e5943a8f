package authhttp

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/google/uuid"
)

// ClientIPFunc determines the client IP recorded in request logs.
// An empty string means unknown.
type ClientIPFunc func(r *http.Request) string

// DefaultClientIP uses the immediate peer address and ignores forwarding headers.
func DefaultClientIP() ClientIPFunc {
	return func(r *http.Request) string {
		a, ok := peerAddr(r)
		if !ok {
			return ""
		}
		return a.String()
	}
}

// ClientIPFromForwardedHeaders trusts CF-Connecting-IP and the left-most
// X-Forwarded-For entry only when the peer is one of trustedProxies.
func ClientIPFromForwardedHeaders(trustedProxies []netip.Prefix) ClientIPFunc {
	return func(r *http.Request) string {
		peer, ok := peerAddr(r)
		if !ok {
			return ""
		}
		if !trusted(peer, trustedProxies) {
			return peer.String()
		}
		if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
			if a, err := netip.ParseAddr(v); err == nil {
				return a.String()
			}
		}
		if v := r.Header.Get("X-Forwarded-For"); v != "" {
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
			if a, err := netip.ParseAddr(strings.TrimSpace(v)); err == nil {
				return a.String()
			}
		}
		return peer.String()
	}
}

func trusted(a netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func peerAddr(r *http.Request) (netip.Addr, bool) {
	if r == nil || r.RemoteAddr == "" {
		return netip.Addr{}, false
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && h != "" {
		host = h
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

const requestIDHeader = "X-Request-ID"

// requestID returns the inbound request id, or mints one and records it on r.
func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); id != "" {
		return id
	}
	id := uuid.NewString()
	r.Header.Set(requestIDHeader, id)
	return id
}
