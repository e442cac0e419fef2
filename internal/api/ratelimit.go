package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog"

	"shokucho.jp/portal/internal/apperr"
	"shokucho.jp/portal/internal/ratelimit"
)

// ClientIPResolver finds the address a request came from. Forwarding headers
// are only honoured when the direct peer is a trusted proxy.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver accepts proxy addresses as bare IPs or CIDR ranges.
// With no entries, every request is keyed on its RemoteAddr.
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			res.trusted = append(res.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", raw)
		}
		addr = addr.Unmap()
		res.trusted = append(res.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return res, nil
}

func (c *ClientIPResolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address, or, behind a trusted proxy, the nearest
// untrusted hop of X-Forwarded-For (then X-Real-IP).
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := remoteIP(r.RemoteAddr)
	if !c.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !c.isTrusted(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}

// RateLimitMiddleware rejects requests from a client IP that exceeded its
// budget with 429 Too Many Requests.
func RateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter, clientIPs *ClientIPResolver, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIPs.ClientIP(r)

			if !limiter.Allow(key) {
				logger.Warn().Str("ip", key).Str("path", r.URL.Path).Msg("rate limit exceeded")
				writeError(w, apperr.New(apperr.CodeTooManyRequests, "too many requests, please try again later"), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
