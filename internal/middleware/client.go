package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}
type countryKey struct{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// ClientInfo stores the client address and its best-effort country in the
// request context for audit entries.
func ClientInfo(lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteHost(r)
			ctx := context.WithValue(r.Context(), clientIPKey{}, ip)
			if country := ResolveCountry(r, ip, lookup); country != "" {
				ctx = context.WithValue(ctx, countryKey{}, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFromContext returns the address stored by ClientInfo.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// CountryFromContext returns the ISO country code stored by ClientInfo.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryKey{}).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry prefers edge proxy hints and falls back to the lookup.
func ResolveCountry(r *http.Request, ip string, lookup CountryLookup) string {
	for _, key := range []string{"CF-IPCountry", "X-Country-Code", "X-Appengine-Country"} {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" && !strings.EqualFold(val, "XX") {
			return strings.ToUpper(val)
		}
	}
	if lookup == nil || ip == "" {
		return ""
	}
	if country, err := lookup(ip); err == nil && country != "" {
		return strings.ToUpper(country)
	}
	return ""
}

// ClientIP returns the best-effort client address of r.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ip := ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return remoteHost(r)
}

// remoteHost is the host part of r.RemoteAddr. Forwarding headers are only
// honoured through chimw.RealIP, which runs first and rewrites RemoteAddr.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
