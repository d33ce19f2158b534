package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

const (
	sessionCookieName = "admin_session"
	csrfCookieName    = "csrf_token"
)

func (a *API) writeSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(a.sessions.TTL() / time.Second),
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// writeCSRFCookie sets the CSRF cookie. It is intentionally NOT HttpOnly
// so the browser-side page can read it and echo the token in the login
// body.
func (a *API) writeCSRFCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   a.cookieSecure(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(a.csrf.TTL() / time.Second),
	})
}

func (a *API) clearCSRFCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: false,
		Secure:   a.cookieSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func (a *API) cookieSecure(r *http.Request) bool {
	return a.production || requestIsSecure(r)
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

// extractClientIP returns the client address used for rate limiting and
// session binding. Proxy headers are honored only when the direct peer
// falls inside a configured trusted range; otherwise RemoteAddr wins, so
// an attacker connecting directly cannot spoof their address.
//
// Priority when the peer is trusted:
// 1. First valid entry in X-Forwarded-For
// 2. First valid "for=" value in Forwarded
// 3. X-Real-IP
// 4. RemoteAddr
func (a *API) extractClientIP(r *http.Request) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := false
	if len(a.trustedProxies) > 0 && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range a.trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}

		if fwd := strings.TrimSpace(r.Header.Get("Forwarded")); fwd != "" {
			for _, elem := range strings.Split(fwd, ",") {
				for _, param := range strings.Split(elem, ";") {
					param = strings.TrimSpace(param)
					if !strings.HasPrefix(strings.ToLower(param), "for=") {
						continue
					}
					if ip, ok := parseIPCandidate(param[4:]); ok {
						return ip
					}
				}
			}
		}

		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	return remoteIP
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	if s == "" {
		return "", false
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	// Drop zone if any (e.g. fe80::1%eth0).
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String(), true
	}
	return "", false
}

func parseTrustedProxies(cidrs []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(c); err == nil {
			prefixes = append(prefixes, prefix)
			continue
		}
		// Bare IP counts as a single-host range.
		addr, err := netip.ParseAddr(c)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", c, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
