package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/foodvoice/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "none" | "token"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the resolved auth configuration for the gateway.
type ResolvedAuth struct {
	Token string
}

// Required reports whether clients must present a token.
func (a ResolvedAuth) Required() bool {
	return a.Token != ""
}

// ResolveAuth resolves the gateway token from config, falling back to
// FOODVOICE_GATEWAY_TOKEN. An empty token leaves the gateway open.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	token := cfg.Token
	if token == "" {
		token = os.Getenv("FOODVOICE_GATEWAY_TOKEN")
	}
	return ResolvedAuth{Token: token}
}

// Authorize checks a presented token against the server auth.
func Authorize(serverAuth ResolvedAuth, presented string) AuthResult {
	if !serverAuth.Required() {
		return AuthResult{OK: true, Method: "none"}
	}
	if presented == "" {
		return AuthResult{OK: false, Reason: "token required"}
	}
	if !safeEqual(presented, serverAuth.Token) {
		return AuthResult{OK: false, Reason: "token_mismatch"}
	}
	return AuthResult{OK: true, Method: "token"}
}

// tokenFromRequest extracts a client token from the Authorization header or,
// for browser websocket clients that cannot set headers, the token query
// parameter.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// safeEqual performs a constant-time string comparison that also hides
// whether the lengths differ.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

// authRateLimiter blocks hosts with too many recent failed auth attempts.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time), now: time.Now}
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}

// recent drops failures outside the window. Callers hold mu.
func (l *authRateLimiter) recent(host string) []time.Time {
	cutoff := l.now().Add(-authRateWindow)
	kept := l.failures[host][:0]
	for _, t := range l.failures[host] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return nil
	}
	l.failures[host] = kept
	return kept
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recent(remoteHost(remoteAddr))) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := remoteHost(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.failures[host]; !ok && len(l.failures) >= authRateMaxIPs {
		l.evictOldest()
	}
	l.failures[host] = append(l.failures[host], l.now())
}

// prune forgets hosts whose failures have all expired.
func (l *authRateLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for host := range l.failures {
		l.recent(host)
	}
}

func (l *authRateLimiter) evictOldest() {
	var oldest string
	var at time.Time
	for host, times := range l.failures {
		if len(times) > 0 && (oldest == "" || times[0].Before(at)) {
			oldest, at = host, times[0]
		}
	}
	if oldest != "" {
		delete(l.failures, oldest)
	}
}
