package gateway

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/foodvoice/internal/config"
)

func TestResolveAuth(t *testing.T) {
	t.Setenv("FOODVOICE_GATEWAY_TOKEN", "from-env")

	assert.Equal(t, "from-config", ResolveAuth(config.GatewayAuth{Token: "from-config"}).Token)
	assert.Equal(t, "from-env", ResolveAuth(config.GatewayAuth{}).Token)
}

func TestResolveAuthOpen(t *testing.T) {
	t.Setenv("FOODVOICE_GATEWAY_TOKEN", "")
	auth := ResolveAuth(config.GatewayAuth{})
	assert.False(t, auth.Required())
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name      string
		server    string
		presented string
		ok        bool
		method    string
		reason    string
	}{
		{"open gateway", "", "", true, "none", ""},
		{"open gateway ignores token", "", "anything", true, "none", ""},
		{"valid token", "secret-123", "secret-123", true, "token", ""},
		{"missing token", "secret-123", "", false, "", "token required"},
		{"wrong token", "secret-123", "secret-124", false, "", "token_mismatch"},
		{"prefix of token", "secret-123", "secret", false, "", "token_mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Authorize(ResolvedAuth{Token: tt.server}, tt.presented)
			assert.Equal(t, tt.ok, res.OK)
			assert.Equal(t, tt.method, res.Method)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"none", "/ws/voice", "", ""},
		{"query", "/ws/voice?token=abc", "", "abc"},
		{"bearer", "/ws/voice", "Bearer xyz", "xyz"},
		{"bearer wins over query", "/ws/voice?token=abc", "Bearer xyz", "xyz"},
		{"other scheme falls back to query", "/ws/voice?token=abc", "Basic dXNlcg==", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, tokenFromRequest(r))
		})
	}
}

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("abc", "abc"))
	assert.True(t, safeEqual("", ""))
	assert.False(t, safeEqual("abc", "abd"))
	assert.False(t, safeEqual("abc", "abcd"))
	assert.False(t, safeEqual("", "a"))
}

func TestAuthRateLimiter(t *testing.T) {
	rl := newAuthRateLimiter()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < authRateMaxFails-1; i++ {
		rl.recordFailure("10.0.0.1:5000")
	}
	assert.True(t, rl.allow("10.0.0.1:6000"))

	rl.recordFailure("10.0.0.1:7000")
	assert.False(t, rl.allow("10.0.0.1:6000"), "failures are counted per host, not per port")
	assert.True(t, rl.allow("10.0.0.2:6000"))

	now = now.Add(authRateWindow + time.Second)
	assert.True(t, rl.allow("10.0.0.1:6000"))
}

func TestAuthRateLimiterPrune(t *testing.T) {
	rl := newAuthRateLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.recordFailure("10.0.0.1:1")
	rl.recordFailure("10.0.0.2:1")
	now = now.Add(authRateWindow + time.Second)
	rl.recordFailure("10.0.0.3:1")

	rl.prune()
	assert.Len(t, rl.failures, 1)
	assert.Contains(t, rl.failures, "10.0.0.3")
}

func TestAuthRateLimiterEvictsOldest(t *testing.T) {
	rl := newAuthRateLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.failures["first"] = []time.Time{now.Add(-time.Minute)}
	for i := 1; i < authRateMaxIPs; i++ {
		rl.failures[fmt.Sprintf("10.1.%d.%d", i/256, i%256)] = []time.Time{now}
	}
	rl.recordFailure("10.9.9.9:1")

	assert.Len(t, rl.failures, authRateMaxIPs)
	assert.NotContains(t, rl.failures, "first")
	assert.Contains(t, rl.failures, "10.9.9.9")
}
