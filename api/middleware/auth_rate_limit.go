package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shoppos/pos-backend/api/responses"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// LoginLimits caps login attempts per client address and per email inside one window.
// A zero limit disables that counter.
type LoginLimits struct {
	Window     time.Duration
	PerIP      int
	PerEmail   int
	ScopeLabel string
}

func (l LoginLimits) active() bool {
	return l.Window > 0 && (l.PerIP > 0 || l.PerEmail > 0)
}

func (l LoginLimits) label() string {
	if label := strings.ToLower(strings.TrimSpace(l.ScopeLabel)); label != "" {
		return label
	}
	return "login"
}

type throttleCounter struct {
	kind  string
	value string
	limit int
}

// LoginRateLimit counts attempts in fixed windows before the login handler runs. Email
// addresses are hashed before they reach redis or the logs.
func LoginRateLimit(limits LoginLimits, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !limits.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			counters := make([]throttleCounter, 0, 2)
			if limits.PerIP > 0 {
				counters = append(counters, throttleCounter{kind: "ip", value: clientIP(r), limit: limits.PerIP})
			}
			if limits.PerEmail > 0 {
				body, err := bufferBody(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				if email := loginEmail(body); email != "" {
					counters = append(counters, throttleCounter{kind: "email", value: hashValue(email), limit: limits.PerEmail})
				}
			}

			for _, c := range counters {
				if c.value == "" {
					continue
				}
				scope := limits.label() + ":" + c.kind + ":" + c.value
				attempts, err := store.IncrWithTTL(ctx, store.RateLimitKey(scope), limits.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit counter"))
					return
				}
				if attempts > int64(c.limit) {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"throttle":       c.kind,
							"attempts":       attempts,
							"limit":          c.limit,
							"window_seconds": int(limits.Window.Seconds()),
						}), "auth.rate_limit.blocked")
					}
					w.Header().Set("Retry-After", retryAfter(limits.Window))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP trusts the first X-Forwarded-For hop; the API is deployed behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func loginEmail(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func retryAfter(window time.Duration) string {
	secs := int(window.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
