package redis

import "strings"

const keyRoot = "pos"

// Key families. Every key the service writes starts with "pos:<family>".
const (
	familyIdempotency = "idempotency"
	familyRateLimit   = "rate_limit"
	familyCache       = "cache"
	familySession     = "session"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(familyIdempotency, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(familyRateLimit, scope)
}

// CacheKey is used for read-model caches and the maintenance lock.
func (c *Client) CacheKey(parts ...string) string {
	return joinKey(append([]string{familyCache}, parts...)...)
}

// AccessSessionKey addresses the refresh session bound to an access token id.
func (c *Client) AccessSessionKey(accessID string) string {
	return joinKey(familySession, "access", accessID)
}

// joinKey drops blank segments so an empty scope never produces "::".
func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyRoot)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
