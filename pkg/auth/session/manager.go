// Package session stores refresh sessions in redis, keyed by the jti of the access
// token they were issued with. Only a SHA-256 of the refresh token is persisted.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shoppos/pos-backend/pkg/config"
	"github.com/shoppos/pos-backend/pkg/enums"
	pkgredis "github.com/shoppos/pos-backend/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errNoAccessID          = errors.New("session: access id required")
)

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

type Session struct {
	UserID    int64      `json:"user_id"`
	Role      enums.Role `json:"role"`
	TokenHash string     `json:"token_hash"`
	IssuedAt  time.Time  `json:"issued_at"`
}

// Rotation is the outcome of a successful refresh: the session now lives under AccessID
// and only RefreshToken can rotate it again.
type Rotation struct {
	Session      Session
	AccessID     string
	RefreshToken string
}

// AccessSessionChecker is what the auth middleware needs to reject logged-out tokens.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager requires the refresh TTL to outlive the access token; otherwise a client
// could never refresh an expired access token.
func NewManager(client *pkgredis.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("session: redis client required")
	}
	ttl, accessTTL := cfg.RefreshTokenTTL(), cfg.AccessTokenTTL()
	if ttl <= accessTTL {
		return nil, fmt.Errorf("session: refresh ttl %s must exceed access ttl %s", ttl, accessTTL)
	}
	return &Manager{store: client, ttl: ttl, now: time.Now}, nil
}

// NewAccessID returns the value used as both the JWT jti and the session key.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for userID under accessID and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, accessID string, userID int64, role enums.Role) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", errNoAccessID
	}
	if userID <= 0 {
		return "", fmt.Errorf("session: invalid user id %d", userID)
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.put(ctx, accessID, Session{UserID: userID, Role: role, TokenHash: digest(token)}); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate swaps the session stored under oldAccessID for a new one. The presented token
// is single use: after a rotation it no longer matches anything.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, presented string) (*Rotation, error) {
	if strings.TrimSpace(oldAccessID) == "" || presented == "" {
		return nil, ErrInvalidRefreshToken
	}
	oldKey := m.store.AccessSessionKey(oldAccessID)
	current, err := m.get(ctx, oldKey)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(current.TokenHash), []byte(digest(presented))) != 1 {
		return nil, ErrInvalidRefreshToken
	}

	token, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	rot := &Rotation{
		Session:      Session{UserID: current.UserID, Role: current.Role, TokenHash: digest(token)},
		AccessID:     NewAccessID(),
		RefreshToken: token,
	}
	if err := m.put(ctx, rot.AccessID, rot.Session); err != nil {
		return nil, err
	}
	if err := m.store.Del(ctx, oldKey); err != nil {
		_ = m.store.Del(ctx, m.store.AccessSessionKey(rot.AccessID))
		return nil, fmt.Errorf("session: drop rotated session: %w", err)
	}
	return rot, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errNoAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errNoAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (m *Manager) put(ctx context.Context, accessID string, sess Session) error {
	if sess.IssuedAt.IsZero() {
		sess.IssuedAt = m.now().UTC()
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(raw), m.ttl)
}

// get maps a missing or corrupt record to ErrInvalidRefreshToken.
func (m *Manager) get(ctx context.Context, key string) (*Session, error) {
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if json.Unmarshal([]byte(raw), &sess) != nil {
		return nil, ErrInvalidRefreshToken
	}
	return &sess, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
