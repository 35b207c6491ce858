package auth

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/internal/users"
	pkgAuth "github.com/shoppos/pos-backend/pkg/auth"
	"github.com/shoppos/pos-backend/pkg/auth/session"
	"github.com/shoppos/pos-backend/pkg/config"
	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/security"
)

var (
	testJWT = config.JWTConfig{
		Secret:                 "secret",
		Issuer:                 "pos-backend",
		ExpirationMinutes:      30,
		RefreshTokenTTLMinutes: 120,
	}
	testPasswords = config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
)

type stubUserRepo struct {
	byEmail     map[string]*models.User
	lastLogin   map[int64]time.Time
	upgradedFor int64
}

func newStubUserRepo(users ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{byEmail: map[string]*models.User{}, lastLogin: map[int64]time.Time{}}
	for _, u := range users {
		repo.byEmail[u.Email] = u
	}
	return repo
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	s.lastLogin[id] = at
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	s.upgradedFor = id
	return nil
}

type stubSessionManager struct {
	sessions map[string]session.Session
	tokens   map[string]string
	revoked  []string
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{sessions: map[string]session.Session{}, tokens: map[string]string{}}
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string, userID int64, role enums.Role) (string, error) {
	token := "refresh-" + accessID
	s.sessions[accessID] = session.Session{UserID: userID, Role: role}
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, presented string) (*session.Rotation, error) {
	sess, ok := s.sessions[oldAccessID]
	if !ok || s.tokens[oldAccessID] != presented {
		return nil, session.ErrInvalidRefreshToken
	}
	delete(s.sessions, oldAccessID)
	newID := oldAccessID + "-next"
	token, _ := s.Generate(ctx, newID, sess.UserID, sess.Role)
	return &session.Rotation{Session: sess, AccessID: newID, RefreshToken: token}, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	delete(s.sessions, accessID)
	return nil
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswords)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func buildTestService(t *testing.T, repo *stubUserRepo) (Service, *stubSessionManager) {
	t.Helper()
	sessions := newStubSessionManager()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWT,
		PasswordConfig: testPasswords,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions
}

func TestLoginIssuesTokens(t *testing.T) {
	user := &models.User{ID: 4, Email: "cashier@shop.ge", PasswordHash: mustHashPassword(t, "pw-123"), Role: enums.RoleCashier}
	repo := newStubUserRepo(user)
	svc, sessions := buildTestService(t, repo)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " Cashier@Shop.ge ", Password: "pw-123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != 4 || claims.Role != enums.RoleCashier {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, ok := sessions.sessions[claims.ID]; !ok {
		t.Fatal("expected session keyed by jti")
	}
	if resp.RefreshToken == "" || resp.ExpiresIn != 1800 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if _, ok := repo.lastLogin[4]; !ok {
		t.Fatal("expected last login recorded")
	}
	if resp.User == nil || resp.User.Email != "cashier@shop.ge" {
		t.Fatalf("unexpected user %+v", resp.User)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	user := &models.User{ID: 4, Email: "cashier@shop.ge", PasswordHash: mustHashPassword(t, "pw-123"), Role: enums.RoleCashier}
	svc, _ := buildTestService(t, newStubUserRepo(user))

	for _, req := range []LoginRequest{
		{Email: "cashier@shop.ge", Password: "nope"},
		{Email: "missing@shop.ge", Password: "pw-123"},
		{Email: "", Password: "pw-123"},
	} {
		_, err := svc.Login(context.Background(), req)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized for %+v, got %v", req, err)
		}
		if typed.Message() != invalidCredentialsMessage {
			t.Fatalf("expected uniform message, got %q", typed.Message())
		}
	}
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("old-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := &models.User{ID: 9, Email: "old@shop.ge", PasswordHash: string(legacy), Role: enums.RoleAdmin}
	repo := newStubUserRepo(user)
	svc, _ := buildTestService(t, repo)

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "old@shop.ge", Password: "old-pass"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if repo.upgradedFor != 9 {
		t.Fatal("expected legacy hash to be upgraded")
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	user := &models.User{ID: 4, Email: "cashier@shop.ge", PasswordHash: mustHashPassword(t, "pw"), Role: enums.RoleCashier}
	repo := newStubUserRepo(user)
	svc, sessions := buildTestService(t, repo)

	login, err := svc.Login(context.Background(), LoginRequest{Email: "cashier@shop.ge", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Promote the user; the refreshed token should carry the new role.
	user.Role = enums.RoleAdmin
	pair, err := svc.Refresh(context.Background(), login.AccessToken, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if claims.Role != enums.RoleAdmin {
		t.Fatalf("expected refreshed role admin, got %s", claims.Role)
	}
	if _, ok := sessions.sessions[claims.ID]; !ok {
		t.Fatal("expected rotated session")
	}

	if _, err := svc.Refresh(context.Background(), login.AccessToken, login.RefreshToken); pkgerrors.As(err).Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected reused refresh token to fail, got %v", err)
	}
}

func TestRefreshRejectsForeignToken(t *testing.T) {
	svc, _ := buildTestService(t, newStubUserRepo())
	_, err := svc.Refresh(context.Background(), "not-a-jwt", "whatever")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutRevokes(t *testing.T) {
	svc, sessions := buildTestService(t, newStubUserRepo())
	if err := svc.Logout(context.Background(), "jti-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "jti-1" {
		t.Fatalf("expected revoke, got %+v", sessions.revoked)
	}
	if err := svc.Logout(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

type stubCreator struct {
	calls int
}

func (s *stubCreator) Create(ctx context.Context, input users.CreateUserInput) (*users.UserDTO, error) {
	s.calls++
	return &users.UserDTO{ID: 1, Email: input.Email, Role: enums.Role(input.Role)}, nil
}

func TestRegisterRespectsEnabledFlag(t *testing.T) {
	creator := &stubCreator{}
	disabled, _ := NewRegisterService(creator, false)
	_, err := disabled.Register(context.Background(), RegisterRequest{Email: "a@b.ge", Password: "secret", Role: "cashier"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	enabled, _ := NewRegisterService(creator, true)
	dto, err := enabled.Register(context.Background(), RegisterRequest{Email: "a@b.ge", Password: "secret", Role: "cashier"})
	if err != nil || dto.Email != "a@b.ge" || creator.calls != 1 {
		t.Fatalf("unexpected register result %+v / %v", dto, err)
	}
}
