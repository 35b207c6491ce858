package middleware

import (
	"net/http"
	"strings"

	"github.com/shoppos/pos-backend/api/responses"
	pkgAuth "github.com/shoppos/pos-backend/pkg/auth"
	"github.com/shoppos/pos-backend/pkg/auth/session"
	"github.com/shoppos/pos-backend/pkg/config"
	pkgerrors "github.com/shoppos/pos-backend/pkg/errors"
	"github.com/shoppos/pos-backend/pkg/logger"
)

// BearerToken returns the credential from "Authorization: Bearer <token>". The scheme
// is matched case-insensitively; a header without a scheme is taken as the raw token.
func BearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "bearer") {
		header = strings.TrimSpace(rest)
	} else if strings.EqualFold(header, "bearer") {
		header = ""
	}
	if header == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return header, nil
}

// Auth admits requests carrying a valid access token whose session has not been
// revoked by logout or rotation. The caller's id, role and jti are put on the context.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			raw, err := BearerToken(r)
			if err != nil {
				fail(err)
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, raw)
			switch {
			case err != nil:
				fail(pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			case claims.ID == "":
				fail(pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no session"))
				return
			}

			if sessions != nil {
				live, err := sessions.HasSession(ctx, claims.ID)
				if err != nil {
					fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session lookup"))
					return
				}
				if !live {
					fail(pkgerrors.New(pkgerrors.CodeUnauthorized, "session ended"))
					return
				}
			}

			role := claims.Role.String()
			ctx = WithIdentity(ctx, claims.UserID, role, claims.ID)
			if logg != nil {
				ctx = logg.WithActor(ctx, claims.UserID, role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
