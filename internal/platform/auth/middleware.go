package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	UserRoleKey   contextKey = "user_role"
	SessionIDKey  contextKey = "session_id"
	DoctorCodeKey contextKey = "doctor_code"
	MerchantIDKey contextKey = "merchant_id"
	EmailKey      contextKey = "email"
)

// Roles.
const (
	RoleAdmin    = "admin"
	RoleDoctor   = "doctor"
	RoleMerchant = "merchant"
	RoleUser     = "user"
)

// Authenticate validates the bearer token and checks that the session it
// names is still live in the store, so logout revokes access immediately.
// Requests for which skipper returns true pass through untouched.
func Authenticate(issuer *TokenIssuer, store SessionStore, skipper middleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := issuer.Parse(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			sess, err := store.Get(ctx, claims.SessionID)
			if errors.Is(err, ErrSessionNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
			}
			if sess.UserID != claims.Subject {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.SetRequest(c.Request().WithContext(WithSession(ctx, *sess)))
			return next(c)
		}
	}
}

// WithSession stores the session's identity fields on ctx. Values come from
// the stored session rather than the token claims.
func WithSession(ctx context.Context, s Session) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, s.UserID)
	ctx = context.WithValue(ctx, UserRoleKey, s.Role)
	ctx = context.WithValue(ctx, SessionIDKey, s.ID)
	ctx = context.WithValue(ctx, DoctorCodeKey, s.DoctorCode)
	ctx = context.WithValue(ctx, MerchantIDKey, s.MerchantID)
	ctx = context.WithValue(ctx, EmailKey, s.Email)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func RoleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(UserRoleKey).(string)
	return v
}

func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}

func DoctorCodeFromContext(ctx context.Context) string {
	v, _ := ctx.Value(DoctorCodeKey).(string)
	return v
}

func MerchantIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(MerchantIDKey).(string)
	return v
}

func EmailFromContext(ctx context.Context) string {
	v, _ := ctx.Value(EmailKey).(string)
	return v
}
