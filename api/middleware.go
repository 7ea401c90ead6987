/*
middleware.go - Request logging, authentication and rate limiting

PURPOSE:
  Everything that runs before a handler: a request-scoped slog logger, JWT
  authentication that establishes the tenant and employee of the caller,
  a manager-only guard and the punch flood guard.

CONTEXT VALUES:
  loggerKey: *slog.Logger carrying request_id (+ tenant_id, employee_id
             once authenticated)
  claimsKey: *Claims of the authenticated caller

TOKENS:
  HS256 JWTs. Claims carry tenant_id, sub (employee id) and role. Identity is
  owned by an external provider; this service only verifies tokens.

SEE ALSO:
  - server.go: Middleware order
  - handlers.go: Reads claims and logger from the context
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	claimsKey contextKey = "claims"
)

// =============================================================================
// LOGGING
// =============================================================================

// RequestLogger stores a logger tagged with the chi request id in the request
// context and logs one line per completed request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := base.With(
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), loggerKey, log)))

			log.Info("request completed",
				slog.Int("status", ww.Status()),
				slog.Duration("latency", time.Since(start)),
			)
		})
	}
}

// LoggerFrom returns the request-scoped logger, or slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// Claims are the JWT claims this service understands. Subject is the
// employee id.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsManager() bool { return c.Role == RoleManager }

// ClaimsFrom returns the authenticated caller's claims.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// Authenticator verifies bearer tokens.
type Authenticator struct {
	Secret []byte
	Issuer string // empty skips the issuer check
}

// NewToken signs claims for tenantID/employeeID. Used by tests and the
// server's dev token flag.
func (a Authenticator) NewToken(tenantID, employeeID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   employeeID,
			Issuer:    a.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

func (a Authenticator) parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.TenantID == "" || claims.Subject == "" {
		return nil, errors.New("token is missing tenant_id or sub")
	}
	switch claims.Role {
	case RoleEmployee, RoleManager:
	default:
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// claims and an enriched logger in the request context.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := LoggerFrom(r.Context())

		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
			log.Warn("authorization header missing or malformed")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Authorization header must be Bearer {token}")
			return
		}

		claims, err := a.parse(token)
		if err != nil {
			log.Warn("invalid token", slog.String("error", err.Error()))
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token has expired"
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", msg)
			return
		}

		log = log.With(
			slog.String("tenant_id", claims.TenantID),
			slog.String("employee_id", claims.Subject),
		)
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, loggerKey, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireManager only lets manager tokens through.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok || !claims.IsManager() {
			writeError(w, http.StatusForbidden, "forbidden", "manager role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// RATE LIMITING
// =============================================================================

// PunchRateLimit limits punch submissions per tenant and employee. Must run
// after authentication.
func PunchRateLimit(l *limiter.Limiter) func(http.Handler) http.Handler {
	mw := stdlib.NewMiddleware(l,
		stdlib.WithKeyGetter(func(r *http.Request) string {
			if claims, ok := ClaimsFrom(r.Context()); ok {
				return claims.TenantID + "/" + claims.Subject
			}
			return r.RemoteAddr
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			LoggerFrom(r.Context()).Warn("punch rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many punch attempts. Please wait and try again.")
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			LoggerFrom(r.Context()).Error("rate limit check failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal", "Internal server error during rate limit check")
		}),
	)
	return mw.Handler
}
