// Package middleware provides HTTP middleware for the launch gateway.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GuardianChain/launch_layer/internal/errors"
	internalhttputil "github.com/GuardianChain/launch_layer/internal/httputil"
	"github.com/GuardianChain/launch_layer/internal/logging"
)

// RoleAdmin is the role required for launch control mutations.
const RoleAdmin = "admin"

// Claims represents JWT claims issued to operators.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates HS256 bearer tokens and optionally requires a role.
type AuthMiddleware struct {
	secret       []byte
	logger       *logging.Logger
	requiredRole string
	skipPaths    map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware. An empty
// requiredRole accepts any valid token.
func NewAuthMiddleware(secret string, requiredRole string, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &AuthMiddleware{
		secret:       []byte(secret),
		logger:       logger,
		requiredRole: requiredRole,
		skipPaths:    skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if len(m.secret) == 0 {
			m.respondError(w, r, errors.Unavailable("Authentication is not configured", nil))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("Missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.respondError(w, r, errors.Unauthorized("Invalid Authorization header format"))
			return
		}

		claims, err := m.validateToken(parts[1])
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		if m.requiredRole != "" && claims.Role != m.requiredRole {
			m.respondError(w, r, errors.Forbidden("Insufficient role").WithDetails("required", m.requiredRole))
			return
		}

		ctx := logging.WithUserID(r.Context(), claims.UserID)
		if claims.Role != "" {
			ctx = logging.WithRole(ctx, claims.Role)
		}

		m.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"user_id": claims.UserID,
			"role":    claims.Role,
		}).Debug("authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken validates a JWT token and returns claims.
func (m *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.InvalidToken(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// respondError sends an error response.
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("authentication failed")
}

// IssueToken signs an HS256 token for userID with role. Used by operator
// tooling and tests.
func IssueToken(secret, userID, role string, claims jwt.RegisteredClaims) (string, error) {
	c := &Claims{UserID: userID, Role: role, RegisteredClaims: claims}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// GetUserID extracts user ID from context.
func GetUserID(r *http.Request) string {
	return logging.GetUserID(r.Context())
}
