// Package ginmw provides Gin HTTP middleware for hosts that serve the
// dashboard behind their own gateway.
//
// The middleware mirrors the SDK's client-side behavior server-side:
// bearer tokens are decoded and expiry-checked without a signature
// round trip (the SwissKnife backend remains the authority), and
// permission checks use the same superset semantics as the permission
// guard. Error bodies use the backend's {"reason", "status"} shape so
// the SDK's interceptors classify them the same way.
package ginmw

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	swissknife "github.com/swissknife-wallet/swissknife-go"
	"github.com/swissknife-wallet/swissknife-go/token"
)

// Context keys for session data stored in gin.Context.
const (
	KeySession = "swissknife_session"
	KeyUserID  = "swissknife_user_id"
	KeyClaims  = "swissknife_claims"
)

// AuthOption configures Auth middleware behavior.
type AuthOption func(*authConfig)

type authConfig struct {
	excludedPaths map[string]bool
	signInRoute   string
}

// WithExcludedPaths sets paths that skip authentication (health checks,
// the sign-in endpoint itself).
func WithExcludedPaths(paths ...string) AuthOption {
	return func(cfg *authConfig) {
		for _, p := range paths {
			cfg.excludedPaths[p] = true
		}
	}
}

// WithSignInRedirect makes unauthenticated browser navigation redirect
// to route with the requested path as a return_to query parameter,
// instead of answering 401.
func WithSignInRedirect(route string) AuthOption {
	return func(cfg *authConfig) { cfg.signInRoute = route }
}

// Auth returns middleware that requires a decodable, unexpired bearer
// token. On success the decoded claims and the resulting session are
// stored in the context (GetSession, GetUserID, GetClaims).
func Auth(validator *token.Validator, opts ...AuthOption) gin.HandlerFunc {
	cfg := &authConfig{excludedPaths: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}

	return func(c *gin.Context) {
		if cfg.excludedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		raw := extractBearerToken(c.Request)
		if raw == "" || !validator.IsValid(raw) {
			reject(c, cfg)
			return
		}
		claims, err := validator.Decode(raw)
		if err != nil {
			reject(c, cfg)
			return
		}

		sess := swissknife.Session{
			Status: swissknife.StatusAuthenticated,
			User: &swissknife.User{
				ID:          claims.Subject,
				DisplayName: claims.DisplayName,
				Email:       claims.Email,
				Permissions: claims.Permissions,
				Token:       raw,
			},
		}
		c.Set(KeyClaims, claims)
		c.Set(KeySession, sess)
		c.Set(KeyUserID, claims.Subject)

		ctx := swissknife.WithSession(c.Request.Context(), sess)
		ctx = swissknife.WithUserID(ctx, claims.Subject)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func reject(c *gin.Context, cfg *authConfig) {
	if cfg.signInRoute != "" {
		target := cfg.signInRoute + "?return_to=" + url.QueryEscape(c.Request.URL.RequestURI())
		c.Redirect(http.StatusFound, target)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"reason": "missing or invalid credential",
		"status": "error",
	})
}

// RequireOption configures Require middleware behavior.
type RequireOption func(*requireConfig)

type requireConfig struct {
	bypass bool
}

// WithBypass short-circuits the permission check unconditionally
// (test/dev mode), matching the SDK's global permission bypass.
func WithBypass(bypass bool) RequireOption {
	return func(cfg *requireConfig) { cfg.bypass = bypass }
}

// Require returns middleware that allows the request iff the
// authenticated user's permission set is a superset of required.
// Auth must run first. Responds 403 on an insufficient set.
func Require(required swissknife.PermissionSet, opts ...RequireOption) gin.HandlerFunc {
	cfg := &requireConfig{}
	for _, o := range opts {
		o(cfg)
	}

	return func(c *gin.Context) {
		if cfg.bypass {
			c.Next()
			return
		}

		sess := GetSession(c)
		if !sess.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"reason": "authentication required",
				"status": "error",
			})
			return
		}
		if !sess.User.Permissions.Superset(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"reason": "permission denied",
				"status": "error",
			})
			return
		}

		c.Next()
	}
}

// RequireAny returns middleware that allows the request if the user
// holds at least one of the given permissions.
func RequireAny(perms ...swissknife.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := GetSession(c)
		if !sess.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"reason": "authentication required",
				"status": "error",
			})
			return
		}
		for _, p := range perms {
			if sess.User.Permissions.Has(p) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"reason": "permission denied",
			"status": "error",
		})
	}
}

// --- Context helpers ---

// GetSession returns the session stored by Auth. Absent means an
// unauthenticated request on an excluded path.
func GetSession(c *gin.Context) swissknife.Session {
	v, ok := c.Get(KeySession)
	if !ok {
		return swissknife.Session{Status: swissknife.StatusUnauthenticated}
	}
	sess, ok := v.(swissknife.Session)
	if !ok {
		return swissknife.Session{Status: swissknife.StatusUnauthenticated}
	}
	return sess
}

// GetUserID returns the authenticated user ID from the Gin context.
func GetUserID(c *gin.Context) string {
	v, _ := c.Get(KeyUserID)
	s, _ := v.(string)
	return s
}

// GetClaims returns the decoded claims from the Gin context.
func GetClaims(c *gin.Context) *swissknife.Claims {
	v, _ := c.Get(KeyClaims)
	cl, _ := v.(*swissknife.Claims)
	return cl
}

// --- internal helpers ---

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
