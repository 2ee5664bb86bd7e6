package auth

import (
	"net/http"
	"strings"

	"galia-orders/internal/infra"

	"github.com/gin-gonic/gin"
)

const userContextKey = "authUser"

// Allowlist is the set of emails granted admin capability regardless of
// their provider role.
type Allowlist map[string]struct{}

// ParseAllowlist accepts comma, semicolon or newline separated emails and
// normalizes them to lowercase.
func ParseAllowlist(raw string) Allowlist {
	out := make(Allowlist)
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	}) {
		email := strings.ToLower(strings.TrimSpace(part))
		if email != "" {
			out[email] = struct{}{}
		}
	}
	return out
}

// IsAdmin is the admin capability check: allowlisted email or provider
// role "admin". Deliberately independent of any provider SDK shape.
func IsAdmin(user *infra.AuthUser, allowlist Allowlist) bool {
	if user == nil {
		return false
	}
	for _, email := range user.Emails {
		if _, ok := allowlist[strings.ToLower(strings.TrimSpace(email))]; ok {
			return true
		}
	}
	return strings.EqualFold(user.Role, "admin")
}

// Middleware resolves the Authorization bearer token, if any, and stores
// the user on the request context. Resolution failures leave the request
// anonymous: identity problems must never block checkout.
func Middleware(identity infra.IdentityClientInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token != "" && identity != nil {
			user, err := identity.ResolveUser(c.Request.Context(), token)
			if err == nil && user != nil {
				c.Set(userContextKey, user)
			}
		}
		c.Next()
	}
}

// RequireUser aborts with 401 unless an authenticated user is present.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 401/403 unless the caller holds the admin
// capability.
func RequireAdmin(allowlist Allowlist) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFrom(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !IsAdmin(user, allowlist) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// UserFrom returns the resolved user for this request, or nil for guests.
func UserFrom(c *gin.Context) *infra.AuthUser {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := value.(*infra.AuthUser)
	return user
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
