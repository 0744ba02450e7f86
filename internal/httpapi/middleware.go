package httpapi

import (
	"net/http"
	"strings"

	"github.com/careerpilot-ke/careerpilot/internal/security"
	"github.com/gin-gonic/gin"
)

// Gin context keys set by the auth middlewares.
const (
	ctxUserIDKey   = "userID"
	ctxAdminIDKey  = "adminID"
	ctxAdminMFAKey = "adminMFAVerified"
)

// bearerToken extracts a Bearer token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserAuth validates a user JWT and stores the user id on the context.
func UserAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, errParse := security.ParseToken(jwtSecret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errParse.Error()})
			return
		}
		c.Set(ctxUserIDKey, claims.UserID)
		c.Next()
	}
}

// AdminAuth validates an admin JWT and stores the admin id on the context.
func AdminAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, errParse := security.ParseAdminToken(jwtSecret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errParse.Error()})
			return
		}
		c.Set(ctxAdminIDKey, claims.AdminID)
		c.Set(ctxAdminMFAKey, claims.MFAVerified)
		c.Next()
	}
}

// AdminMFARequired rejects admin sessions that have not passed TOTP
// verification. Admins without TOTP enrolled carry verified tokens already.
func AdminMFARequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !adminMFAVerified(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "mfa verification required"})
			return
		}
		c.Next()
	}
}

// getUserID returns the authenticated user id, or zero.
func getUserID(c *gin.Context) uint64 {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0
	}
	id, ok := v.(uint64)
	if !ok {
		return 0
	}
	return id
}

// getAdminID returns the authenticated admin id, or zero.
func getAdminID(c *gin.Context) uint64 {
	v, ok := c.Get(ctxAdminIDKey)
	if !ok {
		return 0
	}
	id, ok := v.(uint64)
	if !ok {
		return 0
	}
	return id
}

// adminMFAVerified reports whether the admin session passed TOTP verification.
func adminMFAVerified(c *gin.Context) bool {
	v, ok := c.Get(ctxAdminMFAKey)
	if !ok {
		return false
	}
	verified, ok := v.(bool)
	return ok && verified
}
