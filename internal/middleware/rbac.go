package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/univecal/unical-api/internal/models"
	appErrors "github.com/univecal/unical-api/pkg/errors"
	"github.com/univecal/unical-api/pkg/response"
)

// RBAC enforces role-based access control for routes. The special "SELF"
// entry admits a request whose :id path parameter equals the JWT subject;
// it backs the rule that /users/:id/* is only visible to that user.
func RBAC(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		allowSelf := false
		allowedRoles := make(map[models.UserRole]struct{})

		for _, a := range allowed {
			if a == "SELF" {
				allowSelf = true
				continue
			}
			allowedRoles[models.UserRole(a)] = struct{}{}
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// SelfOrAdmin admits the user named in the :id parameter or an admin.
func SelfOrAdmin() gin.HandlerFunc {
	return RBAC("SELF", string(models.RoleAdmin))
}
