package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/errs"
)

const userIDKey = "user_id"

// AuthMiddleware resolves the bearer token to a user and stores the user ID
// on the context. Requests without a valid token stop here with 401.
func AuthMiddleware(gate auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abort(c, errs.Unauthorized("access token required"))
			return
		}

		userID, err := gate.ResolveUser(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user set by AuthMiddleware.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}

func abort(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	c.AbortWithStatusJSON(errs.HTTPStatus(kind), gin.H{
		"error":   kind,
		"message": errs.MessageOf(err),
	})
}
