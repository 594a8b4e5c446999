package middleware

import (
	"github.com/cockpit-trainer/cockpit-api/internal/models"

	"github.com/gin-gonic/gin"
)

// ContextKeyUser is the gin context key holding the resolved *models.PublicUser
const ContextKeyUser = "user"

func setUser(c *gin.Context, user *models.PublicUser) {
	c.Set(ContextKeyUser, user)
	c.Request = c.Request.WithContext(models.SetUserContext(c.Request.Context(), user))
}

// GetUser returns the identity attached by RequireAuth
func GetUser(c *gin.Context) (*models.PublicUser, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.PublicUser)
	return user, ok && user != nil
}
