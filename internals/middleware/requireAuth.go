package middleware

import (
	"net/http"
	"strings"

	"github.com/megafartCc/Roblex.io/internals/models"
	"github.com/megafartCc/Roblex.io/internals/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RequireAuthMiddleware struct {
	DB           *gorm.DB
	TokenManager *utils.TokenManager
}

func NewRequireAuthMiddleware(db *gorm.DB, tokenManager *utils.TokenManager) *RequireAuthMiddleware {
	return &RequireAuthMiddleware{
		DB:           db,
		TokenManager: tokenManager,
	}
}

func (m *RequireAuthMiddleware) RequireAuth(c *gin.Context) {
	tokenString, err := c.Cookie("Authorization")
	if err != nil {
		// Non-browser clients send the token as a bearer header instead
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			tokenString = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	userID, err := m.TokenManager.Parse(tokenString)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var user models.User
	m.DB.First(&user, userID)
	if user.ID == 0 {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.Set("user", user)
	c.Next() // continue to the next handler
}
