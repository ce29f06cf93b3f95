package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/megafartCc/Roblex.io/internals/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager issues and parses the stateless access token returned on login.
type TokenManager struct {
	Secret []byte
	// MaxAge is the token (and cookie) lifetime in seconds
	MaxAge int
	Cookie *config.CookieConfig
}

func NewTokenManager(secret string, maxAge int, cookie *config.CookieConfig) *TokenManager {
	return &TokenManager{
		Secret: []byte(secret),
		MaxAge: maxAge,
		Cookie: cookie,
	}
}

// Generate creates a signed HS256 access token
func (tm *TokenManager) Generate(userID uint, isAdmin bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"adm": isAdmin,
		"jti": uuid.New().String(),
		"exp": time.Now().Add(time.Duration(tm.MaxAge) * time.Second).Unix(),
	})
	return token.SignedString(tm.Secret)
}

// Parse validates the signature and expiry and returns the user ID
func (tm *TokenManager) Parse(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.Secret, nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}

	// In jwt-go, numbers are parsed as float64 by default
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, errors.New("invalid subject")
	}
	return uint(sub), nil
}

// SetAuthCookie mirrors the access token in a cookie for browser clients
func (tm *TokenManager) SetAuthCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		"Authorization",
		token,
		tm.MaxAge,
		"/",
		tm.Cookie.Domain,
		tm.Cookie.IsSecure,
		tm.Cookie.HttpOnly,
	)
}
