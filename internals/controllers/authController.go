package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/megafartCc/Roblex.io/internals/models"
	"github.com/megafartCc/Roblex.io/internals/store"
	"github.com/megafartCc/Roblex.io/internals/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	Store        *store.AccountStore
	TokenManager *utils.TokenManager
}

func NewAuthController(accounts *store.AccountStore, tokenManager *utils.TokenManager) *AuthController {
	return &AuthController{
		Store:        accounts,
		TokenManager: tokenManager,
	}
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *AuthController) Register(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	result, err := a.Store.Register(body.Email, body.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Refreshed {
		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"userId":  result.UserID,
			"message": "Account pending verification. We refreshed your code and emailed a new one.",
		})
		return
	}

	message := "Registration successful! You can now log in."
	if result.CodeSent {
		message = "Registration successful! Please check your email for the verification code."
	}
	c.JSON(http.StatusCreated, gin.H{
		"ok":      true,
		"userId":  result.UserID,
		"message": message,
	})
}

func (a *AuthController) Login(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	result, err := a.Store.Login(body.Email, body.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := a.TokenManager.Generate(result.UserID, result.IsAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	a.TokenManager.SetAuthCookie(c, token)

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"userId":  result.UserID,
		"isAdmin": result.IsAdmin,
		"token":   token,
		"message": "Login successful",
	})
}

func (a *AuthController) VerifyCode(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	result, err := a.Store.VerifyCode(body.Email, body.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.AlreadyVerified {
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Account is already verified."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Email successfully verified! You can now log in."})
}

func (a *AuthController) ResendCode(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	result, err := a.Store.ResendCode(body.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.AlreadyVerified {
		c.JSON(http.StatusOK, gin.H{"message": "Account is already verified."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "New verification code sent. Check your email."})
}

// Me returns the account behind the presented token.
func (a *AuthController) Me(c *gin.Context) {
	user, _ := c.Get("user")
	u := user.(models.User)

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"userId":  u.ID,
		"email":   u.Email,
		"isAdmin": u.IsAdmin,
	})
}

// respondError owns the error-to-status mapping for the whole auth surface.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": inputMessage(err)})
	case errors.Is(err, store.ErrVerificationDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email verification is disabled."})
	case errors.Is(err, store.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, store.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid verification code or email."})
	case errors.Is(err, store.ErrCodeExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Verification code has expired. Please request a new code."})
	case errors.Is(err, store.ErrNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account not verified. Please verify your email."})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Email not found."})
	case errors.Is(err, store.ErrAlreadyRegistered):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// inputMessage turns "invalid input: email is required" into the user-facing
// "Email is required".
func inputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), store.ErrInvalidInput.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
