package routes

import (
	"time"

	"github.com/megafartCc/Roblex.io/internals/config"
	"github.com/megafartCc/Roblex.io/internals/controllers"
	"github.com/megafartCc/Roblex.io/internals/mailer"
	"github.com/megafartCc/Roblex.io/internals/middleware"
	"github.com/megafartCc/Roblex.io/internals/store"
	"github.com/megafartCc/Roblex.io/internals/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, cfg *config.Config, logger zerolog.Logger) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	codeMailer := mailer.New(cfg.Mail, logger.With().Str("component", "mailer").Logger())
	dispatcher := mailer.NewDispatcher(codeMailer, logger.With().Str("component", "dispatcher").Logger())

	accounts := store.New(
		db,
		dispatcher,
		cfg.MinPasswordLength,
		cfg.RequireEmailVerification,
		time.Duration(cfg.CodeExpirationMinutes)*time.Minute,
		logger.With().Str("component", "store").Logger(),
	)

	tokenManager := utils.NewTokenManager(
		cfg.JWTSecret,
		cfg.JWTExpirationSeconds,
		&config.CookieConfig{
			Domain:   config.GetEnvAsStr("DOMAIN", ""),
			IsSecure: config.GetEnvAsStr("SECURE_COOKIE", "true") == "true",
			HttpOnly: true, // Always HttpOnly set to true for security
		},
	)

	authMiddleware := middleware.NewRequireAuthMiddleware(db, tokenManager)
	authCtrl := controllers.NewAuthController(accounts, tokenManager)

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "active",
			"message": "Roblex account API is running",
		})
	})

	api := r.Group("/api")
	{
		api.POST("/register", authCtrl.Register)
		api.POST("/login", authCtrl.Login)
		api.POST("/verify-code", authCtrl.VerifyCode)
		api.POST("/resend-code", authCtrl.ResendCode)

		protected := api.Group("/")
		protected.Use(authMiddleware.RequireAuth)
		{
			protected.GET("/me", authCtrl.Me)
		}
	}

	return r
}
