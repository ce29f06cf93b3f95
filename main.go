package main

import (
	"os"

	"github.com/megafartCc/Roblex.io/internals/config"
	"github.com/megafartCc/Roblex.io/internals/initializers"
	"github.com/megafartCc/Roblex.io/internals/routes"

	"github.com/rs/zerolog"
)

func init() {
	initializers.LoadEnvVariables()
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load()

	db, err := initializers.ConnectToDb(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to DB")
	}
	if err := initializers.SyncDatabase(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	r := routes.SetupRouter(db, cfg, logger)

	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
