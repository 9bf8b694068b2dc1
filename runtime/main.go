package main

import (
	"github.com/appforge-labs/forge_api/middleware"
	"github.com/appforge-labs/forge_api/services"

	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	ctx, err := context.NewCtx(
		&services.PostgresService{},
		&services.RedisService{},
		&services.JWTService{},
		&middleware.AuthMiddleware{},
		&services.MonitoringService{},
		&services.RateLimitService{},
		&services.TrustService{},
		&services.ReviewService{},
		&services.AppService{},

		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
