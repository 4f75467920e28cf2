package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hoomachat/internal/api"
	"hoomachat/internal/config"
	"hoomachat/internal/prompt"
	"hoomachat/internal/ratelimit"
	"hoomachat/internal/report"
	"hoomachat/internal/service/ai"
	"hoomachat/internal/service/chat"
	"hoomachat/internal/session"
	"hoomachat/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	prompts := prompt.Load(context.Background(), cfg.SystemPromptPath, cfg.KnowledgeBasePath)

	store := session.NewStore()
	reaper := session.NewReaper(store, cfg.SessionTTL, cfg.ReapInterval)
	if err := reaper.Start(); err != nil {
		log.Fatal().Err(err).Msg("start session reaper")
	}
	defer reaper.Stop()

	limiter := ratelimit.New(cfg.RateLimitPerMinute, time.Minute)
	gateway := ai.New(cfg, prompts.SystemPrompt())
	pool := worker.NewPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout)
	defer pool.Close()

	chatService := chat.NewService(store, limiter, gateway, pool, reaper)
	reportService := report.NewService(store)

	router := gin.Default()
	handler := api.NewHandler(chatService, reportService, cfg)
	handler.RegisterRoutes(router)

	if cfg.AdminEnabled() {
		log.Info().Msg("admin panel enabled at /admin")
	} else {
		log.Info().Msg("admin panel disabled (set ADMIN_USERNAME and ADMIN_PASSWORD to enable)")
	}

	log.Info().Str("addr", cfg.ServerAddress).Str("provider", gateway.Name()).Msg("server starting")
	if err := router.Run(cfg.ServerAddress); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
