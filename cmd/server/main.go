package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ripplechat/internal/config"
	"ripplechat/internal/db"
	"ripplechat/internal/directory"
	"ripplechat/internal/feed"
	clog "ripplechat/internal/log"
	"ripplechat/internal/moderation"
	"ripplechat/internal/profile"
	"ripplechat/internal/server"
	"ripplechat/internal/service"
	"ripplechat/internal/store"
	"ripplechat/internal/ws"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	clog.Init(cfg.Env, cfg.LogLevel)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	oracle, err := newOracle(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("moderation oracle")
	}
	gate := moderation.NewGate(oracle, moderation.Options{
		Timeout:     time.Duration(cfg.ModerationTimeoutSeconds) * time.Second,
		MaxFailures: uint32(cfg.ModerationMaxFailures),
		OpenFor:     time.Duration(cfg.ModerationOpenSeconds) * time.Second,
	})

	hub := feed.NewHub()
	var notifier feed.Notifier = hub
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis ping")
		}
		defer rdb.Close()
		relay := feed.NewRedisRelay(rdb, cfg.RedisChannel, hub)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("feed relay stopped")
			}
		}()
		notifier = relay
	}

	profiles := profile.NewService(gdb)
	chat := service.NewChatService(
		store.NewConversationStore(gdb),
		store.NewMessageStore(gdb, hub, notifier),
		gate,
		profiles,
		cfg.FeedWindow,
	)
	search := directory.NewSearcher(directory.NewGormDirectory(gdb), cfg.SearchLimit)
	h := server.NewHandler(chat, search, cfg.FeedWindow)
	r := server.SetupRouter(ctx, cfg, h, profiles, ws.Serve(chat, cfg.JWTSecret, profiles))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("moderation", cfg.ModerationProvider).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func newOracle(cfg config.Config) (moderation.Oracle, error) {
	if cfg.ModerationProvider == "openai" {
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = cfg.OpenAIBaseURL
		}
		return moderation.NewOpenAIOracleWithConfig(oc, cfg.OpenAIModel), nil
	}
	if cfg.WordlistPath != "" {
		return moderation.LoadWordlistOracle(cfg.WordlistPath)
	}
	return moderation.NewWordlistOracle(nil)
}
