package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"convoai/internal/app"
	"convoai/internal/config"
	"convoai/internal/quota"
	"convoai/internal/server"
	"convoai/internal/util"
	"convoai/pkg/ai"
	"convoai/pkg/auth"
	"convoai/pkg/mail"
	"convoai/pkg/store"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to init store", "err", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL())
	if err != nil {
		fatal("failed to init token service", "err", err)
	}

	generator := ai.NewOpenAIClient(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel)
	var titler ai.TitleSuggester
	if cfg.LLMTitles {
		titler = ai.NewLLMTitler(generator)
	}

	var publisher mail.Publisher
	if cfg.AMQPURL != "" {
		queue, err := mail.NewAMQPQueue(cfg.AMQPURL, cfg.MailQueue)
		if err != nil {
			fatal("failed to connect mail queue", "err", err)
		}
		defer queue.Close()
		publisher = queue
	} else {
		slog.Warn("amqpURL not set, verification emails disabled")
	}

	appCore, err := app.New(app.Config{
		Store:        st,
		Generator:    generator,
		Titler:       titler,
		Quota:        quota.NewLimiter(st),
		Tokens:       tokens,
		Mail:         publisher,
		SystemPrompt: cfg.SystemPrompt,
	})
	if err != nil {
		fatal("failed to init app", "err", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		fatal("failed to parse trusted proxies", "err", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		Redis:                      redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}),
		TrustedProxies:             trusted,
		CORSOrigin:                 cfg.CORSOrigin,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		VerifyRateLimitPerMinute:   cfg.VerifyRateLimitPerMinute,
	})
	if err != nil {
		fatal("failed to init server", "err", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: streamed responses outlive any fixed deadline.
		IdleTimeout: 60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal("server error", "err", err)
	}
}

func fatal(msg string, attrs ...any) {
	slog.Error(msg, attrs...)
	os.Exit(1)
}
