package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quizbattle/quizbattle/internal/answer"
	"github.com/quizbattle/quizbattle/internal/gateway"
	"github.com/quizbattle/quizbattle/internal/match"
	"github.com/quizbattle/quizbattle/internal/models"
	"github.com/quizbattle/quizbattle/internal/questions"
	"github.com/quizbattle/quizbattle/internal/registry"
	"github.com/quizbattle/quizbattle/internal/relay"
	"github.com/quizbattle/quizbattle/internal/store"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if getEnv("LOG_LEVEL", "") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := loadConfig(getEnv("CONFIG_FILE", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	bank := loadBank(cfg.Game.QuestionsFile)

	clock := clockwork.NewRealClock()
	gameStore := store.New(clock, store.Config{
		ResolveDelay:       cfg.ResolveDelay(),
		SubscriptionBuffer: store.DefaultConfig().SubscriptionBuffer,
	})
	controller := match.NewController(gameStore, clock, match.Config{
		StartingCountdown: cfg.StartingCountdown(),
		QuestionDuration:  cfg.QuestionDuration(),
	})
	defer controller.Close()

	playerRegistry := registry.New(gameStore)
	collector := answer.New(gameStore)

	gatewayService := gateway.NewService(gateway.ServiceConfig{
		Store:         gameStore,
		Controller:    controller,
		Clock:         clock,
		Registry:      playerRegistry,
		Collector:     collector,
		Bank:          bank,
		HostKey:       cfg.Server.HostKey,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gatewayService.Start(ctx)

	if cfg.Relay.Enabled {
		startRelay(ctx, cfg, gameStore)
	}

	server := setupServer(cfg.Server.Port, gatewayService)

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Int("questions", len(bank)).
			Msg("quizbattle server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	gatewayService.Shutdown()
	cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func loadBank(path string) []models.Question {
	if path == "" {
		log.Info().Msg("no questions file configured, using built-in bank")
		return questions.Default()
	}
	bank, err := questions.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to load question bank")
	}
	return bank
}

func startRelay(ctx context.Context, cfg *Config, gameStore *store.GameStore) {
	jsCfg := relay.DefaultJetStreamConfig()
	jsCfg.URL = cfg.Relay.NATSURL
	if cfg.Relay.StreamName != "" {
		jsCfg.StreamName = cfg.Relay.StreamName
	}
	if cfg.Relay.SubjectPrefix != "" {
		jsCfg.SubjectPrefix = cfg.Relay.SubjectPrefix
	}

	publisher, err := relay.NewJetStreamPublisher(jsCfg)
	if err != nil {
		log.Error().Err(err).Msg("event relay disabled, broker unavailable")
		return
	}

	eventRelay := relay.New(gameStore, publisher)
	go func() {
		defer publisher.Close()
		eventRelay.Run(ctx)
	}()
	log.Info().Str("stream", jsCfg.StreamName).Msg("event relay enabled")
}
