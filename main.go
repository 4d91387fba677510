package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-session-service/config"
	"quiz-session-service/internal/archive"
	"quiz-session-service/internal/client"
	"quiz-session-service/internal/game"
	"quiz-session-service/internal/handlers"
	"quiz-session-service/internal/repository"
	"quiz-session-service/internal/scoring"
	"quiz-session-service/internal/store"
	ws "quiz-session-service/internal/websocket"
	"quiz-session-service/pkg/cache"
	"quiz-session-service/pkg/database"
	"quiz-session-service/pkg/logger"
	"quiz-session-service/pkg/messaging"
	"quiz-session-service/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)
	if envErr != nil {
		log.Debug().Msg("No .env file, using process environment")
	}
	log.Info().Msg("Configuration loaded")

	var sinks game.MultiSink

	var pgClient *database.PostgresClient
	if cfg.DB.Enabled {
		var err error
		pgClient, err = database.NewPostgresClient(&cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		log.Info().Msg("Connected to PostgreSQL")
		defer pgClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pgClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize PostgreSQL schema")
		} else {
			log.Info().Msg("PostgreSQL schema initialized")
		}
		cancel()

		sinks = append(sinks, repository.NewResultsRepository(pgClient.GetDB()))
	}

	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis, quiz cache disabled")
			redisClient = nil
		} else {
			log.Info().Msg("Connected to Redis")
			defer redisClient.Close()
		}
	}

	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := messaging.NewRabbitMQClient(&cfg.RabbitMQ)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to RabbitMQ, results events disabled")
		} else {
			log.Info().Msg("Connected to RabbitMQ")
			defer rabbitClient.Close()
			sinks = append(sinks, archive.NewQueueSink(rabbitClient))
		}
	}

	if cfg.S3.Enabled {
		s3Client, err := storage.NewS3Client(&cfg.S3)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create S3 client, result uploads disabled")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s3Client.CreateBucket(ctx, cfg.S3.Bucket); err != nil {
				log.Warn().Err(err).Str("bucket", cfg.S3.Bucket).Msg("Failed to ensure S3 bucket")
			}
			cancel()
			sinks = append(sinks, archive.NewObjectSink(s3Client, cfg.S3.Bucket))
			log.Info().Str("bucket", cfg.S3.Bucket).Msg("S3 result archive enabled")
		}
	}

	var quizzes game.QuizProvider
	if cfg.Quiz.File != "" {
		fileProvider, err := client.LoadQuizFile(cfg.Quiz.File)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Quiz.File).Msg("Failed to load quiz file")
		}
		log.Info().Str("file", cfg.Quiz.File).Msg("Serving quizzes from file")
		quizzes = fileProvider
	} else {
		quizClient, err := client.NewQuizClient(cfg.Quiz.Host, cfg.Quiz.Port)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Quiz Service")
		}
		log.Info().Msg("Connected to Quiz Service")
		defer quizClient.Close()

		quizzes = quizClient
		if redisClient != nil {
			quizzes = client.NewCachedQuizProvider(quizClient, redisClient, cfg.Redis.QuizTTL)
		}
	}

	var sink game.ResultSink
	if len(sinks) > 0 {
		sink = sinks
	}

	manager := game.NewManager(store.NewMemoryStore(cfg.Game.RoomCodeLength), quizzes, sink, game.Options{
		Clock: game.RealClock(),
		Scoring: scoring.Policy{
			BasePoints:      cfg.Game.BasePoints,
			SpeedBonusRatio: cfg.Game.SpeedBonusRatio,
			DecayExponent:   cfg.Game.BonusDecayExponent,
		},
		GracePeriod:            cfg.Game.GracePeriod,
		AnswerPhaseDuration:    cfg.Game.AnswerPhaseDuration,
		ResultsPhaseDuration:   cfg.Game.ResultsPhaseDuration,
		DefaultTimePerQuestion: cfg.Game.DefaultTimePerQuestion,
		DefaultMaxPlayers:      cfg.Game.DefaultMaxPlayers,
		MaxPlayersLimit:        cfg.Game.MaxPlayersLimit,
		MinPlayersToStart:      cfg.Game.MinPlayersToStart,
		ChatMaxLength:          cfg.Game.ChatMaxLength,
		ChatHistoryLimit:       cfg.Game.ChatHistoryLimit,
		FinishedRoomTTL:        cfg.Game.FinishedRoomTTL,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := ws.NewHub(manager, cfg.Game.ChatRatePerSecond)
	go hub.Run(ctx)
	log.Info().Msg("WebSocket hub started")

	go manager.RunJanitor(ctx, cfg.Game.JanitorInterval)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(
		handlers.RouterConfig{
			JWTSecret:           cfg.Auth.JWTSecret,
			TrustGatewayHeaders: cfg.Auth.TrustGatewayHeaders,
			AllowedOrigins:      cfg.Server.AllowedOrigins,
			Ready: func() bool {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if pgClient != nil && pgClient.GetDB().PingContext(pingCtx) != nil {
					return false
				}
				if redisClient != nil && redisClient.Ping(pingCtx) != nil {
					return false
				}
				return true
			},
		},
		handlers.NewRoomHandler(manager),
		handlers.NewWebSocketHandler(hub, manager, cfg.Server.AllowedOrigins),
	)

	server := &http.Server{
		Addr:    ":" + cfg.Server.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Server.HTTPPort).Msg("Quiz session service HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Game manager shutdown failed")
	}

	log.Info().Msg("Quiz session service stopped")
}
