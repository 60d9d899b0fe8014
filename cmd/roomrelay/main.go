package main

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wqfan/roomrelay/internal/config"
	"github.com/wqfan/roomrelay/internal/httputil"
	wsrpc "github.com/wqfan/roomrelay/internal/jsonrpc/websocket"
	"github.com/wqfan/roomrelay/internal/jwt"
	"github.com/wqfan/roomrelay/internal/log"
	"github.com/wqfan/roomrelay/internal/otel"
	"github.com/wqfan/roomrelay/internal/redis"
	"github.com/wqfan/roomrelay/internal/retry"
	"github.com/wqfan/roomrelay/internal/workflow"
	"github.com/wqfan/roomrelay/rooms"
	"github.com/wqfan/roomrelay/signal"
	"github.com/wqfan/roomrelay/transport"
)

type Config struct {
	App     config.App      `mapstructure:"app"`
	WSHttp  httputil.Config `mapstructure:"ws_http"`
	APIHttp httputil.Config `mapstructure:"api_http"`
	Redis   redis.Config    `mapstructure:"redis"`
	Otel    otel.Config     `mapstructure:"otel"`

	// RedisEnabled turns on the cross-instance presence guard.
	// A single instance runs fine without redis.
	RedisEnabled        bool   `mapstructure:"redis_enabled"`
	RedisPresencePrefix string `mapstructure:"redis_presence_prefix"`

	// JWTSecret enables edge authentication when non-empty
	JWTSecret string `mapstructure:"jwt_secret"`

	SignalRate  float64 `mapstructure:"signal_rate"`
	SignalBurst int     `mapstructure:"signal_burst"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func loadConfig() (*Config, error) {
	return config.Load(&Config{}, func(v *viper.Viper) {
		v.SetDefault("redis_enabled", false)
		v.SetDefault("redis_presence_prefix", "roomrelay")
		v.SetDefault("jwt_secret", "")
		v.SetDefault("signal_rate", 50.0)
		v.SetDefault("signal_burst", 100)
		v.SetDefault("allowed_origins", []string{"*"})

		config.Setup(v, "app")
		redis.Setup(v, "redis")
		otel.Setup(v, "otel")
		httputil.Setup(v, "ws_http")
		httputil.Setup(v, "api_http")

		// override default addrs to ease testing
		v.SetDefault("ws_http.addr", "0.0.0.0:8081")
		v.SetDefault("api_http.addr", "0.0.0.0:8080")
	})
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", err)
	}

	logger, err := log.NewLogger(cfg.App.LogConfigFile)
	if err != nil {
		log.Fatal("Failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Initialize OpenTelemetry
	otelShutdown, err := otel.Init(ctx, &cfg.Otel, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OTEL provider", log.Error(err))
	}

	logger.Info("Starting Room Relay...")

	serverID := uuid.New().String()

	var redisClient *goredis.Client
	guard := signal.NewNoopGuard(serverID)
	if cfg.RedisEnabled {
		client := redis.NewClient(&cfg.Redis)
		pingRetry := retry.New(logger.Module("Retry"), 500*time.Millisecond, 5*time.Second, 30*time.Second)
		if err := pingRetry.Do(ctx, func() error { return redis.Ping(client) }); err != nil {
			logger.Fatal("Failed to connect to Redis", log.Error(err))
		}
		redisClient = client
		guard = signal.NewPresenceGuard(
			client,
			cfg.RedisPresencePrefix,
			serverID,
			logger.Module("Presence"),
		)
	}

	var jwtAuth jwt.Auth
	if cfg.JWTSecret != "" {
		jwtAuth = jwt.NewAuth(cfg.JWTSecret)
	} else {
		logger.Warn("JWT secret not configured, accepting unauthenticated connections")
	}

	coordinator := rooms.NewCoordinator(logger.Module("Rooms"))

	hook := signal.NewWSHook(
		coordinator,
		guard,
		jwtAuth,
		rate.Limit(cfg.SignalRate),
		cfg.SignalBurst,
		logger.Module("WSHook"),
	)
	wsRPCServer := wsrpc.NewServer(
		hook,
		cfg.AllowedOrigins,
		logger.Module("WSRPC"),
	)
	signalServer := signal.NewServer(
		wsRPCServer,
		coordinator,
		guard,
		logger.Module("Signal"),
	)

	if err := signalServer.Open(ctx); err != nil {
		logger.Fatal("Failed to open Signal Server", log.Error(err))
	}

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/ws", wsRPCServer.HandleWebSocket)
	wsServer := httputil.NewServer(&cfg.WSHttp, wsMux)

	router := transport.NewRouter(coordinator, logger.Module("API"))
	apiServer := httputil.NewServer(&cfg.APIHttp, router.Handler())

	servers := new(errgroup.Group)
	servers.Go(func() error {
		logger.Info("Starting WebSocket server", log.String("addr", cfg.WSHttp.Addr))
		if err := wsServer.Listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "websocket server")
		}
		return nil
	})
	servers.Go(func() error {
		logger.Info("Starting API server", log.String("addr", cfg.APIHttp.Addr))
		if err := apiServer.Listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "api server")
		}
		return nil
	})
	go func() {
		if err := servers.Wait(); err != nil {
			logger.Fatal("Server failed", log.Error(err))
		}
	}()

	// Graceful shutdown
	cleanup := func(ctx context.Context) {
		_ = wsServer.Shutdown(ctx)
		_ = apiServer.Shutdown(ctx)

		_ = signalServer.Close()

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Error("Error closing Redis client", log.Error(err))
			}
		}
		if err := otelShutdown(ctx); err != nil {
			logger.Error("Failed to shutdown OTEL", log.Error(err))
		}
	}
	workflow.WaitGracefulShutdown(ctx, logger.Module("CleanUp"), cleanup, cfg.App.ShutdownTimeout)
}
