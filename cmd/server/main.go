package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"gym-chat/auth"
	"gym-chat/errors"
	"gym-chat/infrastructure/grpc/adminpb"
	"gym-chat/infrastructure/grpc/server"
	"gym-chat/infrastructure/websocket"
	"gym-chat/internal"
	"gym-chat/moderation"
	"gym-chat/observability"
	"gym-chat/repositories"
	"gym-chat/repositories/sqlite"
	"gym-chat/runtime"
	"gym-chat/runtime/workers"
	"gym-chat/services"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	grpc3 "github.com/mama165/sdk-go/grpc"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gym-chat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Message store
	store, err := openStore(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing message store...")
		_ = store.Close()
	}()

	// 3. Runtime components
	moderator, err := buildModerator(config, charReplacement, logger)
	if err != nil {
		return exitConfig, err
	}
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	registry := runtime.NewRegistry()
	router := runtime.NewGroupRouter(logger, metrics)
	dedup := runtime.NewDeduplicator(runtime.WithWindow(config.DedupWindow))
	notifier := runtime.NewNotifier(logger, registry, router)
	tokens := auth.NewTokenManager(config.JWTSecret, config.JWTIssuer)

	hub := services.NewHub(logger, registry, router, dedup, notifier, store,
		auth.NewJWTResolver(logger, tokens), moderator,
		services.NewEchoResponder(config.AssistantDelay), metrics,
		services.HubConfig{MaxBodyLength: config.MaxBodyLength, AssistantTimeout: config.AssistantTimeout})

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewDedupSweepWorker(logger, dedup, metrics, config.DedupSweepInterval),
		workers.NewHealthMonitoringWorker(logger, registry, metrics, config.MetricInterval),
	)
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	errChan := make(chan error, 2)

	// 4. HTTP: WebSocket hub, metrics and health
	wsServer := websocket.NewServer(logger, hub, websocket.Config{
		BufferSize:     config.ConnectionBufferSize,
		MaxFrameBytes:  config.MaxFrameBytes,
		PingInterval:   config.PingInterval,
		PongTimeout:    config.PongTimeout,
		AllowedOrigins: config.Origins(),
		InvokeRate:     config.InvokeRate,
		InvokeBurst:    config.InvokeBurst,
	})
	r := mux.NewRouter()
	wsServer.Register(r)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	httpAddress := fmt.Sprintf("%s:%d", config.Host, config.HTTPPort)
	httpServer := &http.Server{Addr: httpAddress, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("Starting HTTP server", "address", httpAddress, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 5. gRPC admin service
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc3.UnaryLoggingInterceptor(logger),
			auth.AdminInterceptor(logger, tokens, config.AdminRole),
		))
	adminpb.RegisterAdminServiceServer(s, server.NewAdminServer(logger, hub))
	go func() {
		logger.Info("Starting gRPC server", "address", grpcAddress, "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed service", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !goerrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 7. Graceful shutdown: stop accepting, close sockets, then drain background work.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket shutdown incomplete", "error", err)
	}
	s.GracefulStop()
	stop()
	sup.Stop()
	<-supDone
	hub.Wait()
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// openStore picks the message store backend from STORE_DRIVER.
func openStore(ctx context.Context, config internal.Config, logger *slog.Logger) (repositories.IMessageRepository, error) {
	opts := []repositories.Option{
		repositories.WithRetention(config.Retention),
		repositories.WithHistoryLimits(config.HistoryDefaultLimit, config.HistoryMaxLimit),
	}
	switch config.StoreDriver {
	case internal.StoreBadger:
		db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		if logger.Enabled(ctx, slog.LevelDebug) {
			endpoint := "/inspect"
			logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
			database.StartDebugServer(db, config.DebugPort, endpoint, messageMapper)
		}
		return repositories.NewMessageRepository(db, logger, opts...), nil
	case internal.StoreSQLite:
		db, err := sqlite.Open(config.SQLiteFilepath)
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		store := sqlite.NewMessageRepository(db, logger, opts...)
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidStoreDriver, config.StoreDriver)
	}
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

func buildModerator(config internal.Config, charReplacement rune, logger *slog.Logger) (moderation.IModerator, error) {
	if !config.ModerationEnabled {
		return moderation.Passthrough{}, nil
	}
	dictionary, err := moderation.LoadDictionary()
	if err != nil {
		return nil, fmt.Errorf("moderation dictionary: %w", err)
	}
	logger.Info("Moderation enabled", "words", len(dictionary.Words), "languages", dictionary.Languages)
	return moderation.NewModerator(dictionary.Words, charReplacement, logger)
}

func messageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type, row.Detail = repositories.DescribeEntry(key, val)
	return row
}
