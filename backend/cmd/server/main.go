package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"tuitiondesk/backend/internal/gateway"
	"tuitiondesk/backend/internal/health"
	"tuitiondesk/backend/internal/shared"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Load environment variables
	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// 1. Load and validate configuration
	cfg, err := shared.LoadServiceConfig("tuitiondesk-api")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := shared.ValidateServiceConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := shared.NewLogger(cfg.Environment, shared.GetLogLevel(cfg))
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	zap.ReplaceGlobals(logger)

	code := exitCode(logger, run(cfg, logger))
	// os.Exit skips deferred calls, so flush here.
	_ = logger.Sync()
	os.Exit(code)
}

// exitCode logs how the server ended and maps it to a process exit status
func exitCode(logger *zap.Logger, err error) int {
	if err != nil {
		logger.Error("server exited", zap.Error(err))
		return 1
	}
	logger.Info("server stopped")
	return 0
}

func run(cfg *shared.ServiceConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect to MongoDB and make sure the indexes exist
	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := shared.DisconnectMongoDB(client); err != nil {
			logger.Warn("disconnect mongodb", zap.Error(err))
		}
	}()

	if err := shared.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	// 3. Services and router
	services, err := gateway.NewServices(client, db, cfg, logger)
	if err != nil {
		return err
	}
	router := gateway.SetupRoutes(services, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 4. gRPC health + reflection
	grpcServer := grpc.NewServer()
	checker := health.NewChecker(client, logger.Named("health"))
	checker.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}

	// 5. Serve until a signal arrives, then shut everything down
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("grpc health listening", zap.String("port", cfg.GRPCPort))
		return grpcServer.Serve(grpcListener)
	})

	g.Go(func() error {
		checker.Run(gctx, healthInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		checker.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
