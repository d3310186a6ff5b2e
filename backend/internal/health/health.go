// Package health exposes the gRPC health protocol, tracking whether MongoDB is reachable.
package health

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name the API reports under
const ServiceName = "tuitiondesk.API"

// Pinger is satisfied by *mongo.Client
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// Checker keeps the health server's status in sync with the database
type Checker struct {
	server  *grpchealth.Server
	db      Pinger
	log     *zap.Logger
	timeout time.Duration
}

// NewChecker starts out NOT_SERVING until the first successful check
func NewChecker(db Pinger, logger *zap.Logger) *Checker {
	srv := grpchealth.NewServer()
	srv.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &Checker{server: srv, db: db, log: logger, timeout: 2 * time.Second}
}

// Register installs the health service and server reflection on s
func (c *Checker) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, c.server)
	reflection.Register(s)
}

// Check pings the database once and records the outcome
func (c *Checker) Check(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.db.Ping(pingCtx, readpref.Primary())
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err != nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		c.log.Warn("database ping failed", zap.Error(err))
	}
	c.server.SetServingStatus(ServiceName, status)
	c.server.SetServingStatus("", status)
	return err
}

// Run checks on every tick until ctx is done
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	_ = c.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Check(ctx)
		}
	}
}

// Shutdown reports NOT_SERVING and ignores later updates
func (c *Checker) Shutdown() {
	c.server.Shutdown()
}
