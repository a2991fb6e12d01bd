package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"callguard/internal/config"
	"callguard/pkg/resilience"
)

// AnalysisStatus is the outcome of one analysis service probe.
type AnalysisStatus struct {
	// Healthy is true when the service reported SERVING.
	Healthy bool

	// State is the serving status the service reported.
	State string

	// Latency is the probe round-trip time.
	Latency time.Duration
}

// AnalysisClient wraps the gRPC analysis service. The pipeline's
// analysis step is an availability probe against the standard health
// service; results feed the run report and the status surface.
type AnalysisClient struct {
	config config.AnalysisConfig
	conn   *grpc.ClientConn
	health grpc_health_v1.HealthClient
	logger *slog.Logger
}

// NewAnalysisClient creates a client for the configured address. The
// connection is established lazily; use WaitReady to block until the
// transport is up.
func NewAnalysisClient(cfg config.AnalysisConfig, logger *slog.Logger) (*AnalysisClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := grpc.NewClient(cfg.GRPCAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create analysis client for %s: %w", cfg.GRPCAddress, err)
	}

	return &AnalysisClient{
		config: cfg,
		conn:   conn,
		health: grpc_health_v1.NewHealthClient(conn),
		logger: logger,
	}, nil
}

// WaitReady blocks until the underlying connection reports Ready,
// bounded by the configured connection timeout.
func (c *AnalysisClient) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	c.conn.Connect()
	for {
		state := c.conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return &resilience.NetworkError{
				Op:  "analysis connection to " + c.config.GRPCAddress,
				Err: fmt.Errorf("connection stuck in state %s: %w", state, ctx.Err()),
			}
		}
	}
}

// Probe checks the analysis service health endpoint and reports its
// serving state. A reachable service that reports anything but SERVING
// is a service failure.
func (c *AnalysisClient) Probe(ctx context.Context) (*AnalysisStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	latency := time.Since(start)

	if err != nil {
		c.logger.Warn("analysis probe failed",
			slog.String("address", c.config.GRPCAddress),
			slog.Duration("latency", latency),
			slog.Any("error", err))
		return nil, c.classify(err)
	}

	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return nil, &resilience.ServiceError{
			DependencyKey: DependencyAnalysis,
			Err:           fmt.Errorf("analysis service reports %s", resp.GetStatus().String()),
		}
	}

	c.logger.Debug("analysis probe succeeded",
		slog.String("address", c.config.GRPCAddress),
		slog.Duration("latency", latency))

	return &AnalysisStatus{
		Healthy: true,
		State:   resp.GetStatus().String(),
		Latency: latency,
	}, nil
}

// State reports the current connection state for status surfaces.
func (c *AnalysisClient) State() string {
	return c.conn.GetState().String()
}

// Close tears down the underlying connection.
func (c *AnalysisClient) Close() error {
	return c.conn.Close()
}

// classify maps gRPC status codes onto resilience kinds: deadline
// expiry is a retryable transport problem, Unavailable a service
// failure, InvalidArgument a caller bug, ResourceExhausted upstream
// throttling.
func (c *AnalysisClient) classify(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &resilience.NetworkError{Op: "analysis probe", Err: err}
	}

	switch st.Code() {
	case codes.DeadlineExceeded:
		return &resilience.NetworkError{Op: "analysis probe", Err: err}
	case codes.Unavailable:
		return &resilience.ServiceError{DependencyKey: DependencyAnalysis, Err: err}
	case codes.InvalidArgument:
		return &resilience.ValidationError{Field: "request", Message: st.Message()}
	case codes.ResourceExhausted:
		return &resilience.RateLimitError{Message: "analysis service rate limit exceeded"}
	case codes.Canceled:
		return err
	default:
		return &resilience.ServiceError{DependencyKey: DependencyAnalysis, Err: err}
	}
}
