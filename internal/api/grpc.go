package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"recallwatch/internal/rawlayer"
)

// IngestService is the service name reported by the gRPC health server.
const IngestService = "recallwatch.Ingest"

// NewGRPCServer returns a gRPC server exposing only the standard health
// service, plus the health server so callers can flip its status.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(IngestService, healthpb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// WatchReadiness mirrors raw layer reachability into the health status of
// IngestService until ctx is done.
func WatchReadiness(ctx context.Context, hs *health.Server, repo *rawlayer.Repo, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := repo.Ping(pctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()
		hs.SetServingStatus(IngestService, status)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
