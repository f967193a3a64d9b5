package main

import (
	"context"
	"net"
	"sync"
	"time"

	config "github.com/NordCoder/posecoach/internal/config/coach-api"
	"github.com/NordCoder/posecoach/internal/obs"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const healthProbeEvery = 5 * time.Second

// buildGRPCServer exposes grpc.health.v1 backed by a storage ping. The
// returned stop func ends the probe loop.
func buildGRPCServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, ping func(context.Context) error) (*grpc.Server, net.Listener, func(), error) {
	grpcMetrics := grpcprometheus.NewServerMetrics()

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	grpcServer := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}

	probeCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		probeHealth(probeCtx, hs, ping, logger)
	}()
	stop := func() {
		cancel()
		wg.Wait()
		hs.Shutdown()
	}
	return grpcServer, ln, stop, nil
}

func probeHealth(ctx context.Context, hs *health.Server, ping func(context.Context) error, logger *zap.Logger) {
	t := time.NewTicker(healthProbeEvery)
	defer t.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		err := ping(pctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			logger.Info("grpc health", zap.String("status", status.String()), zap.Error(err))
			last = status
		}
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func serveGRPC(s *grpc.Server, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
	return s.Serve(ln)
}

// gracefulStopGRPC falls back to Stop when in-flight RPCs outlive timeout.
func gracefulStopGRPC(s *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.Stop()
	}
}
