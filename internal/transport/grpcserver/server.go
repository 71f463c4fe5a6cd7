// Package grpcserver поднимает служебный gRPC-сервер: health и reflection.
package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName — имя, под которым шлюз отвечает в health-проверках.
const ServiceName = "care.gateway"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	ping   func(context.Context) error
	log    zerolog.Logger
}

// New регистрирует health и reflection. ping проверяет зависимости (БД);
// nil — проверка не выполняется.
func New(ping func(context.Context) error, log zerolog.Logger) *Server {
	log = log.With().Str("component", "grpc").Logger()
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(log)))
	hs := health.NewServer()

	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	s := &Server{grpc: gs, health: hs, ping: ping, log: log}
	s.setServing(true)
	return s
}

// Serve блокируется до остановки сервера.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Watch периодически обновляет статус health по результату ping, пока ctx не отменён.
func (s *Server) Watch(ctx context.Context, every time.Duration) {
	if s.ping == nil {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Check(ctx)
		}
	}
}

// Check выполняет ping и выставляет SERVING / NOT_SERVING.
func (s *Server) Check(ctx context.Context) {
	if s.ping == nil {
		return
	}
	if err := s.ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("dependency check failed")
		s.setServing(false)
		return
	}
	s.setServing(true)
}

// Stop переводит health в NOT_SERVING и дожидается завершения активных вызовов.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func unaryLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug().
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("latency", time.Since(start)).
			Msg("rpc")
		return resp, err
	}
}
