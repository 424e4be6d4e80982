// Package grpchealth exposes the standard grpc.health.v1 service so
// orchestrators can health-check the API over gRPC.
package grpchealth

import (
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "mealhub.v1.Planner"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

// Listen binds the port; status starts as NOT_SERVING until SetServing.
func Listen(port int) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("grpc listen: %w", err)
	}

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{grpc: gs, health: hs, lis: lis}, nil
}

func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve blocks until Stop.
func (s *Server) Serve() error {
	log.Printf("INFO grpc: health server listening on %s", s.lis.Addr())
	if err := s.grpc.Serve(s.lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func (s *Server) SetServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Stop marks the service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
