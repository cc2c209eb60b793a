// Package handlers serves the directory over gRPC and HTTP, bridging the
// transport layer and the directory service.
package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gartstein/companydir/internal/directory/auth"
	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DirectoryController defines the business logic interface
// that the gRPC/HTTP handlers will invoke.
type DirectoryController interface {
	GetCompany(ctx context.Context, sid models.SID) (*models.CompanyView, error)
	GetCompanyByCIK(ctx context.Context, cik models.CIK) (*models.CompanyView, error)
	ListCompanies(ctx context.Context) ([]models.CompanyView, error)
	UpsertCompany(ctx context.Context, rec models.CompanyRecord) (models.SID, bool, error)
	DeleteCompany(ctx context.Context, sid models.SID) error
	FindNoiseCompanies(ctx context.Context, required []string) ([]models.SID, error)
}

// Server holds references to both a gRPC server and an HTTP server.
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	health       *health.Server
	logger       *zap.Logger
	grpcEndpoint string
	httpEndpoint string
}

// NewServer constructs a Server with separate endpoints for gRPC and HTTP.
func NewServer(
	grpcPort int,
	httpPort int,
	logger *zap.Logger,
	grpcOpts ...grpc.ServerOption,
) *Server {
	s := &Server{
		grpcServer:   grpc.NewServer(grpcOpts...),
		httpServer:   &http.Server{ReadHeaderTimeout: 10 * time.Second},
		health:       health.NewServer(),
		logger:       logger.Named("server"),
		grpcEndpoint: fmt.Sprintf(":%d", grpcPort),
		httpEndpoint: fmt.Sprintf(":%d", httpPort),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	return s
}

// RegisterGRPCHandler registers the gRPC handler for the DirectoryService.
func (s *Server) RegisterGRPCHandler(h DirectoryServer) {
	s.grpcServer.RegisterService(&DirectoryServiceDesc, h)
	s.health.SetServingStatus(auth.ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// RegisterHTTPRoutes mounts the REST routes and the metrics endpoint on a
// gateway mux guarded by the auth middleware.
func (s *Server) RegisterHTTPRoutes(h DirectoryServer, jwtSecret string, gatherer prometheus.Gatherer) error {
	mux, err := NewHTTPMux(h, gatherer)
	if err != nil {
		return err
	}

	s.httpServer.Handler = auth.HTTPMiddleware(mux, jwtSecret)
	s.httpServer.Addr = s.httpEndpoint
	return nil
}

// Start runs the gRPC and HTTP servers concurrently, returning on the first error.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(2)
	errChan := make(chan error, 2)

	// Start gRPC Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting gRPC server", zap.String("endpoint", s.grpcEndpoint))
		lis, err := net.Listen("tcp", s.grpcEndpoint)
		if err != nil {
			errChan <- fmt.Errorf("gRPC listen error: %w", err)
			return
		}
		if err := s.grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC serve error: %w", err)
		}
	}()

	// Start HTTP Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpEndpoint))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP serve error: %w", err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down both gRPC and HTTP servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	s.logger.Info("Servers stopped")
}

// NewHTTPMux builds the REST surface of the directory on a gateway mux.
func NewHTTPMux(h DirectoryServer, gatherer prometheus.Gatherer) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux()
	routes := &httpRoutes{server: h, marshaler: &runtime.JSONBuiltin{}}

	handlers := []httpRoute{
		{http.MethodGet, "/v1/companies", routes.listCompanies},
		{http.MethodGet, "/v1/companies/{sid}", routes.getCompany},
		{http.MethodGet, "/v1/ciks/{cik}", routes.getCompanyByCIK},
		{http.MethodPost, "/v1/companies", routes.upsertCompany},
		{http.MethodDelete, "/v1/companies/{sid}", routes.deleteCompany},
		{http.MethodPost, "/v1/maintenance/filter", routes.filterCompanies},
	}
	if gatherer != nil {
		metrics := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
		handlers = append(handlers, httpRoute{http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			metrics.ServeHTTP(w, r)
		}})
	}

	for _, rt := range handlers {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.fn); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return mux, nil
}
