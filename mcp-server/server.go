package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"mcp-math/service"
	"mcp-math/shared"
	"mcp-math/transport"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	ServerName    = "mcp-math"
	ServerVersion = "1.0.0"
)

type Server struct {
	cfg       shared.ServerConfig
	math      *service.MathClient
	tools     *service.Registry
	transport *transport.Transport
	handler   http.Handler
}

// NewServer registers the arithmetic tools and builds the front door. A
// registry error is a configuration error and aborts startup.
func NewServer(cfg *shared.Config) (*Server, error) {
	s := &Server{
		cfg:   cfg.Server,
		math:  service.NewMathClient(cfg.MathAPI.BaseURL, cfg.MathAPI.Timeout),
		tools: service.NewRegistry(),
	}
	for _, desc := range []service.ToolDescriptor{s.addTool(), s.multiplyTool()} {
		if err := s.tools.RegisterDescriptor(desc); err != nil {
			return nil, err
		}
	}

	s.transport = transport.New(s.tools, transport.Options{
		ServerInfo:  mcp.Implementation{Name: ServerName, Version: ServerVersion},
		InitTimeout: cfg.Server.InitTimeout,
	})
	s.handler = NewHandler(s.transport, HandlerOptions{
		Path:         cfg.Server.Path,
		AllowedHosts: cfg.Server.AllowedHosts,
		KeepAlive:    cfg.Server.KeepAlive,
	})
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Transport() *transport.Transport { return s.transport }

// Run serves until ctx is cancelled, then drains connections and ends every
// session.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.transport.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", s.cfg.Addr).Str("path", s.cfg.Path).Msg("MCP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		return errors.Join(err, s.transport.Close())
	})
	return g.Wait()
}
