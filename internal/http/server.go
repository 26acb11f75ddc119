package http

import (
	"context"
	"errors"
	"net"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine
	srv    *nethttp.Server
	// cancels request contexts so SSE streams end on shutdown
	closeStreams context.CancelFunc
}

func NewServer(addr string, cfg RouterConfig) *Server {
	engine := NewRouter(cfg)
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		Engine: engine,
		srv: &nethttp.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return base },
		},
		closeStreams: cancel,
	}
}

// Run serves until ctx is done, then drains in-flight requests for up to
// ten seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		s.closeStreams()
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.closeStreams()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
