// Package server owns the HTTPS listener and its lifecycle.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"quickshare/backend/api/handler"
	"quickshare/backend/api/middleware"
	"quickshare/backend/api/route"
	"quickshare/backend/common"
	apperrors "quickshare/backend/common/errors"
	"quickshare/backend/library/cert"
	"quickshare/backend/library/network"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

var ErrPortInUse = errors.New("port already in use")

type Options struct {
	Config        *common.ConfigStore
	Handler       *handler.Handler
	Certificates  *cert.Manager
	Key           []byte
	SessionSecret string
	CORSOrigins   string
	WebDir        string
}

// Server starts and stops the HTTPS endpoint. Start and Stop are
// idempotent and serialized.
type Server struct {
	opts Options

	mu      sync.Mutex
	running bool
	srv     *http.Server
	addr    net.Addr
	errs    chan error
}

func New(opts Options) *Server {
	return &Server{
		opts: opts,
		errs: make(chan error, 1),
	}
}

// Errors reports listener failures that happen after Start returned.
func (s *Server) Errors() <-chan error {
	return s.errs
}

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr is the bound address, nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	return s.startLocked(ctx)
}

func (s *Server) startLocked(ctx context.Context) error {
	cfg := s.opts.Config.Snapshot()
	port := cfg.Network.Port

	inUse, err := network.IsPortInUse(port)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("%w: %d", ErrPortInUse, port)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.opts.Certificates.EnsureCertificateExists(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCertificateFault, http.StatusInternalServerError, "Certificate failure.")
		}
		return nil
	})
	g.Go(func() error {
		if err := os.MkdirAll(cfg.Transmit.SavePath, 0o755); err != nil {
			return fmt.Errorf("create save directory: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	tlsCert, err := s.opts.Certificates.LoadTLSCertificate()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCertificateFault, http.StatusInternalServerError, "Certificate failure.")
	}

	engine, err := s.buildEngine()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPortInUse, err)
	}
	tlsLn := tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		MinVersion:   tls.VersionTLS12,
	})

	srv := &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(tlsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.SysError("server stopped unexpectedly: " + err.Error())
			select {
			case s.errs <- err:
			default:
			}
		}
	}()

	s.srv = srv
	s.addr = ln.Addr()
	s.running = true
	common.SysLog("Server listening on port: " + strconv.Itoa(port))
	return nil
}

func (s *Server) buildEngine() (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	engine.Use(middleware.Recovery())
	engine.Use(gin.Logger())

	sessionMiddleware, err := middleware.Sessions(s.opts.Key, s.opts.SessionSecret)
	if err != nil {
		return nil, err
	}
	engine.Use(sessionMiddleware)
	if cors := middleware.CORS(s.opts.CORSOrigins); cors != nil {
		engine.Use(cors)
	}

	route.SetRouter(engine, s.opts.Handler, s.opts.WebDir)
	return engine, nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.srv = nil
	s.addr = nil
	s.running = false
	common.SysLog("Server stopped")
	return err
}

// ApplyConfig validates and persists cfg. A running server is restarted
// when the port changes; other settings are read per request.
func (s *Server) ApplyConfig(ctx context.Context, cfg common.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.opts.Config.Snapshot()
	if err := s.opts.Config.Apply(cfg); err != nil {
		return err
	}
	if !s.running || previous.Network.Port == cfg.Network.Port {
		return nil
	}
	common.SysLog(fmt.Sprintf("port changed from %d to %d, restarting server", previous.Network.Port, cfg.Network.Port))
	if err := s.stopLocked(ctx); err != nil {
		return err
	}
	return s.startLocked(ctx)
}
