package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"bouncer/hal"
	"bouncer/internal/buildinfo"
	"bouncer/link"
	"bouncer/sketch"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SketchSource provides animation snapshots.
type SketchSource interface {
	State() sketch.State
}

// LinkControl is the part of the link service the API drives.
type LinkControl interface {
	Status() link.Status
	Inject(p []byte) error
}

// Options wires the server to the running sketch. Link and Ports may be nil.
type Options struct {
	Sketch      SketchSource
	Link        LinkControl
	Ports       hal.Ports
	Framebuffer hal.Framebuffer
	Log         hal.Logger
	StreamHz    int
}

// ApiResponse is the envelope for every JSON reply.
type ApiResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Server is the optional HTTP status server.
type Server struct {
	opts      Options
	startTime time.Time
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	srv     *http.Server
	closing chan struct{}
}

func NewServer(opts Options) *Server {
	if opts.StreamHz <= 0 {
		opts.StreamHz = 10
	}
	return &Server{
		opts:      opts,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		closing: make(chan struct{}),
	}
}

// Handler builds the gin engine with all routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	if s.opts.Log != nil {
		r.Use(gin.LoggerWithWriter(logWriter{s.opts.Log}))
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/state", s.handleState)
		api.GET("/ports", s.handlePorts)
		api.GET("/frame.png", s.handleFrame)
		api.POST("/link", s.handleLinkInject)
		api.GET("/stream", s.handleStream)
	}
	return r
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: %w", err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.logf("status API listening on http://%s", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logf("status API stopped: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the listener and ends open streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	select {
	case <-s.closing:
	default:
		close(s.closing)
	}
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) logf(format string, args ...any) {
	if s.opts.Log == nil {
		return
	}
	s.opts.Log.WriteLineString(fmt.Sprintf(format, args...))
}

type logWriter struct{ l hal.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.l.WriteLineBytes(bytes.TrimRight(p, "\n"))
	return len(p), nil
}

func version() string { return buildinfo.Short() }
