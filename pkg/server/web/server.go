// Package web provides the plumbing for Courier's RESTful API.
package web

import (
	"context"
	"expvar"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/metric"
	"github.com/inbucket/courier/pkg/msghub"
	"github.com/inbucket/courier/pkg/repayment"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

var (
	// msgHub holds a reference to the message pub/sub system
	msgHub     *msghub.Hub
	manager    message.Manager
	repayments repayment.Manager
	rootConfig *config.Root

	// Router is shared between the web and rest packages.  It sends incoming requests to the
	// correct handler function.
	Router = mux.NewRouter()

	// ExpWebSocketConnectsCurrent tracks the number of open WebSockets
	ExpWebSocketConnectsCurrent = new(expvar.Int)
)

func init() {
	m := expvar.NewMap("http")
	m.Set("WebSocketConnectsCurrent", ExpWebSocketConnectsCurrent)
	m.Set("WebSocketConnectsHist", metric.TrackHistory(ExpWebSocketConnectsCurrent))
}

// Server defines an instance of the Web server.
type Server struct {
	// TODO Migrate global vars here.
	http     *http.Server
	listener net.Listener
	notify   chan error
}

// NewServer sets up things for unit tests or the Start() method.
func NewServer(
	conf *config.Root,
	mm message.Manager,
	rm repayment.Manager,
	mh *msghub.Hub,
) *Server {
	rootConfig = conf

	// NewContext() will use these for the web handlers.
	msgHub = mh
	manager = mm
	repayments = rm

	prefix := MakePathPrefixer(conf.Web.BasePath)
	if conf.Web.BasePath != "" {
		log.Info().Str("module", "web").Str("phase", "startup").Str("path", conf.Web.BasePath).
			Msg("Base path configured")
	}

	Router.Path(prefix("/debug/vars")).Handler(expvar.Handler()).Methods("GET")
	SetNoMatchHandlers(Router)

	var handler http.Handler = Router
	if len(conf.Web.CORSOrigins) > 0 {
		log.Info().Str("module", "web").Str("phase", "startup").
			Strs("origins", conf.Web.CORSOrigins).Msg("CORS enabled")
		handler = cors.New(cors.Options{
			AllowedOrigins: conf.Web.CORSOrigins,
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete,
			},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}).Handler(handler)
	}

	s := &http.Server{
		Addr:         conf.Web.Addr,
		Handler:      requestLoggingWrapper(handler),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return &Server{
		http:   s,
		notify: make(chan error, 1),
	}
}

// Start begins listening for HTTP requests.  readyFunc is called once the listener is open.
func (s *Server) Start(ctx context.Context, readyFunc func()) {
	log.Info().Str("module", "web").Str("phase", "startup").Str("addr", s.http.Addr).
		Msg("HTTP listening on tcp4")
	var err error
	s.listener, err = net.Listen("tcp", s.http.Addr)
	if err != nil {
		log.Error().Str("module", "web").Str("phase", "startup").Err(err).
			Msg("HTTP failed to start TCP4 listener")
		s.notify <- err
		close(s.notify)
		return
	}

	if readyFunc != nil {
		readyFunc()
	}

	// Listener go routine.
	go s.serve(ctx)

	// Wait for shutdown.
	<-ctx.Done()
	log.Debug().Str("module", "web").Str("phase", "shutdown").Msg("HTTP server shutting down on request")

	// Closing the listener will cause the serve() go routine to exit.
	if err := s.listener.Close(); err != nil {
		log.Debug().Str("module", "web").Str("phase", "shutdown").Err(err).
			Msg("Failed to close HTTP listener")
	}
}

// Addr returns the listening address, once Start has opened the listener.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// serve begins serving HTTP requests.
func (s *Server) serve(ctx context.Context) {
	// server.Serve blocks until we close the listener.
	err := s.http.Serve(s.listener)

	select {
	case <-ctx.Done():
		// Nop
	default:
		log.Error().Str("module", "web").Str("phase", "startup").Err(err).Msg("HTTP server failed")
		s.notify <- err
		close(s.notify)
		return
	}
}

// Notify allows the running Web server to be monitored for a fatal error.
func (s *Server) Notify() <-chan error {
	return s.notify
}

// MakePathPrefixer returns a function that will add the specified prefix (base) to request
// paths.  The prefix is normalized to begin with a single slash and carry no trailing slash.
func MakePathPrefixer(prefix string) func(string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix = "/" + prefix
	}
	return func(path string) string {
		return prefix + path
	}
}
