package simulator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// mlBase is the route prefix shared by the Machine Learning resources.
const mlBase = "/subscriptions/{subscriptionId}/resourceGroups/{resourceGroupName}/providers/Microsoft.MachineLearningServices/workspaces/{workspaceName}"

// Server is the simulator HTTP server. All resource state lives in
// memory; tests reach it through the seed and inspection helpers.
type Server struct {
	config  Config
	logger  zerolog.Logger
	mux     *http.ServeMux
	handler http.Handler

	mu       sync.Mutex
	requests []string

	groups       *StateStore[ResourceGroup]
	accounts     *StateStore[StorageAccount]
	vaults       *StateStore[KeyVault]
	components   *StateStore[InsightsComponent]
	registries   *StateStore[ContainerRegistry]
	workspaces   *StateStore[Workspace]
	computes     *StateStore[ComputeResource]
	jobs         *StateStore[Job]
	datastores   *StateStore[Datastore]
	environments *StateStore[EnvironmentVersion]
	codes        *StateStore[CodeVersion]
	blobs        *blobStore
	logs         *StateStore[[]logRow]
}

// NewServer creates a simulator server with every service registered.
func NewServer(cfg Config) *Server {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Str("component", "simulator").
		Logger()

	s := &Server{
		config:       cfg,
		logger:       logger,
		mux:          http.NewServeMux(),
		groups:       NewStateStore[ResourceGroup](),
		accounts:     NewStateStore[StorageAccount](),
		vaults:       NewStateStore[KeyVault](),
		components:   NewStateStore[InsightsComponent](),
		registries:   NewStateStore[ContainerRegistry](),
		workspaces:   NewStateStore[Workspace](),
		computes:     NewStateStore[ComputeResource](),
		jobs:         NewStateStore[Job](),
		datastores:   NewStateStore[Datastore](),
		environments: NewStateStore[EnvironmentVersion](),
		codes:        NewStateStore[CodeVersion](),
		blobs:        newBlobStore(),
		logs:         NewStateStore[[]logRow](),
	}

	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.registerResourceGroups()
	s.registerStorage()
	s.registerKeyVault()
	s.registerInsights()
	s.registerContainerRegistry()
	s.registerWorkspaces()
	s.registerComputes()
	s.registerJobs()
	s.registerDatastores()
	s.registerAssets()
	s.registerMonitor()
	s.registerBlob()

	var handler http.Handler = s.mux
	handler = authPassthroughMiddleware(handler)
	handler = s.journalMiddleware(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler
	return s
}

// Handler returns the full middleware-wrapped handler, for mounting in
// httptest servers.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HandleFunc registers an extra route on the server's mux.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Logger returns the server's logger.
func (s *Server) Logger() zerolog.Logger {
	return s.logger
}

// journalMiddleware records every request so tests can assert on what the
// SDK actually sent.
func (s *Server) journalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Requests returns a copy of the request journal as "METHOD /path" lines,
// in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests counts journal entries matching the method whose path
// contains pathSubstring. An empty method matches any.
func (s *Server) CountRequests(method, pathSubstring string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, line := range s.requests {
		m, path, _ := strings.Cut(line, " ")
		if method != "" && m != method {
			continue
		}
		if strings.Contains(path, pathSubstring) {
			n++
		}
	}
	return n
}

// ResetRequests clears the request journal.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// ListenAndServe starts the server and blocks until shutdown. It listens
// for SIGTERM and SIGINT for graceful shutdown.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		s.logger.Info().Str("signal", sig.String()).Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		done <- srv.Shutdown(ctx)
	}()

	s.printBanner()

	var err error
	if s.config.TLSCert != "" && s.config.TLSKey != "" {
		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("starting HTTPS server")
		err = srv.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
	} else {
		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("starting HTTP server")
		err = srv.ListenAndServe()
	}

	if err == http.ErrServerClosed {
		return <-done
	}
	return err
}

func (s *Server) printBanner() {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  amlrun Azure simulator\n")
	fmt.Fprintf(os.Stderr, "  Listening on %s\n", s.config.ListenAddr)
	fmt.Fprintf(os.Stderr, "  SDK config: AMLRUN_ENDPOINT_URL=http://localhost%s\n", s.config.ListenAddr)
	fmt.Fprintf(os.Stderr, "              AMLRUN_BLOB_ENDPOINT_URL=http://localhost%s\n", s.config.ListenAddr)
	fmt.Fprintf(os.Stderr, "\n")
}
