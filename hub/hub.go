// Package hub serves a Mood Store over HTTP so several globes can share moods.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/store"
)

const (
	DefaultLookback = time.Hour
	shutdownTimeout = 5 * time.Second
	writeTimeout    = 10 * time.Second
	maxBodyBytes    = 16 << 10
)

type Server struct {
	store    store.Store
	lg       *slog.Logger
	access   io.Writer
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewServer serves st; access receives Apache-style request logs and may be nil
func NewServer(st store.Store, lg *slog.Logger, access io.Writer) *Server {
	if lg == nil {
		lg = logging.Discard()
	}
	if access == nil {
		access = io.Discard
	}
	return &Server{
		store:  st,
		lg:     lg,
		access: access,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/moods", s.postMood).Methods("POST")
	r.HandleFunc("/moods", s.listMoods).Methods("GET")
	r.HandleFunc("/moods/stream", s.streamMoods).Methods("GET")
	r.HandleFunc("/messages", s.postMessage).Methods("POST")
	r.HandleFunc("/messages/stream", s.streamMessages).Methods("GET")

	return r
}

// Handler wraps the router with panic recovery and access logging
func (s *Server) Handler() http.Handler {
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.Router())
	return handlers.LoggingHandler(s.access, recovered)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.lg.Info("hub listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.lg.Info("hub shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
