package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

const httpTimeout = 5 * time.Second

// StatusFunc returns the document served on GET /status.
type StatusFunc func() any

// Server exposes a Hub on GET /events and a JSON status on GET /status.
type Server struct {
	hub       *Hub
	addr      string
	server    *http.Server
	serverErr chan error
}

func NewRouter(hub *Hub, status StatusFunc) *httprouter.Router {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/events", hub)
	router.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		doc := map[string]any{"clients": hub.Clients()}
		if status != nil {
			doc["sensor"] = status()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})
	return router
}

// Listen binds addr and serves in the background.
func Listen(addr string, hub *Hub, status StatusFunc) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		hub:  hub,
		addr: ln.Addr().String(),
		// no write timeout: event streams are long lived
		server: &http.Server{
			Handler:           NewRouter(hub, status),
			ReadHeaderTimeout: httpTimeout,
			IdleTimeout:       2 * httpTimeout,
		},
		serverErr: make(chan error, 1),
	}
	go func() {
		s.serverErr <- s.server.Serve(ln)
	}()
	return s, nil
}

func (s *Server) Addr() string {
	return s.addr
}

// Shutdown disconnects websocket clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-s.serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
