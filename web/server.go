package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jd3nn1s/tirelog"
	"github.com/jd3nn1s/tirelog/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	clientBufferSize = 4
	writeTimeout     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// the display is served to phones on the car's network
		return true
	},
}

// Server exposes the latest record over HTTP and pushes the display to
// websocket clients. It is a tirelog.Forwarder.
type Server struct {
	router  *mux.Router
	metrics *metrics.Metrics

	mu      sync.RWMutex
	latest  *tirelog.Record
	display []byte
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewServer(m *metrics.Metrics) *Server {
	s := &Server{
		metrics: m,
		clients: map[*client]struct{}{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/api/record", s.record).Methods("GET")
	r.HandleFunc("/api/display", s.displayJSON).Methods("GET")
	r.HandleFunc("/ws", s.websocket).Methods("GET")
	r.Handle("/metrics", m.Handler()).Methods("GET")
	s.router = r
	return s
}

// Handler wraps the routes with access logging at debug level.
func (s *Server) Handler() http.Handler {
	return handlers.LoggingHandler(log.StandardLogger().WriterLevel(log.DebugLevel), s.router)
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithField("err", err).Warn("unable to shut down web server")
		}
		s.closeClients()
	}()

	log.WithField("addr", addr).Info("web server listening")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return errors.Wrap(err, "web server")
	}
	return ctx.Err()
}

// Forward keeps the record for the API and queues the display for every
// websocket client. Slow clients miss updates.
func (s *Server) Forward(rec *tirelog.Record) error {
	b, err := json.Marshal(tirelog.Project(rec))
	if err != nil {
		return errors.Wrap(err, "unable to marshal display")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = rec
	s.display = b
	for c := range s.clients {
		select {
		case c.send <- b:
		default:
		}
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	haveRecord := s.latest != nil
	clients := len(s.clients)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"have_record": haveRecord,
		"clients":     clients,
	})
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	rec := s.latest
	s.mu.RUnlock()
	if rec == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) displayJSON(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	b := s.display
	s.mu.RUnlock()
	if b == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("err", err).Warn("websocket upgrade failed")
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, clientBufferSize),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.display != nil {
		c.send <- s.display
	}
	s.mu.Unlock()
	log.WithField("remote", r.RemoteAddr).Info("display client connected")

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client messages and unregisters the client when the
// connection goes away.
func (s *Server) readPump(c *client) {
	defer s.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.WithField("err", err).Debug("websocket write failed")
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("err", err).Warn("json encode error")
	}
}
