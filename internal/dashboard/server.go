// Package dashboard provides a real-time WebSocket feed of the roster's
// sync activity.
//
// The dashboard broadcasts sync status changes, Dataset updates, pull
// outcomes and record counts to connected WebSocket clients, so a display
// in the club room can follow what the device is doing.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType names what a feed message carries.
type MessageType string

const (
	// MessageTypeSyncStatus indicates the sync status changed
	MessageTypeSyncStatus MessageType = "sync_status"

	// MessageTypeDatasetUpdate indicates the Dataset was replaced
	MessageTypeDatasetUpdate MessageType = "dataset_update"

	// MessageTypePullComplete indicates a pull finished
	MessageTypePullComplete MessageType = "pull_complete"

	// MessageTypeStats carries current record counts
	MessageTypeStats MessageType = "stats"
)

// Message is one frame of the feed. Data holds the type-specific payload.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Server fans roster activity out to every connected WebSocket client.
type Server struct {
	addr      string
	listener  net.Listener
	server    *http.Server
	authorize func(r *http.Request) bool

	// Connected feed clients
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Last message per type, replayed to new clients
	latest   map[MessageType]Message
	latestMu sync.Mutex

	// Outgoing frames, drained by fanOut
	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config controls how the feed server listens and who may connect.
type Config struct {
	// Port to listen on (default: 8080, 0 picks a free port)
	Port int

	// Authorize gates /ws and /health (optional; nil allows everyone)
	Authorize func(r *http.Request) bool

	// Logger receives connection events (nil uses log.Default)
	Logger *log.Logger
}

// DefaultConfig listens on 8080 with no authorization.
func DefaultConfig() *Config {
	return &Config{
		Port:   8080,
		Logger: log.Default(),
	}
}

// NewServer builds a feed server. Nothing listens until Start.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		authorize: config.Authorize,
		clients:   make(map[*websocket.Conn]bool),
		latest:    make(map[MessageType]Message),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start binds the listener and serves /ws, /health and / in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.guard(s.handleWebSocket))
	mux.HandleFunc("/health", s.guard(s.handleHealth))
	mux.HandleFunc("/", s.handleIndex)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.fanOut()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Serve: %v", err)
		}
	}()

	return nil
}

// Stop disconnects every client and waits for the serve loop to exit.
func (s *Server) Stop() error {
	s.logger.Printf("Shutting down feed (%d clients)", s.ClientCount())

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "roster feed closing")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down feed: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("Feed stopped")
	return nil
}

// Broadcast queues msg for every client. Status and stats frames are also
// remembered for replay. A full queue drops the frame.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Type == MessageTypeSyncStatus || msg.Type == MessageTypeStats {
		s.latestMu.Lock()
		s.latest[msg.Type] = msg
		s.latestMu.Unlock()
	}

	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Printf("Feed queue full, dropping %s frame", msg.Type)
	}
}

func (s *Server) fanOut() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Encoding %s frame: %v", msg.Type, err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Send outside the lock so a slow client can't stall registration
			for _, conn := range clients {
				if err := s.write(conn, data); err != nil {
					s.logger.Printf("Dropping feed client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// guard rejects requests Authorize does not accept.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authorize != nil && !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleWebSocket registers a new feed client and replays the latest state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("Rejected feed client from %s: %v", r.RemoteAddr, err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Printf("Feed client %s joined, %d connected", r.RemoteAddr, n)

	// Replay the current state so the client doesn't start blank
	for _, msg := range s.replay() {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := s.write(conn, data); err != nil {
			s.removeClient(conn)
			return
		}
	}

	go s.drain(conn)
}

func (s *Server) replay() []Message {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()

	var out []Message
	for _, t := range []MessageType{MessageTypeSyncStatus, MessageTypeStats} {
		if msg, ok := s.latest[t]; ok {
			out = append(out, msg)
		}
	}
	return out
}

// drain discards anything the client sends until it disconnects.
func (s *Server) drain(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	_, ok := s.clients[conn]
	delete(s.clients, conn)
	n := len(s.clients)
	s.clientsMu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Feed client left, %d connected", n)
	}
}

// handleHealth reports the client count and the last known sync status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	}

	s.latestMu.Lock()
	if msg, ok := s.latest[MessageTypeSyncStatus]; ok {
		resp["sync"] = msg.Data
	}
	s.latestMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleIndex describes the feed for anyone who opens it in a browser.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"feed":   "ws://" + r.Host + "/ws",
		"health": "http://" + r.Host + "/health",
		"frames": []MessageType{MessageTypeSyncStatus, MessageTypeDatasetUpdate, MessageTypePullComplete, MessageTypeStats},
	})
}

// Addr is the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount is the number of connected feed clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
