package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/gps-speedo/internal/activity"
	"github.com/shaunagostinho/gps-speedo/internal/gps"
	"github.com/shaunagostinho/gps-speedo/internal/imu"
	"github.com/shaunagostinho/gps-speedo/internal/units"
)

// Server polls the sensors into the tracker and feeds the local gauge over
// HTTP and WebSocket.
type Server struct {
	cfg     *Config
	tracker *Tracker
	gpsProv gps.Provider
	imuProv imu.Provider

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Status *Status        `json:"status,omitempty"`
	Config *DisplayConfig `json:"config,omitempty"`
	Stamp  int64          `json:"stamp"` // Unix ms
}

type startRequest struct {
	Activity string `json:"activity"` // simulated mode only
}

// New creates a new Server. Either provider may be nil.
func New(cfg *Config, tracker *Tracker, gpsProv gps.Provider, imuProv imu.Provider) *Server {
	return &Server{
		cfg:     cfg,
		tracker: tracker,
		gpsProv: gpsProv,
		imuProv: imuProv,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			// The gauge is served from anywhere on the local machine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes without starting any polling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/session/start", s.handleStart)
	mux.HandleFunc("/api/session/stop", s.handleStop)
	mux.HandleFunc("/api/config", s.handleConfig)
	return mux
}

// Run starts the sensor loops and the HTTP server, and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Tracking.AutoStart {
		s.tracker.Start()
	}
	s.Start(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Printf("[server] shutdown: %v", err)
		}
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start launches the sensor, timer and broadcast goroutines.
func (s *Server) Start(ctx context.Context) {
	if s.gpsProv != nil {
		go s.gpsLoop(ctx)
	}
	if s.imuProv != nil {
		go s.imuLoop(ctx)
	}
	go s.tickLoop(ctx)
	go s.broadcastLoop(ctx)
}

func (s *Server) gpsLoop(ctx context.Context) {
	ms := s.cfg.GPS.PollMs
	if ms <= 0 {
		ms = 1000
	}
	ticker := time.NewTicker(time.Duration(ms) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tracker.HandleFix(s.gpsProv.Read())
		}
	}
}

func (s *Server) imuLoop(ctx context.Context) {
	hz := s.cfg.Motion.PollHz
	if hz <= 0 {
		hz = 50
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tracker.HandleMotion(s.imuProv.Read())
		}
	}
}

func (s *Server) tickLoop(ctx context.Context) {
	ms := s.cfg.Tracking.TickMs
	if ms <= 0 {
		ms = 1000
	}
	ticker := time.NewTicker(time.Duration(ms) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tracker.Tick()
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	hz := s.cfg.Server.BroadcastHz
	if hz <= 0 {
		hz = 4
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.tracker.Status(s.cfg.SpeedUnit())
			s.broadcast(Frame{Status: &st, Stamp: time.Now().UnixMilli()})
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()

	log.Printf("[ws] client connected (%d total)", n)

	// Send display config + current status straight away
	display := s.cfg.DisplaySnapshot()
	st := s.tracker.Status(s.cfg.SpeedUnit())
	if data, err := json.Marshal(Frame{Status: &st, Config: &display, Stamp: time.Now().UnixMilli()}); err == nil {
		client.send <- data
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive; clients do not send commands)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			n := len(s.clients)
			close(client.send)
			s.clientsMu.Unlock()
			log.Printf("[ws] client disconnected (%d total)", n)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// unitFromRequest honours ?unit= and falls back to the configured unit.
func (s *Server) unitFromRequest(r *http.Request) (units.Unit, error) {
	if q := r.URL.Query().Get("unit"); q != "" {
		return units.Parse(q)
	}
	return s.cfg.SpeedUnit(), nil
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, err := s.unitFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.tracker.Status(u))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	}
	if req.Activity != "" {
		a, err := activity.Parse(req.Activity)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !s.tracker.SetSimulatedActivity(a) {
			http.Error(w, "activity can only be chosen in simulated mode", http.StatusConflict)
			return
		}
	}
	id := s.tracker.Start()
	writeJSON(w, map[string]string{"status": "ok", "sessionId": id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, err := s.unitFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.tracker.Stop(u))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[config] save failed: %v", err)
		}
		// Only display settings apply live; sensors, tracking and the
		// simulator are built at startup.
		restart := RestartKeys(body)
		if len(restart) > 0 {
			log.Printf("[config] saved %v, applies on restart", restart)
		}
		display := s.cfg.DisplaySnapshot()
		s.broadcast(Frame{Config: &display, Stamp: time.Now().UnixMilli()})
		writeJSON(w, configResponse{Status: "ok", RestartRequired: restart})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type configResponse struct {
	Status          string   `json:"status"`
	RestartRequired []string `json:"restartRequired,omitempty"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
