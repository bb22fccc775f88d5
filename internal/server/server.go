// Package server carries the websocket transport and the control-plane
// event dispatch. Each connected client gets one duplex event channel; the
// read loop dispatches inbound events against the registry and injector,
// the write pump drains a bounded send queue. Frames and audio chunks are
// dropped rather than queued when a client cannot keep up.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hostcast/internal/fileshare"
	"hostcast/internal/geometry"
	"hostcast/internal/input"
	"hostcast/internal/protocol"
	"hostcast/internal/scheduler"
	"hostcast/internal/session"
	"hostcast/internal/types"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 64
)

// Config holds all server configuration, including the device factories so
// tests can substitute fakes for the capture and input layers.
type Config struct {
	Addr           string
	FPS            int
	TargetWidth    int
	Quality        int
	VirtualQuality int
	Stats          bool
	UploadDir      string

	NewCapturer scheduler.CapturerFactory
	NewAudio    scheduler.AudioFactory
	NewDriver   func() (types.InputDriver, error)
}

type Server struct {
	cfg      Config
	registry *session.Registry
	sched    *scheduler.Scheduler
	injector *input.Injector
	driver   types.InputDriver
	files    *fileshare.Store

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*client
}

// client is one websocket connection with its outbound queue.
type client struct {
	id   string
	conn *websocket.Conn
	send chan protocol.Envelope

	mu     sync.Mutex
	closed bool
}

// trySend queues an event without blocking. Events for a slow or closed
// client are dropped.
func (c *client) trySend(env protocol.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- env:
	default:
	}
}

func (c *client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	c.conn.Close()
}

func New(cfg Config) (*Server, error) {
	registry := session.NewRegistry()

	driver, err := cfg.NewDriver()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		injector: input.New(registry, driver),
		driver:   driver,
		conns:    make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	s.sched = scheduler.New(scheduler.Config{
		FPS:            cfg.FPS,
		TargetWidth:    cfg.TargetWidth,
		Quality:        cfg.Quality,
		VirtualQuality: cfg.VirtualQuality,
		Stats:          cfg.Stats,
		NewCapturer:    cfg.NewCapturer,
		NewAudio:       cfg.NewAudio,
		Cursor:         driver.CursorPos,
	}, registry, s)

	if cfg.UploadDir != "" {
		files, err := fileshare.NewStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		s.files = files
	}

	return s, nil
}

// Registry exposes the session table, mainly for tests.
func (s *Server) Registry() *session.Registry { return s.registry }

// Handler returns the HTTP mux with the websocket endpoint and, when an
// upload directory is configured, the file-sharing routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.files != nil {
		s.files.Register(mux)
	}
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("starting hostcast on %s (%d fps, target width %d)",
		s.cfg.Addr, s.cfg.FPS, s.cfg.TargetWidth)
	return http.ListenAndServe(s.cfg.Addr, s.Handler())
}

// Teardown stops streaming and closes every client connection.
func (s *Server) Teardown() {
	s.mu.Lock()
	conns := make([]*client, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[string]*client)
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	s.sched.Stop(0)
	s.driver.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}

	id := uuid.New().String()
	c := &client{
		id:   id,
		conn: conn,
		send: make(chan protocol.Envelope, sendQueueSize),
	}

	s.mu.Lock()
	s.conns[id] = c
	s.mu.Unlock()

	go s.writePump(c)

	_, edge := s.registry.Connect(id)
	log.Printf("client connected: %.8s (total %d)", id, s.registry.Count())
	if edge != 0 {
		s.sched.Start(edge)
	} else if host := s.registry.HostScreen(); host.Width > 0 {
		// Joined a run already in progress; the start broadcast happened
		// before this connection existed.
		s.SendTo(id, protocol.EventScreenInfo, protocol.ScreenInfo{
			Width: host.Width, Height: host.Height,
		})
	}

	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer s.dropClient(c)

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				log.Printf("client %.8s read: %v", c.id, err)
			}
			return
		}
		s.handleEvent(c.id, env)
	}
}

func (s *Server) writePump(c *client) {
	for env := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(env); err != nil {
			// The read loop notices the closed connection and runs the
			// disconnect path.
			c.conn.Close()
			return
		}
	}
}

func (s *Server) dropClient(c *client) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	c.close()

	edge := s.registry.Disconnect(c.id)
	log.Printf("client disconnected: %.8s (remaining %d)", c.id, s.registry.Count())
	if edge != 0 {
		s.sched.Stop(edge)
	}
}

// handleEvent dispatches one inbound event for a session. It is a function
// of (registry, session id, payload) so the control plane is testable
// without a live connection.
func (s *Server) handleEvent(id string, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventSetDisplayMode:
		var req protocol.DisplayModeRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("client %.8s: bad %s payload: %v", id, env.Event, err)
			return
		}
		s.configureDisplay(id, req)

	case protocol.EventEnableControl:
		var req protocol.EnableControl
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("client %.8s: bad %s payload: %v", id, env.Event, err)
			return
		}
		if err := s.registry.SetControl(id, req.Enabled); err != nil {
			return
		}
		log.Printf("client %.8s: control %v", id, req.Enabled)
		s.SendTo(id, protocol.EventControlStatus, protocol.ControlStatus{Enabled: req.Enabled})

	case protocol.EventMouseMove, protocol.EventClientMouseMove:
		var req protocol.MouseMove
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		s.injector.MouseMove(id, req.X, req.Y)

	case protocol.EventMouseClick, protocol.EventClientMouseClick:
		var req protocol.MouseClick
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		s.injector.MouseClick(id, req.Button, req.Action)

	case protocol.EventMouseScroll, protocol.EventClientMouseScroll:
		var req protocol.MouseScroll
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		s.injector.MouseScroll(id, req.DeltaX, req.DeltaY)

	case protocol.EventKeyEvent, protocol.EventClientKeyEvent:
		var req protocol.KeyEvent
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		s.injector.KeyEvent(id, req.Key, req.Action)

	case protocol.EventPing:
		s.SendTo(id, protocol.EventPong, nil)

	default:
		// Unknown events are dropped, not errors.
	}
}

func (s *Server) configureDisplay(id string, req protocol.DisplayModeRequest) {
	// Omitted fields keep the session's current settings.
	cur, ok := s.registry.Get(id)
	if !ok {
		return
	}
	mode := session.Mode(req.Mode)
	if req.Mode == "" {
		mode = cur.Mode
	}
	pos := geometry.Position(req.Position)
	if req.Position == "" {
		pos = cur.Position
	}
	res := req.Resolution
	if res.Width == 0 && res.Height == 0 {
		res = cur.Resolution
	}

	sess, err := s.registry.Configure(id, mode, pos, res, req.DisplayName)
	if err != nil {
		log.Printf("client %.8s: configure rejected: %v", id, err)
		return
	}

	host := s.registry.HostScreen()
	bounds, err := sess.Bounds(host)
	if err != nil {
		log.Printf("client %.8s: bounds: %v", id, err)
		return
	}

	log.Printf("client %.8s configured: %s %s %dx%d",
		id, sess.Mode, sess.Position, sess.Resolution.Width, sess.Resolution.Height)

	s.SendTo(id, protocol.EventDisplayConfigured, protocol.DisplayConfigured{
		VirtualBounds: bounds,
		HostScreen:    protocol.ScreenInfo{Width: host.Width, Height: host.Height},
	})
}

// SendTo queues an event for one client. A full queue drops the event;
// delivery is not guaranteed under load.
func (s *Server) SendTo(sessionID, event string, payload any) {
	s.mu.Lock()
	c, ok := s.conns[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	c.trySend(protocol.NewEnvelope(event, payload))
}

// Broadcast queues an event for every connected client.
func (s *Server) Broadcast(event string, payload any) {
	env := protocol.NewEnvelope(event, payload)

	s.mu.Lock()
	conns := make([]*client, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.trySend(env)
	}
}

var _ scheduler.Broadcaster = (*Server)(nil)
