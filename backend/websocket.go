// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/flashcardNFC/fastball/backend/sim"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Message is the websocket envelope in both directions. Only the fields
// relevant to Type are set.
type Message struct {
	Type      string            `json:"type"`
	SessionID string            `json:"sessionId,omitempty"`
	X         *float64          `json:"x,omitempty"`
	Y         *float64          `json:"y,omitempty"`
	Spectator bool              `json:"spectator,omitempty"`
	Frame     *sim.Frame        `json:"frame,omitempty"`
	Contact   *sim.ContactEvent `json:"contact,omitempty"`
	Outcome   *sim.PitchOutcome `json:"outcome,omitempty"`
	Play      string            `json:"play,omitempty"`
	State     *sim.GameState    `json:"state,omitempty"`
	Stats     *sim.BattingLine  `json:"stats,omitempty"`
	Summary   *sim.Summary      `json:"summary,omitempty"`
	Career    *CareerStats      `json:"career,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// hubRequest is a client message stamped with the session clock at the
// moment it was read.
type hubRequest struct {
	client *wsClient
	msg    Message
	at     time.Duration
	// invalid is set when msg failed validation; the hub only replies.
	invalid error
}

// Hub runs one session. Its goroutine is the only one touching the
// session, its delivery and the clients' send channels.
type Hub struct {
	sessionID string
	owner     string

	clients    map[*wsClient]bool
	requests   chan hubRequest
	register   chan *wsClient
	unregister chan *wsClient
	quit       chan struct{}
	done       chan struct{}

	session  *GameSession
	delivery *sim.Delivery
	start    time.Time

	lastFrame time.Duration
	lastPCI   sim.Vec2
	moving    bool

	hm *HubManager
}

func newHub(s *GameSession, hm *HubManager) *Hub {
	h := &Hub{
		sessionID:  s.ID,
		owner:      s.OwnerID,
		clients:    make(map[*wsClient]bool),
		requests:   make(chan hubRequest, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		session:    s,
		delivery:   s.NewDelivery(hm.opts),
		start:      time.Now(),
		hm:         hm,
	}
	h.syncAutoPitch(0)
	return h
}

// ownerAttached reports whether the player is connected.
func (h *Hub) ownerAttached() bool {
	for c := range h.clients {
		if !c.spectator {
			return true
		}
	}
	return false
}

// syncAutoPitch pauses automatic pitching while the player is away.
func (h *Hub) syncAutoPitch(now time.Duration) {
	h.delivery.SetAutoPitch(h.hm.opts.AutoPitch && h.ownerAttached(), now)
}

func (h *Hub) addClient(c *wsClient, now time.Duration) {
	h.clients[c] = true
	hello := h.stateMessage()
	hello.Spectator = c.spectator
	c.sendJSON(hello)
	c.sendJSON(Message{Type: MsgTypeFrame, Frame: h.frame(now)})
	h.syncAutoPitch(now)
}

func (h *Hub) removeClient(c *wsClient, now time.Duration) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.syncAutoPitch(now)
}

// clock is the session clock handed to the delivery.
func (h *Hub) clock() time.Duration {
	return time.Since(h.start)
}

func (h *Hub) run() {
	defer close(h.done)

	ticker := time.NewTicker(h.hm.tickInterval)
	defer ticker.Stop()
	idleTimer := time.NewTicker(hubIdleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case client := <-h.register:
			h.addClient(client, h.clock())
		case client := <-h.unregister:
			h.removeClient(client, h.clock())
		case req := <-h.requests:
			h.handle(req)
		case <-ticker.C:
			h.tick(h.clock())
		case <-idleTimer.C:
			if len(h.clients) == 0 && h.hm.removeIfIdle(h) {
				h.hm.debugf("[HUB] session %s idle, closing", h.sessionID)
				return
			}
		case <-h.quit:
			for client := range h.clients {
				close(client.send)
			}
			h.clients = nil
			return
		}
	}
}

// join registers client unless the hub has already stopped.
func (h *Hub) join(c *wsClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(req hubRequest) {
	select {
	case h.requests <- req:
	case <-h.done:
	}
}

func (h *Hub) handle(req hubRequest) {
	c := req.client
	if !h.clients[c] {
		return
	}
	if req.invalid != nil {
		c.sendJSON(Message{Type: MsgTypeError, Error: req.invalid.Error()})
		return
	}
	if req.msg.Type == MsgTypePing {
		c.sendJSON(Message{Type: MsgTypePong})
		return
	}
	if c.spectator {
		c.sendJSON(Message{Type: MsgTypeError, Error: "Forbidden: spectators cannot play"})
		return
	}

	switch req.msg.Type {
	case MsgTypeStart:
		if !h.delivery.Started() {
			h.delivery.Start(req.at)
			h.broadcast(h.stateMessage())
			return
		}
		events, err := h.delivery.StartPitch(req.at)
		if err != nil {
			c.sendJSON(Message{Type: MsgTypeError, Error: err.Error()})
			return
		}
		h.dispatch(events)
	case MsgTypeSwing:
		if !h.delivery.Swing(req.at) {
			h.hm.debugf("[HUB] session %s: swing ignored during %s", h.sessionID, h.delivery.Phase())
		}
	case MsgTypePCI:
		h.delivery.SetPCI(sim.Vec2{X: *req.msg.X, Y: *req.msg.Y})
	case MsgTypeSimulateHalf:
		events, err := h.delivery.SimulateHalf(req.at)
		if err != nil {
			c.sendJSON(Message{Type: MsgTypeError, Error: err.Error()})
			return
		}
		h.dispatch(events)
	}
}

func (h *Hub) tick(now time.Duration) {
	h.dispatch(h.delivery.Tick(now))

	if len(h.clients) == 0 {
		return
	}
	phase := h.delivery.Phase()
	pci := h.delivery.PCI()
	moving := phase != sim.PhaseIdle
	if moving || h.moving || pci != h.lastPCI || now-h.lastFrame >= idleFrameInterval {
		h.broadcast(Message{Type: MsgTypeFrame, Frame: h.frame(now)})
		h.lastFrame = now
		h.lastPCI = pci
	}
	h.moving = moving
}

func (h *Hub) frame(now time.Duration) *sim.Frame {
	f := h.delivery.Frame(now)
	return &f
}

// dispatch turns delivery events into messages, persisting after every
// completed reducer step.
func (h *Hub) dispatch(events []sim.Event) {
	for _, e := range events {
		switch e.Kind {
		case sim.EventContact:
			h.broadcast(Message{Type: MsgTypeContact, Contact: e.Contact})
		case sim.EventOutcome:
			// The state has not moved yet, so the play reads from the
			// count it was made in.
			play := sim.Describe(h.delivery.State(), *e.Outcome)
			h.session.AddPlay(play)
			if h.hm.metrics != nil {
				h.hm.metrics.RecordOutcome(*e.Outcome)
			}
			h.broadcast(Message{Type: MsgTypeOutcome, Outcome: e.Outcome, Play: play})
		case sim.EventStateChanged:
			h.session.Record(h.delivery)
			h.persist()
			msg := h.stateMessage()
			msg.Play = sim.DescribeTransition(*e.Transition)
			h.broadcast(msg)
		case sim.EventGameOver:
			h.gameOver(e.Summary)
		}
	}
}

func (h *Hub) persist() {
	if h.hm.persister == nil {
		return
	}
	save := h.hm.persister.PersistSession
	if ap, ok := h.hm.persister.(AsyncPersister); ok {
		save = ap.Autosave
	}
	if err := save(h.session); err != nil {
		log.Printf("[HUB] session %s: autosave failed: %v", h.sessionID, err)
	}
}

func (h *Hub) gameOver(sum *sim.Summary) {
	if sum == nil {
		s := h.delivery.Summary()
		sum = &s
	}
	msg := Message{Type: MsgTypeGameOver, Summary: sum}
	if h.hm.metrics != nil {
		h.hm.metrics.RecordGameOver()
	}
	if h.hm.profiles != nil && h.owner != "" {
		p, err := h.hm.profiles.RecordGame(h.owner, *sum, h.session.Difficulty, h.session.Tournament)
		if err != nil {
			log.Printf("[HUB] session %s: recording career stats for %s: %v", h.sessionID, maskEmail(h.owner), err)
		} else {
			msg.Career = &p.Career
		}
	}
	log.Printf("[HUB] session %s final %d-%d", h.sessionID, sum.PlayerScore, sum.ComputerScore)
	h.broadcast(msg)
}

func (h *Hub) stateMessage() Message {
	state := h.delivery.State()
	stats := h.delivery.Stats()
	return Message{Type: MsgTypeState, SessionID: h.sessionID, State: &state, Stats: &stats}
}

// broadcast sends msg to every client, dropping any that cannot keep up.
func (h *Hub) broadcast(msg Message) {
	dropped := false
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(h.clients, client)
			dropped = true
		}
	}
	if dropped {
		h.syncAutoPitch(h.clock())
	}
}

// HubManager manages the hubs of live sessions.
type HubManager struct {
	hubs map[string]*Hub
	mu   sync.Mutex

	sessions     *SessionStore
	persister    Persister
	profiles     *ProfileStore
	metrics      *PitchMetrics
	opts         DeliveryOptions
	tickInterval time.Duration
	debugf       func(string, ...any)
}

// HubConfig wires a HubManager.
type HubConfig struct {
	Sessions *SessionStore
	// Persister receives autosaves. Defaults to Sessions.
	Persister    Persister
	Profiles     *ProfileStore
	Metrics      *PitchMetrics
	Delivery     DeliveryOptions
	TickInterval time.Duration
	Debugf       func(string, ...any)
}

func NewHubManager(cfg HubConfig) *HubManager {
	hm := &HubManager{
		hubs:         make(map[string]*Hub),
		sessions:     cfg.Sessions,
		persister:    cfg.Persister,
		profiles:     cfg.Profiles,
		metrics:      cfg.Metrics,
		opts:         cfg.Delivery,
		tickInterval: cfg.TickInterval,
		debugf:       cfg.Debugf,
	}
	if hm.persister == nil && cfg.Sessions != nil {
		hm.persister = cfg.Sessions
	}
	if hm.tickInterval <= 0 {
		hm.tickInterval = DefaultTickInterval
	}
	if hm.debugf == nil {
		hm.debugf = func(string, ...any) {}
	}
	return hm
}

// GetHub returns the running hub for the session, loading the session and
// starting a hub when there is none.
func (hm *HubManager) GetHub(id string) (*Hub, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if hub, ok := hm.hubs[id]; ok {
		return hub, nil
	}
	s, err := hm.sessions.LoadSession(id)
	if err != nil {
		return nil, err
	}
	if s.Status == SessionStatusDeleted {
		return nil, os.ErrNotExist
	}
	hub := newHub(s, hm)
	hm.hubs[id] = hub
	go hub.run()
	return hub, nil
}

// joinHubAttempts bounds how often joinHub chases a hub that stopped
// between GetHub and join.
const joinHubAttempts = 3

// joinHub registers c with hub, the session's hub as returned by GetHub.
// When that hub has already stopped, e.g. reaped as idle, it asks for the
// session's hub again. It returns the hub c joined.
func (hm *HubManager) joinHub(id string, hub *Hub, c *wsClient) (*Hub, error) {
	for attempt := 1; ; attempt++ {
		c.hub = hub
		c.spectator = c.userId == "" || c.userId != hub.owner
		if hub.join(c) {
			return hub, nil
		}
		if attempt == joinHubAttempts {
			return nil, fmt.Errorf("hub stopped %d times while joining", attempt)
		}
		hm.debugf("[HUB] session %s: hub stopped before join, retrying", id)
		var err error
		if hub, err = hm.GetHub(id); err != nil {
			return nil, err
		}
	}
}

// ActiveCount returns the number of running hubs.
func (hm *HubManager) ActiveCount() int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return len(hm.hubs)
}

func (hm *HubManager) removeIfIdle(h *Hub) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	if len(h.requests) > 0 {
		return false
	}
	if hm.hubs[h.sessionID] == h {
		delete(hm.hubs, h.sessionID)
	}
	return true
}

// StopHub stops the session's hub, if any, and waits for it to exit.
func (hm *HubManager) StopHub(id string) {
	hm.mu.Lock()
	hub, ok := hm.hubs[id]
	delete(hm.hubs, id)
	hm.mu.Unlock()
	if ok {
		close(hub.quit)
		<-hub.done
	}
}

// Close stops every hub.
func (hm *HubManager) Close() {
	hm.mu.Lock()
	hubs := hm.hubs
	hm.hubs = make(map[string]*Hub)
	hm.mu.Unlock()
	for _, hub := range hubs {
		close(hub.quit)
		<-hub.done
	}
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan Message
	userId    string
	spectator bool
}

// readPump pumps messages from the websocket connection to the hub.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
		req := hubRequest{client: c, msg: msg, at: c.hub.clock()}
		if err := validateClientMessage(msg); err != nil {
			log.Printf("Invalid message from user %s: %v", maskEmail(c.userId), err)
			req.invalid = err
		}
		c.hub.submit(req)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON queues msg without blocking. A full queue drops the message;
// broadcast takes care of clients that stay behind. Only the hub goroutine
// may call it, since that goroutine closes send.
func (c *wsClient) sendJSON(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// ServeWS attaches a websocket to a session. The owner plays; anyone
// else watches.
func ServeWS(hm *HubManager, w http.ResponseWriter, r *http.Request) {
	userId := getUserID(r)

	sessionId := r.URL.Query().Get("sessionId")
	if sessionId == "" || !isValidUUID(sessionId) {
		http.Error(w, "Invalid sessionId", http.StatusBadRequest)
		return
	}

	hub, err := hm.GetHub(sessionId)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		log.Printf("[HUB] loading session %s: %v", sessionId, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan Message, 256),
		userId: userId,
	}
	if _, err := hm.joinHub(sessionId, hub, client); err != nil {
		log.Printf("[HUB] session %s: %v", sessionId, err)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(Message{Type: MsgTypeError, Error: "session unavailable"})
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, ""))
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}
