package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cuttlefree/cuttle-server-go/internal/config"
	"github.com/cuttlefree/cuttle-server-go/internal/game"
	"github.com/cuttlefree/cuttle-server-go/internal/game/match"
	"github.com/cuttlefree/cuttle-server-go/internal/game/rules"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types exchanged over the room socket.
const (
	MsgJoin    = "join"
	MsgCommand = "command"
	MsgRestart = "restart"
	MsgView    = "view"
	MsgJoined  = "joined"
	MsgError   = "error"
)

const (
	sendBuffer     = 64
	writeWait      = 10 * time.Second
	maxMessageSize = 8 * 1024
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type    string         `json:"type"`
	RoomID  string         `json:"room_id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Seat    match.PlayerID `json:"seat,omitempty"`
	Command *match.Command `json:"command,omitempty"`
	View    *match.View    `json:"view,omitempty"`
	Error   *WSError       `json:"error,omitempty"`
}

// WSError describes a refused request.
type WSError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Client is one websocket connection. After joining it is bound to a room seat and
// receives that seat's view after every commit.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	closed    bool
	roomID    string
	seat      match.PlayerID
	name      string
	stopWatch func()
	lastView  []byte
}

// Hub accepts room sockets and routes their requests to the engine.
type Hub struct {
	engine     *game.Engine
	cfg        config.WebSocketConfig
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	done       chan struct{}
}

// NewHub creates a hub serving engine.
func NewHub(engine *game.Engine, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	h := &Hub{
		engine:     engine,
		cfg:        cfg,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run tracks connected clients until ctx is done, then closes them all.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered", zap.String("client_id", client.id))
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered",
					zap.String("client_id", client.id),
					zap.String("room_id", client.room()),
				)
			}

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) handleMessage(ctx context.Context, c *Client, msg WSMessage) {
	switch msg.Type {
	case MsgJoin:
		h.join(ctx, c, msg)

	case MsgCommand:
		roomID, seat, ok := c.binding()
		if !ok {
			c.sendError(CodeNotJoined, "join a room first", nil)
			return
		}
		if msg.Command == nil {
			c.sendError(CodeBadRequest, "command is required", nil)
			return
		}
		cmd := *msg.Command
		cmd.Player = seat
		if _, err := h.engine.Submit(ctx, roomID, cmd); err != nil {
			c.sendErr(err)
		}

	case MsgRestart:
		roomID, seat, ok := c.binding()
		if !ok {
			c.sendError(CodeNotJoined, "join a room first", nil)
			return
		}
		if _, err := h.engine.Restart(ctx, roomID, seat); err != nil {
			c.sendErr(err)
		}

	case MsgView:
		roomID, _, ok := c.binding()
		if !ok {
			c.sendError(CodeNotJoined, "join a room first", nil)
			return
		}
		room, err := h.engine.Room(ctx, roomID)
		if err != nil {
			c.sendErr(err)
			return
		}
		c.pushView(room, true)

	default:
		c.sendError(CodeBadRequest, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
}

func (h *Hub) join(ctx context.Context, c *Client, msg WSMessage) {
	out, err := h.engine.JoinRoom(ctx, msg.RoomID, msg.Name)
	if err != nil {
		c.sendErr(err)
		return
	}
	roomID := out.Room.ID

	// the subscription outlives this request; it ends when the client goes away
	snapshots, stop, err := h.engine.Subscribe(context.Background(), roomID)
	if err != nil {
		c.sendErr(err)
		return
	}
	if !c.bind(roomID, out.Seat, msg.Name, stop) {
		stop()
		return
	}
	go c.watch(snapshots)

	c.sendMessage(WSMessage{Type: MsgJoined, RoomID: roomID, Name: msg.Name, Seat: out.Seat})
	c.pushView(out.Room, true)
}

func (c *Client) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) binding() (string, match.PlayerID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.seat, c.roomID != ""
}

// bind attaches the client to a seat, replacing any earlier room subscription.
func (c *Client) bind(roomID string, seat match.PlayerID, name string, stop func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.stopWatch != nil {
		c.stopWatch()
	}
	c.roomID = roomID
	c.seat = seat
	c.name = name
	c.stopWatch = stop
	c.lastView = nil
	return true
}

func (c *Client) watch(snapshots <-chan *match.Room) {
	for room := range snapshots {
		if room.ID != c.room() {
			continue
		}
		c.pushView(room, false)
	}
}

// pushView sends the client's view of room unless it is identical to the last one
// sent. force sends it regardless.
func (c *Client) pushView(room *match.Room, force bool) {
	c.mu.Lock()
	seat := c.seat
	c.mu.Unlock()

	data, err := json.Marshal(WSMessage{Type: MsgView, RoomID: room.ID, View: game.ViewOf(room, seat)})
	if err != nil {
		c.logError("failed to encode view", err)
		return
	}

	c.mu.Lock()
	if !force && bytes.Equal(data, c.lastView) {
		c.mu.Unlock()
		return
	}
	c.lastView = data
	c.mu.Unlock()
	c.enqueue(data)
}

func (c *Client) sendErr(err error) {
	var details map[string]string
	message := err.Error()
	code := ErrorCode(err)
	if rej, ok := rules.AsRejection(err); ok {
		message = rej.Reason
		details = rej.Details
	} else if code == CodeInternal {
		c.logError("request failed", err)
		message = "internal error"
	}
	c.sendError(code, message, details)
}

func (c *Client) sendError(code, message string, details map[string]string) {
	c.sendMessage(WSMessage{Type: MsgError, Error: &WSError{Code: code, Message: message, Details: details}})
}

func (c *Client) sendMessage(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logError("failed to encode message", err)
		return
	}
	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		if c.hub.logger != nil {
			c.hub.logger.Warn("client send buffer full, dropping message",
				zap.String("client_id", c.id),
				zap.String("room_id", c.roomID),
			)
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.stopWatch != nil {
		c.stopWatch()
	}
	close(c.send)
}

func (c *Client) logError(msg string, err error) {
	if c.hub.logger != nil {
		c.hub.logger.Error(msg,
			zap.String("client_id", c.id),
			zap.Error(err),
		)
	}
}

func (c *Client) pingInterval() time.Duration {
	if c.hub.cfg.PingInterval > 0 {
		return c.hub.cfg.PingInterval
	}
	return 30 * time.Second
}

func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	pongWait := c.pingInterval() * 2
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.hub.logger != nil {
				c.hub.logger.Debug("websocket closed unexpectedly",
					zap.String("client_id", c.id),
					zap.Error(err),
				)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(CodeBadRequest, "malformed message", nil)
			continue
		}
		c.hub.handleMessage(ctx, c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartWebSocketServer serves the hub on cfg.Address until ctx is done.
func StartWebSocketServer(ctx context.Context, cfg config.WebSocketConfig, hub *Hub, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, hub)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Address),
			zap.String("path", cfg.Path),
		)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}
