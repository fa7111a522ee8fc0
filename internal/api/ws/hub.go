package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/api/intent"
	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/focusgate/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/focusgate/internal/shared/id"
	"github.com/GriffinCanCode/focusgate/internal/shared/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// DefaultSendBuffer is the per-client outbound queue length.
	DefaultSendBuffer = 64
)

// Arbiter is the authority as seen by connected surfaces.
type Arbiter interface {
	intent.Arbiter
	OnForegroundEntry(ctx context.Context, app string, ts time.Time) (authority.Decision, error)
	Heartbeat(surfaceID, app string) bool
	SurfaceClosed(surfaceID string)
	Bootstrap(surfaceID string) authority.Command
	Foreground() authority.Command
}

// HubOptions configures a Hub. Every field is optional.
type HubOptions struct {
	Logger     *zap.Logger
	Metrics    *monitoring.Metrics
	Tracer     *tracing.Tracer
	SendBuffer int
	// CheckOrigin defaults to accepting every origin; surfaces run locally.
	CheckOrigin func(r *http.Request) bool
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	surfaceID string
	closed    bool
}

// Hub fans authority commands out to surfaces and feeds surface frames
// back to the authority.
type Hub struct {
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	buffer   int
	upgrader websocket.Upgrader

	arbiterMu sync.RWMutex
	arbiter   Arbiter

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub. Bind must be called before surfaces connect.
func NewHub(opts HubOptions) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		buffer:  opts.SendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		clients: make(map[*client]struct{}),
	}
}

// Bind attaches the authority. The authority is built with the hub as its
// dispatcher, so the two are joined after construction.
func (h *Hub) Bind(a Arbiter) {
	h.arbiterMu.Lock()
	h.arbiter = a
	h.arbiterMu.Unlock()
}

func (h *Hub) bound() Arbiter {
	h.arbiterMu.RLock()
	defer h.arbiterMu.RUnlock()
	return h.arbiter
}

// Dispatch broadcasts cmd to every surface. It never blocks; a surface
// whose queue is full is disconnected.
func (h *Hub) Dispatch(cmd authority.Command) {
	data, err := encode(MsgCommand, "", cmd)
	if err != nil {
		h.logger.Error("Failed to encode command", zap.String("type", string(cmd.Type)), zap.Error(err))
		return
	}

	var slow []*client
	var slowIDs []string
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
			h.metrics.RecordWSMessage("out", string(MsgCommand))
		default:
			slow = append(slow, c)
			slowIDs = append(slowIDs, c.surfaceID)
		}
	}
	h.mu.RUnlock()

	for i, c := range slow {
		h.metrics.IncCommandsDropped()
		h.logger.Warn("Surface too slow, disconnecting",
			zap.String("surface", slowIDs[i]),
			zap.Uint64("seq", cmd.Seq))
		h.remove(c)
	}
}

// Connected reports the number of connected surfaces.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every surface.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

// HandleConnection upgrades the request and serves one surface until the
// socket closes.
func (h *Hub) HandleConnection(c *gin.Context) {
	arbiter := h.bound()
	if arbiter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "authority not ready"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn:      conn,
		send:      make(chan []byte, h.buffer),
		surfaceID: id.NewSurfaceID().String(),
	}
	h.add(cl)
	go h.writePump(cl)

	h.logger.Info("Surface connected",
		zap.String("surface", cl.surfaceID),
		zap.String("remote", c.Request.RemoteAddr))

	h.readPump(c.Request.Context(), arbiter, cl)

	surfaceID := h.surfaceOf(cl)
	arbiter.SurfaceClosed(surfaceID)
	h.remove(cl)
	h.logger.Info("Surface disconnected", zap.String("surface", surfaceID))
}

func (h *Hub) surfaceOf(c *client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.surfaceID
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncWSConnections()
}

// remove unregisters c and closes its queue, which ends its write pump.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	h.metrics.DecWSConnections()
}

// enqueue queues a frame for one client. A full queue disconnects it.
func (h *Hub) enqueue(c *client, t MessageType, data []byte) {
	h.mu.RLock()
	if c.closed {
		h.mu.RUnlock()
		return
	}
	select {
	case c.send <- data:
		h.mu.RUnlock()
		h.metrics.RecordWSMessage("out", string(t))
		return
	default:
	}
	h.mu.RUnlock()

	h.logger.Warn("Surface too slow, disconnecting", zap.String("surface", c.surfaceID))
	h.remove(c)
}

func (h *Hub) reply(c *client, t MessageType, msgID string, p any) {
	data, err := encode(t, msgID, p)
	if err != nil {
		h.logger.Error("Failed to encode reply", zap.String("type", string(t)), zap.Error(err))
		return
	}
	h.enqueue(c, t, data)
}

func (h *Hub) readPump(ctx context.Context, arbiter Arbiter, c *client) {
	c.conn.SetReadLimit(utils.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error", zap.String("surface", c.surfaceID), zap.Error(err))
			}
			return
		}

		msg, err := decode(data)
		if err != nil {
			h.reply(c, MsgError, "", ErrorPayload{Error: err.Error()})
			continue
		}
		h.metrics.RecordWSMessage("in", string(msg.Type))
		h.handle(ctx, arbiter, c, msg)
	}
}

func (h *Hub) handle(ctx context.Context, arbiter Arbiter, c *client, msg Message) {
	var span *tracing.Span
	if h.tracer != nil {
		span, ctx = h.tracer.StartSpan(ctx, "ws."+string(msg.Type))
		span.SetTag("surface", c.surfaceID)
		defer func() {
			span.Finish()
			h.tracer.Submit(span)
		}()
	}

	switch msg.Type {
	case MsgHello:
		var p HelloPayload
		if len(msg.Payload) > 0 {
			if err := payload(msg, &p); err != nil {
				h.reply(c, MsgError, msg.ID, ErrorPayload{Error: err.Error()})
				return
			}
		}
		if p.SurfaceID != "" {
			h.mu.Lock()
			c.surfaceID = p.SurfaceID
			h.mu.Unlock()
		}
		surfaceID := h.surfaceOf(c)
		cmd := arbiter.Bootstrap(surfaceID)
		h.logger.Info("Surface bootstrapped",
			zap.String("surface", surfaceID),
			zap.String("type", string(cmd.Type)),
			zap.String("app", cmd.AppID),
			zap.Uint64("seq", cmd.Seq))
		h.reply(c, MsgBootstrap, msg.ID, cmd)
		h.reply(c, MsgCommand, "", arbiter.Foreground())

	case MsgIntent:
		var p IntentPayload
		if err := payload(msg, &p); err != nil {
			h.reply(c, MsgReply, msg.ID, ReplyPayload{Error: err.Error()})
			return
		}
		if span != nil {
			span.SetTag("intent", p.Name)
			span.SetTag("app", p.Request.AppID)
		}
		if err := intent.Execute(ctx, arbiter, p.Name, p.Request); err != nil {
			h.logger.Debug("Intent rejected",
				zap.String("intent", p.Name),
				zap.String("app", p.Request.AppID),
				zap.Error(err),
				tracing.Field(ctx))
			if span != nil {
				span.SetTag("error", err.Error())
			}
			h.reply(c, MsgReply, msg.ID, ReplyPayload{Error: err.Error()})
			return
		}
		h.reply(c, MsgReply, msg.ID, ReplyPayload{OK: true})

	case MsgForeground:
		var p ForegroundPayload
		if err := payload(msg, &p); err != nil {
			h.reply(c, MsgReply, msg.ID, ReplyPayload{Error: err.Error()})
			return
		}
		d, err := arbiter.OnForegroundEntry(ctx, p.AppID, p.Timestamp)
		if err != nil {
			h.reply(c, MsgReply, msg.ID, ReplyPayload{Error: err.Error()})
			return
		}
		h.reply(c, MsgReply, msg.ID, ReplyPayload{OK: true, Decision: &d})

	case MsgHeartbeat:
		var p HeartbeatPayload
		if err := payload(msg, &p); err != nil {
			h.reply(c, MsgError, msg.ID, ErrorPayload{Error: err.Error()})
			return
		}
		surfaceID := h.surfaceOf(c)
		if !arbiter.Heartbeat(surfaceID, p.AppID) {
			h.logger.Debug("Heartbeat without a guarded session",
				zap.String("surface", surfaceID),
				zap.String("app", p.AppID))
		}

	default:
		h.reply(c, MsgError, msg.ID, ErrorPayload{Error: "unknown message type: " + string(msg.Type)})
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
