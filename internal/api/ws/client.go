package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/api/intent"
	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
)

// ErrClosed is returned by Client calls after the connection ended.
var ErrClosed = errors.New("surface connection closed")

// RejectedError is an intent or event the authority answered with ok=false.
type RejectedError struct {
	Op     string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// Client is the surface end of the channel.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan ReplyPayload
	err     error

	commands  chan authority.Command
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the hub at url.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		logger:   logger,
		pending:  make(map[string]chan ReplyPayload),
		commands: make(chan authority.Command, 256),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Commands delivers the bootstrap command and every command after it, in
// the order the authority sent them.
func (c *Client) Commands() <-chan authority.Command { return c.commands }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Hello introduces the surface; the authority answers with a bootstrap
// command on Commands.
func (c *Client) Hello(surfaceID string) error {
	return c.write(MsgHello, "", HelloPayload{SurfaceID: surfaceID})
}

// Heartbeat keeps the surface guard for app alive.
func (c *Client) Heartbeat(app string) error {
	return c.write(MsgHeartbeat, "", HeartbeatPayload{AppID: app})
}

// Intent applies a named intent and waits for its reply.
func (c *Client) Intent(ctx context.Context, name string, req intent.Request) error {
	_, err := c.request(ctx, MsgIntent, "intent "+name, IntentPayload{Name: name, Request: req})
	return err
}

// Foreground reports a foreground entry and returns the decision.
func (c *Client) Foreground(ctx context.Context, app string, ts time.Time) (authority.Decision, error) {
	reply, err := c.request(ctx, MsgForeground, "foreground "+app, ForegroundPayload{AppID: app, Timestamp: ts})
	if err != nil {
		return authority.None(), err
	}
	if reply.Decision == nil {
		return authority.None(), nil
	}
	return *reply.Decision, nil
}

// Close ends the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) request(ctx context.Context, t MessageType, op string, p any) (ReplyPayload, error) {
	msgID := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan ReplyPayload, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return ReplyPayload{}, ErrClosed
	}
	c.pending[msgID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msgID)
		c.mu.Unlock()
	}()

	if err := c.write(t, msgID, p); err != nil {
		return ReplyPayload{}, err
	}

	select {
	case reply := <-ch:
		if !reply.OK {
			return reply, &RejectedError{Op: op, Reason: reply.Error}
		}
		return reply, nil
	case <-c.done:
		return ReplyPayload{}, ErrClosed
	case <-ctx.Done():
		return ReplyPayload{}, ctx.Err()
	}
}

func (c *Client) write(t MessageType, msgID string, p any) error {
	data, err := encode(t, msgID, p)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", t, err)
	}
	return nil
}

func (c *Client) readLoop() {
	var readErr error
	defer func() { c.shutdown(readErr) }()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		msg, err := decode(data)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MsgBootstrap, MsgCommand:
			var cmd authority.Command
			if err := payload(msg, &cmd); err != nil {
				c.logger.Warn("Dropping malformed command", zap.Error(err))
				continue
			}
			select {
			case c.commands <- cmd:
			case <-c.done:
				return
			}
		case MsgReply:
			var reply ReplyPayload
			if err := payload(msg, &reply); err != nil {
				c.logger.Warn("Dropping malformed reply", zap.Error(err))
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				ch <- reply
			}
		case MsgError:
			var p ErrorPayload
			_ = payload(msg, &p)
			c.logger.Warn("Authority reported an error", zap.String("id", msg.ID), zap.String("error", p.Error))
		default:
			c.logger.Debug("Ignoring frame", zap.String("type", string(msg.Type)))
		}
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		if err == nil {
			err = ErrClosed
		}
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		close(c.commands)
	})
}
