package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/events"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// SessionOptions tunes websocket sessions.
type SessionOptions struct {
	// WriteTimeout bounds one push or ping. Zero means no deadline.
	WriteTimeout time.Duration
	// PongWait is how long a session may go without any inbound frame or
	// pong. Zero disables the read deadline.
	PongWait time.Duration
}

type wsConn struct {
	conn *websocket.Conn
	opts SessionOptions
}

func newWSConn(c *websocket.Conn, opts SessionOptions) *wsConn {
	if opts.PongWait > 0 {
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(opts.PongWait))
		})
	}
	return &wsConn{conn: c, opts: opts}
}

func (c *wsConn) deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

func (c *wsConn) Send(event events.Event) error {
	if err := c.conn.SetWriteDeadline(c.deadline(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(NewMessage(event))
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, c.deadline(c.opts.WriteTimeout))
}

// Receive reads the next frame. Frames that are not valid JSON decode to an
// empty Inbound.
func (c *wsConn) Receive() (Inbound, error) {
	if err := c.conn.SetReadDeadline(c.deadline(c.opts.PongWait)); err != nil {
		return Inbound{}, err
	}
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return Inbound{}, io.EOF
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Inbound{}, ErrSessionTimeout
		}
		return Inbound{}, err
	}
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, nil
	}
	return in, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// UpgradeRequired rejects plain HTTP requests on the websocket route.
func UpgradeRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Handler serves operator sessions over websocket. The credential is read from
// the token query parameter.
func Handler(gateway *Gateway, opts SessionOptions, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return websocket.New(func(c *websocket.Conn) {
		err := gateway.Serve(context.Background(), c.Query("token"), newWSConn(c, opts))
		if err == nil {
			return
		}
		if apperrors.IsCode(err, apperrors.CodeAuth) {
			_ = c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
				time.Now().Add(time.Second))
			return
		}
		logger.Debug("session ended with error", zap.Error(err))
	})
}
