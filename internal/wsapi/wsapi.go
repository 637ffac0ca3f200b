// Package wsapi implements the WebSocket subscription protocol: JSON
// envelopes in/out, and a per-connection Client wired directly to
// internal/hub. The outbound buffered-channel-plus-writer-goroutine shape
// follows the hub/client split used across the example corpus's streaming
// servers, adapted here to gorilla/websocket instead of a bespoke framer.
package wsapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yitech/barstream/internal/hub"
	"github.com/yitech/barstream/internal/model"
)

// Inbound message ops.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// Outbound message ops.
const (
	OpSubscribed = "subscribed"
	OpBar        = "bar"
	OpStatus     = "status"
	OpError      = "error"
)

// SubscribeMsg is an inbound subscribe/unsubscribe request.
type SubscribeMsg struct {
	Op     string `json:"op"`
	Symbol string `json:"symbol"`
	Period string `json:"period"`
}

// SubscribedAck acks a subscribe request.
type SubscribedAck struct {
	Op     string `json:"op"`
	Symbol string `json:"symbol"`
	Period string `json:"period"`
}

// BarEvent carries a bar update (live or close) to the client.
type BarEvent struct {
	Op     string     `json:"op"`
	Symbol string     `json:"symbol"`
	Period string     `json:"period"`
	Bar    model.Bar  `json:"bar"`
}

// StatusEvent carries an operational signal.
type StatusEvent struct {
	Op      string  `json:"op"`
	Message string  `json:"message"`
	Level   string  `json:"level"`
	Code    *string `json:"code"`
}

// ErrorEvent reports a malformed inbound message; the connection stays open.
type ErrorEvent struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

const sendBufferSize = 256

// Client is one subscriber connection. It is the comparable handle stored
// in hub.Conn sets — identity is the pointer.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true }, // every origin is accepted; no origin check applies to upgrades
}

// Handler upgrades an HTTP request to a WebSocket connection and runs its
// read/write pumps until the client disconnects, at which point it removes
// every subscription for that connection from h.
func Handler(h *hub.Hub, pingInterval time.Duration, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		c := &Client{
			conn:   conn,
			send:   make(chan []byte, sendBufferSize),
			logger: logger.With().Str("component", "wsapi").Logger(),
		}

		go c.writePump(pingInterval)
		c.readPump(h)
	}
}

func (c *Client) readPump(h *hub.Hub) {
	defer func() {
		h.Remove(c)
		close(c.send)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg SubscribeMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendJSON(ErrorEvent{Op: OpError, Reason: "invalid request"})
			continue
		}
		switch msg.Op {
		case OpSubscribe:
			period := model.Period(msg.Period)
			if err := h.Subscribe(c, msg.Symbol, period); err != nil {
				c.sendJSON(ErrorEvent{Op: OpError, Reason: err.Error()})
				continue
			}
			c.sendJSON(SubscribedAck{Op: OpSubscribed, Symbol: msg.Symbol, Period: msg.Period})
		case OpUnsubscribe:
			h.Unsubscribe(c, msg.Symbol, model.Period(msg.Period))
		default:
			c.sendJSON(ErrorEvent{Op: OpError, Reason: "invalid request"})
		}
	}
}

func (c *Client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON marshals v and enqueues it for delivery, dropping the message
// (rather than blocking the caller) if the client's send buffer is full —
// a slow/dead connection must never stall a broadcast to other
// subscribers.
func (c *Client) sendJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal outbound message")
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn().Msg("send buffer full, dropping message")
	}
}

// SendBar delivers a bar event to a specific client.
func (c *Client) SendBar(symbol string, period model.Period, bar model.Bar) {
	c.sendJSON(BarEvent{Op: OpBar, Symbol: symbol, Period: string(period), Bar: bar})
}

// SendStatus delivers a status event to a specific client.
func (c *Client) SendStatus(message, code, level string) {
	var codePtr *string
	if code != "" {
		codePtr = &code
	}
	c.sendJSON(StatusEvent{Op: OpStatus, Message: message, Level: level, Code: codePtr})
}

// BroadcastBar fans a bar event out to every connection subscribed to its
// (symbol, period), tolerating per-connection send failures (handled
// inside sendJSON's non-blocking enqueue).
func BroadcastBar(h *hub.Hub, ev model.BarEvent) {
	for _, conn := range h.IterSubscribers(ev.Symbol, ev.Period) {
		if c, ok := conn.(*Client); ok {
			c.SendBar(ev.Symbol, ev.Period, ev.Bar)
		}
	}
}

// BroadcastStatus fans a status event out to every connected client.
func BroadcastStatus(h *hub.Hub, message, code, level string) {
	for _, conn := range h.IterAll() {
		if c, ok := conn.(*Client); ok {
			c.SendStatus(message, code, level)
		}
	}
}
