package agent

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Emitter sends named events back to the client. The executor and the
// filesystem accessors depend on this interface, not on the websocket.
type Emitter interface {
	Emit(event string, payload any) error
}

// envelope is the wire framing: an event name plus its JSON payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// conn wraps one websocket connection. Handlers run concurrently, so all
// writes funnel through a buffered channel drained by a single goroutine;
// gorilla/websocket forbids concurrent writers.
type conn struct {
	ws     *websocket.Conn
	out    chan envelope
	done   chan struct{}
	closed sync.Once
	logger zerolog.Logger
}

const outboundBuffer = 256

func newConn(ws *websocket.Conn, logger zerolog.Logger) *conn {
	return &conn{
		ws:     ws,
		out:    make(chan envelope, outboundBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Emit queues an event for delivery. It blocks when the outbound buffer is
// full (a slow client applies backpressure to child-process reads) and
// fails once the connection is closed.
func (c *conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case c.out <- envelope{Event: event, Data: data}:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	}
}

// writeLoop is the single writer for the connection.
func (c *conn) writeLoop() {
	for {
		select {
		case env := <-c.out:
			if err := c.ws.WriteJSON(env); err != nil {
				c.logger.Debug().Err(err).Msg("write failed, closing connection")
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) close() {
	c.closed.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
