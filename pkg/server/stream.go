package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/observer"
)

const maxInboundMessage = 4096

var ErrClosed = errors.New("connection closed")

// serveStream upgrades the request and runs the connection until either
// side closes it.
func (r *routerStruct) serveStream(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn().Err(err).Str("remote", req.RemoteAddr).Msg("upgrade failed")
		return
	}

	r.wg.Add(1)
	defer r.wg.Done()

	id := observer.NextID()
	log := r.log.With().Uint32("id", id).Logger()

	wc := newWSConn(conn, r.cfg.SendQueue, r.cfg.WriteTimeout)
	go wc.writeLoop(log)

	if !r.stream.Notify(observer.Connect(observer.New(id, req.RemoteAddr, wc))) {
		wc.Close()
		return
	}

	wc.readLoop(id, r.stream, log)
}

// wsConn adapts a websocket connection to observer.Conn. Outbound messages
// go through a bounded queue drained by a writer goroutine.
type wsConn struct {
	conn         *websocket.Conn
	queue        chan []byte
	writeTimeout time.Duration

	done chan struct{}
	once sync.Once
}

func newWSConn(conn *websocket.Conn, queue int, writeTimeout time.Duration) *wsConn {
	if queue <= 0 {
		queue = 1
	}
	return &wsConn{
		conn:         conn,
		queue:        make(chan []byte, queue),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Send queues msg for the writer. It never blocks.
func (c *wsConn) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.queue <- msg:
		return nil
	default:
		return observer.ErrQueueFull
	}
}

// Close asks the writer to send a close frame and release the connection.
func (c *wsConn) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *wsConn) writeLoop(log zerolog.Logger) {
	defer c.conn.Close()
	defer c.Close()

	for {
		select {
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
			return
		case msg := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Msg("write failed")
				return
			}
		}
	}
}

// readLoop reports inbound messages and the end of the connection.
func (c *wsConn) readLoop(id uint32, stream Stream, log zerolog.Logger) {
	c.conn.SetReadLimit(maxInboundMessage)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			local := c.closedLocally()
			c.Close()
			if !local && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("connection lost")
				stream.Notify(observer.Error(id, err))
				return
			}
			stream.Notify(observer.Disconnect(id))
			return
		}
		stream.Notify(observer.Data(id, msg))
	}
}

func (c *wsConn) closedLocally() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
