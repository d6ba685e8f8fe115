package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingEvery    = idleTimeout * 9 / 10

	readLimit = 4 * 1024

	// sendBuffer is how far a subscriber may fall behind before it is dropped.
	sendBuffer = 256
)

// Subscriber is one websocket connection following a hub.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Subscribe joins conn to h. It returns nil if h has stopped.
func Subscribe(h *Hub, conn *websocket.Conn) *Subscriber {
	s := &Subscriber{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.join(s) {
		return nil
	}
	return s
}

// Serve pumps hub messages to the connection and blocks until it closes.
// Call it from the websocket handler.
func (s *Subscriber) Serve() {
	go s.write()
	s.read()
}

// read only detects the far end going away; dashboards send nothing useful.
func (s *Subscriber) read() {
	defer func() {
		s.hub.leave(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(readLimit)
	s.keepAlive()
	s.conn.SetPongHandler(func(string) error {
		s.keepAlive()
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Subscriber) keepAlive() {
	_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
}

// write is the only goroutine that writes to the connection.
func (s *Subscriber) write() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, open := <-s.send:
			if !open {
				_ = s.frame(websocket.CloseMessage, nil)
				return
			}
			err = s.frame(websocket.TextMessage, msg)
		case <-ping.C:
			err = s.frame(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (s *Subscriber) frame(messageType int, data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(messageType, data)
}
