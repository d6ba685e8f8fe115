package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/protocol"
)

// incomingBuffer is how many rover messages may queue before the reader blocks.
const incomingBuffer = 64

var errClosed = errors.New("teleop: connection closed")

// Client is an operator connection to the rover's /ws/control endpoint.
type Client struct {
	conn *websocket.Conn
	id   string

	writeMu  sync.Mutex
	incoming chan *protocol.Message
	done     chan struct{}
	once     sync.Once

	// err is written by the reader before incoming is closed.
	err error
}

// Dial connects to the control endpoint at addr (host:port). An empty id lets
// the rover assign one.
func Dial(ctx context.Context, addr, id string) (*Client, error) {
	url := "ws://" + addr + "/ws/control"
	if id != "" {
		url += "/" + id
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		id:       id,
		incoming: make(chan *protocol.Message, incomingBuffer),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.incoming)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				c.err = errClosed
			default:
				c.err = err
			}
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad rover message", "error", err)
			continue
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			c.err = errClosed
			return
		}
	}
}

// Messages delivers rover messages until the connection ends.
func (c *Client) Messages() <-chan *protocol.Message {
	return c.incoming
}

// Err reports why Messages was closed. Only valid after the channel is closed.
func (c *Client) Err() error {
	return c.err
}

// SendCommand posts one command key to the rover.
func (c *Client) SendCommand(key byte) error {
	msg, err := protocol.NewCommandMessage(key)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Ping asks the rover for a pong, used to show link latency.
func (c *Client) Ping() error {
	msg, err := protocol.NewPingMessage(c.id)
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (c *Client) write(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close ends the connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
