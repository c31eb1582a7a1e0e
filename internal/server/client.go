package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one live connection. username and room are bound by the
// userJoined/privateConnect events and are only written from the read
// pump, so they need no locking of their own.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	username   string
	room       string
	send       chan *ServerEvent
	stop       chan struct{}
}

func NewClient(conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		send:       make(chan *ServerEvent, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing event:", err)
			continue
		}

		c.dispatch(&ev)
	}
}

// dispatch routes one inbound event. Malformed payloads are dropped
// without a reply, matching the fire-and-forget contract of the wire
// protocol.
func (c *Client) dispatch(ev *ClientEvent) {
	switch ev.Event {
	case EventUserJoined:
		var data UserJoined
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		c.chatServer.handleUserJoined(c, &data)
	case EventJoinRoom:
		var data JoinRoom
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		c.chatServer.handleJoinRoom(c, &data)
	case EventLeaveRoom:
		var data LeaveRoom
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		c.chatServer.handleLeaveRoom(c, &data)
	case EventSend:
		var data Send
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		c.chatServer.handleSend(c, &data)
	case EventPrivateConnect:
		var data PrivateConnect
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		c.chatServer.handlePrivateConnect(c, &data)
	case EventPrivateMessage:
		var data PrivateMessage
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		c.chatServer.handlePrivateMessage(c, &data)
	case EventUpdatePfp:
		var data UpdatePfp
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return
		}
		c.chatServer.handleUpdatePfp(c, &data)
	default:
		c.log.Printf("unknown event %q", ev.Event)
	}
}

// queueEvent hands an event to the write pump without blocking; a full
// send buffer drops the event rather than stalling the caller.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Println("failed to queue event, channel is full")
		return false
	}

	return true
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) cleanup() {
	c.chatServer.handleDisconnect(c)
	c.chatServer.DeregisterClient(c)
	close(c.stop)
}
