package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Upper bound for the store calls a single inbound frame triggers.
	frameTimeout = 10 * time.Second
)

// client pumps frames between one websocket and its broker connection.
type client struct {
	broker       *Broker
	ws           *websocket.Conn
	conn         *Conn
	maxBytes     int64
	writeTimeout time.Duration
}

// readPump decodes inbound frames until the socket fails, then unregisters
// the connection from the broker.
func (c *client) readPump() {
	defer func() {
		c.broker.Unregister(c.conn)
		c.ws.Close()
	}()

	if c.maxBytes > 0 {
		c.ws.SetReadLimit(c.maxBytes)
	}
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: connection %s read error: %v", c.conn.ID, err)
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *client) handleFrame(data []byte) Outcome {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return c.broker.RejectFrame(c.conn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	switch frame.Type {
	case FrameChatJoin:
		var p RoomPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return c.broker.RejectFrame(c.conn)
		}
		return c.broker.Join(ctx, c.conn, p.ChatID)
	case FrameChatLeave:
		var p RoomPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return c.broker.RejectFrame(c.conn)
		}
		c.broker.Leave(c.conn, p.ChatID)
		return Outcome{}
	case FrameMessageSend:
		var p SendPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return c.broker.RejectFrame(c.conn)
		}
		return c.broker.PublishFrom(ctx, c.conn, p.ChatID, p.Content)
	case FrameTyping:
		var p TypingPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			return c.broker.RejectFrame(c.conn)
		}
		return c.broker.PublishTyping(c.conn, p.ChatID, p.IsTyping)
	default:
		return c.broker.RejectFrame(c.conn)
	}
}

// writePump drains the connection's outbound queue to the socket and keeps
// it alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.conn.Outbound():
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				// The broker closed the queue.
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
