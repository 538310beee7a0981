package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Handheld scanners connect from the shop LAN without an Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	ID      string
	ActorID string

	// DeviceID is set by the DEVICE_IDENTIFY handshake of scanner devices.
	DeviceID string
}

// BaseMessage is the basic message structure for routing
type BaseMessage struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id,omitempty"`
	MsgID    string `json:"msg_id,omitempty"`
}

// ScanMessage is a scan pushed by a handheld scanner.
type ScanMessage struct {
	BaseMessage
	SessionID string `json:"session_id"`
	Barcode   string `json:"barcode"`
}

func (c *Client) handle(message []byte) {
	var msg BaseMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.hub.SendTo(c.ID, map[string]string{"type": "ERROR", "message": "malformed message"})
		return
	}

	switch msg.Type {
	case "DEVICE_IDENTIFY":
		if msg.DeviceID != "" {
			c.DeviceID = msg.DeviceID
		}
		c.hub.SendTo(c.ID, map[string]string{"type": "ACK", "msg_id": msg.MsgID, "status": "connected"})

	case "SCAN":
		var scan ScanMessage
		if err := json.Unmarshal(message, &scan); err != nil {
			c.hub.SendTo(c.ID, map[string]string{"type": "ERROR", "msg_id": msg.MsgID, "message": "malformed scan"})
			return
		}
		fn := c.hub.scanHandler()
		if fn == nil {
			c.hub.SendTo(c.ID, map[string]string{"type": "ERROR", "msg_id": msg.MsgID, "message": "scanning unavailable"})
			return
		}
		result, err := fn(c, scan)
		if err != nil {
			c.hub.SendTo(c.ID, map[string]string{"type": "ERROR", "msg_id": msg.MsgID, "message": err.Error()})
			return
		}
		c.hub.SendTo(c.ID, map[string]interface{}{"type": "SCAN_RESULT", "msg_id": msg.MsgID, "result": result})

	default:
		c.hub.SendTo(c.ID, map[string]string{"type": "ERROR", "msg_id": msg.MsgID, "message": "unknown message type"})
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).WithField("client", c.ID).Warn("websocket read")
			}
			break
		}
		c.handle(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and registers the caller as a listener.
func ServeWs(hub *Hub, actorID string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.WithError(err).Warn("websocket upgrade")
		return
	}
	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		ID:      "web_" + uuid.New().String(),
		ActorID: actorID,
	}
	if !hub.join(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
