package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client wraps one live socket. The room field is written only by the
// socket's own read goroutine; everything behind it is owned by the room
// goroutine once a join command has been enqueued.
type client struct {
	conn *websocket.Conn
	send chan any

	room *Room

	closeOnce sync.Once
}

func (c *client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *client) close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// serveSocket is the single websocket entry point. A fresh connection has
// no room; its first meaningful frame must create or join one.
func serveSocket(cfg *Config, dir *Directory) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Websocket upgrade from %s failed: %v", realIP(r), err)
			return
		}

		c := &client{
			conn: conn,
			send: make(chan any, 16),
		}

		go c.writePump()
		c.readPump(cfg, dir)
	}
}

func (c *client) readPump(cfg *Config, dir *Directory) {
	defer func() {
		if c.room == nil || !c.room.enqueue(command{kind: cmdDisconnect, c: c}) {
			c.closeSend()
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			// Frames that fail to decode are dropped without killing the
			// socket; transport errors end the read loop.
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				logf(cfg, "SERVE: Dropped malformed frame: %v", err)
				continue
			}
			return
		}

		if c.room == nil {
			c.handleUnbound(cfg, dir, msg)
			continue
		}

		c.room.enqueue(command{kind: cmdMessage, c: c, msg: msg})
	}
}

// handleUnbound demultiplexes the frames a connection may send before it
// belongs to a room. Anything else is dropped after logging.
func (c *client) handleUnbound(cfg *Config, dir *Directory, msg ClientMessage) {
	switch msg.Type {
	case "ping":
		c.send <- SimpleMessage{Type: "pong"}

	case "host:create", "psyop:host:create":
		mode := modeBuzzer
		if msg.Type == "psyop:host:create" {
			mode = modePsyop
		} else if msg.Mode != "" && validMode(msg.Mode) {
			mode = gameMode(msg.Mode)
		}

		room := dir.createRoom(c, mode)
		c.room = room

		created := "room:created"
		if mode == modePsyop {
			created = "psyop:room:created"
		}
		c.send <- RoomCreatedMessage{
			Type:   created,
			Code:   room.code,
			HostID: room.hostID,
			Mode:   string(mode),
		}

	case "host:rejoin", "psyop:host:rejoin":
		room, err := dir.findRoom(msg.Code)
		if err != nil {
			c.send <- ErrorMessage{Type: "error", Message: err.Error()}
			return
		}
		c.room = room
		if !room.enqueue(command{kind: cmdHostRejoin, c: c, msg: msg}) {
			// The room closed between lookup and enqueue.
			c.room = nil
			c.send <- ErrorMessage{Type: "error", Message: errRoomNotFound.Error()}
		}

	case "player:join", "meme:player:join":
		room, err := dir.findRoom(msg.Code)
		if err != nil {
			c.send <- ErrorMessage{Type: "error", Message: err.Error()}
			return
		}
		c.room = room
		if !room.enqueue(command{kind: cmdJoin, c: c, msg: msg}) {
			// The room closed between lookup and enqueue.
			c.room = nil
			c.send <- ErrorMessage{Type: "error", Message: errRoomNotFound.Error()}
		}

	default:
		logf(cfg, "SERVE: Dropped %q from unbound connection", msg.Type)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
