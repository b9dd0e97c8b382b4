package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"
)

// Directory maps short join codes to live rooms. It owns room lifecycle:
// allocation, lookup, and reaping of rooms nobody is connected to.
type Directory struct {
	cfg *Config

	mu    sync.Mutex
	rooms map[string]*Room

	done chan struct{}
	once sync.Once
}

func newDirectory(cfg *Config) *Directory {
	d := &Directory{
		cfg:   cfg,
		rooms: make(map[string]*Room),
		done:  make(chan struct{}),
	}
	if cfg.roomExpiry > 0 {
		go d.reaperLoop()
	}
	return d
}

const (
	roomCodeLength = 4

	// 0, 1, I, L, and O are omitted to keep codes unambiguous when read
	// off a screen.
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// newRoomCode generates a crypto-random join code, retrying on collision
// with a live room.
func (d *Directory) newRoomCode() string {
	for {
		buf := make([]byte, roomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, roomCodeLength)
		for i := range out {
			out[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
		}
		code := string(out)

		d.mu.Lock()
		_, exists := d.rooms[code]
		d.mu.Unlock()

		if !exists {
			return code
		}
	}
}

// createRoom allocates a code, registers a new room in the waiting phase
// with the given client bound as host, and starts its event loop.
func (d *Directory) createRoom(host *client, mode gameMode) *Room {
	code := d.newRoomCode()

	room := newRoom(d.cfg, code, mode)
	room.host = host
	room.addConnected(1)
	room.closeSelf = func(reason string) {
		d.closeRoom(code, reason)
	}

	d.mu.Lock()
	d.rooms[code] = room
	d.mu.Unlock()

	go room.run()

	logf(d.cfg, "ROOMS: Created %s (%s)", code, mode)

	return room
}

// findRoom looks up a live room by code, case-insensitively.
func (d *Directory) findRoom(code string) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[strings.ToUpper(code)]
	if !ok {
		return nil, errRoomNotFound
	}
	return room, nil
}

// closeRoom deregisters the room and tells its goroutine to broadcast
// room:closed and drop every connection.
func (d *Directory) closeRoom(code, reason string) {
	d.mu.Lock()
	room, ok := d.rooms[strings.ToUpper(code)]
	if ok {
		delete(d.rooms, strings.ToUpper(code))
	}
	d.mu.Unlock()

	if !ok {
		return
	}

	// Enqueued from a fresh goroutine so a host-driven close, which runs
	// on the room goroutine itself, can never deadlock on a full queue.
	go room.enqueue(command{kind: cmdClose, reason: reason})
}

// Shutdown closes every live room. Safe to call more than once.
func (d *Directory) Shutdown() {
	d.once.Do(func() {
		close(d.done)
	})

	d.mu.Lock()
	rooms := make(map[string]*Room, len(d.rooms))
	for code, room := range d.rooms {
		rooms[code] = room
	}
	d.rooms = make(map[string]*Room)
	d.mu.Unlock()

	for _, room := range rooms {
		go room.enqueue(command{kind: cmdClose, reason: "Server shutting down"})
	}
}

// reaperLoop periodically closes rooms that have had no connected host or
// players for longer than the configured expiry.
func (d *Directory) reaperLoop() {
	ticker := time.NewTicker(d.cfg.roomExpiry / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-d.cfg.roomExpiry)

		d.mu.Lock()
		expired := make([]string, 0)
		for code, room := range d.rooms {
			last, connected := room.idleState()
			if !connected && last.Before(cutoff) {
				expired = append(expired, code)
			}
		}
		d.mu.Unlock()

		for _, code := range expired {
			logf(d.cfg, "ROOMS: Reaping idle room %s", code)
			d.closeRoom(code, "Room expired")
		}
	}
}
