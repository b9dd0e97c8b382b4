package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func testServer(t *testing.T) (*httptest.Server, *Directory) {
	t.Helper()

	cfg := testConfig()
	dir := newDirectory(cfg)
	t.Cleanup(dir.Shutdown)

	mux := httprouter.New()
	mux.GET("/ws", serveSocket(cfg, dir))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, dir
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readFrame reads frames until one matches the wanted type, skipping
// interleaved broadcasts.
func readFrame(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)

	for {
		var m map[string]any
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("waiting for %q: %v", wantType, err)
		}
		if m["type"] == wantType {
			return m
		}
		if time.Now().After(deadline) {
			t.Fatalf("never saw %q", wantType)
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestSocketEndToEnd(t *testing.T) {
	srv, _ := testServer(t)

	host := dialWS(t, srv)
	writeFrame(t, host, ClientMessage{Type: "host:create"})
	created := readFrame(t, host, "room:created")

	code, _ := created["code"].(string)
	if len(code) != roomCodeLength {
		t.Fatalf("bad room code %q", code)
	}

	player := dialWS(t, srv)
	writeFrame(t, player, ClientMessage{Type: "player:join", Code: strings.ToLower(code), Name: "ann"})
	joined := readFrame(t, player, "joined")
	if joined["playerId"] == "" || joined["reconnectToken"] == "" {
		t.Fatalf("joined reply incomplete: %v", joined)
	}

	readFrame(t, host, "player:joined")

	writeFrame(t, host, ClientMessage{Type: "host:unlock"})
	readFrame(t, player, "buzzer:unlocked")

	writeFrame(t, player, ClientMessage{Type: "player:buzz"})
	confirmed := readFrame(t, player, "buzz:confirmed")
	if confirmed["position"].(float64) != 1 {
		t.Errorf("buzz position: %v", confirmed["position"])
	}

	received := readFrame(t, host, "buzz:received")
	if received["playerId"] != joined["playerId"] {
		t.Errorf("broadcast attributed to wrong player: %v", received)
	}
}

func TestSocketJoinUnknownRoom(t *testing.T) {
	srv, _ := testServer(t)

	conn := dialWS(t, srv)
	writeFrame(t, conn, ClientMessage{Type: "player:join", Code: "ZZZZ", Name: "ann"})

	errFrame := readFrame(t, conn, "error")
	if errFrame["message"] != "Room not found" {
		t.Errorf("error string must match client expectations, got %v", errFrame["message"])
	}
}

func TestSocketReconnectKeepsIdentity(t *testing.T) {
	srv, _ := testServer(t)

	host := dialWS(t, srv)
	writeFrame(t, host, ClientMessage{Type: "host:create"})
	created := readFrame(t, host, "room:created")
	code := created["code"].(string)

	player := dialWS(t, srv)
	writeFrame(t, player, ClientMessage{Type: "player:join", Code: code, Name: "ann"})
	joined := readFrame(t, player, "joined")

	_ = player.Close()
	readFrame(t, host, "player:disconnected")

	again := dialWS(t, srv)
	writeFrame(t, again, ClientMessage{
		Type:           "player:join",
		Code:           code,
		ReconnectToken: joined["reconnectToken"].(string),
	})
	rejoined := readFrame(t, again, "joined")

	if rejoined["playerId"] != joined["playerId"] {
		t.Errorf("identity not preserved: %v vs %v", rejoined["playerId"], joined["playerId"])
	}
}

func TestSocketHostRejoinRetryAfterRejection(t *testing.T) {
	srv, _ := testServer(t)

	host := dialWS(t, srv)
	writeFrame(t, host, ClientMessage{Type: "host:create"})
	created := readFrame(t, host, "room:created")
	code := created["code"].(string)
	hostID := created["hostId"].(string)

	second := dialWS(t, srv)
	writeFrame(t, second, ClientMessage{Type: "host:rejoin", Code: code, HostID: "bogus"})
	errFrame := readFrame(t, second, "error")
	if errFrame["message"] != "Invalid reconnect token" {
		t.Fatalf("rejection reply wrong: %v", errFrame["message"])
	}

	// The same socket must be able to retry with the right id.
	writeFrame(t, second, ClientMessage{Type: "host:rejoin", Code: code, HostID: hostID})
	snapshot := readFrame(t, second, "host:rejoined")
	if snapshot["code"] != code {
		t.Errorf("snapshot for wrong room: %v", snapshot["code"])
	}
}

func TestSocketJoinRacingRoomCloseGetsError(t *testing.T) {
	cfg := testConfig()
	dir := newDirectory(cfg)
	t.Cleanup(dir.Shutdown)

	// A room that has already shut down but is still resolvable, as
	// happens when a lookup races the close.
	room := newRoom(cfg, "GONE", modeBuzzer)
	room.handle(command{kind: cmdClose, reason: "expired"})
	dir.mu.Lock()
	dir.rooms[room.code] = room
	dir.mu.Unlock()

	c := testClient()
	c.handleUnbound(cfg, dir, ClientMessage{Type: "player:join", Code: room.code, Name: "ann"})

	errMsg, ok := findMsg[ErrorMessage](drainSend(c))
	if !ok || errMsg.Message != "Room not found" {
		t.Fatalf("expected room not found, got %+v", errMsg)
	}
	if c.room != nil {
		t.Error("client left bound to a closed room")
	}
}

func TestSocketSurvivesMalformedFrames(t *testing.T) {
	srv, _ := testServer(t)

	conn := dialWS(t, srv)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// The connection must still be usable afterwards.
	writeFrame(t, conn, ClientMessage{Type: "ping"})
	readFrame(t, conn, "pong")
}

func TestSocketPingBeforeJoin(t *testing.T) {
	srv, _ := testServer(t)

	conn := dialWS(t, srv)
	writeFrame(t, conn, ClientMessage{Type: "ping"})
	readFrame(t, conn, "pong")
}
