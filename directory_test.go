package main

import (
	"strings"
	"testing"
	"time"
)

func waitClosed(t *testing.T, r *Room) {
	t.Helper()

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("room did not close in time")
	}
}

func TestRoomCodesAreShortAndUnambiguous(t *testing.T) {
	d := newDirectory(testConfig())
	defer d.Shutdown()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := d.newRoomCode()
		if len(code) != roomCodeLength {
			t.Fatalf("code %q has wrong length", code)
		}
		for _, c := range code {
			if !strings.ContainsRune(roomCodeAlphabet, c) {
				t.Fatalf("code %q uses character outside alphabet", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 40 {
		t.Errorf("codes suspiciously non-random: %d distinct of 50", len(seen))
	}
}

func TestFindRoomIsCaseInsensitive(t *testing.T) {
	d := newDirectory(testConfig())
	defer d.Shutdown()

	room := d.createRoom(testClient(), modeBuzzer)

	found, err := d.findRoom(strings.ToLower(room.code))
	if err != nil {
		t.Fatalf("lowercase lookup failed: %v", err)
	}
	if found != room {
		t.Error("lookup returned a different room")
	}
}

func TestFindRoomMissingUsesExactErrorString(t *testing.T) {
	d := newDirectory(testConfig())
	defer d.Shutdown()

	_, err := d.findRoom("NOPE")
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "Room not found" {
		t.Errorf("error string must match client expectations, got %q", err.Error())
	}
}

func TestCloseRoomBroadcastsAndDeregisters(t *testing.T) {
	d := newDirectory(testConfig())
	defer d.Shutdown()

	host := testClient()
	room := d.createRoom(host, modeBuzzer)

	d.closeRoom(room.code, "host ended the game")
	waitClosed(t, room)

	msg, ok := findMsg[RoomClosedMessage](drainSend(host))
	if !ok || msg.Reason != "host ended the game" {
		t.Errorf("host missed room:closed: %+v", msg)
	}

	if _, err := d.findRoom(room.code); err == nil {
		t.Error("closed room still resolvable")
	}
}

func TestReaperClosesOnlyAbandonedRooms(t *testing.T) {
	cfg := &Config{roomExpiry: 100 * time.Millisecond}
	d := newDirectory(cfg)
	defer d.Shutdown()

	abandonedHost := testClient()
	abandoned := d.createRoom(abandonedHost, modeBuzzer)
	abandoned.enqueue(command{kind: cmdDisconnect, c: abandonedHost})

	occupiedHost := testClient()
	occupied := d.createRoom(occupiedHost, modeBuzzer)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := d.findRoom(abandoned.code); err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abandoned room never reaped")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := d.findRoom(occupied.code); err != nil {
		t.Error("reaper closed a room with a connected host")
	}
}

func TestShutdownClosesEverything(t *testing.T) {
	d := newDirectory(testConfig())

	hosts := []*client{testClient(), testClient()}
	rooms := []*Room{
		d.createRoom(hosts[0], modeBuzzer),
		d.createRoom(hosts[1], modePsyop),
	}

	d.Shutdown()

	for _, room := range rooms {
		waitClosed(t, room)
		if _, err := d.findRoom(room.code); err == nil {
			t.Error("room resolvable after shutdown")
		}
	}
}
