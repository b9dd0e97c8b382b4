package main

import (
	"crypto/rand"
	"encoding/hex"
)

// newReconnectToken mints the opaque secret handed to a player at join
// time. It is bound 1:1 to a player record within a single room and is
// the only credential needed to resume that identity.
func newReconnectToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

func (r *Room) playerByToken(token string) *Player {
	if token == "" {
		return nil
	}
	for _, p := range r.players {
		if p.ReconnectToken == token {
			return p
		}
	}
	return nil
}

// handleReconnect rebinds a returning socket to its existing player
// record, preserving id and score, then replays enough state for the
// client to resume mid-round. The host never sees a duplicate join.
func (r *Room) handleReconnect(c *client, msg ClientMessage) {
	p := r.playerByToken(msg.ReconnectToken)
	if p == nil || (msg.PlayerID != "" && msg.PlayerID != p.ID) {
		r.trySend(c, ErrorMessage{Type: "error", Message: errInvalidReconnectToken.Error()})
		return
	}

	// Drop any stale socket still bound to this player.
	if p.client != nil {
		delete(r.byClient, p.client)
		r.addConnected(-1)
		r.closeSend(p.client)
		_ = p.client.close()
	}

	p.client = c
	p.Connected = true
	r.byClient[c] = p
	r.addConnected(1)

	r.trySend(c, JoinedMessage{
		Type:           "joined",
		PlayerID:       p.ID,
		ReconnectToken: p.ReconnectToken,
		Score:          p.Score,
		BuzzerLocked:   !r.buzzerOpen(),
		Mode:           string(r.mode),
		Phase:          string(r.phase),
	})

	r.resumePlayer(p)

	r.toAllExcept(p.ID, PlayerEventMessage{
		Type:     "player:connected",
		PlayerID: p.ID,
		Name:     p.Name,
	})

	logf(r.cfg, "GAMES: Player %q reconnected to %s", p.Name, r.code)
}

// resumePlayer replays the phase-appropriate snapshot so a client can
// pick up mid-round: current question while submitting, the ballot while
// voting, the leaderboard after a reveal.
func (r *Room) resumePlayer(p *Player) {
	switch r.mode {
	case modePsyop:
		r.psyopResume(p)
	case modeMeme:
		r.memeResume(p)
	default:
		if p.BuzzerBlocked {
			r.toPlayer(p.ID, SimpleMessage{Type: "buzzer:blocked"})
		}
		if pos := r.buzzPosition(p.ID); pos > 0 {
			r.toPlayer(p.ID, BuzzConfirmedMessage{Type: "buzz:confirmed", Position: pos})
		}
	}
}
