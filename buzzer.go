package main

import "time"

// Buzzer-family rules: the host unlocks the buzzer for a question,
// players race to buzz in, and the host judges answers off the resulting
// queue. Queue order is server receipt order; client-reported timestamps
// are never trusted.

type buzzerState struct {
	queue []buzzEntry
}

type buzzEntry struct {
	playerID string
	at       time.Time
}

// buzzerOpen reports whether buzzes are currently being accepted. Players
// may continue queueing behind the first buzz.
func (r *Room) buzzerOpen() bool {
	return r.phase == phaseQuestionOpen || r.phase == phaseBuzzed
}

func (r *Room) buzzPosition(playerID string) int {
	for i, e := range r.buzzer.queue {
		if e.playerID == playerID {
			return i + 1
		}
	}
	return 0
}

func (r *Room) buzzerDropPlayer(playerID string) {
	for i, e := range r.buzzer.queue {
		if e.playerID == playerID {
			r.buzzer.queue = append(r.buzzer.queue[:i], r.buzzer.queue[i+1:]...)
			return
		}
	}
}

func (r *Room) handleBuzzerHost(msg ClientMessage) {
	switch msg.Type {
	case "host:unlock":
		r.phase = phaseQuestionOpen
		r.buzzer.queue = nil
		for _, p := range r.players {
			p.BuzzerBlocked = false
		}
		r.toAll(BuzzerUnlockedMessage{Type: "buzzer:unlocked", NewQuestion: true})

	case "host:lock":
		// Locking keeps the queue so the host can still judge off it.
		r.phase = phaseAnswered
		r.toAll(SimpleMessage{Type: "buzzer:locked"})

	case "host:reset":
		r.buzzer.queue = nil
		if r.phase == phaseBuzzed {
			r.phase = phaseQuestionOpen
		}
		r.toAll(SimpleMessage{Type: "buzzer:reset"})

	case "host:judge":
		r.handleJudge(msg)
	}
}

// handleBuzz appends a player to the queue. Buzzes while locked, repeat
// buzzes, and buzzes from benched or blocked players are silently
// ignored; clients legitimately race the lock and expect no error.
func (r *Room) handleBuzz(p *Player) {
	if !r.buzzerOpen() || p.SittingOut || p.BuzzerBlocked {
		return
	}
	if r.buzzPosition(p.ID) > 0 {
		return
	}

	entry := buzzEntry{playerID: p.ID, at: time.Now()}
	r.buzzer.queue = append(r.buzzer.queue, entry)
	r.phase = phaseBuzzed

	position := len(r.buzzer.queue)

	r.toPlayer(p.ID, BuzzConfirmedMessage{Type: "buzz:confirmed", Position: position})
	r.toAll(BuzzReceivedMessage{
		Type:     "buzz:received",
		PlayerID: p.ID,
		Name:     p.Name,
		Position: position,
		Time:     entry.at,
	})
}

// handleJudge scores the named player's answer. A correct answer closes
// the question; a wrong one blocks that player from re-buzzing while the
// rest of the queue stays live.
func (r *Room) handleJudge(msg ClientMessage) {
	p, ok := r.players[msg.PlayerID]
	if !ok || msg.Correct == nil {
		return
	}

	if *msg.Correct {
		p.Score += msg.Points
		r.phase = phaseAnswered
	} else {
		p.Score -= msg.Points
		p.BuzzerBlocked = true
		r.buzzerDropPlayer(p.ID)
		r.toPlayer(p.ID, SimpleMessage{Type: "buzzer:blocked"})
		if len(r.buzzer.queue) == 0 && r.phase == phaseBuzzed {
			r.phase = phaseQuestionOpen
		}
	}

	r.toPlayer(p.ID, FeedbackMessage{Type: "feedback", Correct: *msg.Correct, Points: msg.Points})
	r.toAll(ScoreUpdatedMessage{Type: "score:updated", PlayerID: p.ID, Score: p.Score})
	r.toHost(ScoresSyncMessage{Type: "scores:sync", Players: r.playerStates()})

	// Rapid fire chains straight into the next question after a correct
	// answer instead of waiting for another unlock.
	if r.mode == modeRapidFire && *msg.Correct {
		r.phase = phaseQuestionOpen
		r.buzzer.queue = nil
		for _, pl := range r.players {
			pl.BuzzerBlocked = false
		}
		r.toAll(BuzzerUnlockedMessage{Type: "buzzer:unlocked", NewQuestion: true})
	}
}
