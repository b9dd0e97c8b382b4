package main

import "testing"

func unlock(r *Room, host *client) {
	r.handle(command{kind: cmdMessage, c: host, msg: ClientMessage{Type: "host:unlock"}})
}

func buzz(r *Room, c *client) {
	r.handle(command{kind: cmdMessage, c: c, msg: ClientMessage{Type: "player:buzz"}})
}

func TestBuzzQueueOrderedByServerReceipt(t *testing.T) {
	r, host := buzzerRoom(modeBuzzer)

	c1, j1 := joinPlayer(t, r, "p1")
	c2, j2 := joinPlayer(t, r, "p2")
	c3, j3 := joinPlayer(t, r, "p3")

	unlock(r, host)
	drainSend(host)

	// Arrival order p2, p1, p3 regardless of what clients might claim.
	buzz(r, c2)
	buzz(r, c1)
	buzz(r, c3)

	received := filterMsgs[BuzzReceivedMessage](drainSend(host))
	if len(received) != 3 {
		t.Fatalf("expected 3 buzz broadcasts, got %d", len(received))
	}

	want := []struct {
		playerID string
		position int
	}{
		{j2.PlayerID, 1},
		{j1.PlayerID, 2},
		{j3.PlayerID, 3},
	}
	for i, w := range want {
		if received[i].PlayerID != w.playerID || received[i].Position != w.position {
			t.Errorf("broadcast %d: got %s at %d, want %s at %d",
				i, received[i].PlayerID, received[i].Position, w.playerID, w.position)
		}
	}

	confirmed, ok := findMsg[BuzzConfirmedMessage](drainSend(c2))
	if !ok || confirmed.Position != 1 {
		t.Errorf("p2 confirmation wrong: %+v", confirmed)
	}
	if !received[0].Time.Before(received[2].Time) && !received[0].Time.Equal(received[2].Time) {
		t.Error("timestamps not monotonic")
	}
}

func TestBuzzBeforeUnlockIgnored(t *testing.T) {
	r, _ := buzzerRoom(modeBuzzer)

	c, _ := joinPlayer(t, r, "ann")
	drainSend(c)

	buzz(r, c)

	if len(r.buzzer.queue) != 0 {
		t.Fatal("buzz accepted while locked")
	}
	// Silent drop: no error frame either.
	if _, ok := findMsg[ErrorMessage](drainSend(c)); ok {
		t.Error("locked buzz produced an error frame")
	}
}

func TestBuzzAfterLockIgnored(t *testing.T) {
	r, host := buzzerRoom(modeBuzzer)

	c, _ := joinPlayer(t, r, "ann")
	unlock(r, host)
	r.handle(command{kind: cmdMessage, c: host, msg: ClientMessage{Type: "host:lock"}})

	buzz(r, c)

	if len(r.buzzer.queue) != 0 {
		t.Fatal("buzz accepted after lock")
	}
}

func TestDuplicateBuzzIgnored(t *testing.T) {
	r, host := buzzerRoom(modeBuzzer)

	c, _ := joinPlayer(t, r, "ann")
	unlock(r, host)

	buzz(r, c)
	buzz(r, c)

	if len(r.buzzer.queue) != 1 {
		t.Fatalf("expected 1 queue entry, got %d", len(r.buzzer.queue))
	}
}

func TestSittingOutPlayerCannotBuzz(t *testing.T) {
	r, host := buzzerRoom(modeBuzzer)

	c, joined := joinPlayer(t, r, "ann")
	out := true
	r.handle(command{kind: cmdMessage, c: host, msg: ClientMessage{Type: "sit_out", PlayerID: joined.PlayerID, SittingOut: &out}})

	unlock(r, host)
	buzz(r, c)

	if len(r.buzzer.queue) != 0 {
		t.Fatal("benched player buzzed in")
	}
}

func TestLockKeepsQueueResetClearsIt(t *testing.T) {
	r, host := buzzerRoom(modeBuzzer)

	c, _ := joinPlayer(t, r, "ann")
	unlock(r, host)
	buzz(r, c)

	r.handle(command{kind: cmdMessage, c: host, msg: ClientMessage{Type: "host:lock"}})
	if len(r.buzzer.queue) != 1 {
		t.Fatal("lock cleared the queue")
	}

	r.handle(command{kind: cmdMessage, c: host, msg: ClientMessage{Type: "host:reset"}})
	if len(r.buzzer.queue) != 0 {
		t.Fatal("reset kept the queue")
	}
	if r.phase != phaseAnswered {
		t.Errorf("reset changed lock state: %s", r.phase)
	}
}

func TestWrongAnswerBlocksUntilNextQuestion(t *testing.T) {
	r, host := buzzerRoom(modeBuzzer)

	c1, j1 := joinPlayer(t, r, "ann")
	c2, _ := joinPlayer(t, r, "bob")
	unlock(r, host)
	buzz(r, c1)
	drainSend(c1)

	wrong := false
	r.handle(command{kind: cmdMessage, c: host, msg: ClientMessage{
		Type: "host:judge", PlayerID: j1.PlayerID, Correct: &wrong, Points: 100,
	}})

	if !r.players[j1.PlayerID].BuzzerBlocked {
		t.Fatal("wrong answer did not block player")
	}
	if r.players[j1.PlayerID].Score != -100 {
		t.Errorf("wrong answer score: %d", r.players[j1.PlayerID].Score)
	}
	if _, ok := findMsg[SimpleMessage](drainSend(c1)); !ok {
		t.Error("blocked player not notified")
	}

	// Others may still buzz on the same question.
	buzz(r, c2)
	if len(r.buzzer.queue) != 1 {
		t.Fatal("second player could not buzz after first was blocked")
	}

	// Blocked player stays out until the next unlock.
	buzz(r, c1)
	if len(r.buzzer.queue) != 1 {
		t.Fatal("blocked player re-buzzed")
	}

	unlock(r, host)
	buzz(r, c1)
	if len(r.buzzer.queue) != 1 {
		t.Fatal("block survived the next question")
	}
}

func TestCorrectAnswerScoresAndCloses(t *testing.T) {
	r, host := buzzerRoom(modeBuzzer)

	c, joined := joinPlayer(t, r, "ann")
	unlock(r, host)
	buzz(r, c)
	drainSend(c)

	correct := true
	r.handle(command{kind: cmdMessage, c: host, msg: ClientMessage{
		Type: "host:judge", PlayerID: joined.PlayerID, Correct: &correct, Points: 100,
	}})

	if r.players[joined.PlayerID].Score != 100 {
		t.Fatalf("score not awarded: %d", r.players[joined.PlayerID].Score)
	}
	if r.phase != phaseAnswered {
		t.Errorf("question not closed: %s", r.phase)
	}

	feedback, ok := findMsg[FeedbackMessage](drainSend(c))
	if !ok || !feedback.Correct || feedback.Points != 100 {
		t.Errorf("feedback wrong: %+v", feedback)
	}
}

func TestRapidFireChainsQuestions(t *testing.T) {
	r, host := buzzerRoom(modeRapidFire)

	c, joined := joinPlayer(t, r, "ann")
	unlock(r, host)
	buzz(r, c)
	drainSend(c)

	correct := true
	r.handle(command{kind: cmdMessage, c: host, msg: ClientMessage{
		Type: "host:judge", PlayerID: joined.PlayerID, Correct: &correct, Points: 10,
	}})

	if r.phase != phaseQuestionOpen {
		t.Fatalf("rapid fire did not reopen buzzer: %s", r.phase)
	}
	if len(r.buzzer.queue) != 0 {
		t.Fatal("rapid fire kept the old queue")
	}

	unlocked := filterMsgs[BuzzerUnlockedMessage](drainSend(c))
	if len(unlocked) == 0 {
		t.Error("players not told the next question is open")
	}

	// And the player can immediately buzz again.
	buzz(r, c)
	if len(r.buzzer.queue) != 1 {
		t.Fatal("player could not buzz on chained question")
	}
}
