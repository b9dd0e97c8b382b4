package main

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type gameMode string

const (
	modeBuzzer    gameMode = "buzzer"
	modeSequence  gameMode = "sequence"
	modePsyop     gameMode = "psyop"
	modeMeme      gameMode = "meme"
	modeRapidFire gameMode = "rapid_fire"
)

func validMode(m string) bool {
	switch gameMode(m) {
	case modeBuzzer, modeSequence, modePsyop, modeMeme, modeRapidFire:
		return true
	}
	return false
}

// buzzerFamily reports whether a mode uses the buzzer rule set. The
// sequence and rapid_fire modes share it, differing only in how the host
// chains questions.
func (m gameMode) buzzerFamily() bool {
	return m == modeBuzzer || m == modeSequence || m == modeRapidFire
}

type phase string

const (
	phaseWaiting          phase = "waiting"
	phaseQuestionOpen     phase = "questionOpen"
	phaseBuzzed           phase = "buzzed"
	phaseAnswered         phase = "answered"
	phaseSubmitting       phase = "submitting"
	phaseVoting           phase = "voting"
	phaseRevealing        phase = "revealing"
	phaseRoundLeaderboard phase = "roundLeaderboard"
	phaseFinished         phase = "finished"
)

// Player is the server-side record for one participant. It survives
// socket churn: disconnection only clears the client binding, and the
// record is deleted solely on kick or room closure.
type Player struct {
	ID             string
	Name           string
	Avatar         string
	Score          int
	Connected      bool
	SittingOut     bool
	BuzzerBlocked  bool
	ReconnectToken string

	client *client
}

type cmdKind int

const (
	cmdMessage cmdKind = iota
	cmdJoin
	cmdHostRejoin
	cmdDisconnect
	cmdClose
)

type command struct {
	kind   cmdKind
	c      *client
	msg    ClientMessage
	reason string
}

// Room owns all mutable state for one game session. Every mutation runs
// on the room goroutine, which consumes the commands channel one message
// at a time; nothing else touches players, phase, or mode sub-state.
type Room struct {
	cfg    *Config
	code   string
	hostID string

	mode  gameMode
	phase phase

	host     *client
	players  map[string]*Player
	order    []string
	byClient map[*client]*Player

	commands chan command
	done     chan struct{}

	// closeSelf is set by the directory at registration so a host-driven
	// close deregisters the room the same way the reaper does.
	closeSelf func(reason string)

	// mu guards only the fields the directory reaper reads.
	mu           sync.Mutex
	createdAt    time.Time
	lastActivity time.Time
	connected    int

	buzzer buzzerState
	psyop  psyopState
	meme   memeState
}

func newRoom(cfg *Config, code string, mode gameMode) *Room {
	now := time.Now()
	return &Room{
		cfg:          cfg,
		code:         code,
		hostID:       uuid.NewString(),
		mode:         mode,
		phase:        phaseWaiting,
		players:      make(map[string]*Player),
		byClient:     make(map[*client]*Player),
		commands:     make(chan command, 64),
		done:         make(chan struct{}),
		createdAt:    now,
		lastActivity: now,
	}
}

func (r *Room) run() {
	for cmd := range r.commands {
		if closed := r.handle(cmd); closed {
			return
		}
	}
}

// enqueue hands a command to the room goroutine. It reports false if the
// room has already been closed and the command dropped.
func (r *Room) enqueue(cmd command) bool {
	select {
	case r.commands <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

func (r *Room) addConnected(delta int) {
	r.mu.Lock()
	r.connected += delta
	r.mu.Unlock()
}

// idleState returns the last activity time and whether any socket (host
// or player) is still attached. Used by the directory reaper.
func (r *Room) idleState() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity, r.connected > 0
}

// handle processes one command to completion. A panic in a handler is
// contained here so a single bad message can never take down the process
// or wedge the room.
func (r *Room) handle(cmd command) (closed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logf(r.cfg, "ROOMS: Recovered from handler panic in %s: %v", r.code, rec)
		}
	}()

	r.touch()

	switch cmd.kind {
	case cmdJoin:
		r.handleJoin(cmd.c, cmd.msg)
	case cmdHostRejoin:
		r.handleHostRejoin(cmd.c, cmd.msg)
	case cmdDisconnect:
		r.handleDisconnect(cmd.c)
	case cmdClose:
		r.handleClose(cmd.reason)
		return true
	case cmdMessage:
		r.handleMessage(cmd.c, cmd.msg)
	}

	return false
}

func (r *Room) handleMessage(c *client, msg ClientMessage) {
	if msg.Type == "ping" {
		r.trySend(c, SimpleMessage{Type: "pong"})
		return
	}

	if c == r.host {
		r.handleHostMessage(msg)
		return
	}

	p, ok := r.byClient[c]
	if !ok {
		// A client whose join or rejoin was rejected may retry on the same
		// socket.
		switch msg.Type {
		case "player:join", "meme:player:join":
			r.handleJoin(c, msg)
		case "host:rejoin", "psyop:host:rejoin":
			r.handleHostRejoin(c, msg)
		default:
			logf(r.cfg, "ROOMS: Dropped %q from unknown sender in %s", msg.Type, r.code)
		}
		return
	}

	r.handlePlayerMessage(p, msg)
}

func (r *Room) handleHostMessage(msg ClientMessage) {
	switch msg.Type {
	case "host:mode":
		r.handleModeSwitch(msg.Mode)
	case "kick":
		r.handleKick(msg.PlayerID)
	case "sit_out":
		r.handleSitOut(msg)
	case "update_score":
		r.handleUpdateScore(msg)
	case "host:close":
		r.dirCloseSelf(msg.Reason)
	case "host:unlock", "host:lock", "host:reset", "host:judge":
		if r.mode.buzzerFamily() {
			r.handleBuzzerHost(msg)
		} else {
			logf(r.cfg, "ROOMS: Dropped %q outside buzzer mode in %s", msg.Type, r.code)
		}
	default:
		switch {
		case r.mode == modePsyop:
			r.handlePsyopHost(msg)
		case r.mode == modeMeme:
			r.handleMemeHost(msg)
		default:
			logf(r.cfg, "ROOMS: Dropped unknown host message %q in %s", msg.Type, r.code)
		}
	}
}

func (r *Room) handlePlayerMessage(p *Player, msg ClientMessage) {
	switch {
	case msg.Type == "player:buzz" && r.mode.buzzerFamily():
		r.handleBuzz(p)
	case r.mode == modePsyop:
		r.handlePsyopPlayer(p, msg)
	case r.mode == modeMeme:
		r.handleMemePlayer(p, msg)
	default:
		logf(r.cfg, "ROOMS: Dropped %q from player %s in %s", msg.Type, p.ID, r.code)
	}
}

func (r *Room) handleJoin(c *client, msg ClientMessage) {
	if _, ok := r.byClient[c]; ok {
		return
	}

	if msg.ReconnectToken != "" {
		r.handleReconnect(c, msg)
		return
	}

	if msg.Name == "" {
		logf(r.cfg, "ROOMS: Dropped join without name in %s", r.code)
		return
	}

	p := &Player{
		ID:             uuid.NewString(),
		Name:           msg.Name,
		Avatar:         msg.Avatar,
		Connected:      true,
		ReconnectToken: newReconnectToken(),
		client:         c,
	}

	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
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

	r.toAllExcept(p.ID, PlayerEventMessage{
		Type:     "player:joined",
		PlayerID: p.ID,
		Name:     p.Name,
		Avatar:   p.Avatar,
	})
	r.toHost(ScoresSyncMessage{Type: "scores:sync", Players: r.playerStates()})

	// Late joiners get the current round's view straight away.
	r.resumePlayer(p)

	logf(r.cfg, "GAMES: Player %q joined %s", p.Name, r.code)
}

func (r *Room) handleDisconnect(c *client) {
	if c == r.host {
		r.host = nil
		r.addConnected(-1)
		r.closeSend(c)
		r.toAll(SimpleMessage{Type: "host:disconnected"})
		logf(r.cfg, "GAMES: Host left %s", r.code)
		return
	}

	p, ok := r.byClient[c]
	r.closeSend(c)
	if !ok {
		return
	}

	delete(r.byClient, c)
	p.Connected = false
	p.client = nil
	r.addConnected(-1)

	r.toAll(PlayerEventMessage{
		Type:     "player:disconnected",
		PlayerID: p.ID,
		Name:     p.Name,
	})

	r.checkRoundCompletion()
}

func (r *Room) handleHostRejoin(c *client, msg ClientMessage) {
	if msg.HostID != r.hostID {
		r.trySend(c, ErrorMessage{Type: "error", Message: errInvalidReconnectToken.Error()})
		return
	}

	if r.host != nil && r.host != c {
		stale := r.host
		r.addConnected(-1)
		r.closeSend(stale)
	}
	r.host = c
	r.addConnected(1)

	r.toPlayers(SimpleMessage{Type: "host:reconnected"})

	if r.mode == modePsyop {
		r.trySend(c, r.psyopHostSnapshot())
	} else {
		r.trySend(c, r.hostSnapshot())
	}

	logf(r.cfg, "GAMES: Host rejoined %s", r.code)
}

func (r *Room) hostSnapshot() HostSnapshotMessage {
	queue := make([]BuzzState, 0, len(r.buzzer.queue))
	for _, e := range r.buzzer.queue {
		name := ""
		if p, ok := r.players[e.playerID]; ok {
			name = p.Name
		}
		queue = append(queue, BuzzState{PlayerID: e.playerID, Name: name, Time: e.at})
	}

	return HostSnapshotMessage{
		Type:    "host:rejoined",
		Code:    r.code,
		Mode:    string(r.mode),
		Phase:   string(r.phase),
		Players: r.playerStates(),
		Queue:   queue,
	}
}

// handleModeSwitch changes the active game mode, wiping mode-specific
// sub-state while preserving the roster and cumulative scores.
func (r *Room) handleModeSwitch(mode string) {
	if !validMode(mode) {
		logf(r.cfg, "ROOMS: Dropped switch to unknown mode %q in %s", mode, r.code)
		return
	}

	r.mode = gameMode(mode)
	r.phase = phaseWaiting
	r.buzzer = buzzerState{}
	r.psyop = psyopState{}
	r.meme = memeState{}
	for _, p := range r.players {
		p.BuzzerBlocked = false
	}

	r.toAll(ModeChangedMessage{Type: "mode:changed", Mode: mode})
}

func (r *Room) handleKick(playerID string) {
	p, ok := r.players[playerID]
	if !ok {
		return
	}

	r.trySend(p.client, SimpleMessage{Type: "kicked"})

	if p.client != nil {
		delete(r.byClient, p.client)
		r.addConnected(-1)
		r.closeSend(p.client)
		_ = p.client.close()
		p.client = nil
	}

	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.buzzerDropPlayer(playerID)

	r.toAll(PlayerEventMessage{
		Type:     "player:left",
		PlayerID: p.ID,
		Name:     p.Name,
	})
	r.toHost(ScoresSyncMessage{Type: "scores:sync", Players: r.playerStates()})

	logf(r.cfg, "GAMES: Player %q kicked from %s", p.Name, r.code)
}

func (r *Room) handleSitOut(msg ClientMessage) {
	p, ok := r.players[msg.PlayerID]
	if !ok || msg.SittingOut == nil {
		return
	}

	p.SittingOut = *msg.SittingOut

	if p.SittingOut {
		r.toPlayer(p.ID, SimpleMessage{Type: "sittingOut"})
		r.checkRoundCompletion()
	} else {
		r.toPlayer(p.ID, SimpleMessage{Type: "unsittingOut"})
		r.resumePlayer(p)
	}
	r.toHost(ScoresSyncMessage{Type: "scores:sync", Players: r.playerStates()})
}

func (r *Room) handleUpdateScore(msg ClientMessage) {
	p, ok := r.players[msg.PlayerID]
	if !ok {
		return
	}

	p.Score += msg.Delta

	r.toAll(ScoreUpdatedMessage{
		Type:     "score:updated",
		PlayerID: p.ID,
		Score:    p.Score,
	})
}

func (r *Room) dirCloseSelf(reason string) {
	if r.closeSelf == nil {
		r.handleClose(reason)
		return
	}
	r.closeSelf(reason)
}

func (r *Room) handleClose(reason string) {
	if reason == "" {
		reason = "Room closed"
	}

	r.toAll(RoomClosedMessage{Type: "room:closed", Reason: reason})

	if r.host != nil {
		r.closeSend(r.host)
		_ = r.host.close()
		r.host = nil
	}
	for c, p := range r.byClient {
		p.Connected = false
		p.client = nil
		r.closeSend(c)
		_ = c.close()
		delete(r.byClient, c)
	}

	r.mu.Lock()
	r.connected = 0
	r.mu.Unlock()

	close(r.done)

	logf(r.cfg, "ROOMS: Closed %s (%s)", r.code, reason)
}

// fanout primitives; delivery is best-effort and a full send buffer drops
// the frame rather than blocking the room goroutine.

func (r *Room) trySend(c *client, msg any) {
	if c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (r *Room) closeSend(c *client) {
	if c == nil {
		return
	}
	c.closeSend()
}

func (r *Room) toAll(msg any) {
	r.trySend(r.host, msg)
	r.toPlayers(msg)
}

func (r *Room) toPlayers(msg any) {
	for _, id := range r.order {
		r.trySend(r.players[id].client, msg)
	}
}

func (r *Room) toAllExcept(excludeID string, msg any) {
	r.trySend(r.host, msg)
	for _, id := range r.order {
		if id == excludeID {
			continue
		}
		r.trySend(r.players[id].client, msg)
	}
}

func (r *Room) toHost(msg any) {
	r.trySend(r.host, msg)
}

func (r *Room) toPlayer(playerID string, msg any) {
	if p, ok := r.players[playerID]; ok {
		r.trySend(p.client, msg)
	}
}

// roster helpers

func (r *Room) playerStates() []PlayerState {
	states := make([]PlayerState, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		states = append(states, PlayerState{
			PlayerID:   p.ID,
			Name:       p.Name,
			Avatar:     p.Avatar,
			Score:      p.Score,
			Connected:  p.Connected,
			SittingOut: p.SittingOut,
		})
	}
	return states
}

// leaderboard returns players by descending score, join order breaking
// ties.
func (r *Room) leaderboard() []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		entries = append(entries, LeaderboardEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

// activePlayers counts participants expected to act in the current round:
// connected and not benched.
func (r *Room) activePlayers() int {
	count := 0
	for _, p := range r.players {
		if p.Connected && !p.SittingOut {
			count++
		}
	}
	return count
}

// checkRoundCompletion re-runs the all-voted check that normally fires on
// each vote. A disconnect or bench can shrink the active count below the
// recorded votes, leaving a round complete with no vote left to arrive.
func (r *Room) checkRoundCompletion() {
	if r.phase != phaseVoting {
		return
	}
	active := r.activePlayers()
	if active == 0 {
		return
	}

	switch r.mode {
	case modePsyop:
		if len(r.psyop.votes) >= active {
			r.psyopReveal()
		}
	case modeMeme:
		if len(r.meme.votes) >= active {
			r.memeReveal()
		}
	}
}
