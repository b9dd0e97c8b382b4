package main

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// PsyOp rules: the host pushes a question, every player submits a
// plausible lie, then everyone votes on a shuffled ballot of all lies
// plus the real answer. Finding the truth pays the voter; every vote a
// lie attracts pays its author.

const (
	psyopTruthPoints     = 10
	psyopDeceptionPoints = 5
)

type psyopState struct {
	question       string
	correctAnswer  string
	questionIndex  int
	totalQuestions int

	submissions map[string]string
	subOrder    []string

	options       []VoteOption
	votes         map[string]string
	roundWinnerID string
	revealed      bool
}

func (r *Room) handlePsyopHost(msg ClientMessage) {
	switch msg.Type {
	case "psyop:start:submission":
		r.psyopStartSubmission(msg)
	case "psyop:start:voting":
		r.psyopStartVoting()
	case "psyop:reveal":
		r.psyopReveal()
	case "psyop:skip":
		r.psyopSkip()
	case "psyop:rematch":
		r.psyopRematch()
	case "psyop:end":
		r.psyopEnd()
	case "psyop:sync:leaderboard":
		r.psyopSyncLeaderboard(msg)
	default:
		logf(r.cfg, "ROOMS: Dropped unknown host message %q in %s", msg.Type, r.code)
	}
}

func (r *Room) handlePsyopPlayer(p *Player, msg ClientMessage) {
	switch msg.Type {
	case "psyop:submit:lie":
		r.psyopSubmitLie(p, msg.LieText)
	case "psyop:submit:vote":
		r.psyopSubmitVote(p, msg.VotedForID)
	default:
		logf(r.cfg, "ROOMS: Dropped %q from player %s in %s", msg.Type, p.ID, r.code)
	}
}

func (r *Room) psyopStartSubmission(msg ClientMessage) {
	if msg.Question == "" {
		return
	}

	r.psyop = psyopState{
		question:       msg.Question,
		correctAnswer:  msg.CorrectAnswer,
		questionIndex:  msg.QuestionIndex,
		totalQuestions: msg.TotalQuestions,
		submissions:    make(map[string]string),
		votes:          make(map[string]string),
	}
	r.phase = phaseSubmitting

	r.toAll(PsyopSubmissionStartMessage{
		Type:           "psyop:submission:start",
		Question:       r.psyop.question,
		QuestionIndex:  r.psyop.questionIndex,
		TotalQuestions: r.psyop.totalQuestions,
	})
	r.toAll(PsyopPhaseSyncMessage{Type: "psyop:phaseSync", Phase: string(r.phase)})
}

// psyopSubmitLie records at most one lie per player per round. Duplicate
// attempts keep the first submission and stay silent, since clients may
// retry after a flaky send.
func (r *Room) psyopSubmitLie(p *Player, lieText string) {
	if r.phase != phaseSubmitting || lieText == "" || p.SittingOut {
		return
	}
	if _, ok := r.psyop.submissions[p.ID]; ok {
		return
	}

	r.psyop.submissions[p.ID] = lieText
	r.psyop.subOrder = append(r.psyop.subOrder, p.ID)

	r.toHost(PsyopSubmissionMessage{
		Type:      "psyop:submission",
		PlayerID:  p.ID,
		Name:      p.Name,
		Submitted: len(r.psyop.submissions),
		Total:     r.activePlayers(),
	})
}

// psyopStartVoting builds the ballot: the single truth entry plus one
// entry per distinct lie, shuffled so submission order leaks nothing.
// Players receive the options with authorship and truth flags stripped;
// the host keeps the full mapping.
func (r *Room) psyopStartVoting() {
	if r.phase != phaseSubmitting {
		return
	}

	options := []VoteOption{{
		ID:      uuid.NewString(),
		Text:    r.psyop.correctAnswer,
		IsTruth: true,
	}}

	byText := map[string]int{r.psyop.correctAnswer: 0}
	for _, playerID := range r.psyop.subOrder {
		text := r.psyop.submissions[playerID]
		if i, ok := byText[text]; ok {
			// A lie matching the truth collapses into the truth entry and
			// earns its author nothing; identical lies share one entry.
			if !options[i].IsTruth {
				options[i].AuthorIDs = append(options[i].AuthorIDs, playerID)
			}
			continue
		}
		byText[text] = len(options)
		options = append(options, VoteOption{
			ID:        uuid.NewString(),
			Text:      text,
			AuthorIDs: []string{playerID},
		})
	}

	// Fisher-Yates shuffle using crypto/rand
	for i := len(options) - 1; i > 0; i-- {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			continue
		}
		j := int(b[0]) % (i + 1)
		options[i], options[j] = options[j], options[i]
	}

	r.psyop.options = options
	r.psyop.votes = make(map[string]string)
	r.phase = phaseVoting

	r.toPlayers(PsyopVotingStartMessage{
		Type:    "psyop:voting:start",
		Options: sanitizeOptions(options),
	})
	r.toHost(PsyopVotingStartMessage{
		Type:    "psyop:voting:start",
		Options: options,
	})
	r.toAll(PsyopPhaseSyncMessage{Type: "psyop:phaseSync", Phase: string(r.phase)})
}

func sanitizeOptions(options []VoteOption) []VoteOption {
	out := make([]VoteOption, 0, len(options))
	for _, o := range options {
		out = append(out, VoteOption{ID: o.ID, Text: o.Text})
	}
	return out
}

func (r *Room) psyopOption(id string) *VoteOption {
	for i := range r.psyop.options {
		if r.psyop.options[i].ID == id {
			return &r.psyop.options[i]
		}
	}
	return nil
}

// psyopSubmitVote records one vote per player. Votes for a player's own
// lie are silently rejected rather than surfaced, the safer reading of
// the client contract. Once every active player has voted, the reveal
// runs automatically.
func (r *Room) psyopSubmitVote(p *Player, votedForID string) {
	if r.phase != phaseVoting || p.SittingOut {
		return
	}
	if _, ok := r.psyop.votes[p.ID]; ok {
		return
	}

	option := r.psyopOption(votedForID)
	if option == nil {
		return
	}
	for _, author := range option.AuthorIDs {
		if author == p.ID {
			return
		}
	}

	r.psyop.votes[p.ID] = votedForID

	r.toHost(PsyopVoteMessage{
		Type:     "psyop:vote",
		PlayerID: p.ID,
		Voted:    len(r.psyop.votes),
		Total:    r.activePlayers(),
	})

	if len(r.psyop.votes) >= r.activePlayers() {
		r.psyopReveal()
	}
}

// psyopReveal scores the round and pushes a personalized reveal to every
// participant. Truth voters gain fixed points; lie authors gain fixed
// points per fooled voter. Round points accumulate into the room's
// persistent leaderboard.
func (r *Room) psyopReveal() {
	if r.phase != phaseVoting || r.psyop.revealed {
		return
	}

	r.phase = phaseRevealing
	r.psyop.revealed = true

	roundPoints := make(map[string]int)

	for voterID, optionID := range r.psyop.votes {
		option := r.psyopOption(optionID)
		if option == nil {
			continue
		}
		if option.IsTruth {
			roundPoints[voterID] += psyopTruthPoints
			continue
		}
		for _, author := range option.AuthorIDs {
			roundPoints[author] += psyopDeceptionPoints
		}
	}

	for playerID, points := range roundPoints {
		if p, ok := r.players[playerID]; ok {
			p.Score += points
		}
	}

	r.psyop.roundWinnerID = ""
	best := 0
	for _, id := range r.order {
		if pts := roundPoints[id]; pts > best {
			best = pts
			r.psyop.roundWinnerID = id
		}
	}

	for _, id := range r.order {
		r.toPlayer(id, r.psyopRevealedFor(r.players[id]))
	}
	r.toHost(r.psyopRevealedForHost())

	r.phase = phaseRoundLeaderboard
	r.toAll(PsyopPhaseSyncMessage{Type: "psyop:phaseSync", Phase: string(r.phase)})
}

func (r *Room) psyopRevealedFor(p *Player) PsyopRevealedMessage {
	foundTruth := false
	if optionID, ok := r.psyop.votes[p.ID]; ok {
		if option := r.psyopOption(optionID); option != nil {
			foundTruth = option.IsTruth
		}
	}

	liesBelieved := 0
	for _, optionID := range r.psyop.votes {
		option := r.psyopOption(optionID)
		if option == nil || option.IsTruth {
			continue
		}
		for _, author := range option.AuthorIDs {
			if author == p.ID {
				liesBelieved++
			}
		}
	}

	return PsyopRevealedMessage{
		Type:             "psyop:revealed",
		CorrectAnswer:    r.psyop.correctAnswer,
		YourScore:        p.Score,
		FoundTruth:       foundTruth,
		YourLiesBelieved: liesBelieved,
		Options:          r.psyop.options,
		Leaderboard:      r.leaderboard(),
		RoundWinnerID:    r.psyop.roundWinnerID,
	}
}

func (r *Room) psyopRevealedForHost() PsyopRevealedMessage {
	return PsyopRevealedMessage{
		Type:          "psyop:revealed",
		CorrectAnswer: r.psyop.correctAnswer,
		Options:       r.psyop.options,
		Leaderboard:   r.leaderboard(),
		RoundWinnerID: r.psyop.roundWinnerID,
	}
}

func (r *Room) psyopSkip() {
	if r.phase != phaseSubmitting && r.phase != phaseVoting {
		return
	}

	r.phase = phaseRoundLeaderboard
	r.toAll(SimpleMessage{Type: "psyop:skipped"})
	r.toAll(PsyopPhaseSyncMessage{Type: "psyop:phaseSync", Phase: string(r.phase)})
}

// psyopRematch wipes scores and round state but keeps the player set.
// The room waits for the host to push round one's question.
func (r *Room) psyopRematch() {
	for _, p := range r.players {
		p.Score = 0
	}
	r.psyop = psyopState{}
	r.phase = phaseWaiting

	r.toAll(SimpleMessage{Type: "psyop:rematch"})
	r.toHost(ScoresSyncMessage{Type: "scores:sync", Players: r.playerStates()})
}

func (r *Room) psyopEnd() {
	r.phase = phaseFinished
	r.toAll(SimpleMessage{Type: "psyop:ended"})
	r.toAll(PsyopPhaseSyncMessage{Type: "psyop:phaseSync", Phase: string(r.phase)})
}

// psyopSyncLeaderboard lets the host push an authoritative leaderboard,
// covering host-side score corrections.
func (r *Room) psyopSyncLeaderboard(msg ClientMessage) {
	for _, entry := range msg.Leaderboard {
		if p, ok := r.players[entry.PlayerID]; ok {
			p.Score = entry.Score
		}
	}

	r.toAll(ScoresSyncMessage{Type: "scores:sync", Players: r.playerStates()})
}

// psyopHostSnapshot rebuilds the complete game state for a rejoining
// host: roster, submissions so far, ballot, votes, and leaderboard.
func (r *Room) psyopHostSnapshot() PsyopHostSnapshotMessage {
	submissions := make(map[string]string, len(r.psyop.submissions))
	for id, lie := range r.psyop.submissions {
		submissions[id] = lie
	}
	votes := make(map[string]string, len(r.psyop.votes))
	for id, optionID := range r.psyop.votes {
		votes[id] = optionID
	}

	return PsyopHostSnapshotMessage{
		Type:           "psyop:host:rejoined",
		Code:           r.code,
		Phase:          string(r.phase),
		Question:       r.psyop.question,
		QuestionIndex:  r.psyop.questionIndex,
		TotalQuestions: r.psyop.totalQuestions,
		Players:        r.playerStates(),
		Submissions:    submissions,
		Options:        r.psyop.options,
		Votes:          votes,
		Leaderboard:    r.leaderboard(),
	}
}

// psyopResume replays the phase-appropriate view to one player after a
// reconnect or return from sitting out.
func (r *Room) psyopResume(p *Player) {
	r.toPlayer(p.ID, PsyopPhaseSyncMessage{Type: "psyop:phaseSync", Phase: string(r.phase)})

	switch r.phase {
	case phaseSubmitting:
		r.toPlayer(p.ID, PsyopSubmissionStartMessage{
			Type:           "psyop:submission:start",
			Question:       r.psyop.question,
			QuestionIndex:  r.psyop.questionIndex,
			TotalQuestions: r.psyop.totalQuestions,
		})
	case phaseVoting:
		if _, voted := r.psyop.votes[p.ID]; !voted {
			r.toPlayer(p.ID, PsyopVotingStartMessage{
				Type:    "psyop:voting:start",
				Options: sanitizeOptions(r.psyop.options),
			})
		}
	case phaseRevealing, phaseRoundLeaderboard:
		if r.psyop.revealed {
			r.toPlayer(p.ID, r.psyopRevealedFor(p))
		}
	}
}
