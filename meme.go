package main

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Meme rules: players answer a prompt with a GIF, then vote on the
// anonymized gallery. The server relays GIF URLs as opaque strings; the
// picker integration lives entirely client-side.

type memeState struct {
	prompt string

	submissions map[string]memeSubmission
	subOrder    []string

	options       []MemeOption
	votes         map[string]string
	roundWinnerID string
	revealed      bool
}

type memeSubmission struct {
	gifURL   string
	gifTitle string
}

func (r *Room) handleMemeHost(msg ClientMessage) {
	switch msg.Type {
	case "meme:start:submission":
		r.memeStartSubmission(msg)
	case "meme:start:voting":
		r.memeStartVoting()
	case "meme:reveal":
		r.memeReveal()
	default:
		logf(r.cfg, "ROOMS: Dropped unknown host message %q in %s", msg.Type, r.code)
	}
}

func (r *Room) handleMemePlayer(p *Player, msg ClientMessage) {
	switch msg.Type {
	case "meme:player:submit":
		r.memeSubmit(p, msg.GifURL, msg.GifTitle)
	case "meme:player:vote":
		r.memeVote(p, msg.VotedForID)
	case "meme:unsittingOut":
		p.SittingOut = false
		r.toPlayer(p.ID, SimpleMessage{Type: "meme:unsittingOut"})
		r.memeResume(p)
		r.toHost(ScoresSyncMessage{Type: "scores:sync", Players: r.playerStates()})
	default:
		logf(r.cfg, "ROOMS: Dropped %q from player %s in %s", msg.Type, p.ID, r.code)
	}
}

func (r *Room) memeStartSubmission(msg ClientMessage) {
	r.meme = memeState{
		prompt:      msg.Prompt,
		submissions: make(map[string]memeSubmission),
		votes:       make(map[string]string),
	}
	r.phase = phaseSubmitting

	r.toAll(MemeSubmissionStartMessage{Type: "meme:submission:start", Prompt: r.meme.prompt})
}

// memeSubmit stores one GIF per player per round; repeats are ignored.
func (r *Room) memeSubmit(p *Player, gifURL, gifTitle string) {
	if r.phase != phaseSubmitting || gifURL == "" || p.SittingOut {
		return
	}
	if _, ok := r.meme.submissions[p.ID]; ok {
		return
	}

	r.meme.submissions[p.ID] = memeSubmission{gifURL: gifURL, gifTitle: gifTitle}
	r.meme.subOrder = append(r.meme.subOrder, p.ID)

	r.toHost(MemeSubmissionMessage{
		Type:      "meme:submission",
		PlayerID:  p.ID,
		Name:      p.Name,
		Submitted: len(r.meme.submissions),
		Total:     r.activePlayers(),
	})
}

// memeStartVoting shuffles the gallery so entries can't be matched to
// submission order. Players get anonymized options; the host sees
// authorship.
func (r *Room) memeStartVoting() {
	if r.phase != phaseSubmitting || len(r.meme.submissions) == 0 {
		return
	}

	options := make([]MemeOption, 0, len(r.meme.submissions))
	for _, playerID := range r.meme.subOrder {
		sub := r.meme.submissions[playerID]
		options = append(options, MemeOption{
			ID:       uuid.NewString(),
			GifURL:   sub.gifURL,
			GifTitle: sub.gifTitle,
			AuthorID: playerID,
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

	r.meme.options = options
	r.meme.votes = make(map[string]string)
	r.phase = phaseVoting

	anonymized := make([]MemeOption, 0, len(options))
	for _, o := range options {
		anonymized = append(anonymized, MemeOption{ID: o.ID, GifURL: o.GifURL, GifTitle: o.GifTitle})
	}

	r.toPlayers(MemeVotingStartMessage{Type: "meme:voting:start", Options: anonymized})
	r.toHost(MemeVotingStartMessage{Type: "meme:voting:start", Options: options})
}

func (r *Room) memeOption(id string) *MemeOption {
	for i := range r.meme.options {
		if r.meme.options[i].ID == id {
			return &r.meme.options[i]
		}
	}
	return nil
}

// memeVote records one vote per player, never for their own entry. All
// active players voting triggers the reveal.
func (r *Room) memeVote(p *Player, votedForID string) {
	if r.phase != phaseVoting || p.SittingOut {
		return
	}
	if _, ok := r.meme.votes[p.ID]; ok {
		return
	}

	option := r.memeOption(votedForID)
	if option == nil || option.AuthorID == p.ID {
		return
	}

	r.meme.votes[p.ID] = votedForID

	if len(r.meme.votes) >= r.activePlayers() {
		r.memeReveal()
	}
}

// memeReveal awards one point per vote received and publishes the full
// gallery with authors and tallies.
func (r *Room) memeReveal() {
	if r.phase != phaseVoting || r.meme.revealed {
		return
	}

	r.phase = phaseRevealing
	r.meme.revealed = true

	tally := make(map[string]int)
	for _, optionID := range r.meme.votes {
		tally[optionID]++
	}

	results := make([]MemeOption, 0, len(r.meme.options))
	for _, o := range r.meme.options {
		o.VoteCount = tally[o.ID]
		results = append(results, o)
		if p, ok := r.players[o.AuthorID]; ok {
			p.Score += o.VoteCount
		}
	}
	r.meme.options = results

	r.meme.roundWinnerID = ""
	best := 0
	for _, o := range results {
		if o.VoteCount > best {
			best = o.VoteCount
			r.meme.roundWinnerID = o.AuthorID
		}
	}

	r.toAll(MemeRevealedMessage{
		Type:          "meme:revealed",
		Results:       results,
		Leaderboard:   r.leaderboard(),
		RoundWinnerID: r.meme.roundWinnerID,
	})

	r.phase = phaseRoundLeaderboard
}

// memeResume replays the current round view to one player.
func (r *Room) memeResume(p *Player) {
	switch r.phase {
	case phaseSubmitting:
		r.toPlayer(p.ID, MemeSubmissionStartMessage{Type: "meme:submission:start", Prompt: r.meme.prompt})
	case phaseVoting:
		if _, voted := r.meme.votes[p.ID]; !voted {
			anonymized := make([]MemeOption, 0, len(r.meme.options))
			for _, o := range r.meme.options {
				anonymized = append(anonymized, MemeOption{ID: o.ID, GifURL: o.GifURL, GifTitle: o.GifTitle})
			}
			r.toPlayer(p.ID, MemeVotingStartMessage{Type: "meme:voting:start", Options: anonymized})
		}
	case phaseRevealing, phaseRoundLeaderboard:
		if r.meme.revealed {
			r.toPlayer(p.ID, MemeRevealedMessage{
				Type:          "meme:revealed",
				Results:       r.meme.options,
				Leaderboard:   r.leaderboard(),
				RoundWinnerID: r.meme.roundWinnerID,
			})
		}
	}
}
