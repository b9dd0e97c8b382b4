package main

import "time"

// ClientMessage is the single inbound frame shape. Every frame carries a
// "type" discriminator; the remaining fields are populated per type and
// ignored otherwise.
type ClientMessage struct {
	Type string `json:"type"`

	// join / rejoin
	Code           string `json:"code,omitempty"`
	Name           string `json:"name,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	PlayerID       string `json:"playerId,omitempty"`
	ReconnectToken string `json:"reconnectToken,omitempty"`
	HostID         string `json:"hostId,omitempty"`

	// host controls
	Mode       string `json:"mode,omitempty"`
	Delta      int    `json:"delta,omitempty"`
	Correct    *bool  `json:"correct,omitempty"`
	Points     int    `json:"points,omitempty"`
	SittingOut *bool  `json:"sittingOut,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// psyop
	Question       string             `json:"question,omitempty"`
	QuestionIndex  int                `json:"questionIndex,omitempty"`
	TotalQuestions int                `json:"totalQuestions,omitempty"`
	CorrectAnswer  string             `json:"correctAnswer,omitempty"`
	LieText        string             `json:"lieText,omitempty"`
	VotedForID     string             `json:"votedForId,omitempty"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard,omitempty"`

	// meme
	Prompt   string `json:"prompt,omitempty"`
	GifURL   string `json:"gifUrl,omitempty"`
	GifTitle string `json:"gifTitle,omitempty"`
}

// SimpleMessage covers notifications that need no payload beyond an
// optional human-readable text ("kicked", "buzzer:locked", and friends).
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type RoomCreatedMessage struct {
	Type   string `json:"type"` // "room:created" or "psyop:room:created"
	Code   string `json:"code"`
	HostID string `json:"hostId"`
	Mode   string `json:"mode"`
}

type JoinedMessage struct {
	Type           string `json:"type"` // "joined"
	PlayerID       string `json:"playerId"`
	ReconnectToken string `json:"reconnectToken"`
	Score          int    `json:"score"`
	BuzzerLocked   bool   `json:"buzzerLocked"`
	Mode           string `json:"mode"`
	Phase          string `json:"phase"`
}

type RoomClosedMessage struct {
	Type   string `json:"type"` // "room:closed"
	Reason string `json:"reason"`
}

type PlayerEventMessage struct {
	Type     string `json:"type"` // "player:joined", "player:connected", "player:disconnected"
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
}

type ModeChangedMessage struct {
	Type string `json:"type"` // "mode:changed"
	Mode string `json:"mode"`
}

// PlayerState is the wire form of a player record, used in roster syncs
// and host snapshots.
type PlayerState struct {
	PlayerID   string `json:"playerId"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar,omitempty"`
	Score      int    `json:"score"`
	Connected  bool   `json:"connected"`
	SittingOut bool   `json:"sittingOut"`
}

type ScoresSyncMessage struct {
	Type    string        `json:"type"` // "scores:sync"
	Players []PlayerState `json:"players"`
}

type ScoreUpdatedMessage struct {
	Type     string `json:"type"` // "score:updated"
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// buzzer mode

type BuzzerUnlockedMessage struct {
	Type        string `json:"type"` // "buzzer:unlocked"
	NewQuestion bool   `json:"newQuestion"`
}

type BuzzConfirmedMessage struct {
	Type     string `json:"type"` // "buzz:confirmed"
	Position int    `json:"position"`
}

type BuzzReceivedMessage struct {
	Type     string    `json:"type"` // "buzz:received"
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
	Time     time.Time `json:"time"`
}

type FeedbackMessage struct {
	Type    string `json:"type"` // "feedback"
	Correct bool   `json:"correct"`
	Points  int    `json:"points"`
}

// psyop mode

type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// VoteOption is one ballot entry. IsTruth and AuthorIDs are stripped
// before the option list is shown to players; only the host receives the
// full mapping.
type VoteOption struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	IsTruth   bool     `json:"isTruth,omitempty"`
	AuthorIDs []string `json:"authorIds,omitempty"`
}

type PsyopSubmissionStartMessage struct {
	Type           string `json:"type"` // "psyop:submission:start"
	Question       string `json:"question"`
	QuestionIndex  int    `json:"questionIndex"`
	TotalQuestions int    `json:"totalQuestions"`
}

// PsyopSubmissionMessage is sent to the host once per accepted lie so it
// can track round progress.
type PsyopSubmissionMessage struct {
	Type      string `json:"type"` // "psyop:submission"
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Submitted int    `json:"submitted"`
	Total     int    `json:"total"`
}

type PsyopVotingStartMessage struct {
	Type    string       `json:"type"` // "psyop:voting:start"
	Options []VoteOption `json:"options"`
}

type PsyopVoteMessage struct {
	Type     string `json:"type"` // "psyop:vote"
	PlayerID string `json:"playerId"`
	Voted    int    `json:"voted"`
	Total    int    `json:"total"`
}

type PsyopRevealedMessage struct {
	Type             string             `json:"type"` // "psyop:revealed"
	CorrectAnswer    string             `json:"correctAnswer"`
	YourScore        int                `json:"yourScore"`
	FoundTruth       bool               `json:"foundTruth"`
	YourLiesBelieved int                `json:"yourLiesBelieved"`
	Options          []VoteOption       `json:"options"`
	Leaderboard      []LeaderboardEntry `json:"leaderboard"`
	RoundWinnerID    string             `json:"roundWinnerId"`
}

type PsyopPhaseSyncMessage struct {
	Type  string `json:"type"` // "psyop:phaseSync"
	Phase string `json:"phase"`
}

// PsyopHostSnapshotMessage carries the full reconstructable room state,
// replayed to a host that rejoins mid-game.
type PsyopHostSnapshotMessage struct {
	Type           string             `json:"type"` // "psyop:host:rejoined"
	Code           string             `json:"code"`
	Phase          string             `json:"phase"`
	Question       string             `json:"question"`
	QuestionIndex  int                `json:"questionIndex"`
	TotalQuestions int                `json:"totalQuestions"`
	Players        []PlayerState      `json:"players"`
	Submissions    map[string]string  `json:"submissions"`
	Options        []VoteOption       `json:"options"`
	Votes          map[string]string  `json:"votes"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
}

// HostSnapshotMessage is the buzzer-family equivalent of the psyop host
// snapshot.
type HostSnapshotMessage struct {
	Type    string        `json:"type"` // "host:rejoined"
	Code    string        `json:"code"`
	Mode    string        `json:"mode"`
	Phase   string        `json:"phase"`
	Players []PlayerState `json:"players"`
	Queue   []BuzzState   `json:"queue"`
}

type BuzzState struct {
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name"`
	Time     time.Time `json:"time"`
}

// meme mode

type MemeOption struct {
	ID        string `json:"id"`
	GifURL    string `json:"gifUrl"`
	GifTitle  string `json:"gifTitle,omitempty"`
	AuthorID  string `json:"authorId,omitempty"`
	VoteCount int    `json:"voteCount,omitempty"`
}

type MemeSubmissionStartMessage struct {
	Type   string `json:"type"` // "meme:submission:start"
	Prompt string `json:"prompt"`
}

type MemeSubmissionMessage struct {
	Type      string `json:"type"` // "meme:submission"
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Submitted int    `json:"submitted"`
	Total     int    `json:"total"`
}

type MemeVotingStartMessage struct {
	Type    string       `json:"type"` // "meme:voting:start"
	Options []MemeOption `json:"options"`
}

type MemeRevealedMessage struct {
	Type          string             `json:"type"` // "meme:revealed"
	Results       []MemeOption       `json:"results"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
	RoundWinnerID string             `json:"roundWinnerId"`
}
