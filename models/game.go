package models

import (
	"fmt"
	"time"
)

// GameStatus represents the state of a game in its lifecycle
type GameStatus string

const (
	GameStatusWaiting   GameStatus = "waiting"
	GameStatusReserved  GameStatus = "reserved"
	GameStatusActive    GameStatus = "active"
	GameStatusReveal    GameStatus = "reveal"
	GameStatusCompleted GameStatus = "completed"
	GameStatusCancelled GameStatus = "cancelled"
	GameStatusExpired   GameStatus = "expired"
	GameStatusTimeout   GameStatus = "timeout"
)

// ParseGameStatus validates a raw status value at the boundary
func ParseGameStatus(raw string) (GameStatus, error) {
	switch s := GameStatus(raw); s {
	case GameStatusWaiting, GameStatusReserved, GameStatusActive, GameStatusReveal,
		GameStatusCompleted, GameStatusCancelled, GameStatusExpired, GameStatusTimeout:
		return s, nil
	default:
		return "", fmt.Errorf("unknown game status %q", raw)
	}
}

// IsTerminal reports whether the status is final. Everything that is not
// terminal counts as occupying its participants.
func (s GameStatus) IsTerminal() bool {
	switch s {
	case GameStatusCompleted, GameStatusCancelled, GameStatusExpired, GameStatusTimeout:
		return true
	}
	return false
}

// Game represents a single wager between two participants
type Game struct {
	ID                   int64      `db:"id"`
	CreatorID            int64      `db:"creator_id"`
	OpponentID           *int64     `db:"opponent_id"`
	BetAmount            int64      `db:"bet_amount"`
	Status               GameStatus `db:"status"`
	ReservedBy           *int64     `db:"reserved_by"`
	ReservedAt           *time.Time `db:"reserved_at"`
	ReservationExpiresAt *time.Time `db:"reservation_expires_at"`
	DeadlineAt           *time.Time `db:"deadline_at"`
	CreatorMove          *Move      `db:"creator_move"`
	OpponentMove         *Move      `db:"opponent_move"`
	WinnerID             *int64     `db:"winner_id"`
	BotID                *int64     `db:"bot_id"`
	CycleNumber          *int64     `db:"cycle_number"`
	SlotIndex            *int       `db:"slot_index"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
	CompletedAt          *time.Time `db:"completed_at"`
}

// IsParticipant checks if a user is involved in the game
func (g *Game) IsParticipant(userID int64) bool {
	if g.CreatorID == userID {
		return true
	}
	return g.OpponentID != nil && *g.OpponentID == userID
}

// IsBotGame reports whether the game was materialized from a bot's wager plan
func (g *Game) IsBotGame() bool {
	return g.BotID != nil && g.CycleNumber != nil
}

// ReservationExpired checks whether a held reservation has passed its TTL
func (g *Game) ReservationExpired(now time.Time) bool {
	if g.Status != GameStatusReserved || g.ReservationExpiresAt == nil {
		return false
	}
	return now.After(*g.ReservationExpiresAt)
}

// MoveFor returns the move submitted by the given participant, if any
func (g *Game) MoveFor(userID int64) *Move {
	if g.CreatorID == userID {
		return g.CreatorMove
	}
	if g.OpponentID != nil && *g.OpponentID == userID {
		return g.OpponentMove
	}
	return nil
}

// BothMovesIn reports whether both participants have submitted a move
func (g *Game) BothMovesIn() bool {
	return g.CreatorMove != nil && g.OpponentMove != nil
}

// OutcomeForCreator classifies a completed game from the creator's side.
// Only valid once the game is completed.
func (g *Game) OutcomeForCreator() Outcome {
	if g.WinnerID == nil {
		return OutcomeDraw
	}
	if *g.WinnerID == g.CreatorID {
		return OutcomeWin
	}
	return OutcomeLoss
}
