package models

import (
	"fmt"
)

// Move represents a rock-paper-scissors move
type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

// ParseMove validates a raw move value at the boundary
func ParseMove(raw string) (Move, error) {
	switch m := Move(raw); m {
	case MoveRock, MovePaper, MoveScissors:
		return m, nil
	default:
		return "", fmt.Errorf("unknown move %q", raw)
	}
}

// Beats reports whether m wins against other under standard precedence
func (m Move) Beats(other Move) bool {
	switch m {
	case MoveRock:
		return other == MoveScissors
	case MovePaper:
		return other == MoveRock
	case MoveScissors:
		return other == MovePaper
	}
	return false
}

// CounterMove returns the move that beats the given move
func CounterMove(m Move) Move {
	switch m {
	case MoveRock:
		return MovePaper
	case MovePaper:
		return MoveScissors
	default:
		return MoveRock
	}
}

// LosingMove returns the move that loses to the given move
func LosingMove(m Move) Move {
	switch m {
	case MoveRock:
		return MoveScissors
	case MovePaper:
		return MoveRock
	default:
		return MovePaper
	}
}

// ResolveMoves determines the winner of creatorMove vs opponentMove.
// Returns 1 if the creator wins, 2 if the opponent wins, 0 on a draw.
func ResolveMoves(creatorMove, opponentMove Move) int {
	if creatorMove == opponentMove {
		return 0
	}
	if creatorMove.Beats(opponentMove) {
		return 1
	}
	return 2
}
