package models

import (
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial    TransactionType = "initial"
	TransactionTypeGameStake  TransactionType = "game_stake"
	TransactionTypeGameWin    TransactionType = "game_win"
	TransactionTypeGameRefund TransactionType = "game_refund"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	BalanceBefore   int64           `db:"balance_before"`
	BalanceAfter    int64           `db:"balance_after"`
	ChangeAmount    int64           `db:"change_amount"`
	TransactionType TransactionType `db:"transaction_type"`
	RelatedGameID   *int64          `db:"related_game_id"`
	CreatedAt       time.Time       `db:"created_at"`
}
