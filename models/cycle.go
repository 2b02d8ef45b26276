package models

import (
	"fmt"
	"time"
)

// Outcome represents the result of one wager from the bot's perspective
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// ParseOutcome validates a raw outcome value at the boundary
func ParseOutcome(raw string) (Outcome, error) {
	switch o := Outcome(raw); o {
	case OutcomeWin, OutcomeLoss, OutcomeDraw:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", raw)
	}
}

// WagerPlan is one slot of a generated cycle batch. Plans are created once at
// cycle start and never mutated, except for binding to the game that
// materializes them.
type WagerPlan struct {
	ID              int64     `db:"id"`
	BotID           int64     `db:"bot_id"`
	CycleNumber     int64     `db:"cycle_number"`
	SlotIndex       int       `db:"slot_index"`
	Amount          int64     `db:"amount"`
	IntendedOutcome Outcome   `db:"intended_outcome"`
	GameID          *int64    `db:"game_id"`
	CreatedAt       time.Time `db:"created_at"`
}

// CycleAccumulator tracks live progress of one (bot, cycle) batch
type CycleAccumulator struct {
	BotID            int64     `db:"bot_id"`
	CycleNumber      int64     `db:"cycle_number"`
	TargetGameCount  int       `db:"target_game_count"`
	GamesCompleted   int       `db:"games_completed"`
	GamesWon         int       `db:"games_won"`
	GamesLost        int       `db:"games_lost"`
	GamesDrawn       int       `db:"games_drawn"`
	WinsAmount       int64     `db:"wins_amount"`
	LossesAmount     int64     `db:"losses_amount"`
	DrawsAmount      int64     `db:"draws_amount"`
	IsCycleCompleted bool      `db:"is_cycle_completed"`
	CycleStartTime   time.Time `db:"cycle_start_time"`
}

// TargetReached reports whether the batch target has been hit
func (a *CycleAccumulator) TargetReached() bool {
	return a.GamesCompleted >= a.TargetGameCount
}

// NetProfit is winnings minus losses. Draws return the stake and contribute
// nothing to either side.
func (a *CycleAccumulator) NetProfit() int64 {
	return a.WinsAmount - a.LossesAmount
}

// ActivePool is the ROI denominator: win and loss amounts, draws excluded
func (a *CycleAccumulator) ActivePool() int64 {
	return a.WinsAmount + a.LossesAmount
}

// ROIPercent computes return on the active pool; zero pool yields zero
func (a *CycleAccumulator) ROIPercent() float64 {
	pool := a.ActivePool()
	if pool == 0 {
		return 0
	}
	return float64(a.NetProfit()) / float64(pool) * 100
}

// CompletedCycle is the immutable historical record of one finished cycle,
// unique per (bot_id, cycle_number)
type CompletedCycle struct {
	ID             int64     `db:"id"`
	BotID          int64     `db:"bot_id"`
	CycleNumber    int64     `db:"cycle_number"`
	TotalBets      int       `db:"total_bets"`
	WinsCount      int       `db:"wins_count"`
	LossesCount    int       `db:"losses_count"`
	DrawsCount     int       `db:"draws_count"`
	TotalBetAmount int64     `db:"total_bet_amount"`
	TotalWinnings  int64     `db:"total_winnings"`
	TotalLosses    int64     `db:"total_losses"`
	NetProfit      int64     `db:"net_profit"`
	ROIPercent     float64   `db:"roi_percent"`
	StartTime      time.Time `db:"start_time"`
	EndTime        time.Time `db:"end_time"`
	CreatedAt      time.Time `db:"created_at"`
}
