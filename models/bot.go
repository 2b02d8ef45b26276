package models

import (
	"fmt"
	"math"
	"time"
)

// BotCycleConfig holds the static per-bot parameters a cycle is generated
// from. Read-only while a cycle is in flight.
type BotCycleConfig struct {
	MinAmount        int64   `db:"min_amount"`
	MaxAmount        int64   `db:"max_amount"`
	TargetGameCount  int     `db:"target_game_count"`
	WinPct           float64 `db:"win_pct"`
	LossPct          float64 `db:"loss_pct"`
	DrawPct          float64 `db:"draw_pct"`
	CycleTotalAmount *int64  `db:"cycle_total_amount"`
}

// pctTolerance absorbs float representation noise in configured percentages
const pctTolerance = 0.001

// Validate rejects configurations that cannot produce a well-formed cycle
func (c *BotCycleConfig) Validate() error {
	if c.MinAmount <= 0 {
		return fmt.Errorf("min amount must be positive, got %d", c.MinAmount)
	}
	if c.MaxAmount < c.MinAmount {
		return fmt.Errorf("max amount %d is below min amount %d", c.MaxAmount, c.MinAmount)
	}
	if c.TargetGameCount <= 0 {
		return fmt.Errorf("target game count must be positive, got %d", c.TargetGameCount)
	}
	if c.WinPct < 0 || c.LossPct < 0 || c.DrawPct < 0 {
		return fmt.Errorf("percentages must be non-negative")
	}
	if sum := c.WinPct + c.LossPct + c.DrawPct; math.Abs(sum-100) > pctTolerance {
		return fmt.Errorf("win/loss/draw percentages must sum to 100, got %.3f", sum)
	}
	if c.CycleTotalAmount != nil && *c.CycleTotalAmount <= 0 {
		return fmt.Errorf("cycle total amount must be positive, got %d", *c.CycleTotalAmount)
	}
	return nil
}

// CycleTotal returns the configured override, or a baseline scaled by the
// amount span and game count so the average wager stays within bounds.
func (c *BotCycleConfig) CycleTotal() int64 {
	if c.CycleTotalAmount != nil {
		return *c.CycleTotalAmount
	}
	span := c.MaxAmount - c.MinAmount + 1
	n := int64(c.TargetGameCount)
	return n*c.MinAmount + n*span/2
}

// Bot represents a software-controlled player that runs wager cycles
type Bot struct {
	ID                   int64     `db:"id"`
	Name                 string    `db:"name"`
	UserID               int64     `db:"user_id"`
	IsActive             bool      `db:"is_active"`
	Config               BotCycleConfig
	CurrentCycleNumber   int64     `db:"current_cycle_number"`
	CompletedCyclesCount int64     `db:"completed_cycles_count"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}
