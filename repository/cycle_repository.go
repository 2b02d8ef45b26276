package repository

import (
	"context"
	"fmt"

	"wagerbot/database"
	"wagerbot/models"
	"wagerbot/service"

	"github.com/jackc/pgx/v5"
)

// CycleRepository implements the service.CycleRepository interface
type CycleRepository struct {
	q queryable
}

// NewCycleRepository creates a new cycle repository
func NewCycleRepository(db *database.DB) *CycleRepository {
	return &CycleRepository{q: db.Pool}
}

// newCycleRepositoryWithTx creates a new cycle repository with a transaction
func newCycleRepositoryWithTx(tx queryable) *CycleRepository {
	return &CycleRepository{q: tx}
}

// CreateAccumulator creates the accumulator for (bot, cycle) if absent.
// The primary key makes this a create-if-absent guard against starting the
// same cycle twice.
func (r *CycleRepository) CreateAccumulator(ctx context.Context, acc *models.CycleAccumulator) error {
	query := `
		INSERT INTO cycle_accumulators (bot_id, cycle_number, target_game_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (bot_id, cycle_number) DO NOTHING
		RETURNING cycle_start_time
	`

	err := r.q.QueryRow(ctx, query, acc.BotID, acc.CycleNumber, acc.TargetGameCount).
		Scan(&acc.CycleStartTime)

	if err == pgx.ErrNoRows {
		return service.ErrCycleAlreadyStarted
	}
	if err != nil {
		return fmt.Errorf("failed to create accumulator for bot %d cycle %d: %w",
			acc.BotID, acc.CycleNumber, err)
	}

	return nil
}

const accumulatorColumns = `
	bot_id, cycle_number, target_game_count,
	games_completed, games_won, games_lost, games_drawn,
	wins_amount, losses_amount, draws_amount,
	is_cycle_completed, cycle_start_time
`

func scanAccumulator(row pgx.Row) (*models.CycleAccumulator, error) {
	var a models.CycleAccumulator
	err := row.Scan(
		&a.BotID,
		&a.CycleNumber,
		&a.TargetGameCount,
		&a.GamesCompleted,
		&a.GamesWon,
		&a.GamesLost,
		&a.GamesDrawn,
		&a.WinsAmount,
		&a.LossesAmount,
		&a.DrawsAmount,
		&a.IsCycleCompleted,
		&a.CycleStartTime,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccumulator retrieves the accumulator for (bot, cycle)
func (r *CycleRepository) GetAccumulator(ctx context.Context, botID, cycleNumber int64) (*models.CycleAccumulator, error) {
	query := `
		SELECT ` + accumulatorColumns + `
		FROM cycle_accumulators
		WHERE bot_id = $1 AND cycle_number = $2
	`

	acc, err := scanAccumulator(r.q.QueryRow(ctx, query, botID, cycleNumber))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accumulator for bot %d cycle %d: %w", botID, cycleNumber, err)
	}

	return acc, nil
}

// RecordOutcome applies one terminal game outcome with atomic in-place
// increments. The guard clauses reject updates once the cycle is completed or
// the target was reached, which closes the race window between "target
// reached" and "finalizer started".
func (r *CycleRepository) RecordOutcome(ctx context.Context, botID, cycleNumber int64, outcome models.Outcome, amount int64) (*models.CycleAccumulator, error) {
	query := `
		UPDATE cycle_accumulators
		SET games_completed = games_completed + 1,
		    games_won    = games_won    + CASE WHEN $1 = 'win'  THEN 1 ELSE 0 END,
		    games_lost   = games_lost   + CASE WHEN $1 = 'loss' THEN 1 ELSE 0 END,
		    games_drawn  = games_drawn  + CASE WHEN $1 = 'draw' THEN 1 ELSE 0 END,
		    wins_amount   = wins_amount   + CASE WHEN $1 = 'win'  THEN $2::bigint ELSE 0 END,
		    losses_amount = losses_amount + CASE WHEN $1 = 'loss' THEN $2::bigint ELSE 0 END,
		    draws_amount  = draws_amount  + CASE WHEN $1 = 'draw' THEN $2::bigint ELSE 0 END
		WHERE bot_id = $3 AND cycle_number = $4
		  AND is_cycle_completed = FALSE
		  AND games_completed < target_game_count
		RETURNING ` + accumulatorColumns + `
	`

	acc, err := scanAccumulator(r.q.QueryRow(ctx, query, string(outcome), amount, botID, cycleNumber))
	if err == pgx.ErrNoRows {
		return nil, service.ErrCycleClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record %s outcome for bot %d cycle %d: %w",
			outcome, botID, cycleNumber, err)
	}

	return acc, nil
}

// MarkCompleted flips is_cycle_completed, rejecting further updates
func (r *CycleRepository) MarkCompleted(ctx context.Context, botID, cycleNumber int64) error {
	query := `
		UPDATE cycle_accumulators
		SET is_cycle_completed = TRUE
		WHERE bot_id = $1 AND cycle_number = $2 AND is_cycle_completed = FALSE
	`

	if _, err := r.q.Exec(ctx, query, botID, cycleNumber); err != nil {
		return fmt.Errorf("failed to mark cycle completed for bot %d cycle %d: %w", botID, cycleNumber, err)
	}

	return nil
}

// InsertCompletedCycle persists the historical record. ON CONFLICT keeps a
// lost insert race from aborting the surrounding transaction, so a losing
// finalizer can still re-read the winner's record on the same transaction.
func (r *CycleRepository) InsertCompletedCycle(ctx context.Context, cc *models.CompletedCycle) error {
	query := `
		INSERT INTO completed_cycles (
			bot_id, cycle_number, total_bets,
			wins_count, losses_count, draws_count,
			total_bet_amount, total_winnings, total_losses,
			net_profit, roi_percent, start_time, end_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (bot_id, cycle_number) DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		cc.BotID,
		cc.CycleNumber,
		cc.TotalBets,
		cc.WinsCount,
		cc.LossesCount,
		cc.DrawsCount,
		cc.TotalBetAmount,
		cc.TotalWinnings,
		cc.TotalLosses,
		cc.NetProfit,
		cc.ROIPercent,
		cc.StartTime,
		cc.EndTime,
	).Scan(&cc.ID, &cc.CreatedAt)

	if err == pgx.ErrNoRows {
		return service.ErrDuplicateCompletedCycle
	}
	if err != nil {
		return fmt.Errorf("failed to insert completed cycle for bot %d cycle %d: %w",
			cc.BotID, cc.CycleNumber, err)
	}

	return nil
}

const completedCycleColumns = `
	id, bot_id, cycle_number, total_bets,
	wins_count, losses_count, draws_count,
	total_bet_amount, total_winnings, total_losses,
	net_profit, roi_percent, start_time, end_time, created_at
`

func scanCompletedCycle(row pgx.Row) (*models.CompletedCycle, error) {
	var cc models.CompletedCycle
	err := row.Scan(
		&cc.ID,
		&cc.BotID,
		&cc.CycleNumber,
		&cc.TotalBets,
		&cc.WinsCount,
		&cc.LossesCount,
		&cc.DrawsCount,
		&cc.TotalBetAmount,
		&cc.TotalWinnings,
		&cc.TotalLosses,
		&cc.NetProfit,
		&cc.ROIPercent,
		&cc.StartTime,
		&cc.EndTime,
		&cc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

// GetCompletedCycle retrieves the record for (bot, cycle), nil if absent
func (r *CycleRepository) GetCompletedCycle(ctx context.Context, botID, cycleNumber int64) (*models.CompletedCycle, error) {
	query := `
		SELECT ` + completedCycleColumns + `
		FROM completed_cycles
		WHERE bot_id = $1 AND cycle_number = $2
	`

	cc, err := scanCompletedCycle(r.q.QueryRow(ctx, query, botID, cycleNumber))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completed cycle for bot %d cycle %d: %w", botID, cycleNumber, err)
	}

	return cc, nil
}

// ListCompletedCycles returns the most recent completed cycles for a bot
func (r *CycleRepository) ListCompletedCycles(ctx context.Context, botID int64, limit int) ([]*models.CompletedCycle, error) {
	query := `
		SELECT ` + completedCycleColumns + `
		FROM completed_cycles
		WHERE bot_id = $1
		ORDER BY cycle_number DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed cycles for bot %d: %w", botID, err)
	}
	defer rows.Close()

	var cycles []*models.CompletedCycle
	for rows.Next() {
		cc, err := scanCompletedCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completed cycle: %w", err)
		}
		cycles = append(cycles, cc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completed cycles: %w", err)
	}

	return cycles, nil
}

// CreatePlans persists a generated batch
func (r *CycleRepository) CreatePlans(ctx context.Context, plans []*models.WagerPlan) error {
	query := `
		INSERT INTO wager_plans (bot_id, cycle_number, slot_index, amount, intended_outcome)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	for _, plan := range plans {
		err := r.q.QueryRow(ctx, query,
			plan.BotID,
			plan.CycleNumber,
			plan.SlotIndex,
			plan.Amount,
			plan.IntendedOutcome,
		).Scan(&plan.ID, &plan.CreatedAt)

		if err != nil {
			return fmt.Errorf("failed to create wager plan slot %d for bot %d cycle %d: %w",
				plan.SlotIndex, plan.BotID, plan.CycleNumber, err)
		}
	}

	return nil
}

const planColumns = `
	id, bot_id, cycle_number, slot_index, amount, intended_outcome, game_id, created_at
`

func scanPlan(row pgx.Row) (*models.WagerPlan, error) {
	var p models.WagerPlan
	err := row.Scan(
		&p.ID,
		&p.BotID,
		&p.CycleNumber,
		&p.SlotIndex,
		&p.Amount,
		&p.IntendedOutcome,
		&p.GameID,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlanByGameID retrieves the plan bound to a game, nil if none
func (r *CycleRepository) GetPlanByGameID(ctx context.Context, gameID int64) (*models.WagerPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM wager_plans
		WHERE game_id = $1
	`

	plan, err := scanPlan(r.q.QueryRow(ctx, query, gameID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan for game %d: %w", gameID, err)
	}

	return plan, nil
}

// ListUnconsumedPlans returns plan slots not yet bound to a game
func (r *CycleRepository) ListUnconsumedPlans(ctx context.Context, botID, cycleNumber int64) ([]*models.WagerPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM wager_plans
		WHERE bot_id = $1 AND cycle_number = $2 AND game_id IS NULL
		ORDER BY slot_index
	`

	rows, err := r.q.Query(ctx, query, botID, cycleNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list unconsumed plans for bot %d cycle %d: %w", botID, cycleNumber, err)
	}
	defer rows.Close()

	var plans []*models.WagerPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wager plans: %w", err)
	}

	return plans, nil
}

// BindPlan binds a plan slot to the game that materializes it
func (r *CycleRepository) BindPlan(ctx context.Context, planID, gameID int64) error {
	query := `
		UPDATE wager_plans
		SET game_id = $1
		WHERE id = $2 AND game_id IS NULL
	`

	result, err := r.q.Exec(ctx, query, gameID, planID)
	if err != nil {
		return fmt.Errorf("failed to bind plan %d to game %d: %w", planID, gameID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("plan %d already consumed", planID)
	}

	return nil
}

// UnbindPlan releases a plan slot whose game never reached active
func (r *CycleRepository) UnbindPlan(ctx context.Context, planID, gameID int64) error {
	query := `
		UPDATE wager_plans
		SET game_id = NULL
		WHERE id = $1 AND game_id = $2
	`

	if _, err := r.q.Exec(ctx, query, planID, gameID); err != nil {
		return fmt.Errorf("failed to unbind plan %d from game %d: %w", planID, gameID, err)
	}

	return nil
}
