package repository

import (
	"context"
	"fmt"

	"wagerbot/database"
	"wagerbot/models"

	"github.com/jackc/pgx/v5"
)

// BotRepository implements the service.BotRepository interface
type BotRepository struct {
	q queryable
}

// NewBotRepository creates a new bot repository
func NewBotRepository(db *database.DB) *BotRepository {
	return &BotRepository{q: db.Pool}
}

// newBotRepositoryWithTx creates a new bot repository with a transaction
func newBotRepositoryWithTx(tx queryable) *BotRepository {
	return &BotRepository{q: tx}
}

const botColumns = `
	id, name, user_id, is_active,
	min_amount, max_amount, target_game_count,
	win_pct, loss_pct, draw_pct, cycle_total_amount,
	current_cycle_number, completed_cycles_count,
	created_at, updated_at
`

func scanBot(row pgx.Row) (*models.Bot, error) {
	var bot models.Bot
	err := row.Scan(
		&bot.ID,
		&bot.Name,
		&bot.UserID,
		&bot.IsActive,
		&bot.Config.MinAmount,
		&bot.Config.MaxAmount,
		&bot.Config.TargetGameCount,
		&bot.Config.WinPct,
		&bot.Config.LossPct,
		&bot.Config.DrawPct,
		&bot.Config.CycleTotalAmount,
		&bot.CurrentCycleNumber,
		&bot.CompletedCyclesCount,
		&bot.CreatedAt,
		&bot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetByID retrieves a bot with its cycle configuration
func (r *BotRepository) GetByID(ctx context.Context, botID int64) (*models.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE id = $1`

	bot, err := scanBot(r.q.QueryRow(ctx, query, botID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bot %d: %w", botID, err)
	}

	return bot, nil
}

// ListActive returns all bots with is_active = true
func (r *BotRepository) ListActive(ctx context.Context) ([]*models.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE is_active ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active bots: %w", err)
	}
	defer rows.Close()

	var bots []*models.Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bot: %w", err)
		}
		bots = append(bots, bot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bots: %w", err)
	}

	return bots, nil
}

// Create creates a new bot row
func (r *BotRepository) Create(ctx context.Context, bot *models.Bot) error {
	query := `
		INSERT INTO bots (
			name, user_id, is_active,
			min_amount, max_amount, target_game_count,
			win_pct, loss_pct, draw_pct, cycle_total_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, current_cycle_number, completed_cycles_count, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		bot.Name,
		bot.UserID,
		bot.IsActive,
		bot.Config.MinAmount,
		bot.Config.MaxAmount,
		bot.Config.TargetGameCount,
		bot.Config.WinPct,
		bot.Config.LossPct,
		bot.Config.DrawPct,
		bot.Config.CycleTotalAmount,
	).Scan(&bot.ID, &bot.CurrentCycleNumber, &bot.CompletedCyclesCount, &bot.CreatedAt, &bot.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create bot %q: %w", bot.Name, err)
	}

	return nil
}

// SetCurrentCycle records the cycle number a bot is currently running
func (r *BotRepository) SetCurrentCycle(ctx context.Context, botID int64, cycleNumber int64) error {
	query := `
		UPDATE bots
		SET current_cycle_number = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, cycleNumber, botID)
	if err != nil {
		return fmt.Errorf("failed to set current cycle for bot %d: %w", botID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("bot %d not found", botID)
	}

	return nil
}

// IncrementCompletedCycles bumps the persisted completed cycle counter atomically
func (r *BotRepository) IncrementCompletedCycles(ctx context.Context, botID int64) error {
	query := `
		UPDATE bots
		SET completed_cycles_count = completed_cycles_count + 1, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, botID)
	if err != nil {
		return fmt.Errorf("failed to increment completed cycles for bot %d: %w", botID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("bot %d not found", botID)
	}

	return nil
}
