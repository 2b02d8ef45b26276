package repository

import (
	"context"
	"fmt"
	"time"

	"wagerbot/database"
	"wagerbot/models"
	"wagerbot/service"

	"github.com/jackc/pgx/v5"
)

// GameRepository implements the service.GameRepository interface. Every state
// transition is a conditional single-row update so concurrent callers cannot
// both succeed on the same game.
type GameRepository struct {
	q queryable
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *database.DB) *GameRepository {
	return &GameRepository{q: db.Pool}
}

// newGameRepositoryWithTx creates a new game repository with a transaction
func newGameRepositoryWithTx(tx queryable) *GameRepository {
	return &GameRepository{q: tx}
}

const gameColumns = `
	id, creator_id, opponent_id, bet_amount, status,
	reserved_by, reserved_at, reservation_expires_at, deadline_at,
	creator_move, opponent_move, winner_id,
	bot_id, cycle_number, slot_index,
	created_at, updated_at, completed_at
`

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(
		&g.ID,
		&g.CreatorID,
		&g.OpponentID,
		&g.BetAmount,
		&g.Status,
		&g.ReservedBy,
		&g.ReservedAt,
		&g.ReservationExpiresAt,
		&g.DeadlineAt,
		&g.CreatorMove,
		&g.OpponentMove,
		&g.WinnerID,
		&g.BotID,
		&g.CycleNumber,
		&g.SlotIndex,
		&g.CreatedAt,
		&g.UpdatedAt,
		&g.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GameRepository) scanGames(rows pgx.Rows) ([]*models.Game, error) {
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}

	return games, nil
}

// Create creates a new game in the waiting state
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (creator_id, bet_amount, status, bot_id, cycle_number, slot_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		game.CreatorID,
		game.BetAmount,
		models.GameStatusWaiting,
		game.BotID,
		game.CycleNumber,
		game.SlotIndex,
	).Scan(&game.ID, &game.CreatedAt, &game.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	game.Status = models.GameStatusWaiting
	return nil
}

// GetByID retrieves a game by its ID
func (r *GameRepository) GetByID(ctx context.Context, id int64) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	game, err := scanGame(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %d: %w", id, err)
	}

	return game, nil
}

// ListJoinable returns waiting games, excluding anything reserved
func (r *GameRepository) ListJoinable(ctx context.Context, limit int) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'waiting'
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list joinable games: %w", err)
	}

	return r.scanGames(rows)
}

// HasOpenGame reports whether the user participates in any non-terminal game.
// Only completed, cancelled, expired and timeout count as free.
func (r *GameRepository) HasOpenGame(ctx context.Context, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM games
			WHERE (creator_id = $1 OR opponent_id = $1 OR reserved_by = $1)
			  AND status NOT IN ('completed', 'cancelled', 'expired', 'timeout')
		)
	`

	var busy bool
	if err := r.q.QueryRow(ctx, query, userID).Scan(&busy); err != nil {
		return false, fmt.Errorf("failed to check open games for user %d: %w", userID, err)
	}

	return busy, nil
}

// Reserve transitions waiting -> reserved for the given user
func (r *GameRepository) Reserve(ctx context.Context, gameID, userID int64, expiresAt time.Time) error {
	query := `
		UPDATE games
		SET status = 'reserved', reserved_by = $1, reserved_at = NOW(),
		    reservation_expires_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'waiting'
	`

	result, err := r.q.Exec(ctx, query, userID, expiresAt, gameID)
	if err != nil {
		return fmt.Errorf("failed to reserve game %d: %w", gameID, err)
	}

	if result.RowsAffected() == 0 {
		return service.ErrGameNotAvailable
	}

	return nil
}

// Unreserve transitions reserved -> waiting and clears reservation fields.
// A no-op when the game is not reserved.
func (r *GameRepository) Unreserve(ctx context.Context, gameID int64) error {
	query := `
		UPDATE games
		SET status = 'waiting', reserved_by = NULL, reserved_at = NULL,
		    reservation_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'reserved'
	`

	if _, err := r.q.Exec(ctx, query, gameID); err != nil {
		return fmt.Errorf("failed to unreserve game %d: %w", gameID, err)
	}

	return nil
}

// Activate transitions reserved -> active for the reservation holder
func (r *GameRepository) Activate(ctx context.Context, gameID, userID int64, deadline time.Time) error {
	query := `
		UPDATE games
		SET status = 'active', opponent_id = $1, deadline_at = $2,
		    reserved_by = NULL, reserved_at = NULL, reservation_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $3 AND status = 'reserved' AND reserved_by = $1
	`

	result, err := r.q.Exec(ctx, query, userID, deadline, gameID)
	if err != nil {
		return fmt.Errorf("failed to activate game %d: %w", gameID, err)
	}

	if result.RowsAffected() == 0 {
		return service.ErrGameNotAvailable
	}

	return nil
}

// RecordCreatorMove stores the creator's move and returns the post-update row.
// The returned row carries any opponent move a concurrent submission committed
// after the caller's read, so resolution decisions must come from it.
func (r *GameRepository) RecordCreatorMove(ctx context.Context, gameID int64, move models.Move, newStatus models.GameStatus) (*models.Game, error) {
	query := `
		UPDATE games
		SET creator_move = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ('active', 'reveal') AND creator_move IS NULL
		RETURNING ` + gameColumns + `
	`

	game, err := scanGame(r.q.QueryRow(ctx, query, move, newStatus, gameID))
	if err == pgx.ErrNoRows {
		return nil, service.ErrMoveAlreadySubmitted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record creator move for game %d: %w", gameID, err)
	}

	return game, nil
}

// RecordOpponentMove stores the opponent's move and returns the post-update row
func (r *GameRepository) RecordOpponentMove(ctx context.Context, gameID int64, move models.Move, newStatus models.GameStatus) (*models.Game, error) {
	query := `
		UPDATE games
		SET opponent_move = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ('active', 'reveal') AND opponent_move IS NULL
		RETURNING ` + gameColumns + `
	`

	game, err := scanGame(r.q.QueryRow(ctx, query, move, newStatus, gameID))
	if err == pgx.ErrNoRows {
		return nil, service.ErrMoveAlreadySubmitted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record opponent move for game %d: %w", gameID, err)
	}

	return game, nil
}

// Complete transitions reveal -> completed with the resolved winner
func (r *GameRepository) Complete(ctx context.Context, gameID int64, winnerID *int64) error {
	query := `
		UPDATE games
		SET status = 'completed', winner_id = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = 'reveal'
	`

	result, err := r.q.Exec(ctx, query, winnerID, gameID)
	if err != nil {
		return fmt.Errorf("failed to complete game %d: %w", gameID, err)
	}

	if result.RowsAffected() == 0 {
		return service.ErrGameNotAvailable
	}

	return nil
}

// MarkTerminal transitions a game from an expected status to a terminal
// failure status
func (r *GameRepository) MarkTerminal(ctx context.Context, gameID int64, from, to models.GameStatus) error {
	if !to.IsTerminal() {
		return fmt.Errorf("status %q is not terminal", to)
	}

	query := `
		UPDATE games
		SET status = $1, completed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.q.Exec(ctx, query, to, gameID, from)
	if err != nil {
		return fmt.Errorf("failed to mark game %d as %s: %w", gameID, to, err)
	}

	if result.RowsAffected() == 0 {
		return service.ErrGameNotAvailable
	}

	return nil
}

// ExpireReservations returns reserved games whose TTL elapsed back to waiting.
// The time guard makes overlapping sweeps harmless.
func (r *GameRepository) ExpireReservations(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE games
		SET status = 'waiting', reserved_by = NULL, reserved_at = NULL,
		    reservation_expires_at = NULL, updated_at = NOW()
		WHERE status = 'reserved' AND reservation_expires_at < $1
	`

	result, err := r.q.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire reservations: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListOverdue returns games in the given status whose deadline passed
func (r *GameRepository) ListOverdue(ctx context.Context, status models.GameStatus, now time.Time) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = $1 AND deadline_at IS NOT NULL AND deadline_at < $2
		ORDER BY deadline_at
	`

	rows, err := r.q.Query(ctx, query, status, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue %s games: %w", status, err)
	}

	return r.scanGames(rows)
}

// ListStaleWaiting returns waiting games created before the cutoff
func (r *GameRepository) ListStaleWaiting(ctx context.Context, cutoff time.Time) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE status = 'waiting' AND created_at < $1
		ORDER BY created_at
	`

	rows, err := r.q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale waiting games: %w", err)
	}

	return r.scanGames(rows)
}

// ListAwaitingCreatorMove returns reveal-state games where the creator still
// owes a move
func (r *GameRepository) ListAwaitingCreatorMove(ctx context.Context, creatorID int64) ([]*models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE creator_id = $1 AND status = 'reveal' AND creator_move IS NULL
		ORDER BY updated_at
	`

	rows, err := r.q.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games awaiting creator move: %w", err)
	}

	return r.scanGames(rows)
}
