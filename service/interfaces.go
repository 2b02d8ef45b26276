package service

import (
	"context"
	"time"

	"wagerbot/events"
	"wagerbot/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// Create creates a new user with the initial balance
	Create(ctx context.Context, username string, initialBalance int64, isBot bool) (*models.User, error)

	// AddBalance adds to a user's balance atomically
	AddBalance(ctx context.Context, userID int64, amount int64) error

	// DeductBalance deducts from a user's balance atomically, failing if insufficient funds
	DeductBalance(ctx context.Context, userID int64, amount int64) error
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.BalanceHistory, error)
}

// BotRepository defines the interface for bot data access
type BotRepository interface {
	// GetByID retrieves a bot with its cycle configuration
	GetByID(ctx context.Context, botID int64) (*models.Bot, error)

	// ListActive returns all bots with is_active = true
	ListActive(ctx context.Context) ([]*models.Bot, error)

	// Create creates a new bot row
	Create(ctx context.Context, bot *models.Bot) error

	// SetCurrentCycle records the cycle number a bot is currently running
	SetCurrentCycle(ctx context.Context, botID int64, cycleNumber int64) error

	// IncrementCompletedCycles bumps the persisted completed cycle counter atomically
	IncrementCompletedCycles(ctx context.Context, botID int64) error
}

// GameRepository defines the interface for game data access. All state
// transitions are conditional single-row updates: they succeed only when the
// row still holds the expected prior state.
type GameRepository interface {
	// Create creates a new game in the waiting state
	Create(ctx context.Context, game *models.Game) error

	// GetByID retrieves a game by its ID
	GetByID(ctx context.Context, id int64) (*models.Game, error)

	// ListJoinable returns waiting games, excluding anything reserved
	ListJoinable(ctx context.Context, limit int) ([]*models.Game, error)

	// HasOpenGame reports whether the user participates in any non-terminal game
	HasOpenGame(ctx context.Context, userID int64) (bool, error)

	// Reserve transitions waiting -> reserved for the given user.
	// Returns ErrGameNotAvailable if the game is not waiting.
	Reserve(ctx context.Context, gameID, userID int64, expiresAt time.Time) error

	// Unreserve transitions reserved -> waiting and clears reservation
	// fields. A no-op when the game is not reserved (idempotent).
	Unreserve(ctx context.Context, gameID int64) error

	// Activate transitions reserved -> active for the reservation holder,
	// binding them as opponent and arming the completion deadline.
	Activate(ctx context.Context, gameID, userID int64, deadline time.Time) error

	// RecordCreatorMove stores the creator's move and returns the updated
	// row, which reflects any move a concurrent submission committed first.
	// Fails with ErrMoveAlreadySubmitted when a move is already present.
	RecordCreatorMove(ctx context.Context, gameID int64, move models.Move, newStatus models.GameStatus) (*models.Game, error)

	// RecordOpponentMove stores the opponent's move and returns the updated row
	RecordOpponentMove(ctx context.Context, gameID int64, move models.Move, newStatus models.GameStatus) (*models.Game, error)

	// Complete transitions reveal -> completed with the resolved winner
	Complete(ctx context.Context, gameID int64, winnerID *int64) error

	// MarkTerminal transitions a game from an expected status to a terminal
	// failure status (cancelled, expired, timeout).
	MarkTerminal(ctx context.Context, gameID int64, from, to models.GameStatus) error

	// ExpireReservations returns reserved games whose TTL elapsed back to
	// waiting. Safe to run repeatedly and concurrently.
	ExpireReservations(ctx context.Context, now time.Time) (int64, error)

	// ListOverdue returns games in the given status whose deadline passed
	ListOverdue(ctx context.Context, status models.GameStatus, now time.Time) ([]*models.Game, error)

	// ListStaleWaiting returns waiting games created before the cutoff
	ListStaleWaiting(ctx context.Context, cutoff time.Time) ([]*models.Game, error)

	// ListAwaitingCreatorMove returns reveal-state games where the creator
	// still owes a move, for the given creator
	ListAwaitingCreatorMove(ctx context.Context, creatorID int64) ([]*models.Game, error)
}

// CycleRepository defines the interface for cycle accumulator, wager plan and
// completed cycle data access
type CycleRepository interface {
	// CreateAccumulator creates the accumulator for (bot, cycle) if absent.
	// Returns ErrCycleAlreadyStarted when it already exists.
	CreateAccumulator(ctx context.Context, acc *models.CycleAccumulator) error

	// GetAccumulator retrieves the accumulator for (bot, cycle)
	GetAccumulator(ctx context.Context, botID, cycleNumber int64) (*models.CycleAccumulator, error)

	// RecordOutcome applies one terminal game outcome with atomic in-place
	// increments and returns the updated accumulator. Returns ErrCycleClosed
	// if the cycle is completed or the target was already reached.
	RecordOutcome(ctx context.Context, botID, cycleNumber int64, outcome models.Outcome, amount int64) (*models.CycleAccumulator, error)

	// MarkCompleted flips is_cycle_completed, rejecting further updates
	MarkCompleted(ctx context.Context, botID, cycleNumber int64) error

	// InsertCompletedCycle persists the historical record. Returns
	// ErrDuplicateCompletedCycle when a record for (bot, cycle) already
	// exists, without poisoning the surrounding transaction.
	InsertCompletedCycle(ctx context.Context, cc *models.CompletedCycle) error

	// GetCompletedCycle retrieves the record for (bot, cycle), nil if absent
	GetCompletedCycle(ctx context.Context, botID, cycleNumber int64) (*models.CompletedCycle, error)

	// ListCompletedCycles returns the most recent completed cycles for a bot
	ListCompletedCycles(ctx context.Context, botID int64, limit int) ([]*models.CompletedCycle, error)

	// CreatePlans persists a generated batch
	CreatePlans(ctx context.Context, plans []*models.WagerPlan) error

	// GetPlanByGameID retrieves the plan bound to a game, nil if none
	GetPlanByGameID(ctx context.Context, gameID int64) (*models.WagerPlan, error)

	// ListUnconsumedPlans returns plan slots not yet bound to a game
	ListUnconsumedPlans(ctx context.Context, botID, cycleNumber int64) ([]*models.WagerPlan, error)

	// BindPlan binds a plan slot to the game that materializes it.
	// Conditional on the slot being unbound.
	BindPlan(ctx context.Context, planID, gameID int64) error

	// UnbindPlan releases a plan slot whose game never reached active,
	// making the slot available for re-materialization.
	UnbindPlan(ctx context.Context, planID, gameID int64) error
}

// CycleService drives the bot wager cycle: batch generation, progress
// accumulation and idempotent finalization
type CycleService interface {
	// StartCycle generates and persists the next cycle's batch for a bot
	// and returns the new cycle number. Guarded by atomic accumulator
	// creation; concurrent calls for the same cycle yield one winner.
	StartCycle(ctx context.Context, botID int64) (int64, error)

	// RecordGameOutcome applies a terminal game result to the accumulator
	// and returns the updated snapshot
	RecordGameOutcome(ctx context.Context, botID, cycleNumber int64, outcome models.Outcome, amount int64) (*models.CycleAccumulator, error)

	// FinalizeCycle persists the one-and-only completed cycle record.
	// alreadyFinalized is true when a previous or concurrent call won.
	FinalizeCycle(ctx context.Context, botID, cycleNumber int64) (cc *models.CompletedCycle, alreadyFinalized bool, err error)

	// GetCompletedCycle retrieves the record for (bot, cycle), nil if absent
	GetCompletedCycle(ctx context.Context, botID, cycleNumber int64) (*models.CompletedCycle, error)

	// GetCycleProgress returns the live accumulator for a bot's current cycle
	GetCycleProgress(ctx context.Context, botID int64) (*models.CycleAccumulator, error)

	// GetCycleHistory returns a bot's most recent completed cycles
	GetCycleHistory(ctx context.Context, botID int64, limit int) ([]*models.CompletedCycle, error)
}

// GameService governs the game lifecycle through the reservation state machine
type GameService interface {
	// CreateGameFromPlan materializes one wager plan slot as a waiting game
	CreateGameFromPlan(ctx context.Context, plan *models.WagerPlan) (*models.Game, error)

	// Reserve claims a waiting game for a prospective joiner
	Reserve(ctx context.Context, gameID, userID int64) error

	// Unreserve releases a reservation (idempotent)
	Unreserve(ctx context.Context, gameID int64) error

	// ConfirmJoin commits the reservation holder's stake and activates the game
	ConfirmJoin(ctx context.Context, gameID, userID int64) (*models.Game, error)

	// SubmitMove records a participant's move; the second move resolves the game
	SubmitMove(ctx context.Context, gameID, userID int64, move models.Move) (*models.Game, error)

	// GetGameByID retrieves a game by ID
	GetGameByID(ctx context.Context, gameID int64) (*models.Game, error)

	// ListJoinable returns games open to join
	ListJoinable(ctx context.Context, limit int) ([]*models.Game, error)

	// CanEnterActiveGame is the concurrency guard: false when the user is
	// bound to any non-terminal game
	CanEnterActiveGame(ctx context.Context, userID int64) (bool, error)

	// ExpireReservations sweeps reserved games whose TTL elapsed back to waiting
	ExpireReservations(ctx context.Context) (int64, error)

	// TimeoutOverdueGames forces unresolved active/reveal games past their
	// deadline to timeout, refunding committed stakes
	TimeoutOverdueGames(ctx context.Context) (int64, error)

	// ExpireStaleWaiting expires waiting games older than the configured TTL,
	// refunding the creator and releasing the plan slot
	ExpireStaleWaiting(ctx context.Context) (int64, error)
}

// BotService exposes bot registry reads for the runner
type BotService interface {
	// ListActiveBots returns all active bots
	ListActiveBots(ctx context.Context) ([]*models.Bot, error)

	// GetBot retrieves one bot
	GetBot(ctx context.Context, botID int64) (*models.Bot, error)
}

// StatsService aggregates completed cycle history
type StatsService interface {
	// GetBotStats returns aggregate statistics over a bot's completed cycles
	GetBotStats(ctx context.Context, botID int64) (*models.BotStats, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	BotRepository() BotRepository
	GameRepository() GameRepository
	CycleRepository() CycleRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
