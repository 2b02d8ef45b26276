package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wagerbot/events"
	"wagerbot/models"

	log "github.com/sirupsen/logrus"
)

// GameTimings holds the lifecycle deadlines the game service enforces
type GameTimings struct {
	// ReservationTTL is how long a reservation holds a game before it
	// falls back to waiting.
	ReservationTTL time.Duration

	// ActiveDeadline is how long an activated game may run before the
	// timeout sweep forces it terminal.
	ActiveDeadline time.Duration

	// WaitingTTL is how long an unclaimed waiting game lives before the
	// stale sweep expires it.
	WaitingTTL time.Duration
}

type gameService struct {
	uowFactory UnitOfWorkFactory
	cycles     CycleService
	timings    GameTimings
}

// NewGameService creates a new game service. The cycle service is invoked
// after a bot game resolves, outside the game's own transaction.
func NewGameService(uowFactory UnitOfWorkFactory, cycles CycleService, timings GameTimings) GameService {
	return &gameService{
		uowFactory: uowFactory,
		cycles:     cycles,
		timings:    timings,
	}
}

// CreateGameFromPlan materializes one wager plan slot as a waiting game. The
// creator's stake is committed up front, so cancelling or expiring the game
// later must refund it.
func (s *gameService) CreateGameFromPlan(ctx context.Context, plan *models.WagerPlan) (*models.Game, error) {
	if plan.Amount <= 0 {
		return nil, fmt.Errorf("plan amount must be positive, got %d", plan.Amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bot, err := uow.BotRepository().GetByID(ctx, plan.BotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}
	if bot == nil {
		return nil, fmt.Errorf("bot %d not found", plan.BotID)
	}

	creator, err := uow.UserRepository().GetByID(ctx, bot.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot user: %w", err)
	}
	if creator == nil {
		return nil, fmt.Errorf("user %d for bot %d not found", bot.UserID, plan.BotID)
	}
	if creator.Balance < plan.Amount {
		return nil, fmt.Errorf("insufficient balance: have %d, need %d", creator.Balance, plan.Amount)
	}

	if err := uow.UserRepository().DeductBalance(ctx, creator.ID, plan.Amount); err != nil {
		return nil, fmt.Errorf("failed to deduct creator stake: %w", err)
	}

	game := &models.Game{
		CreatorID:   creator.ID,
		BetAmount:   plan.Amount,
		Status:      models.GameStatusWaiting,
		BotID:       &plan.BotID,
		CycleNumber: &plan.CycleNumber,
		SlotIndex:   &plan.SlotIndex,
	}
	if err := uow.GameRepository().Create(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	if err := uow.CycleRepository().BindPlan(ctx, plan.ID, game.ID); err != nil {
		return nil, fmt.Errorf("failed to bind plan slot: %w", err)
	}

	if err := uow.BalanceHistoryRepository().Record(ctx, &models.BalanceHistory{
		UserID:          creator.ID,
		BalanceBefore:   creator.Balance,
		BalanceAfter:    creator.Balance - plan.Amount,
		ChangeAmount:    -plan.Amount,
		TransactionType: models.TransactionTypeGameStake,
		RelatedGameID:   &game.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to record stake history: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          creator.ID,
		OldBalance:      creator.Balance,
		NewBalance:      creator.Balance - plan.Amount,
		TransactionType: models.TransactionTypeGameStake,
		ChangeAmount:    -plan.Amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"gameID":      game.ID,
		"botID":       plan.BotID,
		"cycleNumber": plan.CycleNumber,
		"slotIndex":   plan.SlotIndex,
		"amount":      plan.Amount,
	}).Info("Materialized wager plan as game")

	return game, nil
}

// Reserve claims a waiting game for a prospective joiner. The claim is a
// conditional update on the waiting status, so of any number of concurrent
// callers exactly one succeeds and the rest get ErrGameNotAvailable.
func (s *gameService) Reserve(ctx context.Context, gameID, userID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return ErrGameNotAvailable
	}
	if game.CreatorID == userID {
		return fmt.Errorf("cannot join your own game")
	}

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}
	if user.Balance < game.BetAmount {
		return fmt.Errorf("insufficient balance: have %d, need %d", user.Balance, game.BetAmount)
	}

	busy, err := uow.GameRepository().HasOpenGame(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check open games: %w", err)
	}
	if busy {
		return ErrUserBusy
	}

	expiresAt := time.Now().Add(s.timings.ReservationTTL)
	if err := uow.GameRepository().Reserve(ctx, gameID, userID, expiresAt); err != nil {
		return err
	}

	uow.EventBus().Publish(events.GameStateChangeEvent{
		GameID:    gameID,
		OldStatus: models.GameStatusWaiting,
		NewStatus: models.GameStatusReserved,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Unreserve releases a reservation, returning the game to waiting. Idempotent:
// releasing a game that is no longer reserved is a no-op.
func (s *gameService) Unreserve(ctx context.Context, gameID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GameRepository().Unreserve(ctx, gameID); err != nil {
		return fmt.Errorf("failed to unreserve game: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ConfirmJoin commits the reservation holder's stake and activates the game.
// Only the user holding the reservation can confirm, and only while the
// reservation has not lapsed.
func (s *gameService) ConfirmJoin(ctx context.Context, gameID, userID int64) (*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, ErrGameNotAvailable
	}
	if game.Status != models.GameStatusReserved || game.ReservedBy == nil || *game.ReservedBy != userID {
		return nil, ErrGameNotAvailable
	}
	if game.ReservationExpired(time.Now()) {
		return nil, ErrGameNotAvailable
	}

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", userID)
	}
	if user.Balance < game.BetAmount {
		return nil, fmt.Errorf("insufficient balance: have %d, need %d", user.Balance, game.BetAmount)
	}

	if err := uow.UserRepository().DeductBalance(ctx, userID, game.BetAmount); err != nil {
		return nil, fmt.Errorf("failed to deduct opponent stake: %w", err)
	}

	deadline := time.Now().Add(s.timings.ActiveDeadline)
	if err := uow.GameRepository().Activate(ctx, gameID, userID, deadline); err != nil {
		return nil, err
	}

	if err := uow.BalanceHistoryRepository().Record(ctx, &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    user.Balance - game.BetAmount,
		ChangeAmount:    -game.BetAmount,
		TransactionType: models.TransactionTypeGameStake,
		RelatedGameID:   &game.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to record stake history: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          userID,
		OldBalance:      user.Balance,
		NewBalance:      user.Balance - game.BetAmount,
		TransactionType: models.TransactionTypeGameStake,
		ChangeAmount:    -game.BetAmount,
	})

	uow.EventBus().Publish(events.GameStateChangeEvent{
		GameID:    gameID,
		OldStatus: models.GameStatusReserved,
		NewStatus: models.GameStatusActive,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	game, err = s.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return game, nil
}

// SubmitMove records a participant's move. The first move advances the game
// to reveal; the second resolves it, settles both balances and, for bot
// games, feeds the outcome into the cycle accumulator in the same
// transaction. Cycle finalization runs after commit.
func (s *gameService) SubmitMove(ctx context.Context, gameID, userID int64, move models.Move) (*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	if game == nil {
		return nil, ErrGameNotAvailable
	}
	if !game.IsParticipant(userID) {
		return nil, fmt.Errorf("user %d is not a participant in game %d", userID, gameID)
	}
	if game.Status != models.GameStatusActive && game.Status != models.GameStatusReveal {
		return nil, ErrGameNotAvailable
	}
	if game.MoveFor(userID) != nil {
		return nil, ErrMoveAlreadySubmitted
	}

	isCreator := game.CreatorID == userID
	wasActive := game.Status == models.GameStatusActive

	// The second move keeps the game in reveal until resolution below
	newStatus := models.GameStatusReveal

	if isCreator {
		game, err = uow.GameRepository().RecordCreatorMove(ctx, gameID, move, newStatus)
	} else {
		game, err = uow.GameRepository().RecordOpponentMove(ctx, gameID, move, newStatus)
	}
	if err != nil {
		return nil, err
	}

	var finalize func(ctx context.Context)

	// Decide from the post-update row: the other participant's move may have
	// been committed between our read and our update.
	if game.BothMovesIn() {
		finalize, err = s.resolveGame(ctx, uow, game)
		if err != nil {
			return nil, err
		}
	} else if wasActive {
		uow.EventBus().Publish(events.GameStateChangeEvent{
			GameID:    gameID,
			OldStatus: models.GameStatusActive,
			NewStatus: models.GameStatusReveal,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if finalize != nil {
		finalize(ctx)
	}

	return s.GetGameByID(ctx, gameID)
}

// resolveGame settles a game whose second move just arrived. Runs inside the
// caller's transaction; returns a post-commit hook when the bot's cycle
// target was reached.
func (s *gameService) resolveGame(ctx context.Context, uow UnitOfWork, game *models.Game) (func(ctx context.Context), error) {
	if game.OpponentID == nil {
		return nil, fmt.Errorf("game %d has both moves but no opponent", game.ID)
	}
	opponentID := *game.OpponentID

	var winnerID *int64
	switch models.ResolveMoves(*game.CreatorMove, *game.OpponentMove) {
	case 1:
		winnerID = &game.CreatorID
	case 2:
		winnerID = &opponentID
	}

	if err := uow.GameRepository().Complete(ctx, game.ID, winnerID); err != nil {
		return nil, err
	}
	game.WinnerID = winnerID
	game.Status = models.GameStatusCompleted

	if winnerID != nil {
		if err := s.payout(ctx, uow, *winnerID, game.BetAmount*2, models.TransactionTypeGameWin, game.ID); err != nil {
			return nil, err
		}
	} else {
		// Draw: both stakes go back
		if err := s.payout(ctx, uow, game.CreatorID, game.BetAmount, models.TransactionTypeGameRefund, game.ID); err != nil {
			return nil, err
		}
		if err := s.payout(ctx, uow, opponentID, game.BetAmount, models.TransactionTypeGameRefund, game.ID); err != nil {
			return nil, err
		}
	}

	outcome := game.OutcomeForCreator()
	uow.EventBus().Publish(events.GameCompletedEvent{
		GameID:     game.ID,
		CreatorID:  game.CreatorID,
		OpponentID: opponentID,
		WinnerID:   winnerID,
		BetAmount:  game.BetAmount,
		Outcome:    outcome,
	})

	if !game.IsBotGame() {
		return nil, nil
	}

	botID := *game.BotID
	cycleNumber := *game.CycleNumber

	acc, err := uow.CycleRepository().RecordOutcome(ctx, botID, cycleNumber, outcome, game.BetAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to record cycle outcome: %w", err)
	}

	if !acc.TargetReached() {
		return nil, nil
	}

	// Finalize outside this transaction so the game settlement never
	// depends on the finalizer, which is idempotent and retried by sweeps.
	return func(ctx context.Context) {
		if _, _, err := s.cycles.FinalizeCycle(ctx, botID, cycleNumber); err != nil {
			log.WithFields(log.Fields{
				"botID":       botID,
				"cycleNumber": cycleNumber,
				"error":       err,
			}).Error("Failed to finalize completed cycle")
		}
	}, nil
}

func (s *gameService) payout(ctx context.Context, uow UnitOfWork, userID, amount int64, txType models.TransactionType, gameID int64) error {
	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}

	if err := uow.UserRepository().AddBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, err)
	}

	if err := uow.BalanceHistoryRepository().Record(ctx, &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   user.Balance,
		BalanceAfter:    user.Balance + amount,
		ChangeAmount:    amount,
		TransactionType: txType,
		RelatedGameID:   &gameID,
	}); err != nil {
		return fmt.Errorf("failed to record payout history: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          userID,
		OldBalance:      user.Balance,
		NewBalance:      user.Balance + amount,
		TransactionType: txType,
		ChangeAmount:    amount,
	})

	return nil
}

// GetGameByID retrieves a game by ID
func (s *gameService) GetGameByID(ctx context.Context, gameID int64) (*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	game, err := uow.GameRepository().GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return game, nil
}

// ListJoinable returns games open to join
func (s *gameService) ListJoinable(ctx context.Context, limit int) ([]*models.Game, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	games, err := uow.GameRepository().ListJoinable(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list joinable games: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return games, nil
}

// CanEnterActiveGame reports whether the user is free to join a game
func (s *gameService) CanEnterActiveGame(ctx context.Context, userID int64) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	busy, err := uow.GameRepository().HasOpenGame(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check open games: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return !busy, nil
}

// ExpireReservations sweeps reserved games whose TTL elapsed back to waiting
func (s *gameService) ExpireReservations(ctx context.Context) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	released, err := uow.GameRepository().ExpireReservations(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire reservations: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if released > 0 {
		log.WithField("count", released).Info("Released expired reservations")
	}
	return released, nil
}

// TimeoutOverdueGames forces unresolved active and reveal games past their
// deadline into timeout, refunding every committed stake. The bot's plan
// slot stays consumed: a timed-out game never re-enters its cycle.
func (s *gameService) TimeoutOverdueGames(ctx context.Context) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := time.Now()
	var overdue []*models.Game
	for _, status := range []models.GameStatus{models.GameStatusActive, models.GameStatusReveal} {
		games, err := uow.GameRepository().ListOverdue(ctx, status, now)
		if err != nil {
			return 0, fmt.Errorf("failed to list overdue %s games: %w", status, err)
		}
		overdue = append(overdue, games...)
	}

	var count int64
	for _, game := range overdue {
		if err := uow.GameRepository().MarkTerminal(ctx, game.ID, game.Status, models.GameStatusTimeout); err != nil {
			if errors.Is(err, ErrGameNotAvailable) {
				// Lost the race with a concurrent resolution or sweep
				continue
			}
			return 0, fmt.Errorf("failed to time out game %d: %w", game.ID, err)
		}

		if err := s.payout(ctx, uow, game.CreatorID, game.BetAmount, models.TransactionTypeGameRefund, game.ID); err != nil {
			return 0, err
		}
		if game.OpponentID != nil {
			if err := s.payout(ctx, uow, *game.OpponentID, game.BetAmount, models.TransactionTypeGameRefund, game.ID); err != nil {
				return 0, err
			}
		}

		uow.EventBus().Publish(events.GameStateChangeEvent{
			GameID:    game.ID,
			OldStatus: game.Status,
			NewStatus: models.GameStatusTimeout,
		})
		count++
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if count > 0 {
		log.WithField("count", count).Warn("Timed out overdue games")
	}
	return count, nil
}

// ExpireStaleWaiting expires waiting games older than the configured TTL,
// refunding the creator and releasing the plan slot so the bot can
// re-materialize it later in the cycle.
func (s *gameService) ExpireStaleWaiting(ctx context.Context) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cutoff := time.Now().Add(-s.timings.WaitingTTL)
	stale, err := uow.GameRepository().ListStaleWaiting(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale waiting games: %w", err)
	}

	var count int64
	for _, game := range stale {
		if err := uow.GameRepository().MarkTerminal(ctx, game.ID, models.GameStatusWaiting, models.GameStatusExpired); err != nil {
			if errors.Is(err, ErrGameNotAvailable) {
				continue
			}
			return 0, fmt.Errorf("failed to expire game %d: %w", game.ID, err)
		}

		if err := s.payout(ctx, uow, game.CreatorID, game.BetAmount, models.TransactionTypeGameRefund, game.ID); err != nil {
			return 0, err
		}

		if game.IsBotGame() {
			plan, err := uow.CycleRepository().GetPlanByGameID(ctx, game.ID)
			if err != nil {
				return 0, fmt.Errorf("failed to look up plan for game %d: %w", game.ID, err)
			}
			if plan != nil {
				if err := uow.CycleRepository().UnbindPlan(ctx, plan.ID, game.ID); err != nil {
					return 0, fmt.Errorf("failed to release plan slot %d: %w", plan.ID, err)
				}
			}
		}

		uow.EventBus().Publish(events.GameStateChangeEvent{
			GameID:    game.ID,
			OldStatus: models.GameStatusWaiting,
			NewStatus: models.GameStatusExpired,
		})
		count++
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if count > 0 {
		log.WithField("count", count).Info("Expired stale waiting games")
	}
	return count, nil
}
