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

type cycleService struct {
	uowFactory UnitOfWorkFactory
}

// NewCycleService creates a new cycle service
func NewCycleService(uowFactory UnitOfWorkFactory) CycleService {
	return &cycleService{
		uowFactory: uowFactory,
	}
}

// StartCycle generates and persists the wager batch for a bot's next cycle.
// Accumulator creation is the guard: if another caller already started the
// same cycle number, this call returns ErrCycleAlreadyStarted untouched.
func (s *cycleService) StartCycle(ctx context.Context, botID int64) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bot, err := uow.BotRepository().GetByID(ctx, botID)
	if err != nil {
		return 0, fmt.Errorf("failed to get bot: %w", err)
	}
	if bot == nil {
		return 0, fmt.Errorf("bot %d not found", botID)
	}

	cycleNumber := bot.CurrentCycleNumber + 1

	plans, err := GenerateWagerPlans(botID, cycleNumber, bot.Config)
	if err != nil {
		return 0, fmt.Errorf("failed to generate wager plans: %w", err)
	}

	acc := &models.CycleAccumulator{
		BotID:           botID,
		CycleNumber:     cycleNumber,
		TargetGameCount: bot.Config.TargetGameCount,
		CycleStartTime:  time.Now(),
	}
	if err := uow.CycleRepository().CreateAccumulator(ctx, acc); err != nil {
		return 0, fmt.Errorf("failed to create cycle accumulator: %w", err)
	}

	if err := uow.CycleRepository().CreatePlans(ctx, plans); err != nil {
		return 0, fmt.Errorf("failed to persist wager plans: %w", err)
	}

	if err := uow.BotRepository().SetCurrentCycle(ctx, botID, cycleNumber); err != nil {
		return 0, fmt.Errorf("failed to update bot cycle number: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	var total int64
	for _, p := range plans {
		total += p.Amount
	}
	log.WithFields(log.Fields{
		"botID":       botID,
		"cycleNumber": cycleNumber,
		"planCount":   len(plans),
		"totalAmount": total,
	}).Info("Started new wager cycle")

	return cycleNumber, nil
}

// RecordGameOutcome applies one terminal game result to the accumulator
func (s *cycleService) RecordGameOutcome(ctx context.Context, botID, cycleNumber int64, outcome models.Outcome, amount int64) (*models.CycleAccumulator, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	acc, err := uow.CycleRepository().RecordOutcome(ctx, botID, cycleNumber, outcome, amount)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return acc, nil
}

// FinalizeCycle snapshots the accumulator into the completed cycle record.
// Safe to call any number of times, from any number of callers: the unique
// constraint on (bot_id, cycle_number) guarantees at most one record, and a
// constraint violation is reported as alreadyFinalized, not as an error.
func (s *cycleService) FinalizeCycle(ctx context.Context, botID, cycleNumber int64) (*models.CompletedCycle, bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Fast path: already finalized by an earlier call
	existing, err := uow.CycleRepository().GetCompletedCycle(ctx, botID, cycleNumber)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check for existing completed cycle: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}

	acc, err := uow.CycleRepository().GetAccumulator(ctx, botID, cycleNumber)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cycle accumulator: %w", err)
	}
	if acc == nil {
		return nil, false, fmt.Errorf("no accumulator for bot %d cycle %d", botID, cycleNumber)
	}
	if !acc.TargetReached() {
		return nil, false, fmt.Errorf("cycle %d for bot %d is not complete: %d of %d games",
			cycleNumber, botID, acc.GamesCompleted, acc.TargetGameCount)
	}

	now := time.Now()
	cc := &models.CompletedCycle{
		BotID:          botID,
		CycleNumber:    cycleNumber,
		TotalBets:      acc.GamesCompleted,
		WinsCount:      acc.GamesWon,
		LossesCount:    acc.GamesLost,
		DrawsCount:     acc.GamesDrawn,
		TotalBetAmount: acc.WinsAmount + acc.LossesAmount + acc.DrawsAmount,
		TotalWinnings:  acc.WinsAmount,
		TotalLosses:    acc.LossesAmount,
		NetProfit:      acc.NetProfit(),
		ROIPercent:     acc.ROIPercent(),
		StartTime:      acc.CycleStartTime,
		EndTime:        now,
	}

	if err := uow.CycleRepository().InsertCompletedCycle(ctx, cc); err != nil {
		if errors.Is(err, ErrDuplicateCompletedCycle) {
			// A concurrent finalizer won the insert race. Re-read theirs.
			winner, getErr := uow.CycleRepository().GetCompletedCycle(ctx, botID, cycleNumber)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to read concurrently finalized cycle: %w", getErr)
			}
			return winner, true, nil
		}
		return nil, false, fmt.Errorf("failed to insert completed cycle: %w", err)
	}

	if err := uow.CycleRepository().MarkCompleted(ctx, botID, cycleNumber); err != nil {
		return nil, false, fmt.Errorf("failed to mark accumulator completed: %w", err)
	}

	if err := uow.BotRepository().IncrementCompletedCycles(ctx, botID); err != nil {
		return nil, false, fmt.Errorf("failed to increment completed cycle count: %w", err)
	}

	uow.EventBus().Publish(events.CycleCompletedEvent{
		BotID:       botID,
		CycleNumber: cycleNumber,
		NetProfit:   cc.NetProfit,
		ROIPercent:  cc.ROIPercent,
	})

	if err := uow.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"botID":       botID,
		"cycleNumber": cycleNumber,
		"netProfit":   cc.NetProfit,
		"roiPercent":  cc.ROIPercent,
	}).Info("Finalized wager cycle")

	return cc, false, nil
}

// GetCompletedCycle retrieves the historical record for (bot, cycle)
func (s *cycleService) GetCompletedCycle(ctx context.Context, botID, cycleNumber int64) (*models.CompletedCycle, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cc, err := uow.CycleRepository().GetCompletedCycle(ctx, botID, cycleNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed cycle: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return cc, nil
}

// GetCycleProgress returns the live accumulator for a bot's current cycle
func (s *cycleService) GetCycleProgress(ctx context.Context, botID int64) (*models.CycleAccumulator, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bot, err := uow.BotRepository().GetByID(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}
	if bot == nil {
		return nil, fmt.Errorf("bot %d not found", botID)
	}

	acc, err := uow.CycleRepository().GetAccumulator(ctx, botID, bot.CurrentCycleNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle accumulator: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return acc, nil
}

// GetCycleHistory returns a bot's most recent completed cycles
func (s *cycleService) GetCycleHistory(ctx context.Context, botID int64, limit int) ([]*models.CompletedCycle, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cycles, err := uow.CycleRepository().ListCompletedCycles(ctx, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed cycles: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return cycles, nil
}
