package bot

import (
	"context"
	"fmt"
	"time"

	"wagerbot/models"
	"wagerbot/service"

	log "github.com/sirupsen/logrus"
)

// Runner drives every active bot through its wager cycles: starting new
// cycles, materializing plan slots as games and answering opponent moves so
// each game lands on the slot's intended outcome.
type Runner struct {
	uowFactory   service.UnitOfWorkFactory
	botService   service.BotService
	cycleService service.CycleService
	gameService  service.GameService

	tickInterval    time.Duration
	interCyclePause time.Duration
}

// NewRunner creates a bot runner
func NewRunner(
	uowFactory service.UnitOfWorkFactory,
	botService service.BotService,
	cycleService service.CycleService,
	gameService service.GameService,
	tickInterval, interCyclePause time.Duration,
) *Runner {
	return &Runner{
		uowFactory:      uowFactory,
		botService:      botService,
		cycleService:    cycleService,
		gameService:     gameService,
		tickInterval:    tickInterval,
		interCyclePause: interCyclePause,
	}
}

// Start launches the runner loop in the background.
// Returns a cleanup function to stop it gracefully.
func (r *Runner) Start(ctx context.Context) func() {
	ticker := time.NewTicker(r.tickInterval)
	stopChan := make(chan struct{})

	go func() {
		log.Info("Bot runner started")

		// Run immediately on startup
		r.tick(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("Bot runner shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Bot runner shutting down (stop requested)...")
				return
			case <-ticker.C:
				r.tick(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}

func (r *Runner) tick(ctx context.Context) {
	bots, err := r.botService.ListActiveBots(ctx)
	if err != nil {
		log.Errorf("Error listing active bots: %v", err)
		return
	}

	for _, bot := range bots {
		if err := r.advanceBot(ctx, bot); err != nil {
			log.WithFields(log.Fields{
				"botID": bot.ID,
				"error": err,
			}).Error("Error advancing bot")
		}
	}
}

// advanceBot moves one bot a single step forward: start a cycle if none is
// running, otherwise keep exactly one game on offer and answer any opponent
// move that is waiting on the bot.
func (r *Runner) advanceBot(ctx context.Context, bot *models.Bot) error {
	if bot.CurrentCycleNumber == 0 {
		_, err := r.cycleService.StartCycle(ctx, bot.ID)
		return err
	}

	acc, err := r.cycleService.GetCycleProgress(ctx, bot.ID)
	if err != nil {
		return fmt.Errorf("failed to get cycle progress: %w", err)
	}
	if acc == nil {
		_, err := r.cycleService.StartCycle(ctx, bot.ID)
		return err
	}

	if acc.IsCycleCompleted {
		return r.maybeStartNextCycle(ctx, bot)
	}

	if acc.TargetReached() {
		// The in-game finalize hook failed or has not landed yet
		if _, _, err := r.cycleService.FinalizeCycle(ctx, bot.ID, bot.CurrentCycleNumber); err != nil {
			return fmt.Errorf("failed to finalize cycle: %w", err)
		}
		return nil
	}

	if err := r.answerPendingMoves(ctx, bot); err != nil {
		return err
	}

	return r.materializeNextSlot(ctx, bot)
}

// maybeStartNextCycle starts the next cycle once the configured pause after
// the previous cycle's finalization has elapsed
func (r *Runner) maybeStartNextCycle(ctx context.Context, bot *models.Bot) error {
	cc, err := r.cycleService.GetCompletedCycle(ctx, bot.ID, bot.CurrentCycleNumber)
	if err != nil {
		return fmt.Errorf("failed to get completed cycle: %w", err)
	}
	if cc != nil && time.Since(cc.EndTime) < r.interCyclePause {
		return nil
	}

	_, err = r.cycleService.StartCycle(ctx, bot.ID)
	return err
}

// answerPendingMoves submits the bot's move for every game where the
// opponent already played. The bot answers second, choosing the move that
// forces the slot's intended outcome.
func (r *Runner) answerPendingMoves(ctx context.Context, bot *models.Bot) error {
	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	pending, err := uow.GameRepository().ListAwaitingCreatorMove(ctx, bot.UserID)
	if err != nil {
		uow.Rollback()
		return fmt.Errorf("failed to list pending games: %w", err)
	}

	plans := make(map[int64]*models.WagerPlan, len(pending))
	for _, game := range pending {
		plan, err := uow.CycleRepository().GetPlanByGameID(ctx, game.ID)
		if err != nil {
			uow.Rollback()
			return fmt.Errorf("failed to get plan for game %d: %w", game.ID, err)
		}
		if plan != nil {
			plans[game.ID] = plan
		}
	}
	uow.Rollback()

	for _, game := range pending {
		if game.OpponentMove == nil {
			continue
		}

		move := chooseMove(*game.OpponentMove, plans[game.ID])
		if _, err := r.gameService.SubmitMove(ctx, game.ID, bot.UserID, move); err != nil {
			log.WithFields(log.Fields{
				"botID":  bot.ID,
				"gameID": game.ID,
				"error":  err,
			}).Warn("Failed to submit bot move")
		}
	}

	return nil
}

// chooseMove picks the bot's answer to the opponent's move so the game
// resolves to the plan's intended outcome. Unplanned games draw.
func chooseMove(opponentMove models.Move, plan *models.WagerPlan) models.Move {
	if plan == nil {
		return opponentMove
	}
	switch plan.IntendedOutcome {
	case models.OutcomeWin:
		return models.CounterMove(opponentMove)
	case models.OutcomeLoss:
		return models.LosingMove(opponentMove)
	default:
		return opponentMove
	}
}

// materializeNextSlot creates the next waiting game from the cycle's
// unconsumed plan slots. Bots keep at most one game on offer at a time, so
// nothing happens while an earlier game is still open.
func (r *Runner) materializeNextSlot(ctx context.Context, bot *models.Bot) error {
	free, err := r.gameService.CanEnterActiveGame(ctx, bot.UserID)
	if err != nil {
		return fmt.Errorf("failed to check bot availability: %w", err)
	}
	if !free {
		return nil
	}

	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	plans, err := uow.CycleRepository().ListUnconsumedPlans(ctx, bot.ID, bot.CurrentCycleNumber)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to list unconsumed plans: %w", err)
	}
	if len(plans) == 0 {
		return nil
	}

	_, err = r.gameService.CreateGameFromPlan(ctx, plans[0])
	return err
}
