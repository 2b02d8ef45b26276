package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"wagerbot/models"
	"wagerbot/repository/testutil"
	"wagerbot/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBot(t *testing.T, testDB *testutil.TestDatabase) *models.Bot {
	t.Helper()
	ctx := context.Background()

	userRepo := NewUserRepository(testDB.DB)
	botUser, err := userRepo.Create(ctx, "house-bot", 100000, true)
	require.NoError(t, err)

	botRepo := NewBotRepository(testDB.DB)
	bot := testutil.CreateTestBot(botUser.ID, "house-bot")
	require.NoError(t, botRepo.Create(ctx, bot))

	return bot
}

func TestCycleRepository_CreateAccumulator_Duplicate(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	ctx := context.Background()

	acc := &models.CycleAccumulator{BotID: bot.ID, CycleNumber: 1, TargetGameCount: 4}
	require.NoError(t, repo.CreateAccumulator(ctx, acc))
	assert.False(t, acc.CycleStartTime.IsZero())

	dup := &models.CycleAccumulator{BotID: bot.ID, CycleNumber: 1, TargetGameCount: 4}
	err := repo.CreateAccumulator(ctx, dup)
	assert.ErrorIs(t, err, service.ErrCycleAlreadyStarted)

	// A different cycle number is a fresh accumulator
	next := &models.CycleAccumulator{BotID: bot.ID, CycleNumber: 2, TargetGameCount: 4}
	require.NoError(t, repo.CreateAccumulator(ctx, next))
}

func TestCycleRepository_RecordOutcome(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	ctx := context.Background()

	acc := &models.CycleAccumulator{BotID: bot.ID, CycleNumber: 1, TargetGameCount: 3}
	require.NoError(t, repo.CreateAccumulator(ctx, acc))

	got, err := repo.RecordOutcome(ctx, bot.ID, 1, models.OutcomeWin, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, got.GamesCompleted)
	assert.Equal(t, 1, got.GamesWon)
	assert.Equal(t, int64(50), got.WinsAmount)

	got, err = repo.RecordOutcome(ctx, bot.ID, 1, models.OutcomeLoss, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, got.GamesCompleted)
	assert.Equal(t, 1, got.GamesLost)
	assert.Equal(t, int64(30), got.LossesAmount)

	got, err = repo.RecordOutcome(ctx, bot.ID, 1, models.OutcomeDraw, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, got.GamesCompleted)
	assert.Equal(t, 1, got.GamesDrawn)
	assert.Equal(t, int64(20), got.DrawsAmount)
	assert.True(t, got.TargetReached())
	assert.Equal(t, int64(20), got.NetProfit())

	// Target reached: further updates are rejected
	_, err = repo.RecordOutcome(ctx, bot.ID, 1, models.OutcomeWin, 10)
	assert.ErrorIs(t, err, service.ErrCycleClosed)
}

func TestCycleRepository_RecordOutcome_ClosedAccumulator(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	ctx := context.Background()

	acc := &models.CycleAccumulator{BotID: bot.ID, CycleNumber: 1, TargetGameCount: 4}
	require.NoError(t, repo.CreateAccumulator(ctx, acc))
	require.NoError(t, repo.MarkCompleted(ctx, bot.ID, 1))

	_, err := repo.RecordOutcome(ctx, bot.ID, 1, models.OutcomeWin, 10)
	assert.ErrorIs(t, err, service.ErrCycleClosed)
}

func TestCycleRepository_RecordOutcome_Concurrent(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	ctx := context.Background()

	const target = 10
	acc := &models.CycleAccumulator{BotID: bot.ID, CycleNumber: 1, TargetGameCount: target}
	require.NoError(t, repo.CreateAccumulator(ctx, acc))

	// More recorders than target: the surplus must be rejected, never
	// counted past the target
	const attempts = 15
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RecordOutcome(ctx, bot.ID, 1, models.OutcomeWin, 10)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var accepted, rejected int
	for err := range results {
		if err == nil {
			accepted++
		} else {
			require.ErrorIs(t, err, service.ErrCycleClosed)
			rejected++
		}
	}
	assert.Equal(t, target, accepted)
	assert.Equal(t, attempts-target, rejected)

	final, err := repo.GetAccumulator(ctx, bot.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, target, final.GamesCompleted)
	assert.Equal(t, int64(target*10), final.WinsAmount)
}

func completedCycleRecord(botID int64) *models.CompletedCycle {
	now := time.Now()
	return &models.CompletedCycle{
		BotID:          botID,
		CycleNumber:    1,
		TotalBets:      4,
		WinsCount:      2,
		LossesCount:    1,
		DrawsCount:     1,
		TotalBetAmount: 100,
		TotalWinnings:  50,
		TotalLosses:    25,
		NetProfit:      25,
		ROIPercent:     33.33,
		StartTime:      now.Add(-time.Hour),
		EndTime:        now,
	}
}

func TestCycleRepository_InsertCompletedCycle_Duplicate(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	ctx := context.Background()

	require.NoError(t, repo.InsertCompletedCycle(ctx, completedCycleRecord(bot.ID)))

	err := repo.InsertCompletedCycle(ctx, completedCycleRecord(bot.ID))
	assert.ErrorIs(t, err, service.ErrDuplicateCompletedCycle)

	cycles, err := repo.ListCompletedCycles(ctx, bot.ID, 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)
}

func TestCycleRepository_InsertCompletedCycle_ConcurrentFinalizers(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	ctx := context.Background()

	const finalizers = 5
	var wg sync.WaitGroup
	results := make(chan error, finalizers)

	for i := 0; i < finalizers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.InsertCompletedCycle(ctx, completedCycleRecord(bot.ID))
		}()
	}
	wg.Wait()
	close(results)

	var wins, duplicates int
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, service.ErrDuplicateCompletedCycle)
			duplicates++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, finalizers-1, duplicates)

	cycles, err := repo.ListCompletedCycles(ctx, bot.ID, 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)
}

func TestCycleRepository_InsertCompletedCycle_DuplicateInsideTransaction(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	ctx := context.Background()

	tx, err := testDB.DB.Pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	txRepo := newCycleRepositoryWithTx(tx)

	// Another finalizer commits first on a separate connection while this
	// transaction is already open
	require.NoError(t, repo.InsertCompletedCycle(ctx, completedCycleRecord(bot.ID)))

	err = txRepo.InsertCompletedCycle(ctx, completedCycleRecord(bot.ID))
	require.ErrorIs(t, err, service.ErrDuplicateCompletedCycle)

	// The losing transaction must stay usable: it re-reads the winner's
	// record on the same connection instead of failing
	winner, err := txRepo.GetCompletedCycle(ctx, bot.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, bot.ID, winner.BotID)
	require.NoError(t, tx.Commit(ctx))
}

func TestCycleRepository_Plans(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	gameRepo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	plans := []*models.WagerPlan{
		testutil.CreateTestPlan(bot.ID, 1, 0, 40, models.OutcomeWin),
		testutil.CreateTestPlan(bot.ID, 1, 1, 30, models.OutcomeLoss),
		testutil.CreateTestPlan(bot.ID, 1, 2, 30, models.OutcomeDraw),
	}
	require.NoError(t, repo.CreatePlans(ctx, plans))
	for _, p := range plans {
		assert.NotZero(t, p.ID)
	}

	unconsumed, err := repo.ListUnconsumedPlans(ctx, bot.ID, 1)
	require.NoError(t, err)
	require.Len(t, unconsumed, 3)
	assert.Equal(t, 0, unconsumed[0].SlotIndex)

	// Bind slot 0 to a real game
	game := testutil.CreateTestBotGame(bot.UserID, bot.ID, 1, 0, 40)
	require.NoError(t, gameRepo.Create(ctx, game))
	require.NoError(t, repo.BindPlan(ctx, plans[0].ID, game.ID))

	// Already consumed
	err = repo.BindPlan(ctx, plans[0].ID, game.ID)
	assert.Error(t, err)

	unconsumed, err = repo.ListUnconsumedPlans(ctx, bot.ID, 1)
	require.NoError(t, err)
	assert.Len(t, unconsumed, 2)

	byGame, err := repo.GetPlanByGameID(ctx, game.ID)
	require.NoError(t, err)
	require.NotNil(t, byGame)
	assert.Equal(t, plans[0].ID, byGame.ID)

	// Releasing the slot makes it available again
	require.NoError(t, repo.UnbindPlan(ctx, plans[0].ID, game.ID))
	unconsumed, err = repo.ListUnconsumedPlans(ctx, bot.ID, 1)
	require.NoError(t, err)
	assert.Len(t, unconsumed, 3)
}

func TestCycleRepository_CreatePlans_DuplicateSlot(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bot := seedBot(t, testDB)

	repo := NewCycleRepository(testDB.DB)
	ctx := context.Background()

	first := []*models.WagerPlan{testutil.CreateTestPlan(bot.ID, 1, 0, 40, models.OutcomeWin)}
	require.NoError(t, repo.CreatePlans(ctx, first))

	dup := []*models.WagerPlan{testutil.CreateTestPlan(bot.ID, 1, 0, 50, models.OutcomeLoss)}
	assert.Error(t, repo.CreatePlans(ctx, dup))
}
