package service

import (
	"context"
	"sync"
	"time"

	"wagerbot/events"
	"wagerbot/models"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, username string, initialBalance int64, isBot bool) (*models.User, error) {
	args := m.Called(ctx, username, initialBalance, isBot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) AddBalance(ctx context.Context, userID int64, amount int64) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *MockUserRepository) DeductBalance(ctx context.Context, userID int64, amount int64) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockBotRepository is a mock implementation of BotRepository
type MockBotRepository struct {
	mock.Mock
}

func (m *MockBotRepository) GetByID(ctx context.Context, botID int64) (*models.Bot, error) {
	args := m.Called(ctx, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bot), args.Error(1)
}

func (m *MockBotRepository) ListActive(ctx context.Context) ([]*models.Bot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bot), args.Error(1)
}

func (m *MockBotRepository) Create(ctx context.Context, bot *models.Bot) error {
	args := m.Called(ctx, bot)
	return args.Error(0)
}

func (m *MockBotRepository) SetCurrentCycle(ctx context.Context, botID int64, cycleNumber int64) error {
	args := m.Called(ctx, botID, cycleNumber)
	return args.Error(0)
}

func (m *MockBotRepository) IncrementCompletedCycles(ctx context.Context, botID int64) error {
	args := m.Called(ctx, botID)
	return args.Error(0)
}

// MockGameRepository is a mock implementation of GameRepository
type MockGameRepository struct {
	mock.Mock
}

func (m *MockGameRepository) Create(ctx context.Context, game *models.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

func (m *MockGameRepository) GetByID(ctx context.Context, id int64) (*models.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) ListJoinable(ctx context.Context, limit int) ([]*models.Game, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *MockGameRepository) HasOpenGame(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGameRepository) Reserve(ctx context.Context, gameID, userID int64, expiresAt time.Time) error {
	args := m.Called(ctx, gameID, userID, expiresAt)
	return args.Error(0)
}

func (m *MockGameRepository) Unreserve(ctx context.Context, gameID int64) error {
	args := m.Called(ctx, gameID)
	return args.Error(0)
}

func (m *MockGameRepository) Activate(ctx context.Context, gameID, userID int64, deadline time.Time) error {
	args := m.Called(ctx, gameID, userID, deadline)
	return args.Error(0)
}

func (m *MockGameRepository) RecordCreatorMove(ctx context.Context, gameID int64, move models.Move, newStatus models.GameStatus) (*models.Game, error) {
	args := m.Called(ctx, gameID, move, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) RecordOpponentMove(ctx context.Context, gameID int64, move models.Move, newStatus models.GameStatus) (*models.Game, error) {
	args := m.Called(ctx, gameID, move, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Game), args.Error(1)
}

func (m *MockGameRepository) Complete(ctx context.Context, gameID int64, winnerID *int64) error {
	args := m.Called(ctx, gameID, winnerID)
	return args.Error(0)
}

func (m *MockGameRepository) MarkTerminal(ctx context.Context, gameID int64, from, to models.GameStatus) error {
	args := m.Called(ctx, gameID, from, to)
	return args.Error(0)
}

func (m *MockGameRepository) ExpireReservations(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGameRepository) ListOverdue(ctx context.Context, status models.GameStatus, now time.Time) ([]*models.Game, error) {
	args := m.Called(ctx, status, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *MockGameRepository) ListStaleWaiting(ctx context.Context, cutoff time.Time) ([]*models.Game, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

func (m *MockGameRepository) ListAwaitingCreatorMove(ctx context.Context, creatorID int64) ([]*models.Game, error) {
	args := m.Called(ctx, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Game), args.Error(1)
}

// MockCycleRepository is a mock implementation of CycleRepository
type MockCycleRepository struct {
	mock.Mock
}

func (m *MockCycleRepository) CreateAccumulator(ctx context.Context, acc *models.CycleAccumulator) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockCycleRepository) GetAccumulator(ctx context.Context, botID, cycleNumber int64) (*models.CycleAccumulator, error) {
	args := m.Called(ctx, botID, cycleNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CycleAccumulator), args.Error(1)
}

func (m *MockCycleRepository) RecordOutcome(ctx context.Context, botID, cycleNumber int64, outcome models.Outcome, amount int64) (*models.CycleAccumulator, error) {
	args := m.Called(ctx, botID, cycleNumber, outcome, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CycleAccumulator), args.Error(1)
}

func (m *MockCycleRepository) MarkCompleted(ctx context.Context, botID, cycleNumber int64) error {
	args := m.Called(ctx, botID, cycleNumber)
	return args.Error(0)
}

func (m *MockCycleRepository) InsertCompletedCycle(ctx context.Context, cc *models.CompletedCycle) error {
	args := m.Called(ctx, cc)
	return args.Error(0)
}

func (m *MockCycleRepository) GetCompletedCycle(ctx context.Context, botID, cycleNumber int64) (*models.CompletedCycle, error) {
	args := m.Called(ctx, botID, cycleNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CompletedCycle), args.Error(1)
}

func (m *MockCycleRepository) ListCompletedCycles(ctx context.Context, botID int64, limit int) ([]*models.CompletedCycle, error) {
	args := m.Called(ctx, botID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CompletedCycle), args.Error(1)
}

func (m *MockCycleRepository) CreatePlans(ctx context.Context, plans []*models.WagerPlan) error {
	args := m.Called(ctx, plans)
	return args.Error(0)
}

func (m *MockCycleRepository) GetPlanByGameID(ctx context.Context, gameID int64) (*models.WagerPlan, error) {
	args := m.Called(ctx, gameID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WagerPlan), args.Error(1)
}

func (m *MockCycleRepository) ListUnconsumedPlans(ctx context.Context, botID, cycleNumber int64) ([]*models.WagerPlan, error) {
	args := m.Called(ctx, botID, cycleNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WagerPlan), args.Error(1)
}

func (m *MockCycleRepository) BindPlan(ctx context.Context, planID, gameID int64) error {
	args := m.Called(ctx, planID, gameID)
	return args.Error(0)
}

func (m *MockCycleRepository) UnbindPlan(ctx context.Context, planID, gameID int64) error {
	args := m.Called(ctx, planID, gameID)
	return args.Error(0)
}

// RecordingEventBus captures published events for assertions in tests
type RecordingEventBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *RecordingEventBus) Publish(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *RecordingEventBus) Events() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Event, len(b.events))
	copy(out, b.events)
	return out
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return the instances wired via SetRepositories rather than going through
// testify, so tests configure them once.
type MockUnitOfWork struct {
	mock.Mock

	userRepo    UserRepository
	historyRepo BalanceHistoryRepository
	botRepo     BotRepository
	gameRepo    GameRepository
	cycleRepo   CycleRepository
	eventBus    EventPublisher
}

// SetRepositories wires the repository mocks this unit of work hands out
func (m *MockUnitOfWork) SetRepositories(
	userRepo UserRepository,
	historyRepo BalanceHistoryRepository,
	botRepo BotRepository,
	gameRepo GameRepository,
	cycleRepo CycleRepository,
) {
	m.userRepo = userRepo
	m.historyRepo = historyRepo
	m.botRepo = botRepo
	m.gameRepo = gameRepo
	m.cycleRepo = cycleRepo
	m.eventBus = &RecordingEventBus{}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.historyRepo
}

func (m *MockUnitOfWork) BotRepository() BotRepository {
	return m.botRepo
}

func (m *MockUnitOfWork) GameRepository() GameRepository {
	return m.gameRepo
}

func (m *MockUnitOfWork) CycleRepository() CycleRepository {
	return m.cycleRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
