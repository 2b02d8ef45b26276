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

func seedUsers(t *testing.T, testDB *testutil.TestDatabase, names ...string) []*models.User {
	t.Helper()
	ctx := context.Background()

	userRepo := NewUserRepository(testDB.DB)
	users := make([]*models.User, 0, len(names))
	for _, name := range names {
		u, err := userRepo.Create(ctx, name, 100000, false)
		require.NoError(t, err)
		users = append(users, u)
	}
	return users
}

func TestGameRepository_Reserve_SingleWinner(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator", "alice", "bob", "carol", "dave")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	game := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, game))

	// Every contender races for the same waiting game
	contenders := users[1:]
	expiresAt := time.Now().Add(30 * time.Second)

	var wg sync.WaitGroup
	results := make(chan error, len(contenders))
	for _, u := range contenders {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			results <- repo.Reserve(ctx, game.ID, userID, expiresAt)
		}(u.ID)
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, service.ErrGameNotAvailable)
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, len(contenders)-1, lost)

	reserved, err := repo.GetByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusReserved, reserved.Status)
	assert.NotNil(t, reserved.ReservedBy)
	assert.NotNil(t, reserved.ReservationExpiresAt)
}

func TestGameRepository_ReserveUnreserve(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator", "joiner")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	game := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, game))

	require.NoError(t, repo.Reserve(ctx, game.ID, users[1].ID, time.Now().Add(30*time.Second)))

	// Back to waiting, reservation fields cleared
	require.NoError(t, repo.Unreserve(ctx, game.ID))
	g, err := repo.GetByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusWaiting, g.Status)
	assert.Nil(t, g.ReservedBy)
	assert.Nil(t, g.ReservationExpiresAt)

	// Unreserving a waiting game is a no-op
	require.NoError(t, repo.Unreserve(ctx, game.ID))

	// And the game can be reserved again
	require.NoError(t, repo.Reserve(ctx, game.ID, users[1].ID, time.Now().Add(30*time.Second)))
}

func TestGameRepository_Activate(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator", "holder", "intruder")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	game := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, game))
	require.NoError(t, repo.Reserve(ctx, game.ID, users[1].ID, time.Now().Add(30*time.Second)))

	deadline := time.Now().Add(time.Minute)

	// Only the reservation holder can activate
	err := repo.Activate(ctx, game.ID, users[2].ID, deadline)
	assert.ErrorIs(t, err, service.ErrGameNotAvailable)

	require.NoError(t, repo.Activate(ctx, game.ID, users[1].ID, deadline))

	g, err := repo.GetByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusActive, g.Status)
	require.NotNil(t, g.OpponentID)
	assert.Equal(t, users[1].ID, *g.OpponentID)
	assert.NotNil(t, g.DeadlineAt)

	// Activating twice fails: the game left the reserved state
	err = repo.Activate(ctx, game.ID, users[1].ID, deadline)
	assert.ErrorIs(t, err, service.ErrGameNotAvailable)
}

func activateGame(t *testing.T, repo *GameRepository, game *models.Game, opponentID int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.Reserve(ctx, game.ID, opponentID, time.Now().Add(30*time.Second)))
	require.NoError(t, repo.Activate(ctx, game.ID, opponentID, time.Now().Add(time.Minute)))
}

func TestGameRepository_MoveSubmission(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator", "opponent")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	game := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, game))
	activateGame(t, repo, game, users[1].ID)

	g, err := repo.RecordOpponentMove(ctx, game.ID, models.MoveRock, models.GameStatusReveal)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusReveal, g.Status)
	require.NotNil(t, g.OpponentMove)
	assert.Nil(t, g.CreatorMove)

	// Second submission by the same side is rejected
	_, err = repo.RecordOpponentMove(ctx, game.ID, models.MovePaper, models.GameStatusReveal)
	assert.ErrorIs(t, err, service.ErrMoveAlreadySubmitted)

	// The returned row carries the opponent's earlier move, so the caller
	// can resolve without re-reading
	g, err = repo.RecordCreatorMove(ctx, game.ID, models.MovePaper, models.GameStatusReveal)
	require.NoError(t, err)
	require.NotNil(t, g.CreatorMove)
	require.NotNil(t, g.OpponentMove)
	assert.Equal(t, models.MoveRock, *g.OpponentMove)
	assert.True(t, g.BothMovesIn())

	// Resolve: paper beats rock, creator wins
	require.NoError(t, repo.Complete(ctx, game.ID, &users[0].ID))
	g, err = repo.GetByID(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusCompleted, g.Status)
	require.NotNil(t, g.WinnerID)
	assert.Equal(t, users[0].ID, *g.WinnerID)
	assert.NotNil(t, g.CompletedAt)
}

func TestGameRepository_HasOpenGame(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator", "joiner", "idle")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	game := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, game))

	// Creator of a waiting game counts as occupied
	busy, err := repo.HasOpenGame(ctx, users[0].ID)
	require.NoError(t, err)
	assert.True(t, busy)

	busy, err = repo.HasOpenGame(ctx, users[2].ID)
	require.NoError(t, err)
	assert.False(t, busy)

	// A reservation occupies the holder too
	require.NoError(t, repo.Reserve(ctx, game.ID, users[1].ID, time.Now().Add(30*time.Second)))
	busy, err = repo.HasOpenGame(ctx, users[1].ID)
	require.NoError(t, err)
	assert.True(t, busy)

	// A terminal game releases everyone
	require.NoError(t, repo.Activate(ctx, game.ID, users[1].ID, time.Now().Add(time.Minute)))
	require.NoError(t, repo.MarkTerminal(ctx, game.ID, models.GameStatusActive, models.GameStatusCancelled))

	busy, err = repo.HasOpenGame(ctx, users[0].ID)
	require.NoError(t, err)
	assert.False(t, busy)
	busy, err = repo.HasOpenGame(ctx, users[1].ID)
	require.NoError(t, err)
	assert.False(t, busy)
}

func TestGameRepository_ExpireReservations(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator1", "creator2", "joiner1", "joiner2")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	lapsed := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, lapsed))
	require.NoError(t, repo.Reserve(ctx, lapsed.ID, users[2].ID, time.Now().Add(-time.Second)))

	held := testutil.CreateTestGame(users[1].ID, 50)
	require.NoError(t, repo.Create(ctx, held))
	require.NoError(t, repo.Reserve(ctx, held.ID, users[3].ID, time.Now().Add(time.Hour)))

	released, err := repo.ExpireReservations(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	g, err := repo.GetByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusWaiting, g.Status)
	assert.Nil(t, g.ReservedBy)

	g, err = repo.GetByID(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusReserved, g.Status)

	// Sweeping again finds nothing
	released, err = repo.ExpireReservations(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), released)
}

func TestGameRepository_ListJoinable(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator1", "creator2", "joiner")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	open := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, open))

	taken := testutil.CreateTestGame(users[1].ID, 60)
	require.NoError(t, repo.Create(ctx, taken))
	require.NoError(t, repo.Reserve(ctx, taken.ID, users[2].ID, time.Now().Add(30*time.Second)))

	joinable, err := repo.ListJoinable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, joinable, 1)
	assert.Equal(t, open.ID, joinable[0].ID)
}

func TestGameRepository_MarkTerminal_WrongState(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	game := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, game))

	// Game is waiting, not active
	err := repo.MarkTerminal(ctx, game.ID, models.GameStatusActive, models.GameStatusTimeout)
	assert.ErrorIs(t, err, service.ErrGameNotAvailable)

	// Non-terminal target status is a caller bug
	err = repo.MarkTerminal(ctx, game.ID, models.GameStatusWaiting, models.GameStatusActive)
	assert.Error(t, err)
}

func TestGameRepository_ListOverdue(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	users := seedUsers(t, testDB, "creator", "opponent")

	repo := NewGameRepository(testDB.DB)
	ctx := context.Background()

	game := testutil.CreateTestGame(users[0].ID, 50)
	require.NoError(t, repo.Create(ctx, game))
	require.NoError(t, repo.Reserve(ctx, game.ID, users[1].ID, time.Now().Add(30*time.Second)))
	require.NoError(t, repo.Activate(ctx, game.ID, users[1].ID, time.Now().Add(-time.Second)))

	overdue, err := repo.ListOverdue(ctx, models.GameStatusActive, time.Now())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, game.ID, overdue[0].ID)

	overdue, err = repo.ListOverdue(ctx, models.GameStatusReveal, time.Now())
	require.NoError(t, err)
	assert.Empty(t, overdue)
}
