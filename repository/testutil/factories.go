package testutil

import (
	"wagerbot/models"
)

// DefaultCycleConfig returns a small, always-feasible cycle configuration
func DefaultCycleConfig() models.BotCycleConfig {
	return models.BotCycleConfig{
		MinAmount:       10,
		MaxAmount:       100,
		TargetGameCount: 4,
		WinPct:          50,
		LossPct:         25,
		DrawPct:         25,
	}
}

// CreateTestBot builds a bot owned by the given user with the default config
func CreateTestBot(userID int64, name string) *models.Bot {
	return &models.Bot{
		Name:     name,
		UserID:   userID,
		IsActive: true,
		Config:   DefaultCycleConfig(),
	}
}

// CreateTestGame builds a waiting game for the given creator
func CreateTestGame(creatorID int64, amount int64) *models.Game {
	return &models.Game{
		CreatorID: creatorID,
		BetAmount: amount,
		Status:    models.GameStatusWaiting,
	}
}

// CreateTestBotGame builds a waiting game bound to a bot cycle slot
func CreateTestBotGame(creatorID, botID, cycleNumber int64, slotIndex int, amount int64) *models.Game {
	game := CreateTestGame(creatorID, amount)
	game.BotID = &botID
	game.CycleNumber = &cycleNumber
	game.SlotIndex = &slotIndex
	return game
}

// CreateTestPlan builds one wager plan slot
func CreateTestPlan(botID, cycleNumber int64, slotIndex int, amount int64, outcome models.Outcome) *models.WagerPlan {
	return &models.WagerPlan{
		BotID:           botID,
		CycleNumber:     cycleNumber,
		SlotIndex:       slotIndex,
		Amount:          amount,
		IntendedOutcome: outcome,
	}
}
