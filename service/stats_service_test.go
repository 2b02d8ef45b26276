package service

import (
	"context"
	"testing"

	"wagerbot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsService_GetBotStats(t *testing.T) {
	ctx := context.Background()
	_, mockFactory, _, _, _, _, mockCycleRepo := newCycleServiceMocks()

	cycles := []*models.CompletedCycle{
		{
			BotID: 7, CycleNumber: 2,
			TotalBets: 16, WinsCount: 7, LossesCount: 6, DrawsCount: 3,
			TotalBetAmount: 809, NetProfit: 65, ROIPercent: 10.05,
		},
		{
			BotID: 7, CycleNumber: 1,
			TotalBets: 16, WinsCount: 5, LossesCount: 8, DrawsCount: 3,
			TotalBetAmount: 790, NetProfit: -120, ROIPercent: -18.15,
		},
	}
	mockCycleRepo.On("ListCompletedCycles", ctx, int64(7), historyWindow).Return(cycles, nil)

	service := NewStatsService(mockFactory)
	stats, err := service.GetBotStats(ctx, int64(7))

	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.BotID)
	assert.Equal(t, 2, stats.CyclesCompleted)
	assert.Equal(t, 32, stats.TotalBets)
	assert.Equal(t, 12, stats.TotalWins)
	assert.Equal(t, 14, stats.TotalLosses)
	assert.Equal(t, 6, stats.TotalDraws)
	assert.Equal(t, int64(1599), stats.TotalBetAmount)
	assert.Equal(t, int64(-55), stats.TotalNetProfit)
	assert.InDelta(t, -4.05, stats.AverageROI, 0.001)

	mockCycleRepo.AssertExpectations(t)
}

func TestStatsService_GetBotStats_NoHistory(t *testing.T) {
	ctx := context.Background()
	_, mockFactory, _, _, _, _, mockCycleRepo := newCycleServiceMocks()

	mockCycleRepo.On("ListCompletedCycles", ctx, int64(7), historyWindow).Return([]*models.CompletedCycle{}, nil)

	service := NewStatsService(mockFactory)
	stats, err := service.GetBotStats(ctx, int64(7))

	require.NoError(t, err)
	assert.Equal(t, 0, stats.CyclesCompleted)
	assert.Zero(t, stats.TotalNetProfit)
	assert.Zero(t, stats.AverageROI)
}
