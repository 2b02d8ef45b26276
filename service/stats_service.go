package service

import (
	"context"
	"fmt"

	"wagerbot/models"
)

// historyWindow caps how many completed cycles feed the aggregate
const historyWindow = 1000

type statsService struct {
	uowFactory UnitOfWorkFactory
}

// NewStatsService creates a new stats service
func NewStatsService(uowFactory UnitOfWorkFactory) StatsService {
	return &statsService{
		uowFactory: uowFactory,
	}
}

// GetBotStats aggregates a bot's completed cycle history
func (s *statsService) GetBotStats(ctx context.Context, botID int64) (*models.BotStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cycles, err := uow.CycleRepository().ListCompletedCycles(ctx, botID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed cycles: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats := &models.BotStats{BotID: botID}
	var roiSum float64
	for _, cc := range cycles {
		stats.CyclesCompleted++
		stats.TotalBets += cc.TotalBets
		stats.TotalWins += cc.WinsCount
		stats.TotalLosses += cc.LossesCount
		stats.TotalDraws += cc.DrawsCount
		stats.TotalBetAmount += cc.TotalBetAmount
		stats.TotalNetProfit += cc.NetProfit
		roiSum += cc.ROIPercent
	}
	if stats.CyclesCompleted > 0 {
		stats.AverageROI = roiSum / float64(stats.CyclesCompleted)
	}

	return stats, nil
}
