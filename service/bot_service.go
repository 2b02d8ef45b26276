package service

import (
	"context"
	"fmt"

	"wagerbot/models"
)

type botService struct {
	uowFactory UnitOfWorkFactory
}

// NewBotService creates a new bot service
func NewBotService(uowFactory UnitOfWorkFactory) BotService {
	return &botService{
		uowFactory: uowFactory,
	}
}

// ListActiveBots returns all active bots
func (s *botService) ListActiveBots(ctx context.Context) ([]*models.Bot, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bots, err := uow.BotRepository().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active bots: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return bots, nil
}

// GetBot retrieves one bot
func (s *botService) GetBot(ctx context.Context, botID int64) (*models.Bot, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bot, err := uow.BotRepository().GetByID(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return bot, nil
}
