package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"wagerbot/bot"
	"wagerbot/config"
	"wagerbot/database"
	"wagerbot/events"
	"wagerbot/repository"
	"wagerbot/service"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting wagerbot...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize services
	log.Println("Initializing services...")
	botService := service.NewBotService(uowFactory)
	cycleService := service.NewCycleService(uowFactory)
	gameService := service.NewGameService(uowFactory, cycleService, service.GameTimings{
		ReservationTTL: cfg.ReservationTTL,
		ActiveDeadline: cfg.ActiveGameDeadline,
		WaitingTTL:     cfg.WaitingGameTTL,
	})
	statsService := service.NewStatsService(uowFactory)
	log.Println("Services initialized successfully")

	// Initialize Discord notifications when configured
	var notifier *bot.Notifier
	if cfg.NotificationsEnabled() {
		log.Println("Connecting Discord notifier...")
		notifier, err = bot.NewNotifier(cfg.DiscordToken, cfg.DiscordChannelID, statsService)
		if err != nil {
			return fmt.Errorf("failed to initialize Discord notifier: %w", err)
		}
		notifier.Subscribe(eventBus)
		log.Println("Discord notifier connected")
	}

	// Start background workers
	stopSweeps := bot.StartLifecycleSweeps(ctx, gameService, cfg.SweepInterval)
	runner := bot.NewRunner(uowFactory, botService, cycleService, gameService, cfg.BotTickInterval, cfg.InterCyclePause)
	stopRunner := runner.Start(ctx)

	// Wait for context cancellation
	log.Printf("Wagerbot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Println("Shutting down...")
	stopRunner()
	stopSweeps()

	if notifier != nil {
		if err := notifier.Close(); err != nil {
			log.Printf("Error closing Discord notifier: %v", err)
		}
	}

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close database connection
	log.Println("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Println("Shutdown completed")
	}

	return nil
}
