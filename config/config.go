package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Discord notification configuration. Optional: notifications are
	// disabled when no token is configured.
	DiscordToken     string
	DiscordChannelID string

	// Player configuration
	StartingBalance int64

	// Game lifecycle timings
	ReservationTTL     time.Duration // how long a reservation holds a game
	ActiveGameDeadline time.Duration // how long an activated game may run
	WaitingGameTTL     time.Duration // how long an unclaimed game waits
	SweepInterval      time.Duration // how often lifecycle sweeps run

	// Bot runner configuration
	BotTickInterval time.Duration // how often bots advance their cycles
	InterCyclePause time.Duration // idle time between finished cycles

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Database
		DatabaseURL: os.Getenv("DATABASE_URL"),

		// Discord notifications
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),

		// Defaults
		StartingBalance:    100000,
		ReservationTTL:     30 * time.Second,
		ActiveGameDeadline: 60 * time.Second,
		WaitingGameTTL:     5 * time.Minute,
		SweepInterval:      5 * time.Second,
		BotTickInterval:    3 * time.Second,
		InterCyclePause:    30 * time.Second,

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		if parsedBalance, err := strconv.ParseInt(balance, 10, 64); err == nil {
			config.StartingBalance = parsedBalance
		}
	}
	overrideDuration(&config.ReservationTTL, "RESERVATION_TTL")
	overrideDuration(&config.ActiveGameDeadline, "ACTIVE_GAME_DEADLINE")
	overrideDuration(&config.WaitingGameTTL, "WAITING_GAME_TTL")
	overrideDuration(&config.SweepInterval, "SWEEP_INTERVAL")
	overrideDuration(&config.BotTickInterval, "BOT_TICK_INTERVAL")
	overrideDuration(&config.InterCyclePause, "INTER_CYCLE_PAUSE")

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

func overrideDuration(target *time.Duration, envVar string) {
	if raw := os.Getenv(envVar); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			*target = parsed
		}
	}
}

// NotificationsEnabled reports whether Discord notifications are configured
func (c *Config) NotificationsEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}
