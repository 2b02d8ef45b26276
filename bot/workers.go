package bot

import (
	"context"
	"time"

	"wagerbot/service"

	log "github.com/sirupsen/logrus"
)

// StartLifecycleSweeps starts a background worker that repeatedly runs the
// three game lifecycle sweeps: releasing lapsed reservations, timing out
// overdue games and expiring stale waiting games.
// Returns a cleanup function to stop the worker gracefully.
func StartLifecycleSweeps(ctx context.Context, games service.GameService, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})

	sweep := func() {
		if _, err := games.ExpireReservations(ctx); err != nil {
			log.Errorf("Error expiring reservations: %v", err)
		}
		if _, err := games.TimeoutOverdueGames(ctx); err != nil {
			log.Errorf("Error timing out overdue games: %v", err)
		}
		if _, err := games.ExpireStaleWaiting(ctx); err != nil {
			log.Errorf("Error expiring stale waiting games: %v", err)
		}
	}

	go func() {
		log.Info("Game lifecycle sweep worker started")

		// Run immediately on startup
		sweep()

		for {
			select {
			case <-ctx.Done():
				log.Info("Lifecycle sweep worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Lifecycle sweep worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}
