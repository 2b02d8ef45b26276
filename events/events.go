package events

import (
	"context"
	"sync"

	"wagerbot/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeGameStateChange EventType = "game_state_change"
	EventTypeGameCompleted   EventType = "game_completed"
	EventTypeCycleCompleted  EventType = "cycle_completed"
	EventTypeBalanceChange   EventType = "balance_change"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// GameStateChangeEvent represents a game state transition
type GameStateChangeEvent struct {
	GameID    int64
	OldStatus models.GameStatus
	NewStatus models.GameStatus
}

func (e GameStateChangeEvent) Type() EventType {
	return EventTypeGameStateChange
}

// GameCompletedEvent fires when a game reaches the completed state
type GameCompletedEvent struct {
	GameID     int64
	CreatorID  int64
	OpponentID int64
	WinnerID   *int64
	BetAmount  int64
	Outcome    models.Outcome
}

func (e GameCompletedEvent) Type() EventType {
	return EventTypeGameCompleted
}

// CycleCompletedEvent fires once per finalized (bot, cycle)
type CycleCompletedEvent struct {
	BotID       int64
	CycleNumber int64
	NetProfit   int64
	ROIPercent  float64
}

func (e CycleCompletedEvent) Type() EventType {
	return EventTypeCycleCompleted
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64
	OldBalance      int64
	NewBalance      int64
	TransactionType models.TransactionType
	ChangeAmount    int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events coupled to a unit of work and flushes them
// to the underlying bus only after the transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits pending events after a successful commit. Events run on a
// background context so they outlive the transaction context.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
