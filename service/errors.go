package service

import (
	"errors"
)

var (
	// ErrGameNotAvailable is returned when a reservation or join targets a
	// game that is no longer in the expected state.
	ErrGameNotAvailable = errors.New("game is no longer available")

	// ErrUserBusy is returned when the concurrency guard finds the user
	// already bound to a non-terminal game.
	ErrUserBusy = errors.New("user already has a game in progress")

	// ErrCycleAlreadyStarted is returned when a cycle accumulator already
	// exists for the requested (bot, cycle).
	ErrCycleAlreadyStarted = errors.New("cycle already started")

	// ErrCycleClosed signals that an accumulator update was rejected because
	// the cycle is completed or the target was already reached.
	ErrCycleClosed = errors.New("cycle accumulator is closed")

	// ErrDuplicateCompletedCycle is returned by the repository when the
	// completed-cycle unique constraint fires. The finalizer treats it as
	// "already finalized", never as a failure.
	ErrDuplicateCompletedCycle = errors.New("completed cycle already recorded")

	// ErrMoveAlreadySubmitted is returned when a participant submits a
	// second move for the same game.
	ErrMoveAlreadySubmitted = errors.New("move already submitted")
)
