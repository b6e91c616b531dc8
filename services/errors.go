package services

import (
	"errors"
	"fmt"

	"github.com/redacted-game/gameserver/persistence"
	"github.com/redacted-game/gameserver/roomcode"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrCapacityExceeded      = errors.New("game is full")
	ErrInvalidState          = errors.New("invalid game state")
	ErrMismatch              = errors.New("player does not belong to game")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInsufficientResources = errors.New("insufficient resources")
	// ErrConflict is a lost race at write time; the caller may retry.
	ErrConflict      = errors.New("conflicting concurrent update")
	ErrCodeExhausted = roomcode.ErrCodeExhausted
)

// storeErr maps persistence failures onto the service errors. what names
// the missing record for ErrRecordNotFound.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// Code is a stable machine-readable name for err, used in API payloads.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrMismatch):
		return "mismatch"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInsufficientResources):
		return "insufficient_resources"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrCodeExhausted):
		return "code_exhausted"
	default:
		return "internal"
	}
}
