// Package repository persists accepted match events.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/touchline/internal/domain/model"
)

// DefaultListLimit caps ListByMatch when no limit is given.
const DefaultListLimit = 500

// EventStore is the durable record of accepted events.
type EventStore interface {
	// Persist stores ev. A (matchID, sequence) pair is stored at most once;
	// a second write returns ErrDuplicateSequence.
	Persist(ctx context.Context, ev model.MatchEvent) error

	// ListByMatch returns up to limit events with sequence > after, in
	// sequence order. limit <= 0 means DefaultListLimit.
	ListByMatch(ctx context.Context, matchID string, after int64, limit int) ([]model.MatchEvent, error)

	// LastSequence returns the highest stored sequence of a match, 0 if none.
	LastSequence(ctx context.Context, matchID string) (int64, error)

	// Count returns the total number of stored events.
	Count(ctx context.Context) (int, error)

	Close() error
}

func checkEvent(ev model.MatchEvent) error {
	switch {
	case ev.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	case ev.MatchID == "":
		return fmt.Errorf("%w: missing match id", ErrInvalidEvent)
	case ev.Sequence <= 0:
		return fmt.Errorf("%w: sequence %d", ErrInvalidEvent, ev.Sequence)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
