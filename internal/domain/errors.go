package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeckNotFound         = errors.New("deck not found")
	ErrDeckAlreadyExists    = errors.New("deck already exists")
	ErrInvalidDeckType      = errors.New("invalid deck type")
	ErrCardNotFound         = errors.New("card not found in deck")
	ErrIncompleteDeckSet    = errors.New("a game needs exactly one deck of each required type")
	ErrNoSuchSession        = errors.New("no such session")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrGameAlreadyOver      = errors.New("game already over")
	ErrPileExhausted        = errors.New("pile exhausted")
	ErrDecisionStale        = errors.New("decision stale: top card changed")
	ErrDecisionClosed       = errors.New("decision already closed")
	ErrDecisionConflict     = errors.New("another kind of decision is pending for this card")
	ErrUnknownHandle        = errors.New("unknown decision handle")
	ErrNotObserver          = errors.New("decision was offered to another observer")
	ErrInvalidChoice        = errors.New("invalid decision choice")
	ErrInvalidDecisionKind  = errors.New("invalid decision kind")
)

// MissingDecksError reports deck keys referenced by a snapshot that the catalog no longer has.
type MissingDecksError struct {
	Keys []string
}

func (e *MissingDecksError) Error() string {
	return fmt.Sprintf("missing decks: %s", strings.Join(e.Keys, ", "))
}

// Is lets callers match a MissingDecksError with errors.Is(err, ErrDeckNotFound).
func (e *MissingDecksError) Is(target error) bool {
	return target == ErrDeckNotFound
}
