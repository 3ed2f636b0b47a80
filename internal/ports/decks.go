package ports

import (
	"context"

	"dragonsea/internal/domain"
)

// DeckStore persists the deck catalog.
type DeckStore interface {
	// ListDecks returns every stored deck. Order is unspecified.
	ListDecks(ctx context.Context) ([]domain.Deck, error)

	// SaveDeck creates or replaces the deck stored under deck.Key.
	SaveDeck(ctx context.Context, deck domain.Deck) error

	// DeleteDeck removes a deck. Deleting a missing deck is not an error.
	DeleteDeck(ctx context.Context, key string) error
}
