package domain

import (
	"fmt"
	"strings"
)

// DeckType determines when a deck joins the game.
type DeckType string

const (
	DeckEvent  DeckType = "event"
	DeckDragon DeckType = "dragon"
	DeckSea    DeckType = "sea"
	DeckEnd    DeckType = "end"
	DeckCustom DeckType = "custom"
)

// RequiredDeckTypes are the deck types a game is started with, in draw order.
var RequiredDeckTypes = []DeckType{DeckEvent, DeckDragon, DeckSea, DeckEnd}

// ParseDeckType accepts "event" as well as the long form "event_deck".
func ParseDeckType(s string) (DeckType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "_deck")
	switch DeckType(v) {
	case DeckEvent, DeckDragon, DeckSea, DeckEnd, DeckCustom:
		return DeckType(v), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDeckType, s)
}

// Playable reports whether decks of this type can be used in a game.
func (t DeckType) Playable() bool {
	return t.ActiveFrom() > 0
}

// ActiveFrom returns the first turn on which decks of this type are drawn,
// or 0 if the type is never drawn.
func (t DeckType) ActiveFrom() int {
	switch t {
	case DeckEvent, DeckDragon:
		return 1
	case DeckSea:
		return 5
	case DeckEnd:
		return 10
	}
	return 0
}

// Deck is a catalog entry: an ordered list of card templates.
type Deck struct {
	Key   string   `json:"key"`
	Name  string   `json:"name"`
	Type  DeckType `json:"type"`
	Cards []Card   `json:"cards"`
}

// Ref strips the cards from a deck.
func (d Deck) Ref() DeckRef {
	return DeckRef{Key: d.Key, Name: d.Name, Type: d.Type}
}

// Clone returns a deck that shares no card storage with d.
func (d Deck) Clone() Deck {
	out := d
	out.Cards = append([]Card(nil), d.Cards...)
	return out
}

// DeckRef identifies a deck used by a game.
type DeckRef struct {
	Key  string   `json:"key"`
	Name string   `json:"name"`
	Type DeckType `json:"type"`
}

// ValidateDeckSet checks that decks hold exactly one deck of each required type.
func ValidateDeckSet(decks []Deck) error {
	seen := make(map[DeckType]string, len(RequiredDeckTypes))
	for _, d := range decks {
		if !d.Type.Playable() {
			return fmt.Errorf("%w: deck %q has type %q", ErrIncompleteDeckSet, d.Key, d.Type)
		}
		if other, ok := seen[d.Type]; ok {
			return fmt.Errorf("%w: decks %q and %q are both %s decks", ErrIncompleteDeckSet, other, d.Key, d.Type)
		}
		seen[d.Type] = d.Key
	}
	for _, t := range RequiredDeckTypes {
		if _, ok := seen[t]; !ok {
			return fmt.Errorf("%w: no %s deck", ErrIncompleteDeckSet, t)
		}
	}
	return nil
}
