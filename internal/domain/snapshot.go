package domain

import (
	"fmt"
	"math/rand"
)

// Snapshot is the persisted form of a game. Pending decisions are not part of it.
type Snapshot struct {
	DeckKeys     []string          `json:"deck_keys" yaml:"deck_keys"`
	DrawPiles    map[string][]Card `json:"draw_piles" yaml:"draw_piles"`
	DiscardPiles map[string][]Card `json:"discard_piles" yaml:"discard_piles"`
	Turn         int               `json:"current_turn" yaml:"current_turn"`
	CarryOver    []PlacedCard      `json:"keep_cards" yaml:"keep_cards"`
	InPlay       []PlacedCard      `json:"current_turn_drawn_cards" yaml:"current_turn_drawn_cards"`
	EndAfterTurn bool              `json:"end_game_flag" yaml:"end_game_flag"`
	KeepInPlay   bool              `json:"keep_current_turn_cards" yaml:"keep_current_turn_cards"`
}

// Snapshot copies the game into its persisted form.
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		DeckKeys:     make([]string, 0, len(g.Decks)),
		DrawPiles:    make(map[string][]Card, len(g.Decks)),
		DiscardPiles: make(map[string][]Card, len(g.Decks)),
		Turn:         g.Turn,
		CarryOver:    append([]PlacedCard(nil), g.CarryOver...),
		InPlay:       append([]PlacedCard(nil), g.InPlay...),
		EndAfterTurn: g.EndAfterTurn,
		KeepInPlay:   g.KeepInPlay,
	}
	for _, d := range g.Decks {
		s.DeckKeys = append(s.DeckKeys, d.Key)
		s.DrawPiles[d.Key] = g.Draw[d.Key].Cards()
		s.DiscardPiles[d.Key] = g.Discard[d.Key].Cards()
	}
	return s
}

// RestoreGame rebuilds a game from a snapshot. decks must hold the catalog
// entry of every key in s.DeckKeys; card kinds are resolved again from names.
func RestoreGame(s Snapshot, decks []Deck, rng *rand.Rand) (*Game, error) {
	if s.Turn < 1 {
		return nil, fmt.Errorf("restore game: turn %d out of range", s.Turn)
	}
	byKey := make(map[string]Deck, len(decks))
	for _, d := range decks {
		byKey[d.Key] = d
	}

	g := &Game{
		Draw:         make(map[string]*Pile, len(s.DeckKeys)),
		Discard:      make(map[string]*Pile, len(s.DeckKeys)),
		Turn:         s.Turn,
		EndAfterTurn: s.EndAfterTurn,
		KeepInPlay:   s.KeepInPlay,
		rng:          rng,
	}
	var missing []string
	for _, key := range s.DeckKeys {
		d, ok := byKey[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		g.Decks = append(g.Decks, d.Ref())
		draw, discard := rehydrate(s.DrawPiles[key]), rehydrate(s.DiscardPiles[key])
		g.Draw[key] = &draw
		g.Discard[key] = &discard
	}
	if len(missing) > 0 {
		return nil, &MissingDecksError{Keys: missing}
	}

	var err error
	if g.InPlay, err = g.rehydratePlaced(s.InPlay); err != nil {
		return nil, err
	}
	if g.CarryOver, err = g.rehydratePlaced(s.CarryOver); err != nil {
		return nil, err
	}
	return g, nil
}

func rehydrate(cards []Card) Pile {
	p := make(Pile, 0, len(cards))
	for _, c := range cards {
		p = append(p, NewCard(c.Name, c.Art))
	}
	return p
}

func (g *Game) rehydratePlaced(cards []PlacedCard) ([]PlacedCard, error) {
	out := make([]PlacedCard, 0, len(cards))
	for _, pc := range cards {
		if _, ok := g.Deck(pc.DeckKey); !ok {
			return nil, fmt.Errorf("restore game: card %q belongs to unknown deck %q", pc.Card.Name, pc.DeckKey)
		}
		out = append(out, PlacedCard{Card: NewCard(pc.Card.Name, pc.Card.Art), DeckKey: pc.DeckKey})
	}
	return out, nil
}
