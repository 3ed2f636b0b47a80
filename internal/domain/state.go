package domain

import "math/rand"

// Game holds the authoritative state of one game session: the piles of every
// deck in use, the cards on the table and the turn counter.
type Game struct {
	Decks   []DeckRef
	Draw    map[string]*Pile
	Discard map[string]*Pile
	Turn    int

	// InPlay holds the cards drawn this turn, CarryOver the cards that
	// re-enter play at the start of the next reveal phase.
	InPlay    []PlacedCard
	CarryOver []PlacedCard

	// KeepInPlay is set by The End is Nigh!; EndAfterTurn by Time's Up!.
	KeepInPlay   bool
	EndAfterTurn bool

	rng *rand.Rand
}

// Deck returns the game's deck with the given key.
func (g *Game) Deck(key string) (DeckRef, bool) {
	for _, d := range g.Decks {
		if d.Key == key {
			return d, true
		}
	}
	return DeckRef{}, false
}

// DeckOfType returns the game's deck of type t.
func (g *Game) DeckOfType(t DeckType) (DeckRef, bool) {
	for _, d := range g.Decks {
		if d.Type == t {
			return d, true
		}
	}
	return DeckRef{}, false
}

// Count returns how many cards of a deck the game currently accounts for
// across its draw pile, discard pile and the table.
func (g *Game) Count(deckKey string) int {
	n := g.Draw[deckKey].Len() + g.Discard[deckKey].Len()
	for _, pc := range g.InPlay {
		if pc.DeckKey == deckKey {
			n++
		}
	}
	for _, pc := range g.CarryOver {
		if pc.DeckKey == deckKey {
			n++
		}
	}
	return n
}

// discard moves a placed card onto its deck's discard pile.
func (g *Game) discard(pc PlacedCard) {
	g.Discard[pc.DeckKey].Push(pc.Card)
}

// removeInPlay takes one occurrence of pc off the table.
func (g *Game) removeInPlay(pc PlacedCard) bool {
	for i := len(g.InPlay) - 1; i >= 0; i-- {
		if g.InPlay[i].DeckKey == pc.DeckKey && g.InPlay[i].Card.Same(pc.Card) {
			g.InPlay = append(g.InPlay[:i], g.InPlay[i+1:]...)
			return true
		}
	}
	return false
}
