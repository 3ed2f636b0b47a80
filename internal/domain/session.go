package domain

import (
	"fmt"
	"math/rand"
)

// NewGame sets up a game from one deck of each required type. Every draw pile
// is a fresh copy of its deck, shuffled independently. No randomness is
// consumed when the deck set is rejected.
func NewGame(decks []Deck, rng *rand.Rand) (*Game, error) {
	if err := ValidateDeckSet(decks); err != nil {
		return nil, err
	}
	g := &Game{
		Decks:   make([]DeckRef, 0, len(decks)),
		Draw:    make(map[string]*Pile, len(decks)),
		Discard: make(map[string]*Pile, len(decks)),
		Turn:    1,
		rng:     rng,
	}
	for _, d := range decks {
		draw := Pile(append([]Card(nil), d.Cards...))
		draw.Shuffle(rng)
		g.Decks = append(g.Decks, d.Ref())
		g.Draw[d.Key] = &draw
		g.Discard[d.Key] = &Pile{}
	}
	return g, nil
}

// ActiveDecks returns the decks drawn from on the current turn.
func (g *Game) ActiveDecks() []DeckRef {
	var out []DeckRef
	for _, d := range g.Decks {
		if from := d.Type.ActiveFrom(); from > 0 && g.Turn >= from {
			out = append(out, d)
		}
	}
	return out
}

// MissingCard names a card the first turn expected but the deck lacks.
type MissingCard struct {
	DeckKey string
	Name    string
}

// RevealResult is the outcome of one reveal phase.
type RevealResult struct {
	Drawn            []PlacedCard
	BlackSwanPending bool
	Missing          []MissingCard
	Exhausted        []string
}

// Reveal runs the reveal phase of the current turn: carried-over cards
// re-enter play, then each active deck contributes its card. On the first
// turn the event and dragon decks contribute fixed opening cards instead of
// random draws.
func (g *Game) Reveal() RevealResult {
	var res RevealResult

	for _, pc := range g.CarryOver {
		res.Drawn = append(res.Drawn, pc)
		g.InPlay = append(g.InPlay, pc)
		if pc.Card.Is(KindBlackSwan) {
			res.BlackSwanPending = true
		}
	}
	g.CarryOver = nil

	if g.Turn == 1 {
		g.revealOpening(&res)
		return res
	}

	for _, d := range g.ActiveDecks() {
		draw := g.Draw[d.Key]
		if draw.Len() == 0 {
			g.Reshuffle(d.Key)
		}
		card, ok := draw.Pop()
		if !ok {
			res.Exhausted = append(res.Exhausted, d.Key)
			continue
		}
		pc := PlacedCard{Card: card, DeckKey: d.Key}
		res.Drawn = append(res.Drawn, pc)
		g.InPlay = append(g.InPlay, pc)
		if d.Type == DeckEvent && card.Is(KindBlackSwan) {
			res.BlackSwanPending = true
		}
	}
	return res
}

var openingCards = []struct {
	deckType DeckType
	kind     CardKind
	name     string
}{
	{DeckEvent, KindCalmsOfSummer, NameCalmsOfSummer},
	{DeckDragon, KindMistyMountainsCold, NameMistyMountainsCold},
}

func (g *Game) revealOpening(res *RevealResult) {
	for _, oc := range openingCards {
		d, ok := g.DeckOfType(oc.deckType)
		if !ok {
			continue
		}
		draw := g.Draw[d.Key]
		i := draw.Find(oc.kind)
		if i < 0 {
			res.Missing = append(res.Missing, MissingCard{DeckKey: d.Key, Name: oc.name})
			continue
		}
		pc := PlacedCard{Card: draw.RemoveAt(i), DeckKey: d.Key}
		res.Drawn = append(res.Drawn, pc)
		g.InPlay = append(g.InPlay, pc)
	}
}

// CloseTurn ends the current turn. With KeepInPlay set, every card on the
// table except The End is Nigh! carries over; otherwise the table is
// discarded. The turn counter always advances by one.
func (g *Game) CloseTurn() {
	for _, pc := range g.InPlay {
		if g.KeepInPlay && !pc.Card.Is(KindEndIsNigh) {
			g.CarryOver = append(g.CarryOver, pc)
			continue
		}
		g.discard(pc)
	}
	g.InPlay = nil
	g.KeepInPlay = false
	g.Turn++
}

// Reshuffle moves a deck's discard pile into its draw pile and shuffles it.
func (g *Game) Reshuffle(deckKey string) {
	draw, discard := g.Draw[deckKey], g.Discard[deckKey]
	draw.Push(discard.TakeAll()...)
	draw.Shuffle(g.rng)
}

// PeekTop returns the top card of a deck's draw pile without drawing it.
// An empty draw pile is rebuilt first from the discard pile and the deck's
// cards on the table.
func (g *Game) PeekTop(deckKey string) (Card, error) {
	draw, ok := g.Draw[deckKey]
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrDeckNotFound, deckKey)
	}
	if card, ok := draw.Top(); ok {
		return card, nil
	}

	draw.Push(g.Discard[deckKey].TakeAll()...)
	kept := g.InPlay[:0]
	for _, pc := range g.InPlay {
		if pc.DeckKey == deckKey {
			draw.Push(pc.Card)
			continue
		}
		kept = append(kept, pc)
	}
	g.InPlay = kept
	draw.Shuffle(g.rng)

	card, ok := draw.Top()
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrPileExhausted, deckKey)
	}
	return card, nil
}
