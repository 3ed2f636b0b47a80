package domain

import (
	"math/rand"
	"reflect"
	"testing"
)

func cards(names ...string) []Card {
	out := make([]Card, 0, len(names))
	for _, n := range names {
		out = append(out, NewCard(n, ""))
	}
	return out
}

func testDecks() []Deck {
	return []Deck{
		{Key: "events", Name: "Events", Type: DeckEvent, Cards: cards(NameCalmsOfSummer, "Storm", "Fog", NameBlackSwan, NameEndIsNigh, NameTimesUp)},
		{Key: "dragons", Name: "Dragons", Type: DeckDragon, Cards: cards(NameMistyMountainsCold, NameThereBeDragons, "Wyrm", "Drake")},
		{Key: "seas", Name: "Seas", Type: DeckSea, Cards: cards("Calm Sea", "Rough Sea", "Reef", "Fog Bank", "Whirlpool")},
		{Key: "ends", Name: "Ends", Type: DeckEnd, Cards: cards("Finale", "Epilogue")},
	}
}

func newTestGame(t *testing.T, decks []Deck, seed int64) *Game {
	t.Helper()
	g, err := NewGame(decks, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("NewGame error: %v", err)
	}
	return g
}

// stack reorders a draw pile so that names sit on top, first name topmost.
// Every name must already be in the draw pile.
func stack(t *testing.T, g *Game, deckKey string, names ...string) {
	t.Helper()
	draw := g.Draw[deckKey]
	var top []Card
	for _, n := range names {
		i := draw.Find(KindOf(n))
		if KindOf(n) == KindPlain {
			i = -1
			for j := range *draw {
				if (*draw)[j].Name == n {
					i = j
					break
				}
			}
		}
		if i < 0 {
			t.Fatalf("card %q not in draw pile of %s", n, deckKey)
		}
		top = append(top, draw.RemoveAt(i))
	}
	for i := len(top) - 1; i >= 0; i-- {
		draw.Push(top[i])
	}
}

func names(cards []Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Name)
	}
	return out
}

func assertConserved(t *testing.T, g *Game, decks []Deck) {
	t.Helper()
	for _, d := range decks {
		if got := g.Count(d.Key); got != len(d.Cards) {
			t.Fatalf("deck %s accounts for %d cards, want %d", d.Key, got, len(d.Cards))
		}
	}
}

func assertNames(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s = %v, want %v", what, got, want)
	}
}
