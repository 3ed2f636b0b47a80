package domain

import "math/rand"

// Pile is an ordered stack of cards. The top of the pile is the last element.
type Pile []Card

func (p Pile) Len() int { return len(p) }

// Top returns the top card without removing it.
func (p Pile) Top() (Card, bool) {
	if len(p) == 0 {
		return Card{}, false
	}
	return p[len(p)-1], true
}

// Push places c on top.
func (p *Pile) Push(c ...Card) {
	*p = append(*p, c...)
}

// Pop removes and returns the top card.
func (p *Pile) Pop() (Card, bool) {
	n := len(*p)
	if n == 0 {
		return Card{}, false
	}
	c := (*p)[n-1]
	*p = (*p)[:n-1]
	return c, true
}

// InsertBottom places c under every other card.
func (p *Pile) InsertBottom(c Card) {
	*p = append(Pile{c}, *p...)
}

// Find returns the index of the card closest to the top with the given kind, or -1.
func (p Pile) Find(kind CardKind) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Kind == kind {
			return i
		}
	}
	return -1
}

// RemoveAt removes and returns the card at index i.
func (p *Pile) RemoveAt(i int) Card {
	c := (*p)[i]
	*p = append((*p)[:i], (*p)[i+1:]...)
	return c
}

// TakeAll empties the pile and returns its former contents.
func (p *Pile) TakeAll() []Card {
	out := *p
	*p = nil
	return out
}

// Shuffle permutes the pile uniformly at random.
func (p Pile) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
}

// Cards returns a copy of the pile contents, bottom first.
func (p Pile) Cards() []Card {
	return append([]Card(nil), p...)
}
