package domain

// EffectKind identifies a special-card effect applied during a reveal phase.
type EffectKind string

const (
	EffectKeepInPlay   EffectKind = "keep_in_play"
	EffectEndAfterTurn EffectKind = "end_after_turn"
	EffectBlackSwan    EffectKind = "black_swan"
)

// Effect records one applied effect and the card that caused it.
type Effect struct {
	Kind    EffectKind
	Card    Card
	DeckKey string
	// Discarded is set for Black Swans that left the table immediately.
	Discarded bool
}

// ResolveResult is what the resolver did to the game.
type ResolveResult struct {
	Effects []Effect
	// Redrawn lists the cards drawn by Black Swan reshuffles, in order.
	Redrawn   []PlacedCard
	Exhausted []string
}

// ResolveSpecials applies the effects of the cards drawn in a reveal phase,
// in fixed order: The End is Nigh!, Time's Up!, then Black Swan. Each deck
// that produced a Black Swan is reshuffled and redrawn until a card other
// than Black Swan turns up or the deck runs out.
func (g *Game) ResolveSpecials(drawn []PlacedCard) ResolveResult {
	return g.resolveSpecials(drawn, false)
}

// ResolveReveal resolves the cards of a reveal phase. A pending Black Swan
// flagged by the reveal runs the loop on the event deck even when no swan
// is among the drawn cards.
func (g *Game) ResolveReveal(rev RevealResult) ResolveResult {
	return g.resolveSpecials(rev.Drawn, rev.BlackSwanPending)
}

func (g *Game) resolveSpecials(drawn []PlacedCard, swanPending bool) ResolveResult {
	var res ResolveResult

	for _, pc := range drawn {
		if pc.Card.Is(KindEndIsNigh) {
			g.KeepInPlay = true
			res.Effects = append(res.Effects, Effect{Kind: EffectKeepInPlay, Card: pc.Card, DeckKey: pc.DeckKey})
		}
	}
	for _, pc := range drawn {
		if pc.Card.Is(KindTimesUp) {
			g.EndAfterTurn = true
			res.Effects = append(res.Effects, Effect{Kind: EffectEndAfterTurn, Card: pc.Card, DeckKey: pc.DeckKey})
		}
	}

	var swanDecks []string
	seen := make(map[string]bool)
	for _, pc := range drawn {
		if !pc.Card.Is(KindBlackSwan) {
			continue
		}
		discarded := false
		if !g.KeepInPlay && g.removeInPlay(pc) {
			g.discard(pc)
			discarded = true
		}
		res.Effects = append(res.Effects, Effect{Kind: EffectBlackSwan, Card: pc.Card, DeckKey: pc.DeckKey, Discarded: discarded})
		if !seen[pc.DeckKey] {
			seen[pc.DeckKey] = true
			swanDecks = append(swanDecks, pc.DeckKey)
		}
	}

	if swanPending && len(swanDecks) == 0 {
		if d, ok := g.DeckOfType(DeckEvent); ok {
			swanDecks = append(swanDecks, d.Key)
		}
	}
	for _, key := range swanDecks {
		g.blackSwanLoop(key, &res)
	}
	return res
}

// blackSwanLoop reshuffles and redraws one deck until a card other than
// Black Swan is drawn. Black Swans drawn here that leave the table are held
// back from the reshuffle until the loop ends, so each pass draws a card
// the loop has not drawn before.
func (g *Game) blackSwanLoop(deckKey string, res *ResolveResult) {
	var setAside []Card
	defer func() {
		g.Discard[deckKey].Push(setAside...)
	}()

	for {
		g.Reshuffle(deckKey)
		card, ok := g.Draw[deckKey].Pop()
		if !ok {
			res.Exhausted = append(res.Exhausted, deckKey)
			return
		}
		pc := PlacedCard{Card: card, DeckKey: deckKey}
		res.Redrawn = append(res.Redrawn, pc)
		if !card.Is(KindBlackSwan) {
			g.InPlay = append(g.InPlay, pc)
			return
		}
		if g.KeepInPlay {
			g.InPlay = append(g.InPlay, pc)
		} else {
			setAside = append(setAside, card)
		}
		res.Effects = append(res.Effects, Effect{Kind: EffectBlackSwan, Card: card, DeckKey: deckKey, Discarded: !g.KeepInPlay})
	}
}
