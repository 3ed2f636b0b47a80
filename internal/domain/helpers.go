package domain

// LabelPayload is advertised as the label of a session's table match.
type LabelPayload struct {
	Game    string `json:"game"`
	Session string `json:"session"`
	Turn    int    `json:"turn"`
	Open    bool   `json:"open"`
}

// ComputeLabel derives the advertised label for a session. A nil game means
// the session has ended.
func ComputeLabel(sessionKey string, g *Game) LabelPayload {
	label := LabelPayload{Game: "dragonsea", Session: sessionKey}
	if g != nil {
		label.Turn = g.Turn
		label.Open = true
	}
	return label
}

// PileSizes reports draw and discard pile sizes per deck, in game deck order.
func PileSizes(g *Game) []PileSize {
	out := make([]PileSize, 0, len(g.Decks))
	for _, d := range g.Decks {
		out = append(out, PileSize{
			Deck:    d,
			Draw:    g.Draw[d.Key].Len(),
			Discard: g.Discard[d.Key].Len(),
		})
	}
	return out
}

// PileSize is the size of one deck's piles.
type PileSize struct {
	Deck    DeckRef `json:"deck"`
	Draw    int     `json:"draw"`
	Discard int     `json:"discard"`
}
