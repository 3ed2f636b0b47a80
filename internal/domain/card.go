package domain

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CardKind tags a card with the rule it triggers when revealed.
type CardKind int

const (
	KindPlain CardKind = iota
	KindEndIsNigh
	KindTimesUp
	KindBlackSwan
	KindPowerOverwhelming
	KindThereBeDragons
	KindCalmsOfSummer
	KindMistyMountainsCold
)

// Display names of the cards with special handling.
const (
	NameEndIsNigh          = "The End is Nigh!"
	NameTimesUp            = "Time's Up!"
	NameBlackSwan          = "Black Swan"
	NamePowerOverwhelming  = "Power Overwhelming"
	NameThereBeDragons     = "There be Dragons!"
	NameCalmsOfSummer      = "Calms of Summer"
	NameMistyMountainsCold = "The Misty Mountains Cold"
)

var specialKinds = map[string]CardKind{
	CanonicalName(NameEndIsNigh):          KindEndIsNigh,
	CanonicalName(NameTimesUp):            KindTimesUp,
	CanonicalName(NameBlackSwan):          KindBlackSwan,
	CanonicalName(NamePowerOverwhelming):  KindPowerOverwhelming,
	CanonicalName(NameThereBeDragons):     KindThereBeDragons,
	CanonicalName(NameCalmsOfSummer):      KindCalmsOfSummer,
	CanonicalName(NameMistyMountainsCold): KindMistyMountainsCold,
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// CanonicalName folds a card name so that case, width, curly quotes and
// repeated whitespace do not affect comparisons.
func CanonicalName(name string) string {
	s := norm.NFKC.String(name)
	s = apostrophes.Replace(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// KindOf looks up the special-card kind for a display name.
func KindOf(name string) CardKind {
	return specialKinds[CanonicalName(name)]
}

// Card is a card template or instance. Two cards are the same card when
// their name and art reference match.
type Card struct {
	Name string   `json:"name" yaml:"name"`
	Art  string   `json:"image,omitempty" yaml:"image,omitempty"`
	Kind CardKind `json:"-" yaml:"-"`
}

// NewCard builds a card and resolves its kind once.
func NewCard(name, art string) Card {
	name = strings.TrimSpace(name)
	return Card{Name: name, Art: art, Kind: KindOf(name)}
}

// Same reports whether two cards are structurally equal.
func (c Card) Same(other Card) bool {
	return c.Name == other.Name && c.Art == other.Art
}

func (c Card) Is(kind CardKind) bool {
	return c.Kind == kind
}

// UnmarshalJSON restores the kind, which is not part of the wire format.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name string `json:"name"`
		Art  string `json:"image"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = NewCard(raw.Name, raw.Art)
	return nil
}

// PlacedCard is a card on the table together with the deck it belongs to.
type PlacedCard struct {
	Card    Card   `json:"card" yaml:"card"`
	DeckKey string `json:"deck" yaml:"deck"`
}

// CardNames lists display names in order.
func CardNames(cards []PlacedCard) []string {
	out := make([]string, 0, len(cards))
	for _, pc := range cards {
		out = append(out, pc.Card.Name)
	}
	return out
}
