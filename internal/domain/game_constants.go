package domain

// Phase is one step of a turn.
type Phase struct {
	Number      int
	Name        string
	Implemented bool
}

// TurnPhases lists the phases of a turn in order. Only the reveal phase has
// rules; the others are announced but do nothing.
var TurnPhases = []Phase{
	{Number: 1, Name: "Protector Ranking"},
	{Number: 2, Name: "Reveal Cards", Implemented: true},
	{Number: 3, Name: "Negotiation and Orders"},
	{Number: 4, Name: "Execute Orders"},
	{Number: 5, Name: "Trading"},
	{Number: 6, Name: "Consolidation"},
}
