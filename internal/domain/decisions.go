package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DecisionKind is the deck-order change an observer is asked to approve.
type DecisionKind string

const (
	DecisionMoveToBottom      DecisionKind = "move_to_bottom"
	DecisionDestroyAndReplace DecisionKind = "destroy_and_replace"
)

// ParseDecisionKind accepts the wire names of decision kinds.
func ParseDecisionKind(s string) (DecisionKind, error) {
	switch k := DecisionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case DecisionMoveToBottom, DecisionDestroyAndReplace:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDecisionKind, s)
}

// Offerable reports whether a decision of this kind may be offered for card.
// Peeks that cannot be offered are informational only.
func (k DecisionKind) Offerable(card Card) bool {
	switch k {
	case DecisionMoveToBottom:
		return !card.Is(KindBlackSwan) && !card.Is(KindPowerOverwhelming)
	case DecisionDestroyAndReplace:
		return !card.Is(KindThereBeDragons)
	}
	return false
}

// Choice is an observer's answer to a decision.
type Choice string

const (
	ChoiceYes Choice = "yes"
	ChoiceNo  Choice = "no"
)

func ParseChoice(s string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceYes, ChoiceNo:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
}

// HandleState is the lifecycle state of a decision handle.
type HandleState string

const (
	HandleOpen           HandleState = "open"
	HandleResolved       HandleState = "resolved"
	HandleForciblyClosed HandleState = "forcibly_closed"
)

// Outcome describes what resolving a handle did to the deck.
type Outcome string

const (
	OutcomeApplied            Outcome = "applied"
	OutcomeDeclined           Outcome = "declined"
	OutcomeAlreadyPerformed   Outcome = "already_performed"
	OutcomeStale              Outcome = "stale"
	OutcomeReplacementMissing Outcome = "replacement_missing"
)

// Decision is a pending choice about the top card of one deck. Several
// observers may hold handles to the same decision; its action runs at most once.
type Decision struct {
	DeckKey   string
	Kind      DecisionKind
	Card      Card
	Performed bool

	handles    map[string]struct{}
	superseded bool
}

// Handle is one observer's reference to a decision.
type Handle struct {
	ID       string
	DeckKey  string
	Observer string
	Kind     DecisionKind
	Card     Card
	State    HandleState

	decision *Decision
}

// Resolution reports the result of resolving one handle.
type Resolution struct {
	Handle      Handle
	Choice      Choice
	Outcome     Outcome
	Replacement *Card
}

// DecisionBook tracks the pending decisions of one game. It does no locking;
// callers serialize access together with the game it belongs to.
type DecisionBook struct {
	pending map[string]*Decision
	handles map[string]*Handle
}

func NewDecisionBook() *DecisionBook {
	return &DecisionBook{
		pending: make(map[string]*Decision),
		handles: make(map[string]*Handle),
	}
}

// Handle returns an open handle by id.
func (b *DecisionBook) Handle(handleID string) (Handle, bool) {
	h, ok := b.handles[handleID]
	if !ok {
		return Handle{}, false
	}
	return *h, true
}

// Pending returns the open decision for a deck, if any.
func (b *DecisionBook) Pending(deckKey string) (Decision, bool) {
	d, ok := b.pending[deckKey]
	if !ok {
		return Decision{}, false
	}
	return *d, true
}

// OpenHandles returns the number of handles awaiting an answer.
func (b *DecisionBook) OpenHandles() int {
	return len(b.handles)
}

// Offer attaches a new handle for observer to the deck's pending decision,
// creating the decision when none exists for this card. A pending decision
// about a different card is superseded; its handles can still be answered
// but their action no longer applies. Asking for another kind of decision
// about the card already pending returns ErrDecisionConflict and leaves the
// open handles untouched.
func (b *DecisionBook) Offer(deckKey string, kind DecisionKind, card Card, observer, handleID string) (Handle, bool, error) {
	d, reused := b.pending[deckKey]
	if reused && !d.Card.Same(card) {
		d.superseded = true
		reused = false
	}
	if reused && d.Kind != kind {
		return Handle{}, false, fmt.Errorf("%w: %s is pending on %s", ErrDecisionConflict, d.Kind, deckKey)
	}
	if !reused {
		d = &Decision{
			DeckKey: deckKey,
			Kind:    kind,
			Card:    card,
			handles: make(map[string]struct{}),
		}
		b.pending[deckKey] = d
	}

	h := &Handle{
		ID:       handleID,
		DeckKey:  deckKey,
		Observer: observer,
		Kind:     kind,
		Card:     card,
		State:    HandleOpen,
		decision: d,
	}
	d.handles[handleID] = struct{}{}
	b.handles[handleID] = h
	return *h, reused, nil
}

// Resolve answers a handle. A yes re-checks that the deck's top card is
// still the one the decision was offered for; if not, nothing moves and
// ErrDecisionStale is returned alongside the resolution.
func (b *DecisionBook) Resolve(g *Game, handleID string, choice Choice) (Resolution, error) {
	h, ok := b.handles[handleID]
	if !ok {
		return Resolution{}, ErrDecisionClosed
	}
	d := h.decision

	delete(b.handles, handleID)
	delete(d.handles, handleID)
	if len(d.handles) == 0 && b.pending[d.DeckKey] == d {
		delete(b.pending, d.DeckKey)
	}
	h.State = HandleResolved
	res := Resolution{Handle: *h, Choice: choice}

	switch {
	case choice != ChoiceYes:
		res.Outcome = OutcomeDeclined
		return res, nil
	case d.Performed:
		res.Outcome = OutcomeAlreadyPerformed
		return res, nil
	}

	draw, ok := g.Draw[d.DeckKey]
	if !ok {
		res.Outcome = OutcomeStale
		return res, ErrDecisionStale
	}
	top, ok := draw.Top()
	if d.superseded || !ok || !top.Same(d.Card) {
		res.Outcome = OutcomeStale
		return res, ErrDecisionStale
	}

	draw.Pop()
	d.Performed = true
	switch d.Kind {
	case DecisionMoveToBottom:
		draw.InsertBottom(top)
		res.Outcome = OutcomeApplied
	case DecisionDestroyAndReplace:
		if dragon, found := g.findDragon(d.DeckKey); found {
			draw.Push(dragon)
			res.Replacement = &dragon
			res.Outcome = OutcomeApplied
		} else {
			res.Outcome = OutcomeReplacementMissing
		}
	}
	return res, nil
}

// findDragon looks for There be Dragons! in the draw pile, then the discard pile.
func (g *Game) findDragon(deckKey string) (Card, bool) {
	for _, p := range []*Pile{g.Draw[deckKey], g.Discard[deckKey]} {
		if i := p.Find(KindThereBeDragons); i >= 0 {
			return (*p)[i], true
		}
	}
	return Card{}, false
}

// CloseAll force-closes every open handle and drops all pending decisions.
// The closed handles are returned ordered by deck, then handle id.
func (b *DecisionBook) CloseAll() []Handle {
	closed := make([]Handle, 0, len(b.handles))
	for _, h := range b.handles {
		h.State = HandleForciblyClosed
		closed = append(closed, *h)
	}
	sort.Slice(closed, func(i, j int) bool {
		if closed[i].DeckKey != closed[j].DeckKey {
			return closed[i].DeckKey < closed[j].DeckKey
		}
		return closed[i].ID < closed[j].ID
	})
	b.handles = make(map[string]*Handle)
	b.pending = make(map[string]*Decision)
	return closed
}
