package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"dragonsea/internal/domain"
)

var (
	// ErrEmptySessionKey is returned when a session is created without a key.
	ErrEmptySessionKey = errors.New("session key is required")
	// ErrTokensDisabled is returned when a token is presented to a service
	// that issues none.
	ErrTokensDisabled = errors.New("decision tokens are not enabled")
)

// DeckLookup resolves catalog decks by key.
type DeckLookup interface {
	// Lookup returns a copy of the deck stored under key.
	Lookup(key string) (domain.Deck, error)
}

// Service runs Dragon Sea sessions: it owns the registry of live games and
// serializes all work on a session under that session's lock.
type Service struct {
	decks    DeckLookup
	registry *Registry
	tokens   *TokenService

	rngMu sync.Mutex
	rng   *rand.Rand

	newID      func() string
	showPhases bool
}

// Option configures a Service.
type Option func(*Service)

// WithTokens makes OfferDecision sign a token for every handle it issues.
func WithTokens(tokens *TokenService) Option {
	return func(s *Service) { s.tokens = tokens }
}

// WithPhaseMessages announces every turn phase in turn results.
func WithPhaseMessages(show bool) Option {
	return func(s *Service) { s.showPhases = show }
}

// WithIDGenerator overrides how decision handle ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(decks DeckLookup, rng *rand.Rand, opts ...Option) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Service{
		decks:    decks,
		registry: NewRegistry(),
		rng:      rng,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the live sessions.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Tokens returns the decision token service, or nil when none is configured.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// HandleRef addresses a decision handle inside a session.
type HandleRef struct {
	SessionKey string `json:"session"`
	ID         string `json:"id"`
}

// TurnResult summarizes the reveal phase of one turn.
type TurnResult struct {
	SessionKey string               `json:"session"`
	Turn       int                  `json:"turn"`
	Drawn      []domain.PlacedCard  `json:"drawn"`
	Redrawn    []domain.PlacedCard  `json:"redrawn,omitempty"`
	Effects    []domain.Effect      `json:"-"`
	Missing    []domain.MissingCard `json:"-"`
	Exhausted  []string             `json:"exhausted,omitempty"`
	Phases     []domain.Phase       `json:"-"`
	Piles      []domain.PileSize    `json:"piles"`
}

// Offer is the answer to a peek that asked for a decision.
type Offer struct {
	SessionKey string              `json:"session"`
	DeckKey    string              `json:"deck"`
	Card       domain.Card         `json:"card"`
	Kind       domain.DecisionKind `json:"kind"`
	Handle     HandleRef           `json:"handle"`
	Token      string              `json:"token,omitempty"`
	// Informational is set when the card cannot be the subject of this kind
	// of decision; no handle is issued.
	Informational bool `json:"informational"`
	Reused        bool `json:"reused"`
}

// Status is a read-only view of a session.
type Status struct {
	SessionKey    string            `json:"session"`
	Turn          int               `json:"turn"`
	ActiveDecks   []domain.DeckRef  `json:"active_decks"`
	Piles         []domain.PileSize `json:"piles"`
	InPlay        []string          `json:"in_play"`
	CarryOver     []string          `json:"carry_over"`
	EndAfterTurn  bool              `json:"end_after_turn"`
	KeepInPlay    bool              `json:"keep_in_play"`
	OpenDecisions int               `json:"open_decisions"`
}

// CreateSession starts a game under key from the given catalog decks and plays
// the first turn's reveal phase.
func (s *Service) CreateSession(ctx context.Context, key string, deckKeys []string) (TurnResult, []Event, error) {
	if err := ctx.Err(); err != nil {
		return TurnResult{}, nil, err
	}
	if key == "" {
		return TurnResult{}, nil, ErrEmptySessionKey
	}
	if s.registry.has(key) {
		return TurnResult{}, nil, fmt.Errorf("%w: %s", domain.ErrSessionAlreadyExists, key)
	}
	decks, err := s.lookupDecks(deckKeys)
	if err != nil {
		return TurnResult{}, nil, err
	}
	if err := domain.ValidateDeckSet(decks); err != nil {
		return TurnResult{}, nil, err
	}

	game, err := domain.NewGame(decks, s.tableRNG())
	if err != nil {
		return TurnResult{}, nil, err
	}
	t := &table{key: key, game: game, decisions: domain.NewDecisionBook()}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := s.registry.insert(t); err != nil {
		return TurnResult{}, nil, err
	}

	events := []Event{{
		Kind:    EventSessionStarted,
		Payload: SessionStartedPayload{Decks: game.Decks},
	}}
	result, turnEvents := s.playReveal(t)
	return result, append(events, turnEvents...), nil
}

// EndSession closes a session immediately. Open decisions are force-closed.
func (s *Service) EndSession(ctx context.Context, key string) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	events := s.closeDecisions(t)
	t.closed = true
	s.registry.remove(t)
	events = append(events, Event{
		Kind:    EventSessionEnded,
		Payload: SessionEndedPayload{Turn: t.game.Turn},
	})
	return events, nil
}

// AdvanceTurn ends the current turn and plays the next reveal phase. When the
// previous turn triggered the end of the game the session is closed instead
// and ErrGameAlreadyOver is returned together with the closing events.
func (s *Service) AdvanceTurn(ctx context.Context, key string) (TurnResult, []Event, error) {
	if err := ctx.Err(); err != nil {
		return TurnResult{}, nil, err
	}
	t, err := s.lookup(key)
	if err != nil {
		return TurnResult{}, nil, err
	}
	defer t.mu.Unlock()

	events := s.closeDecisions(t)
	if t.game.EndAfterTurn {
		t.closed = true
		s.registry.remove(t)
		events = append(events, Event{
			Kind:    EventGameOver,
			Payload: GameOverPayload{Turn: t.game.Turn},
		})
		result := TurnResult{SessionKey: key, Turn: t.game.Turn, Piles: domain.PileSizes(t.game)}
		return result, events, fmt.Errorf("%w: %s", domain.ErrGameAlreadyOver, key)
	}

	t.game.CloseTurn()
	result, turnEvents := s.playReveal(t)
	return result, append(events, turnEvents...), nil
}

// Peek returns the top card of a session deck without drawing it.
func (s *Service) Peek(ctx context.Context, key, deckKey string) (domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return domain.Card{}, err
	}
	t, err := s.lookup(key)
	if err != nil {
		return domain.Card{}, err
	}
	defer t.mu.Unlock()
	return t.game.PeekTop(deckKey)
}

// OfferDecision peeks at a deck and asks observer whether the card should be
// moved or destroyed. Cards that cannot be the subject of kind produce an
// informational offer without a handle.
func (s *Service) OfferDecision(ctx context.Context, key, deckKey string, kind domain.DecisionKind, observer string) (Offer, []Event, error) {
	if err := ctx.Err(); err != nil {
		return Offer{}, nil, err
	}
	if _, err := domain.ParseDecisionKind(string(kind)); err != nil {
		return Offer{}, nil, err
	}
	t, err := s.lookup(key)
	if err != nil {
		return Offer{}, nil, err
	}
	defer t.mu.Unlock()

	card, err := t.game.PeekTop(deckKey)
	if err != nil {
		return Offer{}, nil, err
	}
	offer := Offer{SessionKey: key, DeckKey: deckKey, Card: card, Kind: kind}
	if !kind.Offerable(card) {
		offer.Informational = true
		return offer, nil, nil
	}

	h, reused, err := t.decisions.Offer(deckKey, kind, card, observer, s.newID())
	if err != nil {
		return Offer{}, nil, err
	}
	offer.Handle = HandleRef{SessionKey: key, ID: h.ID}
	offer.Reused = reused
	if s.tokens != nil {
		token, err := s.tokens.Issue(observer, offer.Handle, deckKey)
		if err != nil {
			return Offer{}, nil, fmt.Errorf("failed to issue decision token: %w", err)
		}
		offer.Token = token
	}

	events := []Event{{
		Kind: EventDecisionOffered,
		Payload: DecisionOfferedPayload{
			DeckKey:  deckKey,
			Kind:     kind,
			Card:     card,
			HandleID: h.ID,
			Token:    offer.Token,
		},
		Recipients: recipients(observer),
	}}
	return offer, events, nil
}

// ResolveDecision answers a decision handle on behalf of the server. A
// handle whose session or turn has ended reports ErrDecisionClosed. A stale
// yes returns the resolution together with ErrDecisionStale; nothing moves
// in that case.
func (s *Service) ResolveDecision(ctx context.Context, ref HandleRef, choice domain.Choice) (domain.Resolution, []Event, error) {
	return s.ResolveDecisionAs(ctx, ref, "", choice)
}

// ResolveDecisionAs answers a decision handle for caller, who must be the
// observer the handle was offered to. An empty caller is the server and may
// answer any handle.
func (s *Service) ResolveDecisionAs(ctx context.Context, ref HandleRef, caller string, choice domain.Choice) (domain.Resolution, []Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Resolution{}, nil, err
	}
	if _, err := domain.ParseChoice(string(choice)); err != nil {
		return domain.Resolution{}, nil, err
	}
	t, err := s.lookup(ref.SessionKey)
	if err != nil {
		if errors.Is(err, domain.ErrNoSuchSession) {
			return domain.Resolution{}, nil, fmt.Errorf("%w: %s", domain.ErrDecisionClosed, ref.ID)
		}
		return domain.Resolution{}, nil, err
	}
	defer t.mu.Unlock()

	if h, ok := t.decisions.Handle(ref.ID); ok && caller != "" && caller != h.Observer {
		return domain.Resolution{}, nil, fmt.Errorf("%w: %s", domain.ErrNotObserver, ref.ID)
	}
	res, err := t.decisions.Resolve(t.game, ref.ID, choice)
	if err != nil && !errors.Is(err, domain.ErrDecisionStale) {
		return res, nil, err
	}
	events := []Event{{
		Kind: EventDecisionResolved,
		Payload: DecisionResolvedPayload{
			DeckKey:     res.Handle.DeckKey,
			Kind:        res.Handle.Kind,
			Card:        res.Handle.Card,
			Choice:      res.Choice,
			Outcome:     res.Outcome,
			Replacement: res.Replacement,
		},
		Recipients: recipients(res.Handle.Observer),
	}}
	return res, events, err
}

// ResolveToken answers the decision a signed token refers to.
func (s *Service) ResolveToken(ctx context.Context, token string, choice domain.Choice) (domain.Resolution, []Event, error) {
	if s.tokens == nil {
		return domain.Resolution{}, nil, ErrTokensDisabled
	}
	ref, err := s.tokens.Parse(token)
	if err != nil {
		return domain.Resolution{}, nil, err
	}
	return s.ResolveDecision(ctx, ref, choice)
}

// Status reports the state of a session.
func (s *Service) Status(ctx context.Context, key string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	t, err := s.lookup(key)
	if err != nil {
		return Status{}, err
	}
	defer t.mu.Unlock()

	g := t.game
	return Status{
		SessionKey:    key,
		Turn:          g.Turn,
		ActiveDecks:   g.ActiveDecks(),
		Piles:         domain.PileSizes(g),
		InPlay:        domain.CardNames(g.InPlay),
		CarryOver:     domain.CardNames(g.CarryOver),
		EndAfterTurn:  g.EndAfterTurn,
		KeepInPlay:    g.KeepInPlay,
		OpenDecisions: t.decisions.OpenHandles(),
	}, nil
}

// DeckForType returns the key of the session deck of type dt.
func (s *Service) DeckForType(key string, dt domain.DeckType) (string, error) {
	t, err := s.lookup(key)
	if err != nil {
		return "", err
	}
	defer t.mu.Unlock()
	d, ok := t.game.DeckOfType(dt)
	if !ok {
		return "", fmt.Errorf("%w: no %s deck in session %s", domain.ErrDeckNotFound, dt, key)
	}
	return d.Key, nil
}

// Label returns the match label payload of a session. Ended sessions report
// a closed label.
func (s *Service) Label(key string) domain.LabelPayload {
	t, err := s.lookup(key)
	if err != nil {
		return domain.ComputeLabel(key, nil)
	}
	defer t.mu.Unlock()
	return domain.ComputeLabel(key, t.game)
}

// Snapshot returns the persisted form of one session.
func (s *Service) Snapshot(key string) (domain.Snapshot, error) {
	t, err := s.lookup(key)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer t.mu.Unlock()
	return t.game.Snapshot(), nil
}

// Snapshots returns the persisted form of every live session.
func (s *Service) Snapshots() map[string]domain.Snapshot {
	out := make(map[string]domain.Snapshot)
	for _, key := range s.registry.Keys() {
		snap, err := s.Snapshot(key)
		if err != nil {
			continue
		}
		out[key] = snap
	}
	return out
}

// Restore registers a session rebuilt from a snapshot. Every deck the
// snapshot references must still be in the catalog; otherwise a
// MissingDecksError is returned and nothing is registered. Decisions are not
// persisted, so the restored session starts without any.
func (s *Service) Restore(ctx context.Context, key string, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		decks   []domain.Deck
		missing []string
	)
	for _, dk := range snap.DeckKeys {
		d, err := s.decks.Lookup(dk)
		if err != nil {
			missing = append(missing, dk)
			continue
		}
		decks = append(decks, d)
	}
	if len(missing) > 0 {
		return &domain.MissingDecksError{Keys: missing}
	}

	game, err := domain.RestoreGame(snap, decks, s.tableRNG())
	if err != nil {
		return err
	}
	return s.registry.insert(&table{key: key, game: game, decisions: domain.NewDecisionBook()})
}

// lookup returns the session's table locked. Callers unlock it.
func (s *Service) lookup(key string) (*table, error) {
	t, err := s.registry.get(key)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSuchSession, key)
	}
	return t, nil
}

func (s *Service) lookupDecks(keys []string) ([]domain.Deck, error) {
	var (
		decks   []domain.Deck
		missing []string
	)
	for _, k := range keys {
		d, err := s.decks.Lookup(k)
		if errors.Is(err, domain.ErrDeckNotFound) {
			missing = append(missing, k)
			continue
		}
		if err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	if len(missing) > 0 {
		return nil, &domain.MissingDecksError{Keys: missing}
	}
	return decks, nil
}

// tableRNG derives an independent generator for one session so sessions
// never share rand state across goroutines.
func (s *Service) tableRNG() *rand.Rand {
	s.rngMu.Lock()
	seed := s.rng.Int63()
	s.rngMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (s *Service) closeDecisions(t *table) []Event {
	closed := t.decisions.CloseAll()
	events := make([]Event, 0, len(closed))
	for _, h := range closed {
		events = append(events, Event{
			Kind: EventDecisionClosed,
			Payload: DecisionClosedPayload{
				DeckKey:  h.DeckKey,
				Card:     h.Card,
				HandleID: h.ID,
				Turn:     t.game.Turn,
			},
			Recipients: recipients(h.Observer),
		})
	}
	return events
}

// playReveal runs the reveal phase of the table's current turn and resolves
// the special cards it produced.
func (s *Service) playReveal(t *table) (TurnResult, []Event) {
	g := t.game
	reveal := g.Reveal()
	resolved := g.ResolveReveal(reveal)

	result := TurnResult{
		SessionKey: t.key,
		Turn:       g.Turn,
		Drawn:      reveal.Drawn,
		Redrawn:    resolved.Redrawn,
		Effects:    resolved.Effects,
		Missing:    reveal.Missing,
		Exhausted:  append(append([]string(nil), reveal.Exhausted...), resolved.Exhausted...),
		Piles:      domain.PileSizes(g),
	}
	if s.showPhases {
		result.Phases = domain.TurnPhases
	}

	events := []Event{
		{
			Kind: EventTurnAdvanced,
			Payload: TurnAdvancedPayload{
				Turn:        g.Turn,
				ActiveDecks: g.ActiveDecks(),
				Phases:      phaseNames(result.Phases),
			},
		},
		{
			Kind:    EventCardsRevealed,
			Payload: CardsRevealedPayload{Turn: g.Turn, Cards: reveal.Drawn},
		},
	}
	for _, m := range reveal.Missing {
		events = append(events, Event{
			Kind:    EventSpecialCardMissing,
			Payload: SpecialCardMissingPayload{DeckKey: m.DeckKey, Card: m.Name},
		})
	}
	for _, key := range result.Exhausted {
		events = append(events, Event{
			Kind:    EventDeckExhausted,
			Payload: DeckExhaustedPayload{DeckKey: key},
		})
	}

	swanRedraws := make(map[string][]domain.PlacedCard)
	for _, pc := range resolved.Redrawn {
		swanRedraws[pc.DeckKey] = append(swanRedraws[pc.DeckKey], pc)
	}
	announced := make(map[string]bool)
	for _, eff := range resolved.Effects {
		pc := domain.PlacedCard{Card: eff.Card, DeckKey: eff.DeckKey}
		switch eff.Kind {
		case domain.EffectKeepInPlay:
			events = append(events, Event{Kind: EventKeepInPlay, Payload: KeepInPlayPayload{Card: pc}})
		case domain.EffectEndAfterTurn:
			events = append(events, Event{Kind: EventEndAfterTurn, Payload: EndAfterTurnPayload{Card: pc}})
		case domain.EffectBlackSwan:
			if announced[eff.DeckKey] {
				continue
			}
			announced[eff.DeckKey] = true
			events = append(events, Event{
				Kind:    EventBlackSwan,
				Payload: BlackSwanPayload{DeckKey: eff.DeckKey, Redrawn: swanRedraws[eff.DeckKey]},
			})
		}
	}
	return result, events
}

func phaseNames(phases []domain.Phase) []string {
	if len(phases) == 0 {
		return nil
	}
	out := make([]string, 0, len(phases))
	for _, p := range phases {
		out = append(out, fmt.Sprintf("Phase %d: %s", p.Number, p.Name))
	}
	return out
}

func recipients(userID string) []string {
	if userID == "" {
		return nil
	}
	return []string{userID}
}
