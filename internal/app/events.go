package app

import "dragonsea/internal/domain"

// EventKind identifies emitted domain events for Nakama dispatch.
type EventKind string

const (
	EventSessionStarted     EventKind = "session_started"
	EventTurnAdvanced       EventKind = "turn_advanced"
	EventCardsRevealed      EventKind = "cards_revealed"
	EventSpecialCardMissing EventKind = "special_card_missing"
	EventDeckExhausted      EventKind = "deck_exhausted"
	EventKeepInPlay         EventKind = "keep_in_play"
	EventEndAfterTurn       EventKind = "end_after_turn"
	EventBlackSwan          EventKind = "black_swan"
	EventDecisionOffered    EventKind = "decision_offered"
	EventDecisionResolved   EventKind = "decision_resolved"
	EventDecisionClosed     EventKind = "decision_closed"
	EventGameOver           EventKind = "game_over"
	EventSessionEnded       EventKind = "session_ended"
)

// Event is a domain/app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means everyone watching the session
}

type SessionStartedPayload struct {
	Decks []domain.DeckRef `json:"decks"`
}

type TurnAdvancedPayload struct {
	Turn        int              `json:"turn"`
	ActiveDecks []domain.DeckRef `json:"active_decks"`
	Phases      []string         `json:"phases,omitempty"`
}

type CardsRevealedPayload struct {
	Turn  int                 `json:"turn"`
	Cards []domain.PlacedCard `json:"cards"`
}

type SpecialCardMissingPayload struct {
	DeckKey string `json:"deck"`
	Card    string `json:"card"`
}

type DeckExhaustedPayload struct {
	DeckKey string `json:"deck"`
}

type KeepInPlayPayload struct {
	Card domain.PlacedCard `json:"card"`
}

type EndAfterTurnPayload struct {
	Card domain.PlacedCard `json:"card"`
}

type BlackSwanPayload struct {
	DeckKey string              `json:"deck"`
	Redrawn []domain.PlacedCard `json:"redrawn"`
}

type DecisionOfferedPayload struct {
	DeckKey  string              `json:"deck"`
	Kind     domain.DecisionKind `json:"kind"`
	Card     domain.Card         `json:"card"`
	HandleID string              `json:"handle_id"`
	Token    string              `json:"token,omitempty"`
}

type DecisionResolvedPayload struct {
	DeckKey     string              `json:"deck"`
	Kind        domain.DecisionKind `json:"kind"`
	Card        domain.Card         `json:"card"`
	Choice      domain.Choice       `json:"choice"`
	Outcome     domain.Outcome      `json:"outcome"`
	Replacement *domain.Card        `json:"replacement,omitempty"`
}

type DecisionClosedPayload struct {
	DeckKey  string      `json:"deck"`
	Card     domain.Card `json:"card"`
	HandleID string      `json:"handle_id"`
	Turn     int         `json:"turn"`
}

type GameOverPayload struct {
	Turn int `json:"turn"`
}

type SessionEndedPayload struct {
	Turn int `json:"turn"`
}
