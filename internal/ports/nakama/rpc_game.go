package nakama

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dragonsea/internal/app"
	"dragonsea/internal/domain"
	"dragonsea/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

type sessionRequest struct {
	Session string `json:"session"`
}

type gameStartRequest struct {
	Session string   `json:"session"`
	Decks   []string `json:"decks,omitempty"`
}

type peekRequest struct {
	Session  string `json:"session"`
	Deck     string `json:"deck"`
	Kind     string `json:"kind,omitempty"`
	Observer string `json:"observer,omitempty"`
}

type decisionResolveRequest struct {
	Token   string `json:"token,omitempty"`
	Session string `json:"session,omitempty"`
	Handle  string `json:"handle,omitempty"`
	Choice  string `json:"choice"`
}

// TurnResponse is returned by the RPCs that play a turn.
type TurnResponse struct {
	app.TurnResult
	Phases   []string `json:"phases,omitempty"`
	GameOver bool     `json:"game_over"`
}

type sessionListResponse struct {
	Sessions []string `json:"sessions"`
}

type peekResponse struct {
	Session string      `json:"session"`
	Deck    string      `json:"deck"`
	Card    domain.Card `json:"card"`
}

// ResolveResponse reports the outcome of answering a decision.
type ResolveResponse struct {
	Deck        string              `json:"deck"`
	Kind        domain.DecisionKind `json:"kind"`
	Card        domain.Card         `json:"card"`
	Choice      domain.Choice       `json:"choice"`
	Outcome     domain.Outcome      `json:"outcome"`
	Replacement *domain.Card        `json:"replacement,omitempty"`
}

func turnResponse(r app.TurnResult) TurnResponse {
	resp := TurnResponse{TurnResult: r}
	for _, p := range r.Phases {
		resp.Phases = append(resp.Phases, fmt.Sprintf("Phase %d: %s", p.Number, p.Name))
	}
	return resp
}

// startingDecks resolves requested deck names to catalog keys. With no
// request the first catalog deck of every required type is used.
func (m *module) startingDecks(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return m.catalog.DefaultSet()
	}
	keys := make([]string, 0, len(requested))
	for _, name := range requested {
		key, ok := m.catalog.Resolve(name)
		if !ok {
			// Let the service report every missing deck at once.
			key = name
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// sessionDeck maps a deck type, catalog name or key to the deck key used by a session.
func (m *module) sessionDeck(sessionKey, deck string) (string, error) {
	if strings.TrimSpace(deck) == "" {
		return "", errBadPayload
	}
	if dt, err := domain.ParseDeckType(deck); err == nil {
		return m.svc.DeckForType(sessionKey, dt)
	}
	if key, ok := m.catalog.Resolve(deck); ok {
		return key, nil
	}
	return deck, nil
}

func (m *module) rpcGameStart(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req gameStartRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	keys, err := m.startingDecks(req.Decks)
	if err != nil {
		return "", toRuntimeError(err)
	}
	result, events, err := m.svc.CreateSession(ctx, req.Session, keys)
	if err != nil {
		logger.Warn("rpcGameStart: session %s: %v", req.Session, err)
		return "", toRuntimeError(err)
	}
	logger.Info("rpcGameStart: session %s started with decks %v", req.Session, keys)
	m.persist(ctx, logger, req.Session)
	m.publish(ctx, logger, nk, req.Session, events)
	return encodeResponse(turnResponse(result))
}

func (m *module) rpcGameEnd(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	events, err := m.svc.EndSession(ctx, req.Session)
	if err != nil {
		return "", toRuntimeError(err)
	}
	logger.Info("rpcGameEnd: session %s ended", req.Session)
	m.publish(ctx, logger, nk, req.Session, events)
	m.forget(ctx, logger, req.Session)
	return encodeResponse(req)
}

func (m *module) rpcGameNextTurn(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	result, events, err := m.svc.AdvanceTurn(ctx, req.Session)
	if errors.Is(err, domain.ErrGameAlreadyOver) && len(events) > 0 {
		logger.Info("rpcGameNextTurn: session %s is over after turn %d", req.Session, result.Turn)
		m.publish(ctx, logger, nk, req.Session, events)
		m.forget(ctx, logger, req.Session)
		resp := turnResponse(result)
		resp.GameOver = true
		return encodeResponse(resp)
	}
	if err != nil {
		return "", toRuntimeError(err)
	}
	m.persist(ctx, logger, req.Session)
	m.publish(ctx, logger, nk, req.Session, events)
	return encodeResponse(turnResponse(result))
}

// rpcGameStatus reports one session, or lists the live sessions when none is named.
func (m *module) rpcGameStatus(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	if req.Session == "" {
		return encodeResponse(sessionListResponse{Sessions: m.svc.Registry().Keys()})
	}
	status, err := m.svc.Status(ctx, req.Session)
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encodeResponse(status)
}

func (m *module) rpcPeek(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req peekRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	deckKey, err := m.sessionDeck(req.Session, req.Deck)
	if err != nil {
		return "", toRuntimeError(err)
	}
	card, err := m.svc.Peek(ctx, req.Session, deckKey)
	if err != nil {
		return "", toRuntimeError(err)
	}
	// Peeking may have reshuffled the discard pile into the draw pile.
	m.persist(ctx, logger, req.Session)
	if req.Observer != "" && m.notifier != nil {
		n := ports.Notification{
			Subject: "card_peeked",
			Code:    NotifyCardPeeked,
			Content: map[string]interface{}{"session": req.Session, "deck": deckKey, "card": card.Name, "image": card.Art},
		}
		if err := m.notifier.Notify(ctx, req.Observer, n); err != nil {
			logger.Warn("rpcPeek: notify %s: %v", req.Observer, err)
		}
	}
	return encodeResponse(peekResponse{Session: req.Session, Deck: deckKey, Card: card})
}

func (m *module) rpcPeekOffer(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req peekRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	kind, err := domain.ParseDecisionKind(req.Kind)
	if err != nil {
		return "", toRuntimeError(err)
	}
	observer := req.Observer
	if observer == "" {
		observer = callerID(ctx)
	}
	if observer == "" {
		return "", runtime.NewError("observer is required", codeInvalidArgument)
	}
	deckKey, err := m.sessionDeck(req.Session, req.Deck)
	if err != nil {
		return "", toRuntimeError(err)
	}
	offer, events, err := m.svc.OfferDecision(ctx, req.Session, deckKey, kind, observer)
	if err != nil {
		return "", toRuntimeError(err)
	}
	m.persist(ctx, logger, req.Session)
	m.publish(ctx, logger, nk, req.Session, events)
	return encodeResponse(offer)
}

// rpcDecisionResolve answers a decision either by signed token or by session
// and handle id. A stale answer is reported in the outcome, not as an error.
func (m *module) rpcDecisionResolve(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req decisionResolveRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	choice, err := domain.ParseChoice(req.Choice)
	if err != nil {
		return "", toRuntimeError(err)
	}

	var (
		res    domain.Resolution
		events []app.Event
	)
	sessionKey := req.Session
	if req.Token != "" {
		if m.svc.Tokens() == nil {
			return "", toRuntimeError(app.ErrTokensDisabled)
		}
		ref, holder, perr := m.svc.Tokens().ParseHolder(req.Token)
		if perr != nil {
			return "", toRuntimeError(perr)
		}
		if caller := callerID(ctx); caller != "" && caller != holder {
			return "", runtime.NewError("decision token belongs to another observer", codePermissionDenied)
		}
		sessionKey = ref.SessionKey
		res, events, err = m.svc.ResolveDecisionAs(ctx, ref, callerID(ctx), choice)
	} else {
		if req.Session == "" || req.Handle == "" {
			return "", toRuntimeError(errBadPayload)
		}
		res, events, err = m.svc.ResolveDecisionAs(ctx, app.HandleRef{SessionKey: req.Session, ID: req.Handle}, callerID(ctx), choice)
	}
	if err != nil && !errors.Is(err, domain.ErrDecisionStale) {
		return "", toRuntimeError(err)
	}
	if res.Outcome == domain.OutcomeApplied {
		m.persist(ctx, logger, sessionKey)
	}
	m.publish(ctx, logger, nk, sessionKey, events)
	return encodeResponse(ResolveResponse{
		Deck:        res.Handle.DeckKey,
		Kind:        res.Handle.Kind,
		Card:        res.Handle.Card,
		Choice:      res.Choice,
		Outcome:     res.Outcome,
		Replacement: res.Replacement,
	})
}
