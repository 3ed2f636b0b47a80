package nakama

import (
	"context"
	"database/sql"

	"dragonsea/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

type deckCreateRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type deckCardRequest struct {
	Deck  string `json:"deck"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

type deckRequest struct {
	Deck string `json:"deck"`
}

// DeckSummary describes a catalog deck without its cards.
type DeckSummary struct {
	Key   string          `json:"key"`
	Name  string          `json:"name"`
	Type  domain.DeckType `json:"type"`
	Cards int             `json:"cards"`
}

type deckListResponse struct {
	Decks []DeckSummary `json:"decks"`
}

type cardResponse struct {
	Deck string      `json:"deck"`
	Card domain.Card `json:"card"`
}

func summarize(d domain.Deck) DeckSummary {
	return DeckSummary{Key: d.Key, Name: d.Name, Type: d.Type, Cards: len(d.Cards)}
}

func (m *module) rpcDeckCreate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req deckCreateRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	d, err := m.catalog.Create(ctx, req.Name, req.Type)
	if err != nil {
		logger.Warn("rpcDeckCreate: %v", err)
		return "", toRuntimeError(err)
	}
	logger.Info("rpcDeckCreate: created %s deck %s", d.Type, d.Key)
	return encodeResponse(summarize(d))
}

func (m *module) rpcDeckAddCard(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req deckCardRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	key, err := m.resolveDeck(req.Deck)
	if err != nil {
		return "", toRuntimeError(err)
	}
	card := domain.NewCard(req.Name, req.Image)
	if card.Name == "" {
		return "", toRuntimeError(errBadPayload)
	}
	d, err := m.catalog.AddCard(ctx, key, card)
	if err != nil {
		logger.Warn("rpcDeckAddCard: %v", err)
		return "", toRuntimeError(err)
	}
	return encodeResponse(summarize(d))
}

func (m *module) rpcDeckRemoveCard(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req deckCardRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	key, err := m.resolveDeck(req.Deck)
	if err != nil {
		return "", toRuntimeError(err)
	}
	card, err := m.catalog.RemoveCard(ctx, key, req.Name)
	if err != nil {
		logger.Warn("rpcDeckRemoveCard: %v", err)
		return "", toRuntimeError(err)
	}
	return encodeResponse(cardResponse{Deck: key, Card: card})
}

func (m *module) rpcDeckDelete(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if err := m.requireGameMaster(ctx); err != nil {
		return "", err
	}
	var req deckRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	key, err := m.resolveDeck(req.Deck)
	if err != nil {
		return "", toRuntimeError(err)
	}
	d, err := m.catalog.Delete(ctx, key)
	if err != nil {
		logger.Warn("rpcDeckDelete: %v", err)
		return "", toRuntimeError(err)
	}
	logger.Info("rpcDeckDelete: deleted deck %s", d.Key)
	return encodeResponse(summarize(d))
}

func (m *module) rpcDeckList(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	decks := m.catalog.List()
	resp := deckListResponse{Decks: make([]DeckSummary, 0, len(decks))}
	for _, d := range decks {
		resp.Decks = append(resp.Decks, summarize(d))
	}
	return encodeResponse(resp)
}

func (m *module) rpcDeckCards(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req deckRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	key, err := m.resolveDeck(req.Deck)
	if err != nil {
		return "", toRuntimeError(err)
	}
	d, err := m.catalog.Lookup(key)
	if err != nil {
		return "", toRuntimeError(err)
	}
	return encodeResponse(d)
}
