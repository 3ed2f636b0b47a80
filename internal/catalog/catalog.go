// Package catalog owns the deck definitions games are started from.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dragonsea/internal/domain"
	"dragonsea/internal/ports"
)

var ErrInvalidDeckName = errors.New("deck name is required")

// Catalog is the in-memory deck catalog. Management operations write
// through to the configured store before changing memory.
type Catalog struct {
	mu    sync.RWMutex
	decks map[string]domain.Deck
	store ports.DeckStore
}

// New creates an empty catalog. A nil store keeps the catalog in memory only.
func New(store ports.DeckStore) *Catalog {
	return &Catalog{decks: make(map[string]domain.Deck), store: store}
}

// Load replaces the catalog contents with the decks held by the store.
func (c *Catalog) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	decks, err := c.store.ListDecks(ctx)
	if err != nil {
		return fmt.Errorf("load decks: %w", err)
	}
	loaded := make(map[string]domain.Deck, len(decks))
	for _, d := range decks {
		loaded[d.Key] = d.Clone()
	}
	c.mu.Lock()
	c.decks = loaded
	c.mu.Unlock()
	return nil
}

// Seed adds decks whose keys are not in the catalog yet and returns how many were added.
func (c *Catalog) Seed(ctx context.Context, decks []domain.Deck) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, d := range decks {
		if _, ok := c.decks[d.Key]; ok {
			continue
		}
		if err := c.save(ctx, d.Clone()); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Len returns the number of decks in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.decks)
}

// Lookup returns a copy of the deck stored under key.
func (c *Catalog) Lookup(key string) (domain.Deck, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.decks[NormalizeKey(key)]
	if !ok {
		return domain.Deck{}, fmt.Errorf("%w: %s", domain.ErrDeckNotFound, key)
	}
	return d.Clone(), nil
}

// CardsOf returns the card templates of a deck in order.
func (c *Catalog) CardsOf(key string) ([]domain.Card, error) {
	d, err := c.Lookup(key)
	if err != nil {
		return nil, err
	}
	return d.Cards, nil
}

// List returns every deck, ordered by type then name.
func (c *Catalog) List() []domain.Deck {
	c.mu.RLock()
	out := make([]domain.Deck, 0, len(c.decks))
	for _, d := range c.decks {
		out = append(out, d.Clone())
	}
	c.mu.RUnlock()

	rank := func(t domain.DeckType) int {
		for i, rt := range domain.RequiredDeckTypes {
			if rt == t {
				return i
			}
		}
		return len(domain.RequiredDeckTypes)
	}
	sort.Slice(out, func(i, j int) bool {
		if ri, rj := rank(out[i].Type), rank(out[j].Type); ri != rj {
			return ri < rj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DefaultSet picks the first deck, in List order, of every required type.
func (c *Catalog) DefaultSet() ([]string, error) {
	picked := make(map[domain.DeckType]string)
	for _, d := range c.List() {
		if _, ok := picked[d.Type]; !ok {
			picked[d.Type] = d.Key
		}
	}
	keys := make([]string, 0, len(domain.RequiredDeckTypes))
	for _, t := range domain.RequiredDeckTypes {
		key, ok := picked[t]
		if !ok {
			return nil, fmt.Errorf("%w: no %s deck in the catalog", domain.ErrIncompleteDeckSet, t)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Resolve finds the key of a deck given either its key or its display name.
func (c *Catalog) Resolve(nameOrKey string) (string, bool) {
	key := NormalizeKey(nameOrKey)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.decks[key]; ok {
		return key, true
	}
	for k, d := range c.decks {
		if NormalizeKey(d.Name) == key {
			return k, true
		}
	}
	return "", false
}

// Create adds an empty deck of one of the playable types.
func (c *Catalog) Create(ctx context.Context, name, deckType string) (domain.Deck, error) {
	name = strings.TrimSpace(name)
	key := NormalizeKey(name)
	if key == "" {
		return domain.Deck{}, ErrInvalidDeckName
	}
	t, err := domain.ParseDeckType(deckType)
	if err != nil {
		return domain.Deck{}, err
	}
	if !t.Playable() {
		return domain.Deck{}, fmt.Errorf("%w: %q", domain.ErrInvalidDeckType, deckType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.decks[key]; ok {
		return domain.Deck{}, fmt.Errorf("%w: %s", domain.ErrDeckAlreadyExists, key)
	}
	d := domain.Deck{Key: key, Name: name, Type: t, Cards: []domain.Card{}}
	if err := c.save(ctx, d); err != nil {
		return domain.Deck{}, err
	}
	return d.Clone(), nil
}

// AddCard appends a card template to a deck. Duplicate names are allowed.
func (c *Catalog) AddCard(ctx context.Context, key string, card domain.Card) (domain.Deck, error) {
	if strings.TrimSpace(card.Name) == "" {
		return domain.Deck{}, fmt.Errorf("card name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := c.get(key)
	if err != nil {
		return domain.Deck{}, err
	}
	d.Cards = append(d.Cards, domain.NewCard(card.Name, card.Art))
	if err := c.save(ctx, d); err != nil {
		return domain.Deck{}, err
	}
	return d.Clone(), nil
}

// RemoveCard removes the first template whose name matches cardName,
// ignoring case, and returns it.
func (c *Catalog) RemoveCard(ctx context.Context, key, cardName string) (domain.Card, error) {
	want := domain.CanonicalName(cardName)
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := c.get(key)
	if err != nil {
		return domain.Card{}, err
	}
	for i, card := range d.Cards {
		if domain.CanonicalName(card.Name) != want {
			continue
		}
		d.Cards = append(d.Cards[:i], d.Cards[i+1:]...)
		if err := c.save(ctx, d); err != nil {
			return domain.Card{}, err
		}
		return card, nil
	}
	return domain.Card{}, fmt.Errorf("%w: %q in %s", domain.ErrCardNotFound, cardName, d.Key)
}

// Delete removes a deck and returns what it held.
func (c *Catalog) Delete(ctx context.Context, key string) (domain.Deck, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := c.get(key)
	if err != nil {
		return domain.Deck{}, err
	}
	if c.store != nil {
		if err := c.store.DeleteDeck(ctx, d.Key); err != nil {
			return domain.Deck{}, fmt.Errorf("delete deck %s: %w", d.Key, err)
		}
	}
	delete(c.decks, d.Key)
	return d, nil
}

// get returns a private copy of a deck. Callers hold c.mu.
func (c *Catalog) get(key string) (domain.Deck, error) {
	d, ok := c.decks[NormalizeKey(key)]
	if !ok {
		return domain.Deck{}, fmt.Errorf("%w: %s", domain.ErrDeckNotFound, key)
	}
	return d.Clone(), nil
}

// save writes d to the store and installs it. Callers hold c.mu.
func (c *Catalog) save(ctx context.Context, d domain.Deck) error {
	if c.store != nil {
		if err := c.store.SaveDeck(ctx, d); err != nil {
			return fmt.Errorf("save deck %s: %w", d.Key, err)
		}
	}
	c.decks[d.Key] = d
	return nil
}
