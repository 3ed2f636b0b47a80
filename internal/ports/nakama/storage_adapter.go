package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"dragonsea/internal/domain"
	"dragonsea/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// systemUserID owns every Dragon Sea storage object.
const systemUserID = ""

const storageListPageSize = 100

// NakamaStorageAdapter implements ports.DeckStore and ports.SessionStore using
// Nakama's storage engine.
type NakamaStorageAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaStorageAdapter creates a new storage adapter.
func NewNakamaStorageAdapter(nk runtime.NakamaModule) *NakamaStorageAdapter {
	return &NakamaStorageAdapter{nk: nk}
}

var (
	_ ports.DeckStore    = (*NakamaStorageAdapter)(nil)
	_ ports.SessionStore = (*NakamaStorageAdapter)(nil)
)

// ListDecks reads every deck object.
func (a *NakamaStorageAdapter) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	var decks []domain.Deck
	err := a.list(ctx, CollectionDecks, func(key, value string) error {
		var d domain.Deck
		if err := json.Unmarshal([]byte(value), &d); err != nil {
			return fmt.Errorf("failed to unmarshal deck %s: %w", key, err)
		}
		if d.Key == "" {
			d.Key = key
		}
		decks = append(decks, d)
		return nil
	})
	return decks, err
}

// SaveDeck writes one deck object, replacing any earlier version.
func (a *NakamaStorageAdapter) SaveDeck(ctx context.Context, d domain.Deck) error {
	if d.Cards == nil {
		d.Cards = []domain.Card{}
	}
	return a.write(ctx, CollectionDecks, d.Key, d)
}

// DeleteDeck removes one deck object.
func (a *NakamaStorageAdapter) DeleteDeck(ctx context.Context, key string) error {
	return a.delete(ctx, CollectionDecks, key)
}

// ListSessions reads every session snapshot.
func (a *NakamaStorageAdapter) ListSessions(ctx context.Context) (map[string]domain.Snapshot, error) {
	out := make(map[string]domain.Snapshot)
	err := a.list(ctx, CollectionSessions, func(key, value string) error {
		var snap domain.Snapshot
		if err := json.Unmarshal([]byte(value), &snap); err != nil {
			return fmt.Errorf("failed to unmarshal session %s: %w", key, err)
		}
		out[key] = snap
		return nil
	})
	return out, err
}

// SaveSession writes the latest snapshot of a session.
func (a *NakamaStorageAdapter) SaveSession(ctx context.Context, key string, snap domain.Snapshot) error {
	return a.write(ctx, CollectionSessions, key, snap)
}

// DeleteSession removes a session snapshot.
func (a *NakamaStorageAdapter) DeleteSession(ctx context.Context, key string) error {
	return a.delete(ctx, CollectionSessions, key)
}

func (a *NakamaStorageAdapter) list(ctx context.Context, collection string, fn func(key, value string) error) error {
	cursor := ""
	for {
		objects, next, err := a.nk.StorageList(ctx, systemUserID, systemUserID, collection, storageListPageSize, cursor)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", collection, err)
		}
		for _, obj := range objects {
			if err := fn(obj.GetKey(), obj.GetValue()); err != nil {
				return err
			}
		}
		if next == "" || next == cursor {
			return nil
		}
		cursor = next
	}
}

func (a *NakamaStorageAdapter) write(ctx context.Context, collection, key string, v any) error {
	if key == "" {
		return fmt.Errorf("storage key is required")
	}
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, key, err)
	}
	_, err = a.nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      collection,
			Key:             key,
			UserID:          systemUserID,
			Value:           string(value),
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, key, err)
	}
	return nil
}

func (a *NakamaStorageAdapter) delete(ctx context.Context, collection, key string) error {
	err := a.nk.StorageDelete(ctx, []*runtime.StorageDelete{
		{Collection: collection, Key: key, UserID: systemUserID},
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}
