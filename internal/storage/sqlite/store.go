// Package sqlite provides SQLite-backed deck and session storage for the
// simulator and for local development.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dragonsea/internal/domain"
	"dragonsea/internal/ports"
	"dragonsea/internal/storage/sqlite/migrations"
)

// Store persists decks and session snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var (
	_ ports.DeckStore    = (*Store)(nil)
	_ ports.SessionStore = (*Store)(nil)
)

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// ListDecks returns every stored deck ordered by key.
func (s *Store) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT deck_key, name, deck_type, cards_json FROM decks ORDER BY deck_key`)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var (
			d         domain.Deck
			deckType  string
			cardsJSON string
		)
		if err := rows.Scan(&d.Key, &d.Name, &deckType, &cardsJSON); err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		if d.Type, err = domain.ParseDeckType(deckType); err != nil {
			return nil, fmt.Errorf("deck %s: %w", d.Key, err)
		}
		if err := json.Unmarshal([]byte(cardsJSON), &d.Cards); err != nil {
			return nil, fmt.Errorf("decode cards of deck %s: %w", d.Key, err)
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decks: %w", err)
	}
	return decks, nil
}

// SaveDeck creates or replaces one deck.
func (s *Store) SaveDeck(ctx context.Context, d domain.Deck) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	key := strings.TrimSpace(d.Key)
	if key == "" {
		return fmt.Errorf("deck key is required")
	}
	cards := d.Cards
	if cards == nil {
		cards = []domain.Card{}
	}
	cardsJSON, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("encode cards of deck %s: %w", key, err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO decks (deck_key, name, deck_type, cards_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(deck_key) DO UPDATE SET
		   name = excluded.name,
		   deck_type = excluded.deck_type,
		   cards_json = excluded.cards_json,
		   updated_at = excluded.updated_at`,
		key, d.Name, string(d.Type), string(cardsJSON), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save deck %s: %w", key, err)
	}
	return nil
}

// DeleteDeck removes a deck. Deleting a missing deck is not an error.
func (s *Store) DeleteDeck(ctx context.Context, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM decks WHERE deck_key = ?`, key); err != nil {
		return fmt.Errorf("delete deck %s: %w", key, err)
	}
	return nil
}

// ListSessions returns every stored snapshot keyed by session key.
func (s *Store) ListSessions(ctx context.Context) (map[string]domain.Snapshot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT session_key, snapshot_json FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Snapshot)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var snap domain.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", key, err)
		}
		out[key] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// SaveSession writes the latest snapshot of a session.
func (s *Store) SaveSession(ctx context.Context, key string, snap domain.Snapshot) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("session key is required")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (session_key, turn, snapshot_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_key) DO UPDATE SET
		   turn = excluded.turn,
		   snapshot_json = excluded.snapshot_json,
		   updated_at = excluded.updated_at`,
		key, snap.Turn, string(raw), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

// DeleteSession removes a session's snapshot.
func (s *Store) DeleteSession(ctx context.Context, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}
