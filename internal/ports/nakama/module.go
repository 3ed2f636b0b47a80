package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io/fs"
	"math/rand"
	"strings"
	"sync"

	"dragonsea/internal/app"
	"dragonsea/internal/catalog"
	"dragonsea/internal/config"
	"dragonsea/internal/domain"
	"dragonsea/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

type rpcFunc func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// module holds everything the RPCs and table matches share.
type module struct {
	svc      *app.Service
	catalog  *catalog.Catalog
	sessions ports.SessionStore
	notifier ports.NotifierPort
	cfg      config.Config

	mu     sync.Mutex
	tables map[string]string // session key -> table match id
}

func newModule(cfg config.Config, decks ports.DeckStore, sessions ports.SessionStore, notifier ports.NotifierPort, rng *rand.Rand) *module {
	cat := catalog.New(decks)
	var tokens *app.TokenService
	if cfg.TokenSecret != "" {
		tokens = app.NewTokenService(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL)
	}
	return &module{
		svc:      app.NewService(cat, rng, app.WithTokens(tokens), app.WithPhaseMessages(cfg.ShowPhases)),
		catalog:  cat,
		sessions: sessions,
		notifier: notifier,
		cfg:      cfg,
		tables:   make(map[string]string),
	}
}

// load fills the catalog from storage, seeding it from the deck directory
// when storage holds no decks, then restores every stored session whose
// decks still exist.
func (m *module) load(ctx context.Context, logger runtime.Logger) error {
	if err := m.catalog.Load(ctx); err != nil {
		return err
	}
	if m.cfg.DeckDir != "" && m.catalog.Len() == 0 {
		decks, err := catalog.LoadDir(m.cfg.DeckDir)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Warn("load: deck directory %s not found, skipping seed", m.cfg.DeckDir)
		case err != nil:
			return err
		default:
			added, err := m.catalog.Seed(ctx, decks)
			if err != nil {
				return err
			}
			logger.Info("load: seeded %d of %d decks from %s", added, len(decks), m.cfg.DeckDir)
		}
	}

	snaps, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return err
	}
	for key, snap := range snaps {
		if err := m.svc.Restore(ctx, key, snap); err != nil {
			logger.Warn("load: skipping session %s: %v", key, err)
			continue
		}
		logger.Info("load: restored session %s at turn %d", key, snap.Turn)
	}
	return nil
}

func callerID(ctx context.Context) string {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	return userID
}

// requireGameMaster rejects players that may not run sessions or edit decks.
// Server-to-server calls carry no user and are always allowed.
func (m *module) requireGameMaster(ctx context.Context) error {
	userID := callerID(ctx)
	if userID == "" || m.cfg.IsGameMaster(userID) {
		return nil
	}
	return runtime.NewError("game master role required", codePermissionDenied)
}

func decodePayload(payload string, v any) error {
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return errBadPayload
	}
	return nil
}

func encodeResponse(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(b), nil
}

// resolveDeck maps a deck name or key to its catalog key.
func (m *module) resolveDeck(nameOrKey string) (string, error) {
	if strings.TrimSpace(nameOrKey) == "" {
		return "", errBadPayload
	}
	key, ok := m.catalog.Resolve(nameOrKey)
	if !ok {
		return "", domain.ErrDeckNotFound
	}
	return key, nil
}

func (m *module) tableID(sessionKey string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tables[sessionKey]
	return id, ok
}

func (m *module) setTable(sessionKey, matchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[sessionKey] = matchID
}

func (m *module) dropTable(sessionKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, sessionKey)
}

// publish delivers app events: every event goes to the session's table match
// when one is running, and events addressed to users are also sent to them
// as notifications so observers without a table still receive them.
func (m *module) publish(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, sessionKey string, events []app.Event) {
	matchID, hasTable := m.tableID(sessionKey)
	for _, ev := range events {
		if len(ev.Recipients) > 0 && m.notifier != nil {
			n, err := notificationFor(sessionKey, ev)
			if err != nil {
				logger.Error("publish: %v", err)
				continue
			}
			for _, userID := range ev.Recipients {
				if err := m.notifier.Notify(ctx, userID, n); err != nil {
					logger.Warn("publish: %v", err)
				}
			}
		}
		if !hasTable || nk == nil {
			continue
		}
		env, err := eventEnvelope(sessionKey, ev)
		if err != nil {
			logger.Error("publish: %v", err)
			continue
		}
		data, err := jsonOptions.Marshal(env)
		if err != nil {
			logger.Error("publish: failed to marshal %s: %v", ev.Kind, err)
			continue
		}
		if _, err := nk.MatchSignal(ctx, matchID, string(data)); err != nil {
			logger.Warn("publish: table %s for session %s did not take %s: %v", matchID, sessionKey, ev.Kind, err)
			m.dropTable(sessionKey)
			hasTable = false
		}
	}
}

// persist stores the latest snapshot of a live session.
func (m *module) persist(ctx context.Context, logger runtime.Logger, sessionKey string) {
	snap, err := m.svc.Snapshot(sessionKey)
	if err != nil {
		logger.Warn("persist: session %s: %v", sessionKey, err)
		return
	}
	if err := m.sessions.SaveSession(ctx, sessionKey, snap); err != nil {
		logger.Error("persist: session %s: %v", sessionKey, err)
	}
}

// forget removes a finished session from storage and from the table index.
func (m *module) forget(ctx context.Context, logger runtime.Logger, sessionKey string) {
	if err := m.sessions.DeleteSession(ctx, sessionKey); err != nil {
		logger.Error("forget: session %s: %v", sessionKey, err)
	}
	m.dropTable(sessionKey)
}
