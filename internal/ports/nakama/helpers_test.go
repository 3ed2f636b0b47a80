package nakama

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"dragonsea/internal/config"
	"dragonsea/internal/domain"
	"dragonsea/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode    int64
	data      []byte
	presences []runtime.Presence
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	broadcastCount int
	labelUpdates   int
	lastOpCode     int64
	lastData       []byte
	lastLabel      string
	sent           []sentMessage
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.broadcastCount++
	md.lastOpCode = opCode
	md.lastData = append([]byte(nil), data...)
	md.sent = append(md.sent, sentMessage{opCode: opCode, data: md.lastData, presences: presences})
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

// testPresence only answers the user id; other Presence methods are never called.
type testPresence struct {
	runtime.Presence
	userID string
}

func (p testPresence) GetUserId() string { return p.userID }

// testMatchData is a client message on a table.
type testMatchData struct {
	runtime.MatchData
	userID string
	opCode int64
}

func (d testMatchData) GetUserId() string { return d.userID }
func (d testMatchData) GetOpCode() int64  { return d.opCode }

type sentNotification struct {
	userID     string
	subject    string
	content    map[string]interface{}
	code       int
	persistent bool
}

// fakeNakama implements the parts of runtime.NakamaModule the module uses.
type fakeNakama struct {
	runtime.NakamaModule

	mu            sync.Mutex
	objects       map[string]map[string]string
	notifications []sentNotification
	signals       map[string][]string
	created       []map[string]interface{}
	listed        []*api.Match
	onSignal      func(matchID, data string)
	signalErr     error
	pageSize      int
}

func newFakeNakama() *fakeNakama {
	return &fakeNakama{
		objects: make(map[string]map[string]string),
		signals: make(map[string][]string),
	}
}

func (f *fakeNakama) StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects[collection]))
	for k := range f.objects[collection] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &start)
	}
	size := limit
	if f.pageSize > 0 && f.pageSize < size {
		size = f.pageSize
	}
	end := start + size
	if end > len(keys) {
		end = len(keys)
	}
	out := make([]*api.StorageObject, 0, end-start)
	for _, k := range keys[start:end] {
		out = append(out, &api.StorageObject{Collection: collection, Key: k, Value: f.objects[collection][k]})
	}
	next := ""
	if end < len(keys) {
		next = fmt.Sprintf("%d", end)
	}
	return out, next, nil
}

func (f *fakeNakama) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		if f.objects[w.Collection] == nil {
			f.objects[w.Collection] = make(map[string]string)
		}
		f.objects[w.Collection][w.Key] = w.Value
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key})
	}
	return acks, nil
}

func (f *fakeNakama) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range deletes {
		delete(f.objects[d.Collection], d.Key)
	}
	return nil
}

func (f *fakeNakama) NotificationSend(ctx context.Context, userID, subject string, content map[string]interface{}, code int, sender string, persistent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, sentNotification{userID: userID, subject: subject, content: content, code: code, persistent: persistent})
	return nil
}

func (f *fakeNakama) MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, params)
	return fmt.Sprintf("match-%d.node", len(f.created)), nil
}

func (f *fakeNakama) MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize *int, maxSize *int, query string) ([]*api.Match, error) {
	return f.listed, nil
}

func (f *fakeNakama) MatchSignal(ctx context.Context, id string, data string) (string, error) {
	if f.signalErr != nil {
		return "", f.signalErr
	}
	f.mu.Lock()
	f.signals[id] = append(f.signals[id], data)
	onSignal := f.onSignal
	f.mu.Unlock()
	if onSignal != nil {
		onSignal(id, data)
	}
	return "ok", nil
}

func (f *fakeNakama) notificationSubjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.notifications))
	for _, n := range f.notifications {
		out = append(out, n.subject)
	}
	return out
}

// memStore is an in-memory deck and session store.
type memStore struct {
	mu       sync.Mutex
	decks    map[string]domain.Deck
	sessions map[string]domain.Snapshot
}

func newMemStore() *memStore {
	return &memStore{decks: make(map[string]domain.Deck), sessions: make(map[string]domain.Snapshot)}
}

func (s *memStore) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Deck, 0, len(s.decks))
	for _, d := range s.decks {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (s *memStore) SaveDeck(ctx context.Context, d domain.Deck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks[d.Key] = d.Clone()
	return nil
}

func (s *memStore) DeleteDeck(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.decks, key)
	return nil
}

func (s *memStore) ListSessions(ctx context.Context) (map[string]domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Snapshot, len(s.sessions))
	for k, v := range s.sessions {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) SaveSession(ctx context.Context, key string, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = snap
	return nil
}

func (s *memStore) DeleteSession(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

func (s *memStore) hasSession(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[key]
	return ok
}

var (
	_ ports.DeckStore    = (*memStore)(nil)
	_ ports.SessionStore = (*memStore)(nil)
)

func cards(names ...string) []domain.Card {
	out := make([]domain.Card, 0, len(names))
	for _, n := range names {
		out = append(out, domain.NewCard(n, ""))
	}
	return out
}

func testDecks() []domain.Deck {
	return []domain.Deck{
		{Key: "events", Name: "Events", Type: domain.DeckEvent, Cards: cards(domain.NameCalmsOfSummer, "Storm", "Fog", "Gale")},
		{Key: "dragons", Name: "Dragons", Type: domain.DeckDragon, Cards: cards(domain.NameMistyMountainsCold, domain.NameThereBeDragons, "Wyrm", "Drake")},
		{Key: "seas", Name: "Seas", Type: domain.DeckSea, Cards: cards("Calm Sea", "Rough Sea", "Reef")},
		{Key: "ends", Name: "Ends", Type: domain.DeckEnd, Cards: cards("Finale", "Epilogue")},
	}
}

type testEnv struct {
	m     *module
	nk    *fakeNakama
	store *memStore
}

// newTestEnv builds a module over in-memory storage with the test decks seeded.
func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	nk := newFakeNakama()
	store := newMemStore()
	m := newModule(cfg, store, store, NewNakamaNotifierAdapter(nk), rand.New(rand.NewSource(7)))
	if _, err := m.catalog.Seed(context.Background(), testDecks()); err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	return &testEnv{m: m, nk: nk, store: store}
}

// userCtx returns a context carrying a Nakama user id.
func userCtx(userID string) context.Context {
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID)
}
