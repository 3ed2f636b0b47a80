package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"dragonsea/internal/app"
	"dragonsea/internal/config"
	"dragonsea/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

func errCode(t *testing.T, err error) int {
	t.Helper()
	var rtErr *runtime.Error
	if !errors.As(err, &rtErr) {
		t.Fatalf("error %v (%T) is not a runtime error", err, err)
	}
	return rtErr.Code
}

func mustDecode(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("response %q: %v", out, err)
	}
}

func TestDeckRPCs(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	m := env.m

	out, err := m.rpcDeckCreate(ctx, noopLogger{}, nil, env.nk, `{"name":"Stormy Seas","type":"sea_deck"}`)
	if err != nil {
		t.Fatalf("rpcDeckCreate error: %v", err)
	}
	var created DeckSummary
	mustDecode(t, out, &created)
	if created.Type != domain.DeckSea || created.Cards != 0 {
		t.Fatalf("created = %+v, want empty sea deck", created)
	}

	if _, err := m.rpcDeckAddCard(ctx, noopLogger{}, nil, env.nk, `{"deck":"Stormy Seas","name":"Whirlpool","image":"whirl.png"}`); err != nil {
		t.Fatalf("rpcDeckAddCard error: %v", err)
	}
	out, err = m.rpcDeckCards(ctx, noopLogger{}, nil, env.nk, `{"deck":"Stormy Seas"}`)
	if err != nil {
		t.Fatalf("rpcDeckCards error: %v", err)
	}
	var deck domain.Deck
	mustDecode(t, out, &deck)
	if len(deck.Cards) != 1 || deck.Cards[0].Name != "Whirlpool" || deck.Cards[0].Art != "whirl.png" {
		t.Fatalf("cards = %+v, want Whirlpool", deck.Cards)
	}

	out, err = m.rpcDeckList(ctx, noopLogger{}, nil, env.nk, "")
	if err != nil {
		t.Fatalf("rpcDeckList error: %v", err)
	}
	var list deckListResponse
	mustDecode(t, out, &list)
	if len(list.Decks) != 5 {
		t.Fatalf("listed %d decks, want 5", len(list.Decks))
	}

	if _, err := m.rpcDeckRemoveCard(ctx, noopLogger{}, nil, env.nk, `{"deck":"Stormy Seas","name":"Whirlpool"}`); err != nil {
		t.Fatalf("rpcDeckRemoveCard error: %v", err)
	}
	_, err = m.rpcDeckRemoveCard(ctx, noopLogger{}, nil, env.nk, `{"deck":"Stormy Seas","name":"Whirlpool"}`)
	if code := errCode(t, err); code != codeNotFound {
		t.Fatalf("second remove code = %d, want %d", code, codeNotFound)
	}

	if _, err := m.rpcDeckDelete(ctx, noopLogger{}, nil, env.nk, `{"deck":"Stormy Seas"}`); err != nil {
		t.Fatalf("rpcDeckDelete error: %v", err)
	}
	_, err = m.rpcDeckCards(ctx, noopLogger{}, nil, env.nk, `{"deck":"Stormy Seas"}`)
	if code := errCode(t, err); code != codeNotFound {
		t.Fatalf("cards of deleted deck code = %d, want %d", code, codeNotFound)
	}
}

func TestDeckRPCs_Errors(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()

	tests := []struct {
		name string
		fn   rpcFunc
		in   string
		want int
	}{
		{"BadJSON", env.m.rpcDeckCreate, `{`, codeInvalidArgument},
		{"BadType", env.m.rpcDeckCreate, `{"name":"X","type":"weather"}`, codeInvalidArgument},
		{"Duplicate", env.m.rpcDeckCreate, `{"name":"Events","type":"event"}`, codeAlreadyExists},
		{"NoDeck", env.m.rpcDeckAddCard, `{"name":"Card"}`, codeInvalidArgument},
		{"NoCardName", env.m.rpcDeckAddCard, `{"deck":"events","name":"  "}`, codeInvalidArgument},
		{"UnknownDeck", env.m.rpcDeckDelete, `{"deck":"nowhere"}`, codeNotFound},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.fn(ctx, noopLogger{}, nil, env.nk, test.in)
			if code := errCode(t, err); code != test.want {
				t.Fatalf("code = %d, want %d (err %v)", code, test.want, err)
			}
		})
	}
}

func TestGameMasterRequired(t *testing.T) {
	env := newTestEnv(t, config.Config{GameMasters: []string{"gm"}})

	_, err := env.m.rpcGameStart(userCtx("player"), noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if code := errCode(t, err); code != codePermissionDenied {
		t.Fatalf("player start code = %d, want %d", code, codePermissionDenied)
	}
	_, err = env.m.rpcDeckCreate(userCtx("player"), noopLogger{}, nil, env.nk, `{"name":"X","type":"custom"}`)
	if code := errCode(t, err); code != codePermissionDenied {
		t.Fatalf("player deck create code = %d, want %d", code, codePermissionDenied)
	}
	if _, err := env.m.rpcGameStart(userCtx("gm"), noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("game master start error: %v", err)
	}
	if _, err := env.m.rpcGameStatus(userCtx("player"), noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("player status error: %v", err)
	}
}

func TestGameStart_PicksDecksAndPersists(t *testing.T) {
	env := newTestEnv(t, config.Config{ShowPhases: true})
	out, err := env.m.rpcGameStart(context.Background(), noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}
	var resp TurnResponse
	mustDecode(t, out, &resp)
	if resp.Turn != 1 || resp.GameOver {
		t.Fatalf("response = %+v, want turn 1", resp)
	}
	if len(resp.Drawn) != 2 {
		t.Fatalf("drawn %d cards, want the two opening cards", len(resp.Drawn))
	}
	if len(resp.Phases) == 0 {
		t.Fatalf("phases missing with ShowPhases")
	}
	if !env.store.hasSession("s1") {
		t.Fatalf("session not persisted")
	}

	_, err = env.m.rpcGameStart(context.Background(), noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if code := errCode(t, err); code != codeAlreadyExists {
		t.Fatalf("duplicate start code = %d, want %d", code, codeAlreadyExists)
	}
}

func TestGameStart_DeckErrors(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()

	_, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1","decks":["Events","Dragons","Seas","Lost"]}`)
	if code := errCode(t, err); code != codeNotFound {
		t.Fatalf("unknown deck code = %d, want %d", code, codeNotFound)
	}
	_, err = env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1","decks":["Events","Dragons","Seas"]}`)
	if code := errCode(t, err); code != codeFailedPrecondition {
		t.Fatalf("incomplete set code = %d, want %d", code, codeFailedPrecondition)
	}

	if _, err := env.m.catalog.Delete(ctx, "ends"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	_, err = env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if code := errCode(t, err); code != codeFailedPrecondition {
		t.Fatalf("no end deck code = %d, want %d", code, codeFailedPrecondition)
	}
}

func TestGameNextTurnAndEnd(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}

	out, err := env.m.rpcGameNextTurn(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if err != nil {
		t.Fatalf("rpcGameNextTurn error: %v", err)
	}
	var resp TurnResponse
	mustDecode(t, out, &resp)
	if resp.Turn != 2 {
		t.Fatalf("turn = %d, want 2", resp.Turn)
	}
	snaps, _ := env.store.ListSessions(ctx)
	if snaps["s1"].Turn != 2 {
		t.Fatalf("persisted turn = %d, want 2", snaps["s1"].Turn)
	}

	if _, err := env.m.rpcGameEnd(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameEnd error: %v", err)
	}
	if env.store.hasSession("s1") {
		t.Fatalf("ended session still stored")
	}
	_, err = env.m.rpcGameNextTurn(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if code := errCode(t, err); code != codeNotFound {
		t.Fatalf("next turn after end code = %d, want %d", code, codeNotFound)
	}
}

func TestGameNextTurn_GameOver(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}
	snap, err := env.m.svc.Snapshot("s1")
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	snap.EndAfterTurn = true
	if err := env.m.svc.Restore(ctx, "s2", snap); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	env.m.persist(ctx, noopLogger{}, "s2")

	out, err := env.m.rpcGameNextTurn(ctx, noopLogger{}, nil, env.nk, `{"session":"s2"}`)
	if err != nil {
		t.Fatalf("rpcGameNextTurn error: %v", err)
	}
	var resp TurnResponse
	mustDecode(t, out, &resp)
	if !resp.GameOver || resp.Turn != 1 {
		t.Fatalf("response = %+v, want game over at turn 1", resp)
	}
	if env.store.hasSession("s2") {
		t.Fatalf("finished session still stored")
	}
}

func TestGameStatus(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}

	out, err := env.m.rpcGameStatus(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if err != nil {
		t.Fatalf("rpcGameStatus error: %v", err)
	}
	var status app.Status
	mustDecode(t, out, &status)
	if status.Turn != 1 || len(status.ActiveDecks) != 2 {
		t.Fatalf("status = %+v, want turn 1 with two active decks", status)
	}

	out, err = env.m.rpcGameStatus(ctx, noopLogger{}, nil, env.nk, "")
	if err != nil {
		t.Fatalf("rpcGameStatus list error: %v", err)
	}
	var list sessionListResponse
	mustDecode(t, out, &list)
	if len(list.Sessions) != 1 || list.Sessions[0] != "s1" {
		t.Fatalf("sessions = %v, want [s1]", list.Sessions)
	}
}

func TestPeek_ByDeckType(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}
	out, err := env.m.rpcPeek(ctx, noopLogger{}, nil, env.nk, `{"session":"s1","deck":"dragon"}`)
	if err != nil {
		t.Fatalf("rpcPeek error: %v", err)
	}
	var resp peekResponse
	mustDecode(t, out, &resp)
	if resp.Deck != "dragons" || resp.Card.Name == "" {
		t.Fatalf("peek = %+v, want a dragons card", resp)
	}

	if len(env.nk.notifications) != 0 {
		t.Fatalf("peek without observer sent %d notifications", len(env.nk.notifications))
	}

	out, err = env.m.rpcPeek(ctx, noopLogger{}, nil, env.nk, `{"session":"s1","deck":"dragon","observer":"u2"}`)
	if err != nil {
		t.Fatalf("rpcPeek with observer error: %v", err)
	}
	mustDecode(t, out, &resp)
	if len(env.nk.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(env.nk.notifications))
	}
	if n := env.nk.notifications[0]; n.userID != "u2" || n.code != NotifyCardPeeked || n.persistent || n.content["card"] != resp.Card.Name {
		t.Fatalf("notification = %+v, want card_peeked for u2", n)
	}

	_, err = env.m.rpcPeek(ctx, noopLogger{}, nil, env.nk, `{"session":"s1","deck":"custom"}`)
	if code := errCode(t, err); code != codeNotFound {
		t.Fatalf("peek missing type code = %d, want %d", code, codeNotFound)
	}
}

func offer(t *testing.T, env *testEnv, observer, body string) app.Offer {
	t.Helper()
	out, err := env.m.rpcPeekOffer(userCtx(observer), noopLogger{}, nil, env.nk, body)
	if err != nil {
		t.Fatalf("rpcPeekOffer error: %v", err)
	}
	var o app.Offer
	mustDecode(t, out, &o)
	return o
}

func resolve(t *testing.T, env *testEnv, observer, body string) ResolveResponse {
	t.Helper()
	out, err := env.m.rpcDecisionResolve(userCtx(observer), noopLogger{}, nil, env.nk, body)
	if err != nil {
		t.Fatalf("rpcDecisionResolve error: %v", err)
	}
	var r ResolveResponse
	mustDecode(t, out, &r)
	return r
}

func TestPeekOfferAndResolve(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}

	o := offer(t, env, "u1", `{"session":"s1","deck":"events","kind":"move_to_bottom"}`)
	if o.Informational || o.Handle.ID == "" || o.Token != "" {
		t.Fatalf("offer = %+v, want a handle without token", o)
	}
	if len(env.nk.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(env.nk.notifications))
	}
	n := env.nk.notifications[0]
	if n.userID != "u1" || n.code != NotifyDecisionOffered || !n.persistent || n.content["session"] != "s1" {
		t.Fatalf("notification = %+v, want persistent decision_offered for u1", n)
	}

	r := resolve(t, env, "u1", `{"session":"s1","handle":"`+o.Handle.ID+`","choice":"yes"}`)
	if r.Outcome != domain.OutcomeApplied || r.Card.Name != o.Card.Name {
		t.Fatalf("resolution = %+v, want applied on %s", r, o.Card.Name)
	}
	subjects := env.nk.notificationSubjects()
	if subjects[len(subjects)-1] != string(app.EventDecisionResolved) {
		t.Fatalf("last notification = %s, want decision_resolved", subjects[len(subjects)-1])
	}

	_, err := env.m.rpcDecisionResolve(userCtx("u1"), noopLogger{}, nil, env.nk, `{"session":"s1","handle":"`+o.Handle.ID+`","choice":"yes"}`)
	if code := errCode(t, err); code != codeFailedPrecondition {
		t.Fatalf("second resolve code = %d, want %d", code, codeFailedPrecondition)
	}
}

func TestPeekOffer_ConflictingKindKeepsOpenDecision(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}

	first := offer(t, env, "u1", `{"session":"s1","deck":"events","kind":"move_to_bottom"}`)
	_, err := env.m.rpcPeekOffer(userCtx("u2"), noopLogger{}, nil, env.nk, `{"session":"s1","deck":"events","kind":"destroy_and_replace"}`)
	if code := errCode(t, err); code != codeFailedPrecondition {
		t.Fatalf("conflicting offer code = %d, want %d", code, codeFailedPrecondition)
	}

	r := resolve(t, env, "u1", `{"session":"s1","handle":"`+first.Handle.ID+`","choice":"yes"}`)
	if r.Outcome != domain.OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", r.Outcome)
	}
}

func TestDecisionResolve_AlreadyPerformedIsNotAnError(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}

	first := offer(t, env, "u1", `{"session":"s1","deck":"events","kind":"move_to_bottom"}`)
	second := offer(t, env, "u2", `{"session":"s1","deck":"events","kind":"move_to_bottom"}`)
	if !second.Reused {
		t.Fatalf("second offer did not join the pending decision")
	}

	if r := resolve(t, env, "u2", `{"session":"s1","handle":"`+second.Handle.ID+`","choice":"yes"}`); r.Outcome != domain.OutcomeApplied {
		t.Fatalf("first answer outcome = %s, want applied", r.Outcome)
	}
	if r := resolve(t, env, "u1", `{"session":"s1","handle":"`+first.Handle.ID+`","choice":"yes"}`); r.Outcome != domain.OutcomeAlreadyPerformed {
		t.Fatalf("second answer outcome = %s, want already_performed", r.Outcome)
	}
}

func TestPeekOffer_GameMasterOffersToPlayer(t *testing.T) {
	env := newTestEnv(t, config.Config{GameMasters: []string{"gm"}})
	if _, err := env.m.rpcGameStart(userCtx("gm"), noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}

	out, err := env.m.rpcPeekOffer(userCtx("gm"), noopLogger{}, nil, env.nk, `{"session":"s1","deck":"seas","kind":"move_to_bottom","observer":"player"}`)
	if err != nil {
		t.Fatalf("rpcPeekOffer error: %v", err)
	}
	var o app.Offer
	mustDecode(t, out, &o)
	if o.Handle.ID == "" {
		t.Fatalf("offer = %+v, want a handle", o)
	}
	if len(env.nk.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(env.nk.notifications))
	}
	if n := env.nk.notifications[0]; n.userID != "player" || n.code != NotifyDecisionOffered {
		t.Fatalf("notification = %+v, want decision_offered for player", n)
	}

	body := `{"session":"s1","handle":"` + o.Handle.ID + `","choice":"yes"}`
	_, err = env.m.rpcDecisionResolve(userCtx("gm"), noopLogger{}, nil, env.nk, body)
	if code := errCode(t, err); code != codePermissionDenied {
		t.Fatalf("game master answering for player code = %d, want %d", code, codePermissionDenied)
	}
	if r := resolve(t, env, "player", body); r.Outcome != domain.OutcomeApplied {
		t.Fatalf("player outcome = %s, want applied", r.Outcome)
	}
}

func TestDecisionResolve_OnlyObserverMayAnswer(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}

	o := offer(t, env, "u1", `{"session":"s1","deck":"events","kind":"move_to_bottom"}`)
	body := `{"session":"s1","handle":"` + o.Handle.ID + `","choice":"yes"}`
	_, err := env.m.rpcDecisionResolve(userCtx("intruder"), noopLogger{}, nil, env.nk, body)
	if code := errCode(t, err); code != codePermissionDenied {
		t.Fatalf("intruder code = %d, want %d", code, codePermissionDenied)
	}
	if status := statusOf(t, env, "s1"); status.OpenDecisions != 1 {
		t.Fatalf("open decisions = %d after a refused answer, want 1", status.OpenDecisions)
	}

	// Server calls carry no user and may answer any handle.
	out, err := env.m.rpcDecisionResolve(ctx, noopLogger{}, nil, env.nk, body)
	if err != nil {
		t.Fatalf("server resolve error: %v", err)
	}
	var r ResolveResponse
	mustDecode(t, out, &r)
	if r.Outcome != domain.OutcomeApplied {
		t.Fatalf("server outcome = %s, want applied", r.Outcome)
	}
}

func statusOf(t *testing.T, env *testEnv, session string) app.Status {
	t.Helper()
	out, err := env.m.rpcGameStatus(context.Background(), noopLogger{}, nil, env.nk, `{"session":"`+session+`"}`)
	if err != nil {
		t.Fatalf("rpcGameStatus error: %v", err)
	}
	var status app.Status
	mustDecode(t, out, &status)
	return status
}

func TestDecisionResolve_Token(t *testing.T) {
	env := newTestEnv(t, config.Config{TokenSecret: "s3cret", TokenIssuer: "dragonsea"})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}

	o := offer(t, env, "u1", `{"session":"s1","deck":"dragons","kind":"move_to_bottom"}`)
	if o.Token == "" {
		t.Fatalf("offer carries no token")
	}
	_, err := env.m.rpcDecisionResolve(userCtx("u2"), noopLogger{}, nil, env.nk, `{"token":"`+o.Token+`","choice":"yes"}`)
	if code := errCode(t, err); code != codePermissionDenied {
		t.Fatalf("foreign holder code = %d, want %d", code, codePermissionDenied)
	}
	r := resolve(t, env, "u1", `{"token":"`+o.Token+`","choice":"no"}`)
	if r.Outcome != domain.OutcomeDeclined {
		t.Fatalf("outcome = %s, want declined", r.Outcome)
	}

	_, err = env.m.rpcDecisionResolve(ctx, noopLogger{}, nil, env.nk, `{"token":"garbage","choice":"yes"}`)
	if code := errCode(t, err); code != codeNotFound {
		t.Fatalf("bad token code = %d, want %d", code, codeNotFound)
	}
}

func TestDecisionResolve_Errors(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"BadChoice", `{"session":"s1","handle":"h","choice":"maybe"}`, codeInvalidArgument},
		{"MissingHandle", `{"session":"s1","choice":"yes"}`, codeInvalidArgument},
		{"TokensDisabled", `{"token":"abc","choice":"yes"}`, codeFailedPrecondition},
		{"EndedSession", `{"session":"gone","handle":"h1","choice":"yes"}`, codeFailedPrecondition},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := env.m.rpcDecisionResolve(ctx, noopLogger{}, nil, env.nk, test.in)
			if code := errCode(t, err); code != test.want {
				t.Fatalf("code = %d, want %d (err %v)", code, test.want, err)
			}
		})
	}
}

func TestPeekOffer_NeedsObserver(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}
	_, err := env.m.rpcPeekOffer(ctx, noopLogger{}, nil, env.nk, `{"session":"s1","deck":"events","kind":"move_to_bottom"}`)
	if code := errCode(t, err); code != codeInvalidArgument {
		t.Fatalf("code = %d, want %d", code, codeInvalidArgument)
	}
	if _, err := env.m.rpcPeekOffer(ctx, noopLogger{}, nil, env.nk, `{"session":"s1","deck":"events","kind":"move_to_bottom","observer":"bot"}`); err != nil {
		t.Fatalf("server call with observer error: %v", err)
	}
}

func TestGameTable(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()

	_, err := env.m.rpcGameTable(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if code := errCode(t, err); code != codeNotFound {
		t.Fatalf("table for unknown session code = %d, want %d", code, codeNotFound)
	}

	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}
	out, err := env.m.rpcGameTable(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if err != nil {
		t.Fatalf("rpcGameTable error: %v", err)
	}
	var first TableResponse
	mustDecode(t, out, &first)
	if !first.IsNew || first.MatchID == "" {
		t.Fatalf("first = %+v, want a new table", first)
	}
	if env.nk.created[0]["session"] != "s1" {
		t.Fatalf("MatchCreate params = %v, want session s1", env.nk.created[0])
	}

	out, err = env.m.rpcGameTable(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`)
	if err != nil {
		t.Fatalf("rpcGameTable error: %v", err)
	}
	var second TableResponse
	mustDecode(t, out, &second)
	if second.IsNew || second.MatchID != first.MatchID {
		t.Fatalf("second = %+v, want the existing table %s", second, first.MatchID)
	}
}

func TestPublish_DropsDeadTable(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.m.setTable("s1", "match-9.node")
	env.nk.signalErr = errors.New("match not found")

	env.m.publish(context.Background(), noopLogger{}, env.nk, "s1", []app.Event{
		{Kind: app.EventTurnAdvanced, Payload: app.TurnAdvancedPayload{Turn: 2}},
	})
	if _, ok := env.m.tableID("s1"); ok {
		t.Fatalf("dead table still indexed")
	}
}

func TestLoad_RestoresSessions(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	ctx := context.Background()
	if _, err := env.m.rpcGameStart(ctx, noopLogger{}, nil, env.nk, `{"session":"s1"}`); err != nil {
		t.Fatalf("rpcGameStart error: %v", err)
	}
	orphan, _ := env.m.svc.Snapshot("s1")
	orphan.DeckKeys = append(orphan.DeckKeys, "vanished")
	if err := env.store.SaveSession(ctx, "orphan", orphan); err != nil {
		t.Fatalf("SaveSession error: %v", err)
	}

	reloaded := newModule(config.Config{DeckDir: t.TempDir() + "/missing"}, env.store, env.store, nil, nil)
	if err := reloaded.load(ctx, noopLogger{}); err != nil {
		t.Fatalf("load error: %v", err)
	}
	if got := reloaded.catalog.Len(); got != 4 {
		t.Fatalf("catalog has %d decks, want 4", got)
	}
	keys := reloaded.svc.Registry().Keys()
	if len(keys) != 1 || keys[0] != "s1" {
		t.Fatalf("restored sessions = %v, want [s1]", keys)
	}
}
