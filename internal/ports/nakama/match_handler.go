package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"dragonsea/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	tableTickRate = 1
	// tableIdleTicks is how long an empty table lingers before it is closed.
	tableIdleTicks = 300
)

// TableState is the runtime state of a table match. A table follows one
// session; it never drives the game, it only relays the session's events to
// the presences watching it.
type TableState struct {
	SessionKey string                      `json:"session"`
	Tick       int64                       `json:"tick"`
	IdleSince  int64                       `json:"idle_since"`
	Ended      bool                        `json:"ended"`
	Presences  map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
}

type tableError struct {
	Message string `json:"message"`
}

type matchHandler struct {
	m *module
}

func newMatchHandler(m *module) *matchHandler {
	return &matchHandler{m: m}
}

// MatchInit expects the session key in params["session"].
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	sessionKey, _ := params["session"].(string)
	state := &TableState{
		SessionKey: sessionKey,
		Presences:  make(map[string]runtime.Presence),
	}
	label, err := labelString(mh.m.svc.Label(sessionKey))
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	logger.Debug("MatchInit: table for session %s", sessionKey)
	return state, tableTickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	ts, ok := state.(*TableState)
	if !ok {
		return state, false, "state not found"
	}
	if ts.Ended {
		return state, false, "session has ended"
	}
	return state, true, ""
}

// MatchJoin sends the current session status to the new presences.
func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	ts, ok := state.(*TableState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}
	for _, p := range presences {
		ts.Presences[p.GetUserId()] = p
	}
	ts.IdleSince = 0
	mh.sendStatus(ctx, ts, dispatcher, logger, presences)
	return ts
}

func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	ts, ok := state.(*TableState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}
	for _, p := range presences {
		delete(ts.Presences, p.GetUserId())
	}
	if len(ts.Presences) == 0 {
		ts.IdleSince = tick
	}
	return ts
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	ts, ok := state.(*TableState)
	if !ok {
		return state
	}
	ts.Tick = tick

	if ts.Ended {
		logger.Info("MatchLoop: session %s ended, closing table", ts.SessionKey)
		mh.m.dropTable(ts.SessionKey)
		return nil
	}
	if len(ts.Presences) == 0 {
		// Tables nobody joined start idling on their first tick.
		if ts.IdleSince == 0 {
			ts.IdleSince = tick
		} else if tick-ts.IdleSince >= tableIdleTicks {
			logger.Info("MatchLoop: table for session %s idle, closing", ts.SessionKey)
			mh.m.dropTable(ts.SessionKey)
			return nil
		}
	}

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpRequestStatus:
			mh.sendStatus(ctx, ts, dispatcher, logger, []runtime.Presence{msg})
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}
	return ts
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	if ts, ok := state.(*TableState); ok {
		mh.m.dropTable(ts.SessionKey)
	}
	return state
}

// MatchSignal relays one session event envelope to the table.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	ts, ok := state.(*TableState)
	if !ok {
		return state, "state not found"
	}
	env := &structpb.Struct{}
	if err := protojson.Unmarshal([]byte(data), env); err != nil {
		logger.Warn("MatchSignal: bad envelope: %v", err)
		return ts, "bad envelope"
	}
	kind, recipients := envelopeKind(env)
	opCode, ok := eventOpCodes[kind]
	if !ok {
		logger.Warn("MatchSignal: unknown event kind %q", kind)
		return ts, "unknown event"
	}

	var targets []runtime.Presence
	if len(recipients) > 0 {
		for _, userID := range recipients {
			if p, ok := ts.Presences[userID]; ok {
				targets = append(targets, p)
			}
		}
		if len(targets) == 0 {
			return ts, "ok"
		}
	}
	if err := dispatcher.BroadcastMessage(opCode, []byte(data), targets, nil, true); err != nil {
		logger.Error("MatchSignal: Failed to broadcast %s: %v", kind, err)
	}

	switch kind {
	case app.EventGameOver, app.EventSessionEnded:
		ts.Ended = true
	}
	mh.updateLabel(ts, dispatcher, logger)
	return ts, "ok"
}

func (mh *matchHandler) sendStatus(ctx context.Context, ts *TableState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, to []runtime.Presence) {
	status, err := mh.m.svc.Status(ctx, ts.SessionKey)
	if err != nil {
		mh.sendError(ts, dispatcher, logger, to, err)
		return
	}
	b, err := json.Marshal(status)
	if err != nil {
		logger.Error("sendStatus: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpTableStatus, b, to, nil, true); err != nil {
		logger.Error("sendStatus: Failed to send: %v", err)
	}
}

func (mh *matchHandler) sendError(ts *TableState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, to []runtime.Presence, err error) {
	msg := err.Error()
	var rtErr *runtime.Error
	if errors.As(toRuntimeError(err), &rtErr) {
		msg = rtErr.Message
	}
	b, _ := json.Marshal(tableError{Message: msg})
	if err := dispatcher.BroadcastMessage(OpTableError, b, to, nil, true); err != nil {
		logger.Error("sendError: Failed to send to table %s: %v", ts.SessionKey, err)
	}
}

func (mh *matchHandler) updateLabel(ts *TableState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := labelString(mh.m.svc.Label(ts.SessionKey))
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}
