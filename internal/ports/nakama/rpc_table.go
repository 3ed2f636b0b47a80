package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
)

// TableResponse is the payload returned to clients asking for a session's table match.
type TableResponse struct {
	Session string `json:"session"`
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

// rpcGameTable finds the table match following a session, creating it when
// none is running.
func (m *module) rpcGameTable(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", toRuntimeError(err)
	}
	if _, err := m.svc.Status(ctx, req.Session); err != nil {
		return "", toRuntimeError(err)
	}

	if id, ok := m.tableID(req.Session); ok {
		return encodeResponse(TableResponse{Session: req.Session, MatchID: id})
	}

	query := fmt.Sprintf("+label.game:dragonsea +label.session:%q", req.Session)
	minSize := 0
	maxSize := 1024
	matches, err := nk.MatchList(ctx, 1, true, "", &minSize, &maxSize, query)
	if err != nil {
		logger.Error("rpcGameTable: MatchList error: %v", err)
		return "", toRuntimeError(err)
	}
	if len(matches) > 0 {
		id := matches[0].GetMatchId()
		m.setTable(req.Session, id)
		return encodeResponse(TableResponse{Session: req.Session, MatchID: id})
	}

	id, err := nk.MatchCreate(ctx, MatchNameDragonSea, map[string]interface{}{"session": req.Session})
	if err != nil {
		logger.Error("rpcGameTable: MatchCreate error: %v", err)
		return "", toRuntimeError(err)
	}
	m.setTable(req.Session, id)
	logger.Info("rpcGameTable: created table %s for session %s", id, req.Session)
	return encodeResponse(TableResponse{Session: req.Session, MatchID: id, IsNew: true})
}
