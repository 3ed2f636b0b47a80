package nakama

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"dragonsea/internal/config"
	"dragonsea/internal/telemetry"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires RPCs and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	cfg, err := config.Parse(env)
	if err != nil {
		logger.Error("InitModule: %v", err)
		return err
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.OtelEndpoint, cfg.TracingEnabled())
	if err != nil {
		logger.Warn("InitModule: tracing disabled: %v", err)
	} else if err := initializer.RegisterShutdown(func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) {
		if err := shutdown(ctx); err != nil {
			logger.Warn("Shutdown: tracer provider: %v", err)
		}
	}); err != nil {
		return err
	}

	store := NewNakamaStorageAdapter(nk)
	m := newModule(cfg, store, store, NewNakamaNotifierAdapter(nk), rand.New(rand.NewSource(time.Now().UnixNano())))
	if err := m.load(ctx, logger); err != nil {
		logger.Error("InitModule: failed to load decks and sessions: %v", err)
		return err
	}

	if err := m.registerRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameDragonSea, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(m), nil
	}); err != nil {
		return err
	}

	logger.Info("Dragon Sea Go module loaded: %d decks, %d sessions.", m.catalog.Len(), m.svc.Registry().Len())
	return nil
}

// registerRPCs registers Nakama RPC endpoints.
func (m *module) registerRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]rpcFunc{
		RpcDeckCreate:      m.rpcDeckCreate,
		RpcDeckAddCard:     m.rpcDeckAddCard,
		RpcDeckRemoveCard:  m.rpcDeckRemoveCard,
		RpcDeckDelete:      m.rpcDeckDelete,
		RpcDeckList:        m.rpcDeckList,
		RpcDeckCards:       m.rpcDeckCards,
		RpcGameStart:       m.rpcGameStart,
		RpcGameEnd:         m.rpcGameEnd,
		RpcGameNextTurn:    m.rpcGameNextTurn,
		RpcGameStatus:      m.rpcGameStatus,
		RpcGameTable:       m.rpcGameTable,
		RpcPeek:            m.rpcPeek,
		RpcPeekOffer:       m.rpcPeekOffer,
		RpcDecisionResolve: m.rpcDecisionResolve,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, traced(id, fn)); err != nil {
			return err
		}
	}
	return nil
}
