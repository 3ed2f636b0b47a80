package nakama

// RPC ids registered with Nakama.
const (
	RpcDeckCreate     = "deck_create"
	RpcDeckAddCard    = "deck_add_card"
	RpcDeckRemoveCard = "deck_remove_card"
	RpcDeckDelete     = "deck_delete"
	RpcDeckList       = "deck_list"
	RpcDeckCards      = "deck_cards"

	RpcGameStart    = "game_start"
	RpcGameEnd      = "game_end"
	RpcGameNextTurn = "game_next_turn"
	RpcGameStatus   = "game_status"
	RpcGameTable    = "game_table"

	RpcPeek            = "peek"
	RpcPeekOffer       = "peek_offer"
	RpcDecisionResolve = "decision_resolve"
)

// MatchNameDragonSea is the authoritative match handler name registered with Nakama.
// One match per session lets clients watch the table.
const MatchNameDragonSea = "dragonsea_table"

// Storage collections. Objects are owned by the system user.
const (
	CollectionSessions = "dragonsea_sessions"
	CollectionDecks    = "dragonsea_decks"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpRequestStatus int64 = 1

	// Server -> Client events
	OpSessionStarted     int64 = 101
	OpTurnAdvanced       int64 = 102
	OpCardsRevealed      int64 = 103
	OpSpecialCardMissing int64 = 104
	OpDeckExhausted      int64 = 105
	OpKeepInPlay         int64 = 106
	OpEndAfterTurn       int64 = 107
	OpBlackSwan          int64 = 108
	OpDecisionOffered    int64 = 109 // sent privately
	OpDecisionResolved   int64 = 110 // sent privately
	OpDecisionClosed     int64 = 111 // sent privately
	OpGameOver           int64 = 112
	OpSessionEnded       int64 = 113
	OpTableStatus        int64 = 120
	OpTableError         int64 = 121
)

// Notification codes for events addressed to a single user.
const (
	NotifyDecisionOffered  = 1001
	NotifyDecisionResolved = 1002
	NotifyDecisionClosed   = 1003
	NotifyCardPeeked       = 1004
)

// Error codes passed to runtime.NewError, following gRPC status codes.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codeAlreadyExists      = 6
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeInternal           = 13
)
