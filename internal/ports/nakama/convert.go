package nakama

import (
	"encoding/json"
	"errors"
	"fmt"

	"dragonsea/internal/app"
	"dragonsea/internal/catalog"
	"dragonsea/internal/domain"
	"dragonsea/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var eventOpCodes = map[app.EventKind]int64{
	app.EventSessionStarted:     OpSessionStarted,
	app.EventTurnAdvanced:       OpTurnAdvanced,
	app.EventCardsRevealed:      OpCardsRevealed,
	app.EventSpecialCardMissing: OpSpecialCardMissing,
	app.EventDeckExhausted:      OpDeckExhausted,
	app.EventKeepInPlay:         OpKeepInPlay,
	app.EventEndAfterTurn:       OpEndAfterTurn,
	app.EventBlackSwan:          OpBlackSwan,
	app.EventDecisionOffered:    OpDecisionOffered,
	app.EventDecisionResolved:   OpDecisionResolved,
	app.EventDecisionClosed:     OpDecisionClosed,
	app.EventGameOver:           OpGameOver,
	app.EventSessionEnded:       OpSessionEnded,
}

var notificationCodes = map[app.EventKind]int{
	app.EventDecisionOffered:  NotifyDecisionOffered,
	app.EventDecisionResolved: NotifyDecisionResolved,
	app.EventDecisionClosed:   NotifyDecisionClosed,
}

var jsonOptions = protojson.MarshalOptions{EmitUnpopulated: true}

// toStruct converts any JSON-encodable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// eventEnvelope wraps an app event for delivery to a table match.
func eventEnvelope(sessionKey string, ev app.Event) (*structpb.Struct, error) {
	payload, err := toStruct(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s payload: %w", ev.Kind, err)
	}
	recipients := make([]interface{}, 0, len(ev.Recipients))
	for _, r := range ev.Recipients {
		recipients = append(recipients, r)
	}
	list, err := structpb.NewList(recipients)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"kind":       structpb.NewStringValue(string(ev.Kind)),
		"session":    structpb.NewStringValue(sessionKey),
		"recipients": structpb.NewListValue(list),
		"payload":    structpb.NewStructValue(payload),
	}}, nil
}

// envelopeKind returns the event kind and recipients carried by an envelope.
func envelopeKind(env *structpb.Struct) (app.EventKind, []string) {
	fields := env.GetFields()
	kind := app.EventKind(fields["kind"].GetStringValue())
	var recipients []string
	for _, v := range fields["recipients"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			recipients = append(recipients, s)
		}
	}
	return kind, recipients
}

// notificationFor builds the notification sent for an event addressed to one user.
func notificationFor(sessionKey string, ev app.Event) (ports.Notification, error) {
	payload, err := toStruct(ev.Payload)
	if err != nil {
		return ports.Notification{}, fmt.Errorf("failed to convert %s payload: %w", ev.Kind, err)
	}
	content := payload.AsMap()
	content["session"] = sessionKey
	return ports.Notification{
		Subject:    string(ev.Kind),
		Code:       notificationCodes[ev.Kind],
		Content:    content,
		Persistent: ev.Kind == app.EventDecisionOffered,
	}, nil
}

// labelString renders a match label the way clients query it.
func labelString(label domain.LabelPayload) (string, error) {
	s, err := toStruct(label)
	if err != nil {
		return "", err
	}
	b, err := jsonOptions.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var errBadPayload = errors.New("invalid payload")

// toRuntimeError maps domain and app errors to Nakama runtime errors.
func toRuntimeError(err error) error {
	if err == nil {
		return nil
	}
	var rtErr *runtime.Error
	if errors.As(err, &rtErr) {
		return err
	}
	code := codeInternal
	switch {
	case errors.Is(err, errBadPayload),
		errors.Is(err, domain.ErrInvalidDeckType),
		errors.Is(err, domain.ErrInvalidChoice),
		errors.Is(err, domain.ErrInvalidDecisionKind),
		errors.Is(err, catalog.ErrInvalidDeckName),
		errors.Is(err, app.ErrEmptySessionKey):
		code = codeInvalidArgument
	case errors.Is(err, domain.ErrDeckNotFound),
		errors.Is(err, domain.ErrCardNotFound),
		errors.Is(err, domain.ErrNoSuchSession),
		errors.Is(err, domain.ErrUnknownHandle):
		code = codeNotFound
	case errors.Is(err, domain.ErrNotObserver):
		code = codePermissionDenied
	case errors.Is(err, domain.ErrDeckAlreadyExists),
		errors.Is(err, domain.ErrSessionAlreadyExists):
		code = codeAlreadyExists
	case errors.Is(err, domain.ErrIncompleteDeckSet),
		errors.Is(err, domain.ErrGameAlreadyOver),
		errors.Is(err, domain.ErrPileExhausted),
		errors.Is(err, domain.ErrDecisionStale),
		errors.Is(err, domain.ErrDecisionClosed),
		errors.Is(err, domain.ErrDecisionConflict),
		errors.Is(err, app.ErrTokensDisabled):
		code = codeFailedPrecondition
	}
	if code == codeInternal {
		return runtime.NewError("internal error", code)
	}
	return runtime.NewError(err.Error(), code)
}
