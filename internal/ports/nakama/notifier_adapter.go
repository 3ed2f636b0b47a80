package nakama

import (
	"context"
	"fmt"

	"dragonsea/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaNotifierAdapter implements ports.NotifierPort using Nakama notifications.
type NakamaNotifierAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaNotifierAdapter creates a new notifier adapter.
func NewNakamaNotifierAdapter(nk runtime.NakamaModule) *NakamaNotifierAdapter {
	return &NakamaNotifierAdapter{nk: nk}
}

// Notify sends a system notification to userID.
func (a *NakamaNotifierAdapter) Notify(ctx context.Context, userID string, n ports.Notification) error {
	if userID == "" {
		return fmt.Errorf("userID is required")
	}
	if err := a.nk.NotificationSend(ctx, userID, n.Subject, n.Content, n.Code, "", n.Persistent); err != nil {
		return fmt.Errorf("failed to notify user %s: %w", userID, err)
	}
	return nil
}

var _ ports.NotifierPort = (*NakamaNotifierAdapter)(nil)
