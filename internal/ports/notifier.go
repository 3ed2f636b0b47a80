package ports

import "context"

// Notification is a message addressed to a single user.
type Notification struct {
	Subject    string
	Code       int
	Content    map[string]interface{}
	Persistent bool
}

// NotifierPort delivers notifications to users outside of any match.
type NotifierPort interface {
	// Notify sends n to userID. Returns an error if delivery could not be queued.
	Notify(ctx context.Context, userID string, n Notification) error
}
