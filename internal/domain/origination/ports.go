package origination

import "context"

// InFlightGuard is the per-account busy flag. Acquire reports false when
// another transaction already holds the key; otherwise it returns the token
// that Release must present. Release of a token that no longer holds the key
// is a no-op.
type InFlightGuard interface {
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// NotificationFeed keeps the recent transient notifications of an account.
type NotificationFeed interface {
	Push(ctx context.Context, account string, n Notification) error
	Recent(ctx context.Context, account string, limit int) ([]Notification, error)
}
