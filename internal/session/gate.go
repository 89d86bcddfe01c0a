package session

import (
	"context"
	"fmt"
)

// SubscriptionGate decides whether a user may start a session. A denial
// error must carry the gate's reason verbatim so the caller sees it.
type SubscriptionGate interface {
	CheckAccess(ctx context.Context, userKey string) error
}

// AllowAll admits every user.
type AllowAll struct{}

func (AllowAll) CheckAccess(context.Context, string) error { return nil }

// StaticGate denies the listed users with a fixed reason each.
type StaticGate struct {
	Denied map[string]string // userKey -> reason
}

func (g StaticGate) CheckAccess(_ context.Context, userKey string) error {
	if reason, ok := g.Denied[userKey]; ok {
		return fmt.Errorf("%w: %s", ErrAccessDenied, reason)
	}
	return nil
}
