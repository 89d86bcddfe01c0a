package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Reconcile force-closes every persisted non-CLOSED session. Run once at
// boot, before the API starts taking requests: any such session belonged
// to a previous process and has no in-memory owner left.
func Reconcile(ctx context.Context, store Store) (int, error) {
	orphans, err := store.ListNonClosedSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions for reconciliation: %w", err)
	}

	closed := 0
	for _, s := range orphans {
		if err := store.CloseSession(ctx, s.ID, "orphaned", s.TradeCount); err != nil {
			// Retry once, then leave it for the next start() to pick up.
			if err := store.CloseSession(ctx, s.ID, "orphaned", s.TradeCount); err != nil {
				log.Error().Err(err).Str("session", s.ID).Msg("reconciliation close failed")
				continue
			}
		}
		closed++
		log.Warn().
			Str("user", s.UserID).
			Str("session", s.ID).
			Str("state", s.State).
			Msg("⚠️ orphaned session force-closed at boot")
	}
	if closed > 0 {
		log.Info().Int("closed", closed).Msg("startup reconciliation complete")
	}
	return closed, nil
}
