package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"reward-ledger/internal/sui"
)

// LedgerTrigger subscribes to filters on ws and emits one tick per burst of
// notifications. Ticks coalesce while the receiver is busy. The returned channel
// closes when ctx is done or every subscription has ended.
func LedgerTrigger(ctx context.Context, ws sui.WSClient, logger *slog.Logger, filters ...sui.EventFilter) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.Default()
	}

	subs := make([]<-chan sui.EventNotification, 0, len(filters))
	for _, f := range filters {
		ch, err := ws.SubscribeEvents(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", f.MoveEventType, err)
		}
		subs = append(subs, ch)
	}

	out := make(chan struct{}, 1)
	var wg sync.WaitGroup
	for i, ch := range subs {
		wg.Add(1)
		go func(eventType string, ch <-chan sui.EventNotification) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case n, ok := <-ch:
					if !ok {
						logger.Warn("refresh: ledger subscription closed", "eventType", eventType)
						return
					}
					logger.Debug("refresh: ledger event", "eventType", eventType, "txDigest", n.Event.ID.TxDigest)
					select {
					case out <- struct{}{}:
					default:
					}
				}
			}
		}(filters[i].MoveEventType, ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}
