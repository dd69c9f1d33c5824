package trader

import (
	"context"
	"sync"

	"github.com/mirrorlabs/copytrader/pkg/logger"
	"github.com/mirrorlabs/copytrader/pkg/types"
)

// executeConcurrently fans one leader's unprocessed fills out over the
// worker pool. The store's claim CAS makes concurrent execution safe:
// workers that lose the claim race no-op. Returns how many fills were
// handed to the engine.
func (t *Trader) executeConcurrently(ctx context.Context, fills []*types.Activity) int {
	workChan := make(chan *types.Activity, t.workers)

	var wg sync.WaitGroup
	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for activity := range workChan {
				if err := t.engine.ExecuteTrade(ctx, activity); err != nil {
					logger.Sugar.Warnf("Execution failed for activity %s: %v", activity.ID, err)
				}
			}
		}()
	}

	dispatched := 0
	for _, activity := range fills {
		select {
		case <-ctx.Done():
			close(workChan)
			wg.Wait()
			return dispatched
		case workChan <- activity:
			dispatched++
		}
	}
	close(workChan)
	wg.Wait()
	return dispatched
}
