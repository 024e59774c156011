package match

import (
	"context"
	"log"
	"time"

	"github.com/euras-play/backend/internal/config"
	"github.com/euras-play/backend/internal/store"
)

// StartQueueJanitor runs a background sweep deleting queue entries that fell
// out of the staleness window long ago. Stale entries are already invisible
// to the candidate query, so this is housekeeping, not correctness.
func StartQueueJanitor(ctx context.Context, st store.Store, cfg *config.Config) {
	if !cfg.QueueJanitorEnabled {
		log.Printf("[JANITOR] Queue janitor disabled")
		return
	}

	interval := time.Duration(cfg.QueueJanitorPollSecs) * time.Second
	retention := time.Duration(cfg.QueueRetentionSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[JANITOR] Starting queue janitor (poll every %v, retention %v)", interval, retention)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[JANITOR] Queue janitor stopped")
			return
		case <-ticker.C:
			sweepQueue(ctx, st, retention)
		}
	}
}

func sweepQueue(ctx context.Context, st store.Store, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	docs, err := st.Query(ctx, store.Query{
		Collection: QueueCollection,
		Filters: []store.Filter{
			{Field: "joinedAt", Op: store.OpLess, Value: store.EncodeTime(cutoff)},
		},
	})
	if err != nil {
		log.Printf("[JANITOR] Failed to scan queue: %v", err)
		return
	}
	if len(docs) == 0 {
		return
	}

	removed := 0
	for _, d := range docs {
		if err := st.Delete(ctx, QueueCollection, d.ID); err != nil {
			log.Printf("[JANITOR] Failed to delete queue entry %s: %v", d.ID, err)
			continue
		}
		removed++
	}
	log.Printf("[JANITOR] Removed %d abandoned queue entries", removed)
}
