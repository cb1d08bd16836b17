package upload

import (
	"context"
	"sync"

	"github.com/janhq/gallery-api/internal/infrastructure/metrics"
)

// saga records every blob written by a batch so a failure can undo exactly those
// writes.
type saga struct {
	mu   sync.Mutex
	keys []string
}

func (s *saga) record(key string) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
}

func (s *saga) completed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// compensation is the outcome of undoing a saga.
type compensation struct {
	Deleted []string
	Failed  []string
}

// compensate deletes every recorded blob, newest first. Deletes are best effort and
// run on their own deadline so a cancelled or expired batch context cannot skip them.
func (c *Coordinator) compensate(ctx context.Context, session *Session, s *saga) compensation {
	keys := s.completed()
	out := compensation{}
	if len(keys) == 0 {
		return out
	}

	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.compensationTimeout)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if err := c.store.Delete(delCtx, key); err != nil {
			out.Failed = append(out.Failed, key)
			metrics.RecordCompensatingDelete("failed")
			c.log.Error().Err(err).
				Str("batch_id", session.BatchID).
				Str("key", key).
				Msg("compensating delete failed; blob may be orphaned")
			continue
		}
		out.Deleted = append(out.Deleted, key)
		metrics.RecordCompensatingDelete("deleted")
	}

	c.log.Warn().
		Str("batch_id", session.BatchID).
		Strs("compensated", out.Deleted).
		Strs("orphaned", out.Failed).
		Msg("upload batch rolled back")
	return out
}
