package memory

import (
	"context"
	"time"

	"github.com/dmehra2102/inventory-order-system/pkg/outbox"
)

// The methods below let the outbox relay drain events settled in memory.

func (s *Store) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var batch []outbox.Event
	for i := range s.events {
		if len(batch) == batchSize {
			break
		}
		ev := &s.events[i]
		claimable := ev.Status == outbox.StatusPending ||
			(ev.Status == outbox.StatusInProgress && now.After(s.leases[ev.ID]))
		if !claimable {
			continue
		}
		ev.Status = outbox.StatusInProgress
		ev.RelayID = relayID
		s.leases[ev.ID] = now.Add(lease)
		batch = append(batch, *ev)
	}
	return batch, nil
}

func (s *Store) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if ev := s.event(id); ev != nil {
			ev.Status = outbox.StatusSent
			delete(s.leases, id)
		}
	}
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.event(id)
	if ev == nil {
		return nil
	}
	ev.RetryCount++
	ev.LastError = &errMsg
	ev.Status = outbox.StatusPending
	if ev.RetryCount >= outbox.MaxRetries {
		ev.Status = outbox.StatusFailed
	}
	delete(s.leases, id)
	return nil
}

// Events returns a copy of every event written so far.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) event(id int64) *outbox.Event {
	for i := range s.events {
		if s.events[i].ID == id {
			return &s.events[i]
		}
	}
	return nil
}
