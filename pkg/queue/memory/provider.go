package memory

import (
	"context"
	"sync"
	"time"

	"elasticpool/pkg/interfaces"

	"github.com/google/uuid"
)

type lease struct {
	body     string
	deadline time.Time
}

// MemoryQueueProvider process-local queue with visibility-timeout leases.
// Used by tests and single-process development setups.
type MemoryQueueProvider struct {
	name       string
	visibility time.Duration
	now        func() time.Time

	mu      sync.Mutex
	pending []string
	leases  map[string]lease
	arrived chan struct{} // closed and replaced on every Send
}

// NewMemoryQueueProvider creates an in-memory queue
func NewMemoryQueueProvider(name string, visibility time.Duration) *MemoryQueueProvider {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &MemoryQueueProvider{
		name:       name,
		visibility: visibility,
		now:        time.Now,
		leases:     make(map[string]lease),
		arrived:    make(chan struct{}),
	}
}

// SetClock overrides the time source used for lease deadlines
func (q *MemoryQueueProvider) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Send enqueues one message
func (q *MemoryQueueProvider) Send(ctx context.Context, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, body)
	q.notifyLocked()
	return nil
}

func (q *MemoryQueueProvider) notifyLocked() {
	close(q.arrived)
	q.arrived = make(chan struct{})
}

// Receive leases up to maxMessages, waiting up to wait for the first one
func (q *MemoryQueueProvider) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]*interfaces.Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		q.mu.Lock()
		msgs := q.claimLocked(maxMessages)
		arrived := q.arrived
		q.mu.Unlock()

		if len(msgs) > 0 || wait <= 0 {
			return msgs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			q.mu.Lock()
			msgs = q.claimLocked(maxMessages)
			q.mu.Unlock()
			return msgs, nil
		case <-arrived:
		case <-time.After(50 * time.Millisecond):
			// expired leases become visible without a Send
		}
	}
}

// claimLocked requeues expired leases then leases up to max pending messages
func (q *MemoryQueueProvider) claimLocked(max int) []*interfaces.Message {
	now := q.now()
	for token, l := range q.leases {
		if !now.Before(l.deadline) {
			delete(q.leases, token)
			q.pending = append([]string{l.body}, q.pending...)
		}
	}

	n := max
	if n > len(q.pending) {
		n = len(q.pending)
	}
	msgs := make([]*interfaces.Message, 0, n)
	for i := 0; i < n; i++ {
		body := q.pending[0]
		q.pending = q.pending[1:]
		token := uuid.NewString()
		deadline := now.Add(q.visibility)
		q.leases[token] = lease{body: body, deadline: deadline}
		msgs = append(msgs, &interfaces.Message{
			Body:               body,
			ReceiptToken:       token,
			VisibilityDeadline: deadline,
		})
	}
	return msgs
}

// Delete acknowledges a leased message
func (q *MemoryQueueProvider) Delete(ctx context.Context, receiptToken string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.leases, receiptToken)
	return nil
}

// Release makes a leased message visible again immediately
func (q *MemoryQueueProvider) Release(ctx context.Context, receiptToken string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.leases[receiptToken]
	if !ok {
		return interfaces.ErrLeaseNotFound
	}
	delete(q.leases, receiptToken)
	q.pending = append([]string{l.body}, q.pending...)
	q.notifyLocked()
	return nil
}

// Stats returns pending and leased counts
func (q *MemoryQueueProvider) Stats() *interfaces.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return &interfaces.QueueStats{
		Name:         q.name,
		PendingCount: len(q.pending),
		LeasedCount:  len(q.leases),
	}
}

// Close closes queue connection
func (q *MemoryQueueProvider) Close() error {
	return nil
}
