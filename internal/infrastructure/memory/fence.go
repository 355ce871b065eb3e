package memory

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/services/jam-service/internal/domain"
)

// Fence is an in-process MessageFence. A failed fn leaves the id unmarked so
// a redelivery can retry it.
type Fence struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var _ domain.MessageFence = (*Fence)(nil)

func NewFence() *Fence {
	return &Fence{seen: make(map[string]struct{})}
}

func (f *Fence) ProcessOnce(ctx context.Context, messageID, handler string, fn func(ctx context.Context) error) (bool, error) {
	key := handler + "/" + messageID

	// held across fn so a concurrent duplicate waits for the outcome
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return false, nil
	}
	if err := fn(ctx); err != nil {
		return false, err
	}
	f.seen[key] = struct{}{}
	return true, nil
}
