package utils

import (
	"sync"

	"github.com/google/uuid"
	"github.com/srand/jolt/datasync/pkg/log"
)

// A subscription to a Broadcast. Values are delivered on Chan until the
// consumer or the broadcast is closed.
type BroadcastConsumer[E any] struct {
	Chan      chan E
	ID        string
	Broadcast *Broadcast[E]
	dropped   int64
}

// Fans out values to any number of consumers. A slow consumer never blocks
// the sender: values that do not fit in its buffer are dropped.
type Broadcast[E any] struct {
	sync.RWMutex
	consumers map[string]*BroadcastConsumer[E]
	capacity  int
	closed    bool
}

func NewBroadcast[E any](capacity int) *Broadcast[E] {
	if capacity <= 0 {
		capacity = 16
	}
	return &Broadcast[E]{
		consumers: map[string]*BroadcastConsumer[E]{},
		capacity:  capacity,
	}
}

func (bc *Broadcast[E]) NewConsumer() *BroadcastConsumer[E] {
	consumer := &BroadcastConsumer[E]{
		Chan:      make(chan E, bc.capacity),
		ID:        uuid.NewString(),
		Broadcast: bc,
	}

	bc.Lock()
	defer bc.Unlock()

	if bc.closed {
		close(consumer.Chan)
		return consumer
	}

	bc.consumers[consumer.ID] = consumer
	return consumer
}

func (bc *Broadcast[E]) HasConsumer() bool {
	bc.RLock()
	defer bc.RUnlock()
	return len(bc.consumers) > 0
}

func (bc *Broadcast[E]) Close() {
	bc.Lock()
	defer bc.Unlock()

	if bc.closed {
		return
	}

	for _, consumer := range bc.consumers {
		close(consumer.Chan)
	}

	bc.consumers = map[string]*BroadcastConsumer[E]{}
	bc.closed = true
}

func (bc *Broadcast[E]) Remove(bcc *BroadcastConsumer[E]) bool {
	bc.Lock()
	defer bc.Unlock()
	_, ok := bc.consumers[bcc.ID]
	delete(bc.consumers, bcc.ID)
	return ok
}

func (bcc *BroadcastConsumer[E]) Close() {
	if bcc.Broadcast.Remove(bcc) {
		close(bcc.Chan)
	}
}

// Number of values that were dropped because the consumer fell behind.
func (bcc *BroadcastConsumer[E]) Dropped() int64 {
	bcc.Broadcast.RLock()
	defer bcc.Broadcast.RUnlock()
	return bcc.dropped
}

func (bc *Broadcast[E]) Send(data E) {
	bc.Lock()
	defer bc.Unlock()

	for _, c := range bc.consumers {
		select {
		case c.Chan <- data:
		default:
			c.dropped++
			log.Tracef("drop - broadcast - consumer: %s, dropped: %d", c.ID, c.dropped)
		}
	}
}
