package events

import (
	"context"
	"sync"
)

// PipelineEvent is one progress update from a pipeline run, streamed to
// dashboard clients over SSE.
type PipelineEvent struct {
	RunID   string         `json:"runId"`
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Ts      string         `json:"ts"`
	Payload map[string]any `json:"payload"`
}

// Broker is an in-process fan-out of pipeline events keyed by run id.
// Publishing never blocks: a subscriber that falls behind its buffer loses
// events rather than stalling the run.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan PipelineEvent]struct{}
	nextSeq     map[string]int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan PipelineEvent]struct{}{},
		nextSeq:     map[string]int64{},
	}
}

// Subscribe registers a listener for one run's events. The channel is closed
// and the registration removed when ctx ends.
func (b *Broker) Subscribe(ctx context.Context, runID string) <-chan PipelineEvent {
	ch := make(chan PipelineEvent, 16)

	b.mu.Lock()
	if b.subscribers[runID] == nil {
		b.subscribers[runID] = map[chan PipelineEvent]struct{}{}
	}
	b.subscribers[runID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[runID] != nil {
			delete(b.subscribers[runID], ch)
			if len(b.subscribers[runID]) == 0 {
				delete(b.subscribers, runID)
				delete(b.nextSeq, runID)
			}
		}
		// Closed inside the critical section: Publish delivers under the same
		// lock, so it can never send on a channel already closed here.
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish assigns the event its per-run sequence number and delivers it to
// every current subscriber of that run.
func (b *Broker) Publish(event PipelineEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq[event.RunID]++
	event.Seq = b.nextSeq[event.RunID]
	// Delivery stays under the lock so unsubscription cannot close a channel
	// mid-send. The sends are non-blocking, so the hold time is bounded.
	for ch := range b.subscribers[event.RunID] {
		select {
		case ch <- event:
		default:
		}
	}
}
