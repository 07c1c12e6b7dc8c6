// Package queue provides the per-guild track queue with auto-refill.
package queue

import (
	"context"
	"math/rand"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/domain/track"
)

// RefillSource supplies tracks when the queue runs dry with auto-queue
// enabled. generatorID 0 means the random playlist source.
type RefillSource interface {
	Fetch(ctx context.Context, guildID string, generatorID int) ([]track.Reference, error)
}

// Queue is a concurrency-safe FIFO of track references.
type Queue struct {
	mu      sync.RWMutex
	guildID string
	items   []track.Reference

	autoQueue     bool
	generatorID   int
	shuffleRefill bool

	refill RefillSource
}

// New creates a queue for the given guild. refill may be nil, in which
// case auto-queue never refills.
func New(guildID string, refill RefillSource) *Queue {
	return &Queue{
		guildID: guildID,
		items:   make([]track.Reference, 0),
		refill:  refill,
	}
}

// Enqueue appends references in order.
func (q *Queue) Enqueue(refs ...track.Reference) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, refs...)
}

// EnqueueNext prepends references so the first one plays next,
// preserving their given order.
func (q *Queue) EnqueueNext(refs ...track.Reference) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(append(make([]track.Reference, 0, len(refs)+len(q.items)), refs...), q.items...)
}

// Advance pops the head of the queue. When the queue is empty and
// auto-queue is enabled it refills from the configured source first.
// The second return value is false when nothing is left to play;
// refill failures end the queue rather than surfacing an error.
func (q *Queue) Advance(ctx context.Context) (track.Reference, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if !q.autoQueue || q.refill == nil {
			return track.Reference{}, false
		}

		refs, err := q.refillLocked(ctx)
		if err != nil {
			zlog.Warn().Msgf("queue: auto-queue refill failed: guild=%s generator=%d err=%v",
				q.guildID, q.generatorID, err)
			return track.Reference{}, false
		}
		if len(refs) == 0 {
			return track.Reference{}, false
		}
		if q.shuffleRefill {
			rand.Shuffle(len(refs), func(i, j int) {
				refs[i], refs[j] = refs[j], refs[i]
			})
		}
		q.items = append(q.items, refs...)
	}

	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// refillLocked fetches from the refill source. The lock stays held so a
// concurrent Advance cannot double-refill; fetches are quick HTTP calls.
func (q *Queue) refillLocked(ctx context.Context) ([]track.Reference, error) {
	zlog.Debug().Msgf("queue: auto-queue refilling: guild=%s generator=%d", q.guildID, q.generatorID)
	return q.refill.Fetch(ctx, q.guildID, q.generatorID)
}

// Shuffle permutes the pending items in place (Fisher-Yates).
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
}

// Clear drops all pending items and returns how many were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = make([]track.Reference, 0)
	return n
}

// SetAutoQueue enables or disables auto-refill. generatorID 0 selects
// the random playlist source.
func (q *Queue) SetAutoQueue(enabled bool, generatorID int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.autoQueue = enabled
	q.generatorID = generatorID
}

// SetRefillShuffle shuffles each refilled batch before it plays.
func (q *Queue) SetRefillShuffle(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shuffleRefill = enabled
}

// AutoQueue reports the current auto-queue setting.
func (q *Queue) AutoQueue() (enabled bool, generatorID int) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.autoQueue, q.generatorID
}

// Snapshot returns a copy of the pending items.
func (q *Queue) Snapshot() []track.Reference {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]track.Reference, len(q.items))
	copy(result, q.items)
	return result
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}
