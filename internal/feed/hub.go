// Package feed pushes whole-ledger snapshots to connected clients.
//
// Every mutation produces a fresh snapshot for the affected user; the
// hub fans it out to that user's subscribers. Delivery channels hold a
// single pending snapshot, so a slow reader only ever sees the most
// recent state rather than an unbounded backlog of intermediates.
package feed

import (
	"context"
	"sync"

	"paydeck/internal/core"
	"paydeck/internal/log"
	"paydeck/internal/storage"
)

// Subscription is one client's live view of a user's ledger.
type Subscription struct {
	C      <-chan core.Snapshot
	ch     chan core.Snapshot
	hub    *Hub
	userID string
	once   sync.Once
}

// Close detaches the subscription from the hub. Safe to call more than
// once and safe to call concurrently with deliveries.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub tracks per-user subscriber sets and reloads snapshots on demand.
type Hub struct {
	lister storage.SnapshotLister
	logger *log.Logger

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub(lister storage.SnapshotLister, logger *log.Logger) *Hub {
	return &Hub{
		lister: lister,
		logger: logger,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a live feed for userID. The current snapshot is
// delivered immediately, before any subsequent updates. The
// subscription is torn down when ctx is cancelled or Close is called.
func (h *Hub) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	snap, err := h.lister.ListSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ch:     make(chan core.Snapshot, 1),
		hub:    h,
		userID: userID,
	}
	sub.C = sub.ch
	sub.ch <- snap

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Notify reloads userID's snapshot and delivers it to every subscriber.
// Users with no subscribers skip the reload entirely.
func (h *Hub) Notify(ctx context.Context, userID string) {
	h.mu.Lock()
	n := len(h.subs[userID])
	h.mu.Unlock()
	if n == 0 {
		return
	}

	snap, err := h.lister.ListSnapshot(ctx, userID)
	if err != nil {
		h.logger.Error("snapshot reload failed",
			log.FieldUserID, userID,
			log.FieldError, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[userID] {
		// Drop the stale pending snapshot, if any, then queue the new one.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snap:
		default:
		}
	}
}

// Subscribers reports how many live subscriptions userID has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.userID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
}
