package pubsub

import (
	"context"
	"fmt"
	"sync"

	"shopify-improvement-core/internal/domain"

	"github.com/rs/zerolog"
)

// subscriptionBuffer is the per-subscriber queue length; events beyond it are dropped
const subscriptionBuffer = 16

// Subscription receives improvement events until its context is cancelled
type Subscription struct {
	ID     string
	Filter *EventFilter
	Events chan *domain.ImprovementEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// EventFilter restricts a subscription to some kinds and/or one shop
type EventFilter struct {
	Kinds []domain.ImprovementEventKind
	Shop  string
}

// ImprovementPubSub fans improvement events out to in-process subscribers
type ImprovementPubSub struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	logger        zerolog.Logger
	nextID        int64
	idMu          sync.Mutex
}

// NewImprovementPubSub creates an empty pub/sub
func NewImprovementPubSub(logger zerolog.Logger) *ImprovementPubSub {
	return &ImprovementPubSub{
		subscriptions: make(map[string]*Subscription),
		logger:        logger,
	}
}

// Subscribe registers a subscription that is removed when ctx is done
func (ps *ImprovementPubSub) Subscribe(ctx context.Context, filter *EventFilter) *Subscription {
	ps.idMu.Lock()
	ps.nextID++
	id := fmt.Sprintf("sub-%d", ps.nextID)
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		ID:     id,
		Filter: filter,
		Events: make(chan *domain.ImprovementEvent, subscriptionBuffer),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.subscriptions[id] = sub
	ps.mu.Unlock()

	ps.logger.Debug().Str("subscriptionId", id).Msg("Improvement subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return sub
}

// Unsubscribe closes and removes a subscription; unknown ids are ignored
func (ps *ImprovementPubSub) Unsubscribe(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	sub, ok := ps.subscriptions[id]
	if !ok {
		return
	}
	close(sub.Events)
	close(sub.Done)
	sub.cancel()
	delete(ps.subscriptions, id)

	ps.logger.Debug().Str("subscriptionId", id).Msg("Improvement subscription removed")
}

// Publish delivers event to every matching subscriber without blocking
func (ps *ImprovementPubSub) Publish(event *domain.ImprovementEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	delivered := 0
	for _, sub := range ps.subscriptions {
		if !matches(event, sub.Filter) {
			continue
		}
		select {
		case sub.Events <- event:
			delivered++
		case <-sub.ctx.Done():
		default:
			ps.logger.Warn().
				Str("subscriptionId", sub.ID).
				Str("kind", string(event.Kind)).
				Msg("Subscription buffer full, dropping event")
		}
	}

	if delivered > 0 {
		ps.logger.Debug().
			Str("kind", string(event.Kind)).
			Str("shop", event.Shop).
			Int("subscribers", delivered).
			Msg("Published improvement event")
	}
}

// ActiveSubscriptions returns the number of live subscriptions
func (ps *ImprovementPubSub) ActiveSubscriptions() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscriptions)
}

func matches(event *domain.ImprovementEvent, filter *EventFilter) bool {
	if filter == nil {
		return true
	}
	if len(filter.Kinds) > 0 {
		found := false
		for _, kind := range filter.Kinds {
			if event.Kind == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return filter.Shop == "" || event.Shop == filter.Shop
}
