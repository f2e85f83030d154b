// Package storage owns the ordered list of subscriptions and dispatches
// change notifications for mutations.
package storage

import (
	"github.com/bnema/abpcore/internal/filter"
	"github.com/bnema/abpcore/internal/notifier"
	"github.com/bnema/abpcore/internal/subscription"
)

// Storage holds at most one subscription per id, in a caller-controlled
// order. Mutations on missing or duplicate subscriptions are silent no-ops.
type Storage struct {
	subscriptions []subscription.Subscription
	byID          map[string]subscription.Subscription
}

// New creates empty storage.
func New() *Storage {
	return &Storage{byID: make(map[string]subscription.Subscription)}
}

// SubscriptionCount returns the number of listed subscriptions.
func (s *Storage) SubscriptionCount() int { return len(s.subscriptions) }

// SubscriptionAt returns the subscription at index, or nil when out of
// bounds.
func (s *Storage) SubscriptionAt(index int) subscription.Subscription {
	if index < 0 || index >= len(s.subscriptions) {
		return nil
	}
	return s.subscriptions[index]
}

// IndexOfSubscription returns the position of a subscription, or -1.
func (s *Storage) IndexOfSubscription(sub subscription.Subscription) int {
	for i, held := range s.subscriptions {
		if held == sub {
			return i
		}
	}
	return -1
}

// GetSubscriptionForFilter returns the earliest-listed subscription
// containing the filter, or nil.
func (s *Storage) GetSubscriptionForFilter(f filter.Filter) subscription.Subscription {
	for _, held := range s.subscriptions {
		if held.IndexOfFilter(f) >= 0 {
			return held
		}
	}
	return nil
}

// AddSubscription appends a subscription. Already-listed subscriptions and
// id collisions are ignored.
func (s *Storage) AddSubscription(sub subscription.Subscription) {
	if sub.Listed() {
		return
	}
	if _, exists := s.byID[sub.ID()]; exists {
		return
	}
	s.subscriptions = append(s.subscriptions, sub)
	s.byID[sub.ID()] = sub
	sub.SetListed(true)
	notifier.SubscriptionChange(notifier.SubscriptionAdded, sub)
}

// RemoveSubscription removes a listed subscription.
func (s *Storage) RemoveSubscription(sub subscription.Subscription) {
	index := s.IndexOfSubscription(sub)
	if index < 0 {
		return
	}
	s.subscriptions = append(s.subscriptions[:index], s.subscriptions[index+1:]...)
	delete(s.byID, sub.ID())
	sub.SetListed(false)
	notifier.SubscriptionChange(notifier.SubscriptionRemoved, sub)
}

// MoveSubscription reorders a subscription to newIndex (clamped). It
// reports whether anything moved.
func (s *Storage) MoveSubscription(sub subscription.Subscription, newIndex int) bool {
	index := s.IndexOfSubscription(sub)
	if index < 0 {
		return false
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex >= len(s.subscriptions) {
		newIndex = len(s.subscriptions) - 1
	}
	if newIndex == index {
		return false
	}

	s.subscriptions = append(s.subscriptions[:index], s.subscriptions[index+1:]...)
	s.subscriptions = append(s.subscriptions, nil)
	copy(s.subscriptions[newIndex+1:], s.subscriptions[newIndex:])
	s.subscriptions[newIndex] = sub
	notifier.SubscriptionChange(notifier.SubscriptionMoved, sub)
	return true
}

// ClearSubscriptionFilters replaces a listed subscription's filters with an
// empty sequence.
func (s *Storage) ClearSubscriptionFilters(sub subscription.Subscription) {
	if s.IndexOfSubscription(sub) < 0 {
		return
	}
	notifier.SubscriptionChange(notifier.SubscriptionBeforeFiltersReplaced, sub)
	sub.SetFilters(nil)
	notifier.SubscriptionChange(notifier.SubscriptionFiltersReplaced, sub)
}
