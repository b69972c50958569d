package state

import (
	"sync"
	"time"

	"github.com/pucco93/ebsi-access-control/internal/core/domain"
	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

// collection is the in-memory EntityCollection. It shares the store mutex so
// snapshots observe a consistent view across kinds.
type collection[T any, K comparable] struct {
	mu       *sync.RWMutex
	items    []T
	keys     []K
	outcomes domain.Outcomes[T]
	nameOf   func(T) string
	keyName  func(K) string
	clone    func(T) T
	now      func() time.Time
}

func newCollection[T any, K comparable](mu *sync.RWMutex, nameOf func(T) string, keyName func(K) string, clone func(T) T, now func() time.Time) *collection[T, K] {
	return &collection[T, K]{
		mu:      mu,
		items:   []T{},
		keys:    []K{},
		nameOf:  nameOf,
		keyName: keyName,
		clone:   clone,
		now:     now,
	}
}

var (
	_ port.EntityCollection[domain.Permission, domain.Identifier] = (*collection[domain.Permission, domain.Identifier])(nil)
	_ port.EntityCollection[domain.User, string]                  = (*collection[domain.User, string])(nil)
)

func (c *collection[T, K]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyItems()
}

func (c *collection[T, K]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]K{}, c.keys...)
}

func (c *collection[T, K]) Contains(key K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasKey(key) || c.hasName(c.keyName(key))
}

func (c *collection[T, K]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make([]T, 0, len(items))
	for _, item := range items {
		c.items = append(c.items, c.clone(item))
	}
}

func (c *collection[T, K]) ReplaceKeys(keys []K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(make([]K, 0, len(keys)), keys...)
}

func (c *collection[T, K]) Add(item T, key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasName(c.nameOf(item)) {
		return false
	}
	c.items = append(c.items, c.clone(item))
	if !c.hasKey(key) {
		c.keys = append(c.keys, key)
	}
	return true
}

func (c *collection[T, K]) AddKey(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasKey(key) || c.hasName(c.keyName(key)) {
		return false
	}
	c.keys = append(c.keys, key)
	return true
}

func (c *collection[T, K]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.keyName(key)
	removed := false

	items := c.items[:0]
	for _, item := range c.items {
		if c.nameOf(item) == name {
			removed = true
			continue
		}
		items = append(items, item)
	}
	c.items = items

	keys := c.keys[:0]
	for _, k := range c.keys {
		if k == key {
			removed = true
			continue
		}
		keys = append(keys, k)
	}
	c.keys = keys

	return removed
}

func (c *collection[T, K]) KeysWithout(key K) []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	remaining := make([]K, 0, len(c.keys))
	for _, k := range c.keys {
		if k != key {
			remaining = append(remaining, k)
		}
	}
	return remaining
}

func (c *collection[T, K]) SetOutcome(op domain.OutcomeOperation, outcome *domain.Outcome[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if outcome != nil {
		copied := *outcome
		copied.Entity = c.clone(outcome.Entity)
		if copied.Recorded.IsZero() {
			copied.Recorded = c.now().UTC()
		}
		outcome = &copied
	}
	switch op {
	case domain.OperationCreated:
		c.outcomes.Created = outcome
	case domain.OperationDeleted:
		c.outcomes.Deleted = outcome
	case domain.OperationUpdated:
		c.outcomes.Updated = outcome
	}
}

func (c *collection[T, K]) Outcome(op domain.OutcomeOperation) *domain.Outcome[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch op {
	case domain.OperationCreated:
		return c.copyOutcome(c.outcomes.Created)
	case domain.OperationDeleted:
		return c.copyOutcome(c.outcomes.Deleted)
	case domain.OperationUpdated:
		return c.copyOutcome(c.outcomes.Updated)
	}
	return nil
}

// view must be called with the lock held.
func (c *collection[T, K]) view() domain.CollectionView[T, K] {
	return domain.CollectionView[T, K]{
		Items: c.copyItems(),
		Keys:  append([]K{}, c.keys...),
		Outcomes: domain.Outcomes[T]{
			Created: c.copyOutcome(c.outcomes.Created),
			Deleted: c.copyOutcome(c.outcomes.Deleted),
			Updated: c.copyOutcome(c.outcomes.Updated),
		},
	}
}

// expire drops outcomes recorded before cutoff. Lock must be held.
func (c *collection[T, K]) expire(cutoff time.Time) {
	if o := c.outcomes.Created; o != nil && o.Recorded.Before(cutoff) {
		c.outcomes.Created = nil
	}
	if o := c.outcomes.Deleted; o != nil && o.Recorded.Before(cutoff) {
		c.outcomes.Deleted = nil
	}
	if o := c.outcomes.Updated; o != nil && o.Recorded.Before(cutoff) {
		c.outcomes.Updated = nil
	}
}

// consume returns the outcomes and resets them. Lock must be held.
func (c *collection[T, K]) consume() domain.Outcomes[T] {
	out := c.outcomes
	c.outcomes = domain.Outcomes[T]{}
	return out
}

func (c *collection[T, K]) copyItems() []T {
	items := make([]T, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, c.clone(item))
	}
	return items
}

func (c *collection[T, K]) copyOutcome(o *domain.Outcome[T]) *domain.Outcome[T] {
	if o == nil {
		return nil
	}
	copied := *o
	copied.Entity = c.clone(o.Entity)
	return &copied
}

func (c *collection[T, K]) hasName(name string) bool {
	for _, item := range c.items {
		if c.nameOf(item) == name {
			return true
		}
	}
	return false
}

func (c *collection[T, K]) hasKey(key K) bool {
	for _, k := range c.keys {
		if k == key {
			return true
		}
	}
	return false
}
