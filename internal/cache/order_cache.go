package cache

import (
	"sync"

	"github.com/the-vibe-thread/admin-orders/internal/metrics"
	"github.com/the-vibe-thread/admin-orders/internal/orders"
)

// OrderCache holds the last-known snapshot per order. It is advisory only:
// snapshots arrive over the live-update channel in arrival order with no
// delivery guarantees, so each Apply is guarded by the snapshot revision and
// a missed update is healed by the next fetch.
type OrderCache struct {
	mu    sync.RWMutex
	cache map[string]orders.Order
}

func NewOrderCache() *OrderCache {
	return &OrderCache{
		cache: make(map[string]orders.Order),
	}
}

// Apply stores the snapshot unless a same-or-newer revision of the order is
// already held. It reports whether the snapshot was accepted.
func (c *OrderCache) Apply(snapshot orders.Order) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	held, found := c.cache[snapshot.OrderID]
	if found && held.Revision >= snapshot.Revision {
		metrics.StaleSnapshotsDiscardedTotal.Inc()
		return false
	}

	c.cache[snapshot.OrderID] = snapshot
	if !found {
		metrics.OrderCacheItems.Inc()
	}
	return true
}

func (c *OrderCache) Get(orderID string) (orders.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot, found := c.cache[orderID]
	return snapshot, found
}

func (c *OrderCache) Delete(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.cache[orderID]; found {
		delete(c.cache, orderID)
		metrics.OrderCacheItems.Dec()
	}
}

func (c *OrderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
