package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-vibe-thread/admin-orders/internal/orders"
)

func snapshot(orderID string, revision int64, status string) orders.Order {
	return orders.Order{OrderID: orderID, Revision: revision, Status: status}
}

func TestApplyKeepsNewestRevision(t *testing.T) {
	c := NewOrderCache()

	assert.True(t, c.Apply(snapshot("ord-1", 1, orders.OrderStatusPending)))
	assert.True(t, c.Apply(snapshot("ord-1", 3, orders.OrderStatusShipped)))

	// Out-of-order delivery: an older snapshot must not win.
	assert.False(t, c.Apply(snapshot("ord-1", 2, orders.OrderStatusPending)))
	assert.False(t, c.Apply(snapshot("ord-1", 3, orders.OrderStatusPending)), "equal revision is stale too")

	got, ok := c.Get("ord-1")
	require.True(t, ok)
	assert.Equal(t, orders.OrderStatusShipped, got.Status)
	assert.Equal(t, int64(3), got.Revision)
}

func TestApplyTracksOrdersIndependently(t *testing.T) {
	c := NewOrderCache()

	assert.True(t, c.Apply(snapshot("ord-1", 5, orders.OrderStatusShipped)))
	assert.True(t, c.Apply(snapshot("ord-2", 1, orders.OrderStatusPending)))
	assert.Equal(t, 2, c.Len())

	c.Delete("ord-1")
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("ord-1")
	assert.False(t, ok)
}

func TestApplyConcurrent(t *testing.T) {
	c := NewOrderCache()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(rev int64) {
			defer wg.Done()
			c.Apply(snapshot("ord-1", rev, orders.OrderStatusPending))
		}(int64(i))
	}
	wg.Wait()

	got, ok := c.Get("ord-1")
	require.True(t, ok)
	assert.Equal(t, int64(50), got.Revision, "highest revision must survive regardless of arrival order")
}
