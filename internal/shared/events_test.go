package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversPerTopic(t *testing.T) {
	bus := NewBus()
	products, cancelProducts := bus.Subscribe(TopicProducts)
	defer cancelProducts()
	salesCh, cancelSales := bus.Subscribe(TopicSales)
	defer cancelSales()

	bus.Publish(TopicProducts, "p")

	select {
	case evt := <-products:
		require.Equal(t, TopicProducts, evt.Topic)
		require.Equal(t, "p", evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("no product event")
	}

	select {
	case <-salesCh:
		t.Fatal("sales subscriber received product event")
	default:
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(TopicInventory)
	cancel()
	_, open := <-ch
	require.False(t, open)

	// Publishing after cancel must not panic or block.
	bus.Publish(TopicInventory, nil)
}

func TestBusSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(TopicSales)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			bus.Publish(TopicSales, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
