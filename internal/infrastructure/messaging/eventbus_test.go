package messaging

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestInMemoryEventBus_PublishToTypedHandler(t *testing.T) {
	bus := newSyncBus()

	var received shared.Event
	err := bus.Subscribe(shared.EventQuestCompleted, func(event shared.Event) error {
		received = event
		return nil
	})
	require.NoError(t, err)

	event := shared.NewQuestCompletedEvent("user1", "ember_first_light", 1, 50, 10)
	require.NoError(t, bus.Publish(event))

	require.NotNil(t, received)
	assert.Equal(t, shared.EventQuestCompleted, received.EventType())
	assert.Equal(t, "user1", received.AggregateID())
}

func TestInMemoryEventBus_GlobalHandlerSeesAllTypes(t *testing.T) {
	bus := newSyncBus()

	var count atomic.Int64
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		count.Add(1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewQuestBegunEvent("user1", "ember_first_light", 1)))
	require.NoError(t, bus.Publish(shared.NewCheckInRecordedEvent("user1", "2026-08-28", 4, 3)))

	assert.Equal(t, int64(2), count.Load())
}

func TestInMemoryEventBus_TypedHandlerIgnoresOtherTypes(t *testing.T) {
	bus := newSyncBus()

	var count atomic.Int64
	require.NoError(t, bus.Subscribe(shared.EventPhaseAdvanced, func(shared.Event) error {
		count.Add(1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewQuestBegunEvent("user1", "ember_first_light", 1)))
	assert.Equal(t, int64(0), count.Load())
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewQuestBegunEvent("user1", "ember_first_light", 1))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventQuestBegun, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_AsyncWaitsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 2,
	})

	var done atomic.Bool
	require.NoError(t, bus.Subscribe(shared.EventQuestCompleted, func(shared.Event) error {
		time.Sleep(20 * time.Millisecond)
		done.Store(true)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewQuestCompletedEvent("user1", "ember_first_light", 1, 50, 10)))
	require.NoError(t, bus.Close())

	assert.True(t, done.Load(), "Close must wait for in-flight handlers")
}

func TestInMemoryEventBus_MetricsCountPublishes(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(shared.Event) error { return nil }))

	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user1", 50, 50, "ember_first_light")))
	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user1", 75, 125, "ember_breathe")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	bus := newSyncBus()
	d := NewDispatcher(DispatcherConfig{
		EventBus: bus,
		RetryConfig: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	})

	var attempts atomic.Int64
	require.NoError(t, d.RegisterSync(shared.EventQuestCompleted, "flaky", func(shared.Event) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	err := d.Dispatch(shared.NewQuestCompletedEvent("user1", "ember_first_light", 1, 50, 10))
	assert.NoError(t, err)
	assert.Equal(t, int64(3), attempts.Load())
}

func TestDispatcher_ExhaustedRetriesGoToDeadLetterQueue(t *testing.T) {
	bus := newSyncBus()
	d := NewDispatcher(DispatcherConfig{
		EventBus: bus,
		RetryConfig: RetryConfig{
			MaxRetries:        2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        2 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   10,
	})

	require.NoError(t, d.RegisterSync(shared.EventCheckInRecorded, "broken", func(shared.Event) error {
		return errors.New("always fails")
	}))

	err := d.Dispatch(shared.NewCheckInRecordedEvent("user1", "2026-08-28", 4, 3))
	assert.Error(t, err)

	require.Equal(t, 1, d.DeadLetterQueue().Size())
	entry, ok := d.DeadLetterQueue().Pop()
	require.True(t, ok)
	assert.Equal(t, "broken", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
}

func TestDispatcher_RecoveryMiddlewareCatchesPanic(t *testing.T) {
	bus := newSyncBus()
	d := NewDispatcher(DispatcherConfig{
		EventBus: bus,
		RetryConfig: RetryConfig{
			MaxRetries:        1,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1.0,
		},
	})
	d.Use(RecoveryMiddleware(slog.Default()))

	require.NoError(t, d.RegisterSync(shared.EventStreakBroken, "panicky", func(shared.Event) error {
		panic("boom")
	}))

	err := d.Dispatch(shared.NewStreakBrokenEvent("user1", 7, 2))
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestDispatcher_StartRoutesBusEvents(t *testing.T) {
	bus := newSyncBus()
	d := NewDispatcher(DefaultDispatcherConfig(bus))

	var received atomic.Int64
	require.NoError(t, d.RegisterSync(shared.EventProfileLapsed, "lapse", func(shared.Event) error {
		received.Add(1)
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewProfileLapsedEvent("user1", 5, time.Now().AddDate(0, 0, -5))))
	assert.Equal(t, int64(1), received.Load())
}
