package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

type testEvent struct {
	Value int
}

type otherEvent struct{}

type testEventer interface {
	EventValue() int
}

func (e testEvent) EventValue() int { return e.Value }

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var got []int
	unsubscribe := Subscribe(b, func(_ context.Context, e testEvent) error {
		got = append(got, e.Value)
		return nil
	})
	defer unsubscribe()

	require.NoError(t, b.Publish(context.Background(), testEvent{Value: 123}))
	require.NoError(t, b.Publish(context.Background(), otherEvent{}))
	require.Equal(t, []int{123}, got)
}

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := NewBus()

	var order []string
	Subscribe(b, func(_ context.Context, _ testEvent) error {
		order = append(order, "first")
		return nil
	})
	Subscribe(b, func(_ context.Context, _ testEventer) error {
		order = append(order, "second")
		return nil
	})
	Subscribe(b, func(_ context.Context, _ testEvent) error {
		order = append(order, "third")
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), testEvent{}))
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var got int
	Subscribe(b, func(_ context.Context, e testEventer) error {
		got = e.EventValue()
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), testEvent{Value: 7}))
	require.Equal(t, 7, got)
}

func TestBus_FirstErrorStopsDelivery(t *testing.T) {
	b := NewBus()

	called := false
	Subscribe(b, func(_ context.Context, _ testEvent) error {
		return errors.New("boom")
	})
	Subscribe(b, func(_ context.Context, _ testEvent) error {
		called = true
		return nil
	})

	err := b.Publish(context.Background(), testEvent{})
	require.Error(t, err)
	require.False(t, called)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryModule))
}

func TestBus_ClassifiedErrorsPassThrough(t *testing.T) {
	b := NewBus()
	Subscribe(b, func(_ context.Context, _ testEvent) error {
		return ferrors.RoutingError("missing tag").Build()
	})

	err := b.Publish(context.Background(), testEvent{})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRouting))
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()

	unsubscribe := Subscribe(b, func(_ context.Context, _ testEvent) error { return nil })
	require.Equal(t, 1, SubscriberCount[testEvent](b))

	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, SubscriberCount[testEvent](b))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()
	Subscribe(b, func(_ context.Context, _ testEvent) error { return nil })
	b.Close()

	require.Error(t, b.Publish(context.Background(), testEvent{}))
	require.Equal(t, 0, SubscriberCount[testEvent](b))
}

func TestBus_RejectsNilEvent(t *testing.T) {
	b := NewBus()
	err := b.Publish(context.Background(), nil)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestBus_CanceledContext(t *testing.T) {
	b := NewBus()
	Subscribe(b, func(_ context.Context, _ testEvent) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Publish(ctx, testEvent{})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
}
