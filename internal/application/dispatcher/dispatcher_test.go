package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ncr-tracker/internal/domain/entity"
	"github.com/garyjia/ncr-tracker/internal/domain/event"
)

func newEvent() *event.Event {
	return event.NewReportEvent(event.TypeNCRCreated, nil, &entity.NonConformanceReport{ID: 1}, time.Now())
}

func TestDispatch_RunsInOrderAndStopsOnError(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.Subscribe(event.TypeNCRCreated, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return errors.New("boom")
	})
	d.Subscribe(event.TypeNCRCreated, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	err := d.Dispatch(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Equal(t, []string{"first"}, order)
	assert.Equal(t, []string{"first", "second"}, d.Handlers(event.TypeNCRCreated))
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeNCRCreated, "panicky", func(ctx context.Context, evt *event.Event) error {
		panic("nope")
	})

	err := d.Dispatch(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestPublish_SurvivesCancelledRequest(t *testing.T) {
	d := NewDispatcher()
	var delivered atomic.Int32

	d.Subscribe(event.TypeNCRCreated, "count", func(ctx context.Context, evt *event.Event) error {
		if ctx.Err() == nil {
			delivered.Add(1)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		d.Publish(ctx, newEvent())
	}

	require.NoError(t, d.Close())
	assert.Equal(t, int32(5), delivered.Load())
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
	assert.Error(t, d.Dispatch(context.Background(), newEvent()))

	// publishing after close is dropped, not a panic
	d.Publish(context.Background(), newEvent())
}

func TestHandlers_OtherTypeUnaffected(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeNCRDeleted, "x", func(ctx context.Context, evt *event.Event) error { return nil })
	assert.Empty(t, d.Handlers(event.TypeNCRCreated))
}
