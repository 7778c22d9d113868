package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/interfaces"
	"github.com/ternarybob/quanta/internal/models"
)

func newTestService() interfaces.EventService {
	return NewService(arbor.NewLogger())
}

func statusEvent(jobID string) models.Event {
	return models.NewEvent(models.StatusPayload{JobID: jobID, State: models.JobStateRunning}, time.Now())
}

func TestSubscribeNilHandler(t *testing.T) {
	svc := newTestService()

	_, err := svc.Subscribe(models.EventStatus, nil)
	assert.Error(t, err)
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	svc := newTestService()

	var mu sync.Mutex
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		_, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	svc.Publish(context.Background(), statusEvent("job_1"))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPublishRoutesByKind(t *testing.T) {
	svc := newTestService()

	var statusCount, progressCount int

	_, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		statusCount++
		return nil
	})
	require.NoError(t, err)

	_, err = svc.Subscribe(models.EventProgress, func(ctx context.Context, e models.Event) error {
		progressCount++
		return nil
	})
	require.NoError(t, err)

	svc.Publish(context.Background(), statusEvent("job_1"))
	svc.Publish(context.Background(), models.NewEvent(models.ProgressPayload{JobID: "job_1", Percent: 50}, time.Now()))
	svc.Publish(context.Background(), statusEvent("job_1"))

	assert.Equal(t, 2, statusCount)
	assert.Equal(t, 1, progressCount)
}

func TestHandlerErrorDoesNotBlockOthers(t *testing.T) {
	svc := newTestService()

	var delivered []string

	_, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		delivered = append(delivered, "first")
		return fmt.Errorf("handler failure")
	})
	require.NoError(t, err)

	_, err = svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		delivered = append(delivered, "second")
		return nil
	})
	require.NoError(t, err)

	svc.Publish(context.Background(), statusEvent("job_1"))

	assert.Equal(t, []string{"first", "second"}, delivered)
}

func TestHandlerPanicDoesNotBlockOthers(t *testing.T) {
	svc := newTestService()

	var delivered []string

	_, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		delivered = append(delivered, "first")
		panic("handler panic")
	})
	require.NoError(t, err)

	_, err = svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		delivered = append(delivered, "second")
		return nil
	})
	require.NoError(t, err)

	svc.Publish(context.Background(), statusEvent("job_1"))

	assert.Equal(t, []string{"first", "second"}, delivered)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	svc := newTestService()

	count := 0
	sub, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	svc.Publish(context.Background(), statusEvent("job_1"))
	assert.Equal(t, 1, count)

	svc.Unsubscribe(sub)
	svc.Publish(context.Background(), statusEvent("job_1"))
	assert.Equal(t, 1, count)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	svc := newTestService()

	sub, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		return nil
	})
	require.NoError(t, err)

	svc.Unsubscribe(sub)
	svc.Unsubscribe(sub)
	svc.Unsubscribe(sub)

	// The bus must still be usable after repeated unsubscribes.
	count := 0
	_, err = svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	svc.Publish(context.Background(), statusEvent("job_1"))
	assert.Equal(t, 1, count)
}

func TestUnsubscribeDuringPublishWins(t *testing.T) {
	svc := newTestService()

	// The first handler removes the second mid-publish; the second must
	// not see the in-flight event.
	var second interfaces.Subscription
	secondCalled := false

	_, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		svc.Unsubscribe(second)
		return nil
	})
	require.NoError(t, err)

	second, err = svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		secondCalled = true
		return nil
	})
	require.NoError(t, err)

	svc.Publish(context.Background(), statusEvent("job_1"))

	assert.False(t, secondCalled)
}

func TestSubscriberNeverSeesEarlierEvents(t *testing.T) {
	svc := newTestService()

	svc.Publish(context.Background(), statusEvent("job_1"))

	count := 0
	_, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 0, count)

	svc.Publish(context.Background(), statusEvent("job_2"))
	assert.Equal(t, 1, count)
}

func TestCloseDropsAllSubscriptions(t *testing.T) {
	svc := newTestService()

	count := 0
	_, err := svc.Subscribe(models.EventStatus, func(ctx context.Context, e models.Event) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, svc.Close())

	svc.Publish(context.Background(), statusEvent("job_1"))
	assert.Equal(t, 0, count)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	svc := newTestService()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub, _ := svc.Subscribe(models.EventProgress, func(ctx context.Context, e models.Event) error {
				return nil
			})
			svc.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			svc.Publish(context.Background(), models.NewEvent(models.ProgressPayload{JobID: "job_1", Percent: 1}, time.Now()))
		}()
	}
	wg.Wait()
}
