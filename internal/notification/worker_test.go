package notification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"machine-fleet-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

type fakeStore struct {
	mu      sync.Mutex
	subs    map[string][]model.PushSubscription
	err     error
	deleted chan string
}

func (f *fakeStore) SubscriptionsForMachine(_ context.Context, machineID string) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[machineID], nil
}

func (f *fakeStore) DeleteSubscription(_ context.Context, endpoint string) error {
	f.deleted <- endpoint
	return nil
}

func response(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, &fakeStore{}, &webpush.Options{})

	require.NoError(t, wp.Dispatch(context.Background(), Job{MachineID: "m-1"}))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "m-1", job.MachineID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchCancelled(t *testing.T) {
	wp := NewWorkerPool(1, &fakeStore{}, &webpush.Options{})
	require.NoError(t, wp.Dispatch(context.Background(), Job{MachineID: "m-1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, wp.Dispatch(ctx, Job{MachineID: "m-2"}), ErrPoolClosed)
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	store := &fakeStore{
		subs: map[string][]model.PushSubscription{
			"m-1": {{Endpoint: "https://example.com/push", P256DH: "p", Auth: "a"}},
			"m-2": {{Endpoint: "https://example.com/expired", P256DH: "p", Auth: "a"}},
			"m-3": {{Endpoint: "https://example.com/fallback", P256DH: "p", Auth: "a"}},
		},
		deleted: make(chan string, 1),
	}
	wp := NewWorkerPool(1, store, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends the job message", func(t *testing.T) {
		got := make(chan string, 1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "p", sub.Keys.P256dh)
				got <- string(payload)
				return response(http.StatusCreated), nil
			},
		}

		require.NoError(t, wp.Dispatch(ctx, Job{MachineID: "m-1", Message: "Arm A maintenance is overdue"}))
		select {
		case msg := <-got:
			assert.Equal(t, "Arm A maintenance is overdue", msg)
		case <-time.After(time.Second):
			t.Fatal("notification not sent")
		}
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		require.NoError(t, wp.Dispatch(ctx, Job{MachineID: "m-2", MachineName: "Arm B"}))
		select {
		case endpoint := <-store.deleted:
			assert.Equal(t, "https://example.com/expired", endpoint)
		case <-time.After(time.Second):
			t.Fatal("expired subscription not deleted")
		}
	})

	t.Run("falls back to machine id", func(t *testing.T) {
		got := make(chan string, 1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, _ *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
				got <- string(payload)
				return response(http.StatusCreated), nil
			},
		}

		require.NoError(t, wp.Dispatch(ctx, Job{MachineID: "m-3"}))
		select {
		case msg := <-got:
			assert.Equal(t, "m-3 needs maintenance", msg)
		case <-time.After(time.Second):
			t.Fatal("notification not sent")
		}
	})

	t.Run("store error sends nothing", func(t *testing.T) {
		store.mu.Lock()
		store.err = errors.New("db down")
		store.mu.Unlock()
		defer func() {
			store.mu.Lock()
			store.err = nil
			store.mu.Unlock()
		}()

		sent := make(chan struct{}, 1)
		wp.sender = &mockSender{
			SendFunc: func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
				sent <- struct{}{}
				return response(http.StatusCreated), nil
			},
		}
		require.NoError(t, wp.Dispatch(ctx, Job{MachineID: "m-1"}))
		select {
		case <-sent:
			t.Fatal("unexpected notification")
		case <-time.After(100 * time.Millisecond):
		}
	})
}
