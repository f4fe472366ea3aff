package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishAndSubscribe(t *testing.T) {
	client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan shared.Event, 1)
	go func() {
		_ = Subscribe(ctx, client, discardLogger(), func(_ context.Context, ev shared.Event) {
			received <- ev
		})
	}()

	pub := NewEventPublisher(client)
	want := shared.Event{Kind: shared.EventPeriodClose, CompanyID: 3, Year: 2024, Month: 2}
	var got shared.Event
	require.Eventually(t, func() bool {
		if err := pub.Publish(ctx, want); err != nil {
			return false
		}
		select {
		case got = <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.CompanyID, got.CompanyID)
	assert.Equal(t, 2, got.Month)
}

func TestDialRequiresReachableServer(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := Dial(context.Background(), srv.Addr(), time.Second)
	require.NoError(t, err)
	require.NoError(t, NewEventPublisher(client).Publish(context.Background(), shared.Event{Kind: shared.EventYearClose, CompanyID: 1, Year: 2024}))
	_ = client.Close()

	addr := srv.Addr()
	srv.Close()
	_, err = Dial(context.Background(), addr, 200*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
