package redis

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/sachinkaru123/inventory-bridge/internal/events"
)

var (
	testRedisURL string
	redContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	// Parse flags to check for -short
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	redContainer, err = rediscontainer.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := redContainer.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	defer func() {
		if err := redContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate redis container: %v\n", err)
		}
	}()
	os.Exit(m.Run())
}

func setupTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, testRedisURL)
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// blockingDispatcher forwards dispatched events onto a channel so tests can
// wait for them.
type blockingDispatcher struct {
	ch chan events.Event
}

func (d *blockingDispatcher) Dispatch(event events.Event) {
	d.ch <- event
}

func startTestListener(t *testing.T, client *Client) *blockingDispatcher {
	t.Helper()

	dispatcher := &blockingDispatcher{ch: make(chan events.Event, 16)}
	classifier := events.NewClassifier(clockwork.NewRealClock())
	listener := NewListener(client, classifier, dispatcher)
	listener.Start(context.Background())
	t.Cleanup(listener.Close)

	// Give the subscription time to establish
	time.Sleep(100 * time.Millisecond)

	return dispatcher
}

func TestListener_PublishAndReceive(t *testing.T) {
	client := setupTestClient(t)
	dispatcher := startTestListener(t, client)
	ctx := context.Background()

	err := client.Underlying().Publish(ctx, "inventory", `{"item":"widget","count":5}`).Err()
	require.NoError(t, err)

	select {
	case event := <-dispatcher.ch:
		assert.Equal(t, events.KindUpdate, event.Kind)
		assert.Equal(t, "inventory-update", event.Name)
		assert.Equal(t, "widget", event.Data["item"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestListener_AlertsChannelEnriched(t *testing.T) {
	client := setupTestClient(t)
	dispatcher := startTestListener(t, client)
	ctx := context.Background()

	err := client.Underlying().Publish(ctx, "inventory-alerts", `{"current_count":150,"threshold":100}`).Err()
	require.NoError(t, err)

	select {
	case event := <-dispatcher.ch:
		assert.Equal(t, events.KindAlert, event.Kind)
		assert.Equal(t, "Item count exceeded the limit.", event.Data["message"])
		assert.Equal(t, "warning", event.Data["severity"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestListener_MalformedMessageDoesNotStopListener(t *testing.T) {
	client := setupTestClient(t)
	dispatcher := startTestListener(t, client)
	ctx := context.Background()

	require.NoError(t, client.Underlying().Publish(ctx, "inventory", "not json").Err())
	require.NoError(t, client.Underlying().Publish(ctx, "inventory", `{"item":"widget"}`).Err())

	select {
	case event := <-dispatcher.ch:
		// Only the valid message comes through
		assert.Equal(t, "widget", event.Data["item"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}

	select {
	case event := <-dispatcher.ch:
		t.Fatalf("unexpected extra event: %+v", event)
	case <-time.After(200 * time.Millisecond):
		// Expected: nothing else
	}
}

func TestListener_IgnoresOtherChannels(t *testing.T) {
	client := setupTestClient(t)
	dispatcher := startTestListener(t, client)
	ctx := context.Background()

	require.NoError(t, client.Underlying().Publish(ctx, "orders", `{"valid":"json"}`).Err())

	select {
	case event := <-dispatcher.ch:
		t.Fatalf("unexpected event from unsubscribed channel: %+v", event)
	case <-time.After(200 * time.Millisecond):
		// Expected: no message
	}
}
