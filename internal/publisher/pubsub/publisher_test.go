package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	return client, srv
}

func TestPublisher_Publish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, srv := newTestClient(t)
	_, err := client.CreateTopic(ctx, "runs")
	require.NoError(t, err)

	p := New(client, "runs")
	require.NoError(t, p.CheckTopic(ctx))

	id, err := p.Publish(ctx, "", map[string]any{"run_id": "r1", "plans": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, p.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	require.Equal(t, "r1", payload["run_id"])
}

func TestPublisher_CheckTopicMissing(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	p := New(client, "absent")
	require.ErrorContains(t, p.CheckTopic(context.Background()), "does not exist")
	require.NoError(t, p.Close())
}

func TestPublisher_NotConfigured(t *testing.T) {
	t.Parallel()

	p := &Publisher{}
	_, err := p.Publish(context.Background(), "t", "x")
	require.ErrorContains(t, err, "not configured")
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	require.Equal(t, "00-abc", c.Get("traceparent"))
	require.Equal(t, []string{"traceparent"}, c.Keys())
}
