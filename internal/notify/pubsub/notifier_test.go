package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() {
		_ = srv.Close()
	})

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	topic, err := client.CreateTopic(ctx, "circulars")
	require.NoError(t, err)
	return srv, topic
}

func TestNotifyPublishesJSON(t *testing.T) {
	t.Parallel()

	srv, topic := newTestTopic(t)
	n := New(topic, nil)
	t.Cleanup(n.Stop)

	note := circular.Notification{
		RunID:    "run-7",
		Circular: circular.Summary{CircularNumber: "RBI/2025-26/12", Subject: "KYC"},
		Links:    circular.Links{Circular: "gs://bucket/a.pdf"},
		Kind:     circular.KindPDF,
		SHA256:   "abc",
	}
	require.NoError(t, n.Notify(context.Background(), note))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "RBI/2025-26/12", msgs[0].Attributes["circular_number"])
	assert.Equal(t, "run-7", msgs[0].Attributes["run_id"])
	assert.Equal(t, "pdf", msgs[0].Attributes["kind"])

	var got circular.Notification
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, note, got)
}

func TestNotifyWithoutTopic(t *testing.T) {
	t.Parallel()

	err := New(nil, nil).Notify(context.Background(), circular.Notification{})
	require.Error(t, err)
	New(nil, nil).Stop()
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	var _ propagation.TextMapCarrier = c
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
