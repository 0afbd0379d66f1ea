package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/queue"
)

// TestEnvelopeRoundTrip 测试信封头部与负载.
func TestEnvelopeRoundTrip(t *testing.T) {
	payload := queue.IndexRequestedPayload{RecordID: "7", Text: "Hola", Tags: []string{"Teología"}}

	msg, err := queue.NewWatermillMessageWithID("7", queue.TopicIndexRequested, payload,
		queue.WithRunID("run-1"), queue.WithProducer("arca"))
	require.NoError(t, err)

	assert.Equal(t, "7", msg.UUID)
	assert.Equal(t, "run-1", msg.Metadata.Get("run_id"))
	assert.Equal(t, queue.TopicIndexRequested, msg.Metadata.Get("topic"))

	env, err := queue.ParseWatermillMessage[queue.IndexRequestedPayload](msg)
	require.NoError(t, err)

	assert.Equal(t, payload, env.Payload)
	assert.Equal(t, queue.PayloadVersionV1, env.Header.Version)
	assert.Equal(t, "arca", env.Header.Producer)
	assert.WithinDuration(t, time.Now(), env.Header.OccurredAt, time.Minute)
}

// TestPublishRunCompleted 测试运行结束事件经进程内队列送达.
func TestPublishRunCompleted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ps.Close()

	ch, err := ps.Subscribe(ctx, queue.TopicRunCompleted)
	require.NoError(t, err)

	run := model.RunRecord{Job: "scan", RunID: "r1", Scan: &model.ScanSummary{Inserted: 2}}
	require.NoError(t, queue.PublishRunCompleted(ps, run))

	select {
	case m := <-ch:
		env, err := queue.ParseWatermillMessage[queue.RunCompletedPayload](m)
		require.NoError(t, err)
		assert.Equal(t, "r1", env.Header.RunID)
		assert.Equal(t, 2, env.Payload.Run.Scan.Inserted)
		m.Ack()
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}
