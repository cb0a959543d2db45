package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/common/messaging"
)

func TestQueue_WriteAndList(t *testing.T) {
	q, err := NewQueue(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, q.Write(ctx, RejectedBatch{BatchID: "b1", Path: "/drop/a.json", Error: "bad json", Reason: ReasonMalformed}))
	require.NoError(t, q.Write(ctx, RejectedBatch{BatchID: "b2", Path: "/drop/b.json", Error: "influx down", Reason: ReasonSinkFailed, Records: 3, Points: 5}))

	entries, err := q.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b1", entries[0].BatchID)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Equal(t, 5, entries[1].Points)

	limited, err := q.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	stats := q.Stats()
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, uint64(2), stats["written"])
	assert.Equal(t, 2, stats["pending_files"])
}

func TestQueue_RepeatedFailureBumpsAttempts(t *testing.T) {
	q, err := NewQueue(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Write(ctx, RejectedBatch{Path: "/drop/a.json", Reason: ReasonSinkFailed}))
	}

	entries, err := q.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Attempts)
}

func TestQueue_ResolveAndPurge(t *testing.T) {
	q, err := NewQueue(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, q.Write(ctx, RejectedBatch{Path: "/drop/a.json"}))
	require.NoError(t, q.Write(ctx, RejectedBatch{Path: "/drop/b.json"}))

	require.NoError(t, q.Resolve(ctx, "/drop/a.json"))
	require.NoError(t, q.Resolve(ctx, "/drop/never.json"))
	entries, _ := q.List(ctx, 0)
	assert.Len(t, entries, 1)

	require.NoError(t, q.Purge(ctx))
	entries, _ = q.List(ctx, 0)
	assert.Empty(t, entries)
}

func TestQueue_Nil(t *testing.T) {
	var q *Queue
	assert.NoError(t, q.Write(context.Background(), RejectedBatch{}))
	assert.Equal(t, false, q.Stats()["enabled"])
	_, err := q.List(context.Background(), 0)
	assert.Error(t, err)
}

type capturePublisher struct {
	msgs []*messaging.Message
	err  error
}

func (c *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return c.PublishMsg(ctx, &messaging.Message{Subject: subject, Data: data})
}

func (c *capturePublisher) PublishMsg(_ context.Context, msg *messaging.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestPublisher_Write(t *testing.T) {
	pub := &capturePublisher{}
	d := NewPublisher(pub, "")

	require.NoError(t, d.Write(context.Background(), RejectedBatch{BatchID: "b1", Path: "/drop/a.json", Reason: ReasonMalformed}))
	require.Len(t, pub.msgs, 1)

	msg := pub.msgs[0]
	assert.Equal(t, messaging.SubjectRejectedBatches, msg.Subject)
	assert.Equal(t, "/drop/a.json", msg.Metadata[messaging.HeaderSourcePath])

	var got RejectedBatch
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, 1, got.Attempts)
	assert.False(t, got.Timestamp.IsZero())

	pub.err = errors.New("not connected")
	assert.Error(t, d.Write(context.Background(), RejectedBatch{}))
}
