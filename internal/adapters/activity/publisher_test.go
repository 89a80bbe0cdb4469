package activity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signupboard/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &kafkaPublisher{writer: w}
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), domain.Activity{
		Kind:     domain.ActivityEnrolled,
		EventID:  "ev-1",
		GuildID:  "g-1",
		UserID:   "u-1",
		Category: "Red",
		Outcome:  domain.OutcomeAdded,
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ev-1", string(w.msgs[0].Key))
	assert.Equal(t, []kafka.Header{{Key: "kind", Value: []byte("enrolled")}}, w.msgs[0].Headers)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "added", decoded["outcome"])
	assert.Equal(t, "Red", decoded["category"])
	assert.Equal(t, "2025-03-01T12:00:00Z", decoded["at"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &kafkaPublisher{writer: &fakeWriter{err: errors.New("leader not available")}}

	err := p.Publish(context.Background(), domain.Activity{Kind: domain.ActivityCreated, EventID: "ev-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewPublisher_NoBrokersIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPublisher(nil, "signupboard.activity", logger)

	_, isNoop := p.(noopPublisher)
	assert.True(t, isNoop)
	require.NoError(t, p.Publish(context.Background(), domain.Activity{}))
	require.NoError(t, p.Close())

	_, isKafka := NewPublisher([]string{"localhost:9092"}, "t", logger).(*kafkaPublisher)
	assert.True(t, isKafka)
}
