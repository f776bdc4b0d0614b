package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memInbox) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
	return nil
}

// sliceReader hands out msgs then blocks until the context ends.
type sliceReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) == 0 {
		r.mu.Unlock()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	r.mu.Unlock()
	return m, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *sliceReader) Close() error { return nil }

func message(t *testing.T, topic string) kafka.Message {
	t.Helper()
	msg, _ := kafkax.NewMessage(context.Background(), topic, "a-1", topic, []byte(`{}`))
	return msg
}

func TestDuplicatesHandledOnce(t *testing.T) {
	msg := message(t, "clinic.appointment.requested.v1")
	other := message(t, "clinic.appointment.confirmed.v1")
	reader := &sliceReader{msgs: []kafka.Message{msg, msg, other}}

	var handled []string
	ctx, cancel := context.WithCancel(context.Background())
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, reader,
		func(_ context.Context, m kafka.Message) error {
			handled = append(handled, m.Topic)
			if len(handled) == 2 {
				cancel()
			}
			return nil
		})
	c.Run(ctx)

	assert.Equal(t, []string{"clinic.appointment.requested.v1", "clinic.appointment.confirmed.v1"}, handled)
}

func TestFailedEventReleasedForRetry(t *testing.T) {
	inbox := &memInbox{seen: map[string]bool{}}
	msg := message(t, "clinic.appointment.cancelled.v1")
	calls := 0
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), inbox, &sliceReader{},
		func(context.Context, kafka.Message) error {
			calls++
			if calls == 1 {
				return errors.New("db down")
			}
			return nil
		})

	assert.Error(t, c.handle(context.Background(), msg))
	assert.NoError(t, c.handle(context.Background(), msg))
	assert.NoError(t, c.handle(context.Background(), msg))
	assert.Equal(t, 2, calls)
}

func TestEventWithoutIDDropped(t *testing.T) {
	called := false
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, &sliceReader{},
		func(context.Context, kafka.Message) error {
			called = true
			return nil
		})
	assert.NoError(t, c.handle(context.Background(), kafka.Message{Topic: "clinic.appointment.requested.v1", Value: []byte(`{}`)}))
	assert.False(t, called)
}

func TestRunRetriesThenCommits(t *testing.T) {
	msg := message(t, "clinic.appointment.confirmed.v1")
	reader := &sliceReader{msgs: []kafka.Message{msg}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, reader,
		func(context.Context, kafka.Message) error {
			calls++
			if calls < 3 {
				return errors.New("db down")
			}
			cancel()
			return nil
		})
	c.backoff = time.Millisecond
	c.Run(ctx)

	assert.Equal(t, 3, calls)
	require.Len(t, reader.committed, 1)
	assert.Equal(t, msg.Offset, reader.committed[0].Offset)
}

func TestRunLeavesOffsetWhenStoppedMidRetry(t *testing.T) {
	msg := message(t, "clinic.appointment.cancelled.v1")
	reader := &sliceReader{msgs: []kafka.Message{msg}}
	ctx, cancel := context.WithCancel(context.Background())

	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, reader,
		func(context.Context, kafka.Message) error {
			cancel()
			return errors.New("smtp down")
		})
	c.backoff = time.Hour
	c.Run(ctx)
	assert.Empty(t, reader.committed)
}

func TestProcessGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, &sliceReader{},
		func(context.Context, kafka.Message) error {
			calls++
			return errors.New("db down")
		})
	c.backoff = time.Microsecond
	assert.True(t, c.process(context.Background(), message(t, "clinic.appointment.requested.v1")))
	assert.Equal(t, maxAttempts, calls)
}
