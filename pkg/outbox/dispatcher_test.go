package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moldubot/pkg/trace"
)

type memStore struct {
	mu        sync.Mutex
	pending   []*Event
	failed    []*Event
	sent      []int64
	markedBad map[int64]int
	requeued  []int64
	listErr   error
}

func (s *memStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *memStore) GetFailedEvents(_ context.Context, limit int) ([]*Event, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.failed) > limit {
		return s.failed[:limit], nil
	}
	return s.failed, nil
}

func (s *memStore) MarkAsSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	return nil
}

func (s *memStore) MarkAsFailed(_ context.Context, id int64, maxRetries int) error {
	if s.markedBad == nil {
		s.markedBad = map[int64]int{}
	}
	s.markedBad[id] = maxRetries
	return nil
}

func (s *memStore) Requeue(_ context.Context, id int64) error {
	if id == 13 {
		return ErrEventNotFound
	}
	s.requeued = append(s.requeued, id)
	return nil
}

type published struct {
	routingKey string
	messageID  string
	traceID    string
}

type recordingPublisher struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []published
}

func (p *recordingPublisher) PublishRaw(ctx context.Context, routingKey, messageID string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[messageID] {
		return errors.New("channel closed")
	}
	p.calls = append(p.calls, published{routingKey, messageID, trace.FromContext(ctx)})
	return nil
}

func event(id int64, messageID string, payload string) *Event {
	return &Event{ID: id, MessageID: messageID, RoutingKey: "intent.decomposed", Payload: json.RawMessage(payload)}
}

func TestDispatchOnce(t *testing.T) {
	store := &memStore{pending: []*Event{
		event(1, "m-1", `{"trace_id":"abc"}`),
		event(2, "m-2", `{}`),
		event(3, "m-3", `not json`),
	}}
	pub := &recordingPublisher{fail: map[string]bool{"m-2": true}}

	d := NewDispatcher(store, pub, nil).WithMaxRetries(7)
	sent := d.DispatchOnce(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, map[int64]int{2: 7}, store.markedBad)
	require.Len(t, pub.calls, 2)
	assert.Equal(t, published{"intent.decomposed", "m-1", "abc"}, pub.calls[0])
	assert.Empty(t, pub.calls[1].traceID)
}

func TestDispatchOnceHonoursBatchSize(t *testing.T) {
	store := &memStore{}
	for i := int64(1); i <= 5; i++ {
		store.pending = append(store.pending, event(i, "m", `{}`))
	}
	pub := &recordingPublisher{}

	sent := NewDispatcher(store, pub, nil).WithBatchSize(2).DispatchOnce(context.Background())
	assert.Equal(t, 2, sent)
}

func TestDispatchOnceListError(t *testing.T) {
	store := &memStore{listErr: errors.New("db down")}
	assert.Zero(t, NewDispatcher(store, &recordingPublisher{}, nil).DispatchOnce(context.Background()))
}

func TestReplayFailed(t *testing.T) {
	store := &memStore{failed: []*Event{event(11, "a", `{}`), event(12, "b", `{}`), event(13, "c", `{}`)}}
	d := NewDispatcher(store, nil, nil)

	n, err := d.ReplayFailed(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{11, 12}, store.requeued)

	store.listErr = errors.New("db down")
	_, err = d.ReplayFailed(context.Background(), 10)
	assert.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	store := &memStore{pending: []*Event{event(1, "m-1", `{}`)}}
	pub := &recordingPublisher{}
	d := NewDispatcher(store, pub, nil).WithInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.sent) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, Backoff(1))
	assert.Equal(t, 15*time.Second, Backoff(3))
}
