package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mqcontract "moldubot/contracts/mq"
	"moldubot/internal/intent"
	"moldubot/pkg/trace"
)

type countingModel struct {
	mu     sync.Mutex
	calls  int
	usable bool
}

func (m *countingModel) ParseStructured(_ context.Context, _ string) intent.ModelResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if !m.usable {
		return intent.Unusable(intent.ReasonJSONDecode)
	}
	d, _ := intent.NewDecomposition(intent.Fields{
		Steps:             []intent.Step{intent.StepReadCurrentMail},
		SummaryLineTarget: intent.DefaultSummaryLineTarget,
	})
	return intent.Usable(d)
}

type publishedEvent struct {
	routingKey string
	payload    mqcontract.IntentDecomposedPayload
}

type memPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *memPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{routingKey, payload.(mqcontract.IntentDecomposedPayload)})
	return nil
}

func newCachedService(t *testing.T, model *countingModel, pub EventPublisher) (*IntentService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewIntentService(intent.NewParser(model, nil), rdb, time.Minute, pub, nil), mr
}

func TestDecomposeCachesModelOutcomes(t *testing.T) {
	model := &countingModel{usable: true}
	svc, mr := newCachedService(t, model, nil)
	ctx := context.Background()

	first := svc.Decompose(ctx, "  메일 요약해줘 ")
	second := svc.Decompose(ctx, `"메일 요약해줘"`)

	assert.Equal(t, 1, model.calls, "sanitized duplicates hit the cache")
	assert.Equal(t, intent.SourceModel, second.Source)
	assert.Equal(t, first.Decomposition, second.Decomposition)

	key := DecompositionCacheKey("메일 요약해줘")
	assert.True(t, strings.HasPrefix(key, "intent:decomposition:"))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(2 * time.Minute)
	svc.Decompose(ctx, "메일 요약해줘")
	assert.Equal(t, 2, model.calls)
}

func TestDecomposeDoesNotCacheRuleFallbacks(t *testing.T) {
	model := &countingModel{}
	svc, mr := newCachedService(t, model, nil)
	ctx := context.Background()

	out := svc.Decompose(ctx, "메일 요약해줘")
	assert.Equal(t, intent.SourceRule, out.Source)
	assert.Equal(t, intent.ReasonJSONDecode, out.UnusableReason)
	assert.False(t, mr.Exists(DecompositionCacheKey("메일 요약해줘")))

	svc.Decompose(ctx, "메일 요약해줘")
	assert.Equal(t, 2, model.calls)
}

func TestDecomposeIgnoresCorruptCacheEntry(t *testing.T) {
	model := &countingModel{usable: true}
	svc, mr := newCachedService(t, model, nil)

	require.NoError(t, mr.Set(DecompositionCacheKey("메일 요약해줘"), `{"decomposition":{"steps":["fly"]},"source":"model"}`))

	out := svc.Decompose(context.Background(), "메일 요약해줘")
	assert.Equal(t, intent.SourceModel, out.Source)
	assert.Equal(t, 1, model.calls)
}

func TestDecomposeWithoutRedis(t *testing.T) {
	model := &countingModel{usable: true}
	svc := NewIntentService(intent.NewParser(model, nil), nil, time.Minute, nil, nil)

	svc.Decompose(context.Background(), "메일 요약해줘")
	svc.Decompose(context.Background(), "메일 요약해줘")
	assert.Equal(t, 2, model.calls)
}

func TestDecomposePublishesEvent(t *testing.T) {
	pub := &memPublisher{}
	svc := NewIntentService(intent.NewParser(nil, nil), nil, 0, pub, nil)
	ctx := trace.WithContext(context.Background(), "trace-42")

	out := svc.Decompose(ctx, "회의 일정")
	require.Len(t, pub.events, 1)

	ev := pub.events[0]
	assert.Equal(t, mqcontract.RoutingKeyIntentDecomposed, ev.routingKey)
	assert.NotEmpty(t, ev.payload.RequestID)
	assert.Equal(t, "trace-42", ev.payload.TraceID)
	assert.Equal(t, "회의 일정", ev.payload.Message)
	assert.Equal(t, "rule", ev.payload.Source)
	assert.Equal(t, intent.ReasonIntegrationUnavailable, ev.payload.UnusableReason)
	assert.False(t, ev.payload.Cached)

	var d intent.Decomposition
	require.NoError(t, json.Unmarshal(ev.payload.Decomposition, &d))
	assert.Equal(t, out.Decomposition, d)
}

func TestDecomposePublishesCacheHits(t *testing.T) {
	model := &countingModel{usable: true}
	pub := &memPublisher{}
	svc, _ := newCachedService(t, model, pub)
	ctx := context.Background()

	svc.Decompose(ctx, "메일 요약해줘")
	svc.Decompose(ctx, " 메일 요약해줘")

	assert.Equal(t, 1, model.calls)
	require.Len(t, pub.events, 2)
	assert.False(t, pub.events[0].payload.Cached)
	assert.True(t, pub.events[1].payload.Cached)
	assert.Equal(t, "model", pub.events[1].payload.Source)
	assert.Equal(t, " 메일 요약해줘", pub.events[1].payload.Message)
	assert.NotEqual(t, pub.events[0].payload.RequestID, pub.events[1].payload.RequestID)
	assert.JSONEq(t, string(pub.events[0].payload.Decomposition), string(pub.events[1].payload.Decomposition))
}

func TestDecomposePublishFailureIsSwallowed(t *testing.T) {
	svc := NewIntentService(intent.NewParser(nil, nil), nil, 0, &memPublisher{err: errors.New("mq down")}, nil)

	out := svc.Decompose(context.Background(), "회의 일정")
	assert.Equal(t, []string{"search_meeting_schedule"}, out.Decomposition.StepNames())
}

func TestAugment(t *testing.T) {
	svc := NewIntentService(intent.NewParser(nil, nil), nil, 0, nil, nil)
	ctx := context.Background()

	augmented, injected := svc.Augment(ctx, " 메일 요약해줘 ")
	require.True(t, injected)
	assert.True(t, strings.HasPrefix(augmented, intent.ContextHeader))
	assert.True(t, strings.HasSuffix(augmented, "원본 사용자 입력:\n메일 요약해줘"))

	again, injected := svc.Augment(ctx, augmented)
	assert.False(t, injected)
	assert.Equal(t, augmented, again)

	empty, injected := svc.Augment(ctx, "  ")
	assert.False(t, injected)
	assert.Empty(t, empty)
}

func TestRouteIntent(t *testing.T) {
	cases := map[string]string{
		"회의실 예약해줘":      IntentRoomBooking,
		"근태 신청":         IntentHRApply,
		"출장 비용 처리":      IntentFinance,
		"정산 요청":         IntentFinance,
		"실행예산 확인":       IntentPromise,
		"PROMISE 조회":    IntentPromise,
		"메일 요약해줘":       IntentChat,
		"회의 비용 정산 근태":   IntentRoomBooking,
	}
	for msg, want := range cases {
		assert.Equal(t, want, RouteIntent(msg), msg)
	}
}
