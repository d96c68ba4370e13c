package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moldubot/internal/intent"
	"moldubot/internal/model"
	"moldubot/internal/service"
	"moldubot/pkg/auth"
	"moldubot/pkg/rbac"
	"moldubot/pkg/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExecutor struct {
	answer string
	err    error
	got    intent.Decomposition
}

func (e *stubExecutor) Execute(_ context.Context, d intent.Decomposition, _ string) (string, error) {
	e.got = d
	return e.answer, e.err
}

type stubCatalog struct {
	rooms    []model.Room
	bookErr  error
	lastBook model.BookingRequest
}

func (c *stubCatalog) SearchRooms(_ context.Context, f service.RoomFilter) ([]model.Room, error) {
	var out []model.Room
	for _, r := range c.rooms {
		if f.Building != "" && r.Building != f.Building {
			continue
		}
		if f.Floor != nil && r.Floor != *f.Floor {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *stubCatalog) ListBuildings(context.Context) ([]string, error) {
	return []string{"별관", "본관"}, nil
}

func (c *stubCatalog) ListFloors(_ context.Context, building string) ([]int, error) {
	if building == "본관" {
		return []int{3, 5}, nil
	}
	return []int{}, nil
}

func (c *stubCatalog) Book(_ context.Context, req model.BookingRequest) (*model.Booking, error) {
	c.lastBook = req
	if c.bookErr != nil {
		return nil, c.bookErr
	}
	return &model.Booking{ID: 1, BookingRequest: req}, nil
}

type stubReplayer struct {
	limit int
	n     int
}

func (r *stubReplayer) ReplayFailed(_ context.Context, limit int) (int, error) {
	r.limit = limit
	return r.n, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	router   *Router
	executor *stubExecutor
	catalog  *stubCatalog
	replayer *stubReplayer
}

func newFixture(secret string, db Pinger) *fixture {
	f := &fixture{
		executor: &stubExecutor{answer: "처리 완료"},
		catalog: &stubCatalog{rooms: []model.Room{
			{Building: "본관", Floor: 3, RoomName: "소회의실", Capacity: 4},
			{Building: "본관", Floor: 5, RoomName: "대회의실", Capacity: 20},
		}},
		replayer: &stubReplayer{n: 2},
	}
	intents := service.NewIntentService(intent.NewParser(nil, nil), nil, 0, nil, nil)
	chat := NewChatHandler(intents, f.executor, nil)
	chat.now = func() time.Time { return time.Unix(1700000000, 0) }

	f.router = NewRouter(
		NewIntentHandler(intents),
		chat,
		NewMeetingHandler(f.catalog, nil),
		NewAdminHandler(f.replayer, nil),
		secret,
		db,
	)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func bearer(t *testing.T, role string) map[string]string {
	t.Helper()
	token, err := auth.GenerateJWT("u-1", role, "secret", time.Now())
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture("", nil)

	w, body := f.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Len(t, w.Header().Get(trace.HeaderName), 32)

	w, _ = f.do(t, http.MethodHead, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, http.MethodGet, "/readyz", nil, map[string]string{trace.RequestIDHeader: "req-7"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "req-7", w.Header().Get(trace.HeaderName))

	f = newFixture("", failingPinger{})
	w, body = f.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "db_not_ready", body["status"])

	w, _ = f.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDecomposeEndpoint(t *testing.T) {
	f := newFixture("", nil)

	w, body := f.do(t, http.MethodPost, "/intents/decompose", gin.H{"message": "내일 오후 2시 5명 회의 예약해줘"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rule", body["source"])
	assert.Equal(t, intent.ReasonIntegrationUnavailable, body["unusable_reason"])

	d := body["decomposition"].(map[string]any)
	assert.Equal(t, []any{"book_meeting_room"}, d["steps"])
	assert.Equal(t, []any{"end_time"}, d["missing_slots"])
	assert.Equal(t, "tomorrow", d["date_filter"].(map[string]any)["relative"])

	w, body = f.do(t, http.MethodPost, "/intents/decompose", "{", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request", body["error"])
}

func TestContextEndpoint(t *testing.T) {
	f := newFixture("", nil)

	w, body := f.do(t, http.MethodPost, "/intents/context", gin.H{"message": "메일 요약해줘"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["injected"])
	assert.Contains(t, body["augmented"], intent.ContextHeader)

	_, body = f.do(t, http.MethodPost, "/intents/context", gin.H{"message": body["augmented"]}, nil)
	assert.Equal(t, false, body["injected"])
}

func TestResolveEndpoint(t *testing.T) {
	f := newFixture("", nil)

	_, body := f.do(t, http.MethodPost, "/intents/resolve", gin.H{"message": "회의실 잡아줘"}, nil)
	assert.Equal(t, "room_booking", body["intent"])
	assert.Equal(t, "room_booking", body["primary_intent"])
	assert.Equal(t, 0.7, body["confidence"])
	assert.Equal(t, "bootstrap-v1", body["router_version"])
}

func TestChatEndpoint(t *testing.T) {
	f := newFixture("", nil)

	w, body := f.do(t, http.MethodPost, "/search/chat", gin.H{"message": "메일 요약해줘", "thread_id": "t-1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "t-1", body["thread_id"])
	assert.Equal(t, "처리 완료", body["answer"])
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, "rule", meta["source"])
	assert.Equal(t, []any{"read_current_mail", "summarize_mail"}, meta["steps"])
	assert.Equal(t, []string{"read_current_mail", "summarize_mail"}, f.executor.got.StepNames())

	_, body = f.do(t, http.MethodPost, "/search/chat", gin.H{"message": "   "}, nil)
	assert.Equal(t, "요청 내용을 입력해 주세요.", body["answer"])
	assert.Equal(t, "outlook_1700000000", body["thread_id"])
	assert.Equal(t, "validation", body["metadata"].(map[string]any)["source"])

	f.executor.err = errors.New("db down")
	w, body = f.do(t, http.MethodPost, "/search/chat", gin.H{"message": "메일 요약해줘"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "execution failed", body["error"])
}

func TestChatConfirm(t *testing.T) {
	f := newFixture("", nil)

	_, body := f.do(t, http.MethodPost, "/search/chat/confirm", gin.H{"thread_id": "t-1", "approved": true}, nil)
	assert.Equal(t, "승인 처리되었습니다. (개발 서버 기본 동작)", body["answer"])
	assert.Equal(t, map[string]any{"approved": true}, body["metadata"].(map[string]any)["confirm"])

	_, body = f.do(t, http.MethodPost, "/search/chat/confirm", gin.H{"thread_id": "t-1"}, nil)
	assert.Equal(t, "요청을 취소했습니다.", body["answer"])
}

func TestMeetingRoomListing(t *testing.T) {
	f := newFixture("", nil)

	_, body := f.do(t, http.MethodGet, "/api/meeting-rooms", nil, nil)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, []any{map[string]any{"building": "별관"}, map[string]any{"building": "본관"}}, body["items"])

	_, body = f.do(t, http.MethodGet, "/api/meeting-rooms?building=본관", nil, nil)
	assert.Equal(t, []any{
		map[string]any{"building": "본관", "floor": float64(3)},
		map[string]any{"building": "본관", "floor": float64(5)},
	}, body["items"])

	_, body = f.do(t, http.MethodGet, "/api/meeting-rooms?building=본관&floor=5", nil, nil)
	require.Equal(t, float64(1), body["count"])
	room := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "대회의실", room["room_name"])
	assert.Equal(t, float64(20), room["capacity"])

	w, _ := f.do(t, http.MethodGet, "/api/meeting-rooms?building=본관&floor=five", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeetingRoomBooking(t *testing.T) {
	f := newFixture("", nil)
	req := gin.H{
		"building": "본관", "floor": 3, "room_name": "소회의실",
		"date": "2026-03-05", "start_time": "10:00", "end_time": "11:00", "attendee_count": 4,
	}

	w, body := f.do(t, http.MethodPost, "/api/meeting-rooms/book", req, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "2026-03-05 10:00-11:00 본관 3층 소회의실 예약 요청을 접수했습니다.", body["answer"])
	assert.Equal(t, "anonymous", f.catalog.lastBook.BookedBy)

	f.catalog.bookErr = model.ErrBookingConflict
	w, body = f.do(t, http.MethodPost, "/api/meeting-rooms/book", req, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "rejected", body["status"])
	assert.Equal(t, "회의실 예약 실패: 동일 시간대 예약이 이미 존재합니다.", body["answer"])

	f.catalog.bookErr = errors.New("tx aborted")
	w, _ = f.do(t, http.MethodPost, "/api/meeting-rooms/book", req, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/meeting-rooms/book", gin.H{"building": "본관"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthAndPermissions(t *testing.T) {
	f := newFixture("secret", nil)
	msg := gin.H{"message": "메일 요약해줘"}

	w, body := f.do(t, http.MethodPost, "/intents/decompose", msg, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing token", body["error"])

	w, body = f.do(t, http.MethodPost, "/intents/decompose", msg, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid token", body["error"])

	w, _ = f.do(t, http.MethodPost, "/intents/decompose", msg, bearer(t, rbac.RoleUser))
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPost, "/admin/outbox/replay-failed", nil, bearer(t, rbac.RoleUser))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = f.do(t, http.MethodPost, "/admin/outbox/replay-failed?limit=5", nil, bearer(t, rbac.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["requeued_count"])
	assert.Equal(t, float64(5), body["limit"])
	assert.Equal(t, 5, f.replayer.limit)

	_, body = f.do(t, http.MethodPost, "/admin/outbox/replay-failed?limit=-1", nil, bearer(t, rbac.RoleAdmin))
	assert.Equal(t, float64(100), body["limit"])
}

func TestBookingUsesTokenSubject(t *testing.T) {
	f := newFixture("secret", nil)
	req := gin.H{
		"building": "본관", "floor": 3, "room_name": "소회의실",
		"date": "2026-03-05", "start_time": "10:00", "end_time": "11:00",
	}

	w, _ := f.do(t, http.MethodPost, "/api/meeting-rooms/book", req, bearer(t, rbac.RoleUser))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", f.catalog.lastBook.BookedBy)
}
