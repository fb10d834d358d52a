package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/booking/scheduler/internal/biz/booking"
	"github.com/booking/scheduler/internal/biz/poweroff"
	"github.com/booking/scheduler/internal/relay"
	"github.com/booking/scheduler/internal/scheduler"
)

// doorGatewayStub 网关假服务，默认一切正常
type doorGatewayStub struct {
	mu       sync.Mutex
	requests []string
	broken   bool
}

func (g *doorGatewayStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.requests = append(g.requests, r.Method+" "+r.URL.Path)
		broken := g.broken
		g.mu.Unlock()

		if broken {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"relay_id": 9, "status": "on"})
	})
}

func (g *doorGatewayStub) requestLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.requests))
	copy(out, g.requests)
	return out
}

type doorFixture struct {
	router *gin.Engine
	sched  *scheduler.Scheduler
	stub   *doorGatewayStub
}

func newDoorFixture(t *testing.T, bookings map[uint64]*booking.Booking) *doorFixture {
	stub := &doorGatewayStub{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.Gateway.BaseURL = srv.URL
	logger := zap.NewNop()

	bookingRepo := &fakeBookingRepo{bookings: bookings}
	bookingUC := booking.NewUsecase(bookingRepo, cfg)

	sched := newSched(t, cfg, newMemTasks())
	powerOffUC := poweroff.NewUsecase(
		&fakePowerOffRepo{}, &fakeAuditRepo{}, bookingRepo, &fakeRoomRepo{}, &fakeRelay{},
		sched, cfg, logger)

	gateway := relay.NewGatewayClient(cfg, logger)
	handler := NewDoorHandler(bookingUC, powerOffUC, gateway, logger)

	router := gin.New()
	router.POST("/api/v1/doors/open", handler.OpenDoor)

	return &doorFixture{router: router, sched: sched, stub: stub}
}

// TestOpenDoorSuccess 有效预订开门成功，并顺带编排断电
func TestOpenDoorSuccess(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)
	f := newDoorFixture(t, map[uint64]*booking.Booking{
		1: confirmedBooking(1, 100, 9, now.Add(-time.Hour), end),
	})

	w := doRequest(f.router, http.MethodPost, "/api/v1/doors/open",
		`{"door_id":9}`, map[string]string{"X-User-ID": "100"})

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "success", env.Message)

	var resp OpenDoorResp
	decodeData(t, env, &resp)
	assert.Equal(t, uint64(9), resp.DoorID)
	assert.Equal(t, uint64(1), resp.BookingID)
	assert.Equal(t, end.Unix(), resp.EndTime)

	// 开门脉冲打到门继电器，然后确认网关在线
	log := f.stub.requestLog()
	require.Len(t, log, 2)
	assert.Equal(t, "POST /relays/9/off", log[0])
	assert.Equal(t, "GET /relays/7/status", log[1])

	// 断电任务已挂上定时器
	jobs := f.sched.ArmedJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "power_off_1_9", jobs[0].TaskID)
}

// TestOpenDoorMissingUser 缺用户标识拒绝
func TestOpenDoorMissingUser(t *testing.T) {
	f := newDoorFixture(t, nil)

	w := doRequest(f.router, http.MethodPost, "/api/v1/doors/open", `{"door_id":9}`, nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, http.StatusUnauthorized, env.Code)
	assert.Equal(t, "missing user identity", env.Message)
	assert.Empty(t, f.stub.requestLog())
}

// TestOpenDoorBadRequest 请求体不合法
func TestOpenDoorBadRequest(t *testing.T) {
	f := newDoorFixture(t, nil)

	w := doRequest(f.router, http.MethodPost, "/api/v1/doors/open",
		`{"door_id":0}`, map[string]string{"X-User-ID": "100"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.stub.requestLog())
}

// TestOpenDoorNoBooking 没有可用预订时按原因拒绝
func TestOpenDoorNoBooking(t *testing.T) {
	f := newDoorFixture(t, nil)

	w := doRequest(f.router, http.MethodPost, "/api/v1/doors/open",
		`{"door_id":9}`, map[string]string{"X-User-ID": "100"})

	require.Equal(t, http.StatusForbidden, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "no_booking", env.Message)
	assert.Empty(t, f.stub.requestLog())
}

// TestOpenDoorTooEarly 还没到提前开门时间
func TestOpenDoorTooEarly(t *testing.T) {
	now := time.Now()
	f := newDoorFixture(t, map[uint64]*booking.Booking{
		1: confirmedBooking(1, 100, 9, now.Add(3*time.Hour), now.Add(5*time.Hour)),
	})

	w := doRequest(f.router, http.MethodPost, "/api/v1/doors/open",
		`{"door_id":9}`, map[string]string{"X-User-ID": "100"})

	require.Equal(t, http.StatusForbidden, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "too_early", env.Message)
}

// TestOpenDoorGatewayDown 网关不可用时返回 502，不编排断电
func TestOpenDoorGatewayDown(t *testing.T) {
	now := time.Now()
	f := newDoorFixture(t, map[uint64]*booking.Booking{
		1: confirmedBooking(1, 100, 9, now.Add(-time.Hour), now.Add(time.Hour)),
	})
	f.stub.broken = true

	w := doRequest(f.router, http.MethodPost, "/api/v1/doors/open",
		`{"door_id":9}`, map[string]string{"X-User-ID": "100"})

	require.Equal(t, http.StatusBadGateway, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "door control failed", env.Message)
	assert.Empty(t, f.sched.ArmedJobs())
}
