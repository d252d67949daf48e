package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/habitlab/internal/notify"
	"github.com/sadopc/habitlab/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeNotifier struct {
	registered  map[string][]string
	registerErr error
	delivery    notify.Delivery
	sendErr     error
	tested      []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{registered: map[string][]string{}}
}

func (f *fakeNotifier) Register(_ context.Context, userID, token string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered[userID] = append(f.registered[userID], token)
	return nil
}

func (f *fakeNotifier) SendTest(_ context.Context, userID string) (notify.Delivery, error) {
	f.tested = append(f.tested, userID)
	return f.delivery, f.sendErr
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// =============================================================================
// Health and metrics
// =============================================================================

func TestHealthCheck(t *testing.T) {
	s := New(newFakeNotifier(), prometheus.NewRegistry(), nil)
	w := do(t, s, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	m.NotificationSent(true)

	s := New(newFakeNotifier(), reg, nil)
	w := do(t, s, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `habitlab_notifications_sent_total{status="success"} 1`)
}

// =============================================================================
// Test notification
// =============================================================================

func TestTestNotification(t *testing.T) {
	n := newFakeNotifier()
	n.delivery = notify.Delivery{UserID: "u1", DeviceCount: 2, SuccessCount: 1}
	s := New(n, prometheus.NewRegistry(), nil)

	w := do(t, s, http.MethodPost, "/v1/notifications/test", `{"user_id":"u1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, body["deviceCount"])
	assert.Equal(t, 1.0, body["successCount"])
	assert.Equal(t, []string{"u1"}, n.tested)
}

func TestTestNotificationNoDevices(t *testing.T) {
	n := newFakeNotifier()
	n.sendErr = notify.ErrNoDevices
	s := New(n, prometheus.NewRegistry(), nil)

	w := do(t, s, http.MethodPost, "/v1/notifications/test", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTestNotificationMissingUser(t *testing.T) {
	n := newFakeNotifier()
	s := New(n, prometheus.NewRegistry(), nil)

	w := do(t, s, http.MethodPost, "/v1/notifications/test", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, n.tested)
}

func TestTestNotificationFailure(t *testing.T) {
	n := newFakeNotifier()
	n.sendErr = errors.New("database is closed")
	s := New(n, prometheus.NewRegistry(), nil)

	w := do(t, s, http.MethodPost, "/v1/notifications/test", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database")
}

// =============================================================================
// Device tokens
// =============================================================================

func TestRegisterDeviceToken(t *testing.T) {
	n := newFakeNotifier()
	s := New(n, prometheus.NewRegistry(), nil)

	w := do(t, s, http.MethodPost, "/v1/device-tokens", `{"user_id":"u1","token":"tok-a"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"tok-a"}, n.registered["u1"])
}

func TestRegisterDeviceTokenDenied(t *testing.T) {
	n := newFakeNotifier()
	n.registerErr = notify.ErrPermissionDenied
	s := New(n, prometheus.NewRegistry(), nil)

	w := do(t, s, http.MethodPost, "/v1/device-tokens", `{"user_id":"u1","token":"tok-a"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegisterDeviceTokenBadRequest(t *testing.T) {
	s := New(newFakeNotifier(), prometheus.NewRegistry(), nil)

	for _, body := range []string{`{"user_id":"u1"}`, `{"token":"x"}`, `not json`} {
		w := do(t, s, http.MethodPost, "/v1/device-tokens", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := New(newFakeNotifier(), prometheus.NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.ListenAndServe(ctx, "127.0.0.1:0"))
}
