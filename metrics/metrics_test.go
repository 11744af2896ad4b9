package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"weatherbot/dialog"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHooksCountLifecycle(t *testing.T) {
	m := New()
	hooks := m.Hooks(zap.NewNop())
	user := dialog.User{ID: 1}

	hooks.OnFlowStart(user, dialog.CommandHelp)
	hooks.OnFlowStart(user, dialog.CommandHelp)
	hooks.OnFlowComplete(user, dialog.CommandHelp)
	hooks.OnFlowError(user, dialog.CommandWeatherGet, errors.New("boom"))
	m.MessageReceived()
	m.DeliveryFailed("document")
	m.TransitionDone(time.Now().Add(-time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FlowsStarted.WithLabelValues(dialog.CommandHelp)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowsCompleted.WithLabelValues(dialog.CommandHelp)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowErrors.WithLabelValues(dialog.CommandWeatherGet)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryFailures.WithLabelValues("document")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransitionSeconds))
}

func get(t *testing.T, handler http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.MessageReceived()

	code, body := get(t, NewHandler(m, nil), "/metrics")

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "weatherbot_messages_received_total 1")
}

func TestHandlerHealth(t *testing.T) {
	healthy := NewHandler(New(), map[string]HealthFunc{
		"database": func(context.Context) error { return nil },
	})
	code, body := get(t, healthy, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	broken := NewHandler(New(), map[string]HealthFunc{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	code, body = get(t, broken, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "redis: connection refused")
}
