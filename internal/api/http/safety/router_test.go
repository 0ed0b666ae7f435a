package safety

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/repository/eventlog"
	"github.com/oshokin/gas-guard/internal/repository/shadow"
	"github.com/oshokin/gas-guard/internal/service/actuation"
	"github.com/oshokin/gas-guard/internal/service/control"
	"github.com/oshokin/gas-guard/internal/service/recorder"
	"github.com/oshokin/gas-guard/internal/version"
)

// newTestRouter returns a router over memory stores and the shadow for seeding.
func newTestRouter(t *testing.T) (*gin.Engine, *shadow.MemoryStore) {
	t.Helper()

	store := shadow.NewMemoryStore()
	events := eventlog.NewMemoryRepository()

	router := NewRouter(
		actuation.NewReconciler(store, nil),
		recorder.NewRecorder(store, events),
		control.NewController(store),
		events,
	)

	return router, store
}

// serve performs one request and decodes the JSON response.
func serve(t *testing.T, router http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()

	request := httptest.NewRequestWithContext(context.Background(), method, path, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Body.Len() == 0 {
		return recorder.Code, nil
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))

	return recorder.Code, decoded
}

// TestRouter_Health checks the liveness route.
func TestRouter_Health(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	code, body := serve(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body[gas.FieldStatus])
	require.Equal(t, version.Short(), body["version"])
}

// TestRouter_Reconcile checks success, no-op and bad-request outcomes.
func TestRouter_Reconcile(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)

	code, body := serve(t, router, http.MethodPost, "/v1/devices/esp32-01/reconcile", `{"risk":"precaucion"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]any{gas.ValveState: gas.StateClosed}, body[gas.FieldDelta])

	document, err := store.Get(context.Background(), "esp32-01")
	require.NoError(t, err)
	require.Equal(t, gas.StateClosed, document.Desired[gas.ValveState])

	code, _ = serve(t, router, http.MethodPost, "/v1/devices/esp32-01/reconcile", `{"gas_level_state":"normal"}`)
	require.Equal(t, http.StatusNoContent, code)

	code, body = serve(t, router, http.MethodPost, "/v1/devices/esp32-01/reconcile", "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "bad-request", body[gas.FieldStatus])

	code, _ = serve(t, router, http.MethodPost, "/v1/devices/esp32-01/reconcile", `{"risk":`)
	require.Equal(t, http.StatusBadRequest, code)
}

// TestRouter_Events checks recording and reading back an event.
func TestRouter_Events(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)
	require.NoError(t, store.MergeReported(context.Background(), "sensor-1", map[string]any{
		gas.GasLevelState: "seguro",
		gas.FanState:      "off",
	}))

	code, body := serve(t, router, http.MethodPost, "/v1/devices/sensor-1/events", `{"timestamp":1700000000}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "success", body[gas.FieldStatus])

	code, body = serve(t, router, http.MethodGet, "/v1/devices/sensor-1/events/1700000000", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "seguro", body[gas.GasLevelState])
	require.Equal(t, "off", body[gas.FanState])
	require.Nil(t, body[gas.GasLevelPPM])

	code, _ = serve(t, router, http.MethodGet, "/v1/devices/sensor-1/events/42", "")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = serve(t, router, http.MethodGet, "/v1/devices/sensor-1/events/yesterday", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = serve(t, router, http.MethodGet, "/v1/devices/sensor-1/events/-5", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = serve(t, router, http.MethodPost, "/v1/devices/sensor-1/events", `{"timestamp":-5}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = serve(t, router, http.MethodPost, "/v1/devices/unknown/events", "")
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "internal-error", body[gas.FieldStatus])
}

// TestRouter_ManualControl checks actuator requests and the state query.
func TestRouter_ManualControl(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)
	require.NoError(t, store.MergeReported(context.Background(), "esp32-01", map[string]any{gas.GasLevelState: "seguro"}))

	code, body := serve(t, router, http.MethodPost, "/v1/devices/esp32-01/actuators", `{"actuator":"fan_state","state":"on"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]any{gas.FanState: gas.StateOn}, body[gas.FieldDelta])

	code, _ = serve(t, router, http.MethodPost, "/v1/devices/esp32-01/actuators", `{"actuator":"buzzer_state","state":"on"}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = serve(t, router, http.MethodGet, "/v1/devices/esp32-01/state", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]any{gas.FanState: gas.StateOn}, body[gas.FieldDesired])
	require.Equal(t, map[string]any{gas.GasLevelState: "seguro"}, body[gas.FieldReported])
}
