package safety

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/repository/eventlog"
	"github.com/oshokin/gas-guard/internal/repository/shadow"
	"github.com/oshokin/gas-guard/internal/service/actuation"
	"github.com/oshokin/gas-guard/internal/service/recorder"
)

// newTestHandlers returns handlers over memory stores.
func newTestHandlers() (*Handlers, *shadow.MemoryStore, *eventlog.MemoryRepository) {
	store := shadow.NewMemoryStore()
	events := eventlog.NewMemoryRepository()
	clock := recorder.WithClock(func() time.Time { return time.Unix(1700000900, 0) })

	return NewHandlers(actuation.NewReconciler(store, nil), recorder.NewRecorder(store, events, clock)), store, events
}

// lambdaContext returns a context carrying a Lambda request id.
func lambdaContext() context.Context {
	return lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
}

// TestActuation checks the response codes of the actuation handler.
func TestActuation(t *testing.T) {
	t.Parallel()

	handlers, store, _ := newTestHandlers()

	tests := []struct {
		name  string
		event ActuationEvent
		code  int
	}{
		{name: "emergency", event: ActuationEvent{ThingName: "esp32-01", GasLevelsState: "emergencia"}, code: http.StatusOK},
		{name: "alias field", event: ActuationEvent{ThingName: "esp32-01", GasLevelState: "precaucion"}, code: http.StatusOK},
		{name: "no action", event: ActuationEvent{ThingName: "esp32-01", GasLevelsState: "normal"}, code: http.StatusNoContent},
		{name: "missing thing", event: ActuationEvent{GasLevelsState: "emergencia"}, code: http.StatusBadRequest},
		{name: "missing state", event: ActuationEvent{ThingName: "esp32-01"}, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		response, err := handlers.Actuation(lambdaContext(), tt.event)
		require.NoError(t, err, tt.name)
		require.Equal(t, tt.code, response.StatusCode, tt.name)
		require.NotEmpty(t, response.Body, tt.name)
	}

	document, err := store.Get(context.Background(), "esp32-01")
	require.NoError(t, err)
	require.Equal(t, gas.StateOn, document.Desired[gas.BuzzerState])
}

// TestRecord checks the record handler with and without a timestamp.
func TestRecord(t *testing.T) {
	t.Parallel()

	handlers, store, events := newTestHandlers()
	ctx := context.Background()

	require.NoError(t, store.MergeReported(ctx, "esp32-01", map[string]any{gas.GasLevelState: "seguro"}))

	response, err := handlers.Record(lambdaContext(), RecordEvent{ThingName: "esp32-01", Timestamp: json.RawMessage("1700000000")})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)

	response, err = handlers.Record(ctx, RecordEvent{ThingName: "esp32-01"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)

	_, err = events.Get(ctx, "esp32-01", 1700000000)
	require.NoError(t, err)

	_, err = events.Get(ctx, "esp32-01", 1700000900)
	require.NoError(t, err)

	response, err = handlers.Record(ctx, RecordEvent{})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, response.StatusCode)

	response, err = handlers.Record(ctx, RecordEvent{ThingName: "unknown"})
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, response.StatusCode)
}

// TestRecordInvalidTimestamp checks that malformed timestamps are answered with a 400 and nothing is written.
func TestRecordInvalidTimestamp(t *testing.T) {
	t.Parallel()

	handlers, store, events := newTestHandlers()
	ctx := context.Background()

	require.NoError(t, store.MergeReported(ctx, "esp32-01", map[string]any{gas.GasLevelState: "seguro"}))

	for _, payload := range []string{
		`{"thingName":"esp32-01","timestamp":-1}`,
		`{"thingName":"esp32-01","timestamp":1.5}`,
		`{"thingName":"esp32-01","timestamp":"soon"}`,
		`{"thingName":"esp32-01","timestamp":true}`,
	} {
		var event RecordEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &event), payload)

		response, err := handlers.Record(ctx, event)
		require.NoError(t, err, payload)
		require.Equal(t, http.StatusBadRequest, response.StatusCode, payload)
		require.Equal(t, errInvalidTimestamp.Error(), response.Body, payload)
	}

	require.Zero(t, events.Len())

	var event RecordEvent
	require.NoError(t, json.Unmarshal([]byte(`{"thingName":"esp32-01","timestamp":null}`), &event))

	response, err := handlers.Record(ctx, event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, response.StatusCode)
}

// TestWithRequestID checks that contexts without Lambda metadata are returned unchanged.
func TestWithRequestID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.Equal(t, ctx, withRequestID(ctx))

	ctx = lambdaContext()
	require.NotEqual(t, ctx, withRequestID(ctx))
}
