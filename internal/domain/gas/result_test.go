package gas

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStatusOf maps every error class to its status.
func TestStatusOf(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")

	cases := map[error]Status{
		nil:                                 StatusSuccess,
		MissingField("device_id"):           StatusBadRequest,
		MissingReportedField(GasLevelState): StatusBadRequest,
		ErrUnsupportedActuator:              StatusBadRequest,
		ErrActuationBlocked:                 StatusRejected,
		fmt.Errorf("%w: %w", ErrShadowRead, cause):  StatusInternalError,
		fmt.Errorf("%w: %w", ErrShadowWrite, cause): StatusInternalError,
		fmt.Errorf("%w: %w", ErrLogWrite, cause):    StatusInternalError,
		cause:                                       StatusInternalError,
	}

	for err, want := range cases {
		require.Equal(t, want, StatusOf(err), "%v", err)
	}
}

// TestStatus_Code checks the HTTP-style codes.
func TestStatus_Code(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusOK, StatusSuccess.Code())
	require.Equal(t, http.StatusNoContent, StatusNoOp.Code())
	require.Equal(t, http.StatusBadRequest, StatusBadRequest.Code())
	require.Equal(t, http.StatusConflict, StatusRejected.Code())
	require.Equal(t, http.StatusInternalServerError, StatusInternalError.Code())

	require.False(t, StatusNoOp.IsError())
	require.True(t, StatusRejected.IsError())
}

// TestFailed keeps the error and classifies it.
func TestFailed(t *testing.T) {
	t.Parallel()

	result := Failed("sensor-1", MissingField("risk"))

	require.Equal(t, StatusBadRequest, result.Status)
	require.Equal(t, "missing required field: risk", result.Message)
	require.Equal(t, "sensor-1", result.DeviceID)
	require.ErrorIs(t, result.Err, ErrMissingField)
	require.Equal(t, http.StatusBadRequest, result.Code())
}

// TestResultFields verifies the rendered documents of each result kind.
func TestResultFields(t *testing.T) {
	t.Parallel()

	reconcile := &ReconcileResult{
		Result: Succeeded("esp32-01", "desired state updated for esp32-01"),
		Delta:  Delta{ValveState: StateClosed},
	}
	require.Equal(t, map[string]any{
		FieldStatus:   "success",
		FieldCode:     200,
		FieldMessage:  "desired state updated for esp32-01",
		FieldDeviceID: "esp32-01",
		FieldDelta:    map[string]any{ValveState: StateClosed},
	}, reconcile.Fields())

	noop := &ReconcileResult{Result: Skipped("esp32-01", "no changes applied")}
	require.NotContains(t, noop.Fields(), FieldDelta)
	require.Equal(t, 204, noop.Fields()[FieldCode])

	ppm := 3.5
	record := &RecordResult{
		Result: Succeeded("esp32-01", "recorded"),
		Record: &EventRecord{DeviceID: "esp32-01", Timestamp: 10, GasLevelPPM: &ppm, GasLevelState: "seguro"},
	}
	require.Equal(t, map[string]any{
		DeviceIDAttribute:  "esp32-01",
		TimestampAttribute: int64(10),
		GasLevelPPM:        3.5,
		GasLevelState:      "seguro",
		ValveState:         nil,
		FanState:           nil,
	}, record.Fields()[FieldRecord])

	status := &StatusResult{Result: Succeeded("esp32-01", "state")}
	require.Equal(t, map[string]any{}, status.Fields()[FieldReported])

	failed := &StatusResult{Result: Failed("esp32-01", ErrShadowRead)}
	require.NotContains(t, failed.Fields(), FieldReported)
	require.Equal(t, "internal-error", failed.Fields()[FieldStatus])
}
