package control

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/gas-guard/internal/domain/gas"
	"github.com/oshokin/gas-guard/internal/repository/shadow"
)

var errTestShadow = errors.New("test shadow error")

// failingStore fails every call.
type failingStore struct {
	// writes counts MergeDesired calls.
	writes int
}

func (f *failingStore) Get(context.Context, string) (*gas.ShadowDocument, error) {
	return nil, errTestShadow
}

func (f *failingStore) MergeDesired(context.Context, string, gas.Delta) error {
	f.writes++

	return errTestShadow
}

// newStore returns a memory shadow whose device reports the given gas level state.
func newStore(t *testing.T, state string) *shadow.MemoryStore {
	t.Helper()

	store := shadow.NewMemoryStore()
	require.NoError(t, store.MergeReported(context.Background(), "esp32-01", map[string]any{
		gas.GasLevelState: state,
		gas.ValveState:    gas.StateClosed,
	}))

	return store
}

// TestSetActuator_AllowedStates asserts writes at safe risk levels.
func TestSetActuator_AllowedStates(t *testing.T) {
	t.Parallel()

	for _, state := range []string{"seguro", "normal", "precaucion", "precaución"} {
		t.Run(state, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newStore(t, state)

			result := NewController(store).SetActuator(ctx, ActuatorRequest{
				DeviceID: "esp32-01",
				Actuator: "Valve_State",
				State:    "OPEN",
			})

			require.Equal(t, gas.StatusSuccess, result.Status)
			require.Equal(t, gas.Delta{gas.ValveState: gas.StateOpen}, result.Delta)

			document, err := store.Get(ctx, "esp32-01")
			require.NoError(t, err)
			require.Equal(t, gas.StateOpen, document.Desired[gas.ValveState])
		})
	}
}

// TestSetActuator_Blocked asserts refusals during an emergency or unknown state.
func TestSetActuator_Blocked(t *testing.T) {
	t.Parallel()

	for _, state := range []string{"emergencia", "error"} {
		t.Run(state, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := newStore(t, state)

			result := NewController(store).SetActuator(ctx, ActuatorRequest{
				DeviceID: "esp32-01",
				Actuator: gas.FanState,
				State:    gas.StateOff,
			})

			require.Equal(t, gas.StatusRejected, result.Status)
			require.Equal(t, 409, result.Code())
			require.ErrorIs(t, result.Err, gas.ErrActuationBlocked)

			document, err := store.Get(ctx, "esp32-01")
			require.NoError(t, err)
			require.Empty(t, document.Desired)
		})
	}
}

// TestSetActuator_InvalidRequests asserts validation errors never touch the shadow.
func TestSetActuator_InvalidRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request ActuatorRequest
		want    error
	}{
		{name: "missing device", request: ActuatorRequest{Actuator: gas.FanState, State: gas.StateOn}, want: gas.ErrMissingField},
		{name: "missing actuator", request: ActuatorRequest{DeviceID: "esp32-01", State: gas.StateOn}, want: gas.ErrMissingField},
		{name: "missing state", request: ActuatorRequest{DeviceID: "esp32-01", Actuator: gas.FanState}, want: gas.ErrMissingField},
		{
			name:    "buzzer is not manual",
			request: ActuatorRequest{DeviceID: "esp32-01", Actuator: gas.BuzzerState, State: gas.StateOn},
			want:    gas.ErrUnsupportedActuator,
		},
		{
			name:    "valve cannot be on",
			request: ActuatorRequest{DeviceID: "esp32-01", Actuator: gas.ValveState, State: gas.StateOn},
			want:    gas.ErrUnsupportedActuator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &failingStore{}
			result := NewController(store).SetActuator(context.Background(), tt.request)

			require.Equal(t, gas.StatusBadRequest, result.Status)
			require.ErrorIs(t, result.Err, tt.want)
			require.Zero(t, store.writes)
		})
	}
}

// TestSetActuator_ShadowFailures asserts read failures and missing shadows are internal errors.
func TestSetActuator_ShadowFailures(t *testing.T) {
	t.Parallel()

	result := NewController(&failingStore{}).SetActuator(context.Background(), ActuatorRequest{
		DeviceID: "esp32-01",
		Actuator: gas.FanState,
		State:    gas.StateOn,
	})
	require.Equal(t, gas.StatusInternalError, result.Status)
	require.ErrorIs(t, result.Err, gas.ErrShadowRead)

	result = NewController(shadow.NewMemoryStore()).SetActuator(context.Background(), ActuatorRequest{
		DeviceID: "unknown",
		Actuator: gas.FanState,
		State:    gas.StateOn,
	})
	require.Equal(t, gas.StatusInternalError, result.Status)
	require.ErrorIs(t, result.Err, shadow.ErrNotFound)
}

// TestStatus asserts the shadow sections are returned.
func TestStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t, "seguro")
	require.NoError(t, store.MergeDesired(ctx, "esp32-01", gas.Delta{gas.FanState: gas.StateOn}))

	result := NewController(store).Status(ctx, "esp32-01")
	require.Equal(t, gas.StatusSuccess, result.Status)
	require.Equal(t, "seguro", result.Reported[gas.GasLevelState])
	require.Equal(t, gas.StateOn, result.Desired[gas.FanState])

	require.Equal(t, gas.StatusBadRequest, NewController(store).Status(ctx, "").Status)
	require.Equal(t, gas.StatusInternalError, NewController(&failingStore{}).Status(ctx, "esp32-01").Status)
}
