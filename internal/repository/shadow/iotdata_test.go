package shadow

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane/types"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// fakeIoTData records requests and replays canned responses.
type fakeIoTData struct {
	payload   []byte
	getErr    error
	updateErr error
	gets      []*iotdataplane.GetThingShadowInput
	updates   []*iotdataplane.UpdateThingShadowInput
}

func (f *fakeIoTData) GetThingShadow(
	_ context.Context,
	params *iotdataplane.GetThingShadowInput,
	_ ...func(*iotdataplane.Options),
) (*iotdataplane.GetThingShadowOutput, error) {
	f.gets = append(f.gets, params)
	if f.getErr != nil {
		return nil, f.getErr
	}

	return &iotdataplane.GetThingShadowOutput{Payload: f.payload}, nil
}

func (f *fakeIoTData) UpdateThingShadow(
	_ context.Context,
	params *iotdataplane.UpdateThingShadowInput,
	_ ...func(*iotdataplane.Options),
) (*iotdataplane.UpdateThingShadowOutput, error) {
	f.updates = append(f.updates, params)
	if f.updateErr != nil {
		return nil, f.updateErr
	}

	return &iotdataplane.UpdateThingShadowOutput{}, nil
}

// TestIoTDataStoreGet verifies shadow retrieval and parsing.
func TestIoTDataStoreGet(t *testing.T) {
	t.Parallel()

	api := &fakeIoTData{
		payload: []byte(`{"state":{"reported":{"gas_level_state":"emergencia","gas_level_ppm":812}},"version":7}`),
	}
	store := NewIoTDataStore(api, "")

	document, err := store.Get(context.Background(), "esp32-01")
	require.NoError(t, err)
	require.Equal(t, "emergencia", document.Reported[gas.GasLevelState])
	require.InDelta(t, 812.0, document.Reported[gas.GasLevelPPM], 0)
	require.Empty(t, document.Desired)
	require.Equal(t, int64(7), document.Version)

	require.Len(t, api.gets, 1)
	require.Equal(t, "esp32-01", aws.ToString(api.gets[0].ThingName))
	require.Nil(t, api.gets[0].ShadowName)
}

// TestIoTDataStoreGetNotFound verifies that a missing shadow maps to ErrNotFound.
func TestIoTDataStoreGetNotFound(t *testing.T) {
	t.Parallel()

	store := NewIoTDataStore(&fakeIoTData{
		getErr: &types.ResourceNotFoundException{Message: aws.String("No shadow exists")},
	}, "")

	_, err := store.Get(context.Background(), "esp32-01")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestIoTDataStoreGetFailures verifies transport and parse errors.
func TestIoTDataStoreGetFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("throttled")

	_, err := NewIoTDataStore(&fakeIoTData{getErr: boom}, "").Get(context.Background(), "esp32-01")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrNotFound)

	_, err = NewIoTDataStore(&fakeIoTData{payload: []byte("not json")}, "").Get(context.Background(), "esp32-01")
	require.Error(t, err)
}

// TestIoTDataStoreMergeDesired verifies the partial update payload and the named shadow.
func TestIoTDataStoreMergeDesired(t *testing.T) {
	t.Parallel()

	api := &fakeIoTData{}
	store := NewIoTDataStore(api, "safety")

	err := store.MergeDesired(context.Background(), "esp32-01", gas.Delta{gas.ValveState: gas.StateClosed})
	require.NoError(t, err)
	require.Len(t, api.updates, 1)

	update := api.updates[0]
	require.Equal(t, "esp32-01", aws.ToString(update.ThingName))
	require.Equal(t, "safety", aws.ToString(update.ShadowName))
	require.JSONEq(t, `{"state":{"desired":{"valve_state":"closed"}}}`, string(update.Payload))
}

// TestIoTDataStoreMergeDesiredFailure verifies that update errors are returned.
func TestIoTDataStoreMergeDesiredFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("access denied")
	store := NewIoTDataStore(&fakeIoTData{updateErr: boom}, "")

	err := store.MergeDesired(context.Background(), "esp32-01", gas.Delta{gas.FanState: gas.StateOn})
	require.ErrorIs(t, err, boom)
}
