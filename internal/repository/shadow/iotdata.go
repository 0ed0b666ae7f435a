package shadow

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane/types"

	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// IoTDataAPI is the subset of the AWS IoT data plane client used by IoTDataStore.
type IoTDataAPI interface {
	GetThingShadow(
		ctx context.Context,
		params *iotdataplane.GetThingShadowInput,
		optFns ...func(*iotdataplane.Options),
	) (*iotdataplane.GetThingShadowOutput, error)
	UpdateThingShadow(
		ctx context.Context,
		params *iotdataplane.UpdateThingShadowInput,
		optFns ...func(*iotdataplane.Options),
	) (*iotdataplane.UpdateThingShadowOutput, error)
}

// IoTDataStore reads and updates shadows through the AWS IoT Device Shadow REST API.
type IoTDataStore struct {
	// api is the AWS IoT data plane client.
	api IoTDataAPI
	// shadowName selects a named shadow; empty means the classic shadow.
	shadowName string
}

// NewIoTDataStore wraps an IoT data plane client.
func NewIoTDataStore(api IoTDataAPI, shadowName string) *IoTDataStore {
	return &IoTDataStore{
		api:        api,
		shadowName: shadowName,
	}
}

// NewIoTDataClient builds an IoT data plane client bound to the account data endpoint.
func NewIoTDataClient(cfg aws.Config, endpoint string) *iotdataplane.Client {
	return iotdataplane.NewFromConfig(cfg, func(o *iotdataplane.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// Get fetches and parses the device shadow.
func (s *IoTDataStore) Get(ctx context.Context, deviceID string) (*gas.ShadowDocument, error) {
	output, err := s.api.GetThingShadow(ctx, &iotdataplane.GetThingShadowInput{
		ThingName:  aws.String(deviceID),
		ShadowName: s.name(),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, deviceID)
		}

		return nil, fmt.Errorf("get thing shadow: %w", err)
	}

	document, err := gas.ParseShadow(output.Payload)
	if err != nil {
		return nil, fmt.Errorf("parse thing shadow: %w", err)
	}

	return document, nil
}

// MergeDesired sends a partial update of the desired section.
func (s *IoTDataStore) MergeDesired(ctx context.Context, deviceID string, delta gas.Delta) error {
	payload, err := gas.EncodeDesiredUpdate(delta, "")
	if err != nil {
		return err
	}

	_, err = s.api.UpdateThingShadow(ctx, &iotdataplane.UpdateThingShadowInput{
		ThingName:  aws.String(deviceID),
		ShadowName: s.name(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("update thing shadow: %w", err)
	}

	return nil
}

func (s *IoTDataStore) name() *string {
	if s.shadowName == "" {
		return nil
	}

	return aws.String(s.shadowName)
}
