//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	grpcapi "github.com/oshokin/gas-guard/internal/api/grpc/safety"
	"github.com/oshokin/gas-guard/internal/config"
)

// Client wraps the gRPC SafetyService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to gasguard-server.
	conn *grpc.ClientConn
	// api is the SafetyService client.
	api *grpcapi.SafetyServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor identifies the caller in server logs; empty sends nothing.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sends actor with every call.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errDeviceRequired is returned when a device id is not provided.
	errDeviceRequired = errors.New("device id must be provided")
)

// Dial establishes a gRPC connection to gasguard-server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial gas-guard server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         grpcapi.NewSafetyServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Reconcile asks the server to apply the risk policy to a device.
func (c *Client) Reconcile(ctx context.Context, deviceID, risk string) (*structpb.Struct, error) {
	return c.call(ctx, "reconcile", deviceID, c.api.Reconcile, map[string]any{
		grpcapi.FieldRisk: risk,
	})
}

// Record asks the server to snapshot the reported state of a device.
// A zero timestamp lets the server use the current time.
func (c *Client) Record(ctx context.Context, deviceID string, timestamp int64) (*structpb.Struct, error) {
	fields := map[string]any{}
	if timestamp != 0 {
		fields[grpcapi.FieldTimestamp] = timestamp
	}

	return c.call(ctx, "record", deviceID, c.api.Record, fields)
}

// SetActuator asks the server to move one actuator to a state.
func (c *Client) SetActuator(ctx context.Context, deviceID, actuator, state string) (*structpb.Struct, error) {
	return c.call(ctx, "set actuator", deviceID, c.api.SetActuator, map[string]any{
		grpcapi.FieldActuator: actuator,
		grpcapi.FieldState:    state,
	})
}

// GetDeviceState retrieves the shadow sections of a device.
func (c *Client) GetDeviceState(ctx context.Context, deviceID string) (*structpb.Struct, error) {
	return c.call(ctx, "get device state", deviceID, c.api.GetDeviceState, map[string]any{})
}

// GetEvent retrieves the record stored at (deviceID, timestamp).
func (c *Client) GetEvent(ctx context.Context, deviceID string, timestamp int64) (*structpb.Struct, error) {
	return c.call(ctx, "get event", deviceID, c.api.GetEvent, map[string]any{
		grpcapi.FieldTimestamp: timestamp,
	})
}

// rpc is a SafetyServiceClient method value.
type rpc func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

// call validates the device id, builds the request and invokes method within the call timeout.
func (c *Client) call(
	ctx context.Context,
	operation string,
	deviceID string,
	method rpc,
	fields map[string]any,
) (*structpb.Struct, error) {
	if deviceID == "" {
		return nil, errDeviceRequired
	}

	fields[grpcapi.FieldDeviceID] = deviceID

	request, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if c.actor != "" {
		callCtx = metadata.AppendToOutgoingContext(callCtx, ActorMetadataKey, c.actor)
	}

	response, err := method(callCtx, request)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return response, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
