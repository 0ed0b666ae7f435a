package safety

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gasguard.v1.SafetyService"

// Full method names.
const (
	ReconcileMethod      = "/" + ServiceName + "/Reconcile"
	RecordMethod         = "/" + ServiceName + "/Record"
	SetActuatorMethod    = "/" + ServiceName + "/SetActuator"
	GetDeviceStateMethod = "/" + ServiceName + "/GetDeviceState"
	GetEventMethod       = "/" + ServiceName + "/GetEvent"
)

// SafetyServiceServer is the server API of the safety service.
type SafetyServiceServer interface {
	Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Record(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetActuator(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetDeviceState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// unaryMethod is a method expression of SafetyServiceServer.
type unaryMethod func(SafetyServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc describes the safety service for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level in generated code too.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SafetyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reconcile", Handler: unaryHandler(ReconcileMethod, SafetyServiceServer.Reconcile)},
		{MethodName: "Record", Handler: unaryHandler(RecordMethod, SafetyServiceServer.Record)},
		{MethodName: "SetActuator", Handler: unaryHandler(SetActuatorMethod, SafetyServiceServer.SetActuator)},
		{MethodName: "GetDeviceState", Handler: unaryHandler(GetDeviceStateMethod, SafetyServiceServer.GetDeviceState)},
		{MethodName: "GetEvent", Handler: unaryHandler(GetEventMethod, SafetyServiceServer.GetEvent)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gasguard/v1/safety.proto",
}

// RegisterSafetyServiceServer registers srv on the registrar.
func RegisterSafetyServiceServer(registrar grpc.ServiceRegistrar, srv SafetyServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// unaryHandler decodes the request Struct and runs method through the interceptor chain.
func unaryHandler(fullMethod string, method unaryMethod) grpc.MethodHandler {
	//nolint:revive // Argument order is fixed by grpc.MethodHandler.
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(SafetyServiceServer)

		if interceptor == nil {
			return method(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			request, _ := req.(*structpb.Struct)

			return method(server, ctx, request)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// SafetyServiceClient is the client API of the safety service.
type SafetyServiceClient struct {
	// cc is the connection used for every call.
	cc grpc.ClientConnInterface
}

// NewSafetyServiceClient creates a client over the connection.
func NewSafetyServiceClient(cc grpc.ClientConnInterface) *SafetyServiceClient {
	return &SafetyServiceClient{cc: cc}
}

// Reconcile calls SafetyService.Reconcile.
func (c *SafetyServiceClient) Reconcile(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, ReconcileMethod, in, opts)
}

// Record calls SafetyService.Record.
func (c *SafetyServiceClient) Record(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordMethod, in, opts)
}

// SetActuator calls SafetyService.SetActuator.
func (c *SafetyServiceClient) SetActuator(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, SetActuatorMethod, in, opts)
}

// GetDeviceState calls SafetyService.GetDeviceState.
func (c *SafetyServiceClient) GetDeviceState(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, GetDeviceStateMethod, in, opts)
}

// GetEvent calls SafetyService.GetEvent.
func (c *SafetyServiceClient) GetEvent(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, GetEventMethod, in, opts)
}

func (c *SafetyServiceClient) invoke(
	ctx context.Context,
	method string,
	in *structpb.Struct,
	opts []grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
