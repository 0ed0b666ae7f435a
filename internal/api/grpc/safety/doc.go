// Package safety exposes the gas safety services over gRPC.
//
// Messages are google.protobuf.Struct documents, so the service descriptor is
// declared by hand instead of being generated from a .proto file.
package safety
