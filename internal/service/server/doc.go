// Package server runs gasguard-server: the gRPC and HTTP APIs over the configured stores.
package server
