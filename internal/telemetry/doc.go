// Package telemetry configures OpenTelemetry tracing for the gas-guard binaries.
package telemetry
