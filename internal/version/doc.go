// Package version exposes build metadata of the gas-guard binaries.
//
// Version, Commit and BuildTime are injected with -ldflags "-X ..." and keep
// their defaults in local builds.
package version
