// Package common holds helpers shared by several services.
//
// It provides a lightweight SafetyService client wrapper with timeouts and
// detects the current system actor (user@host) for the server audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
