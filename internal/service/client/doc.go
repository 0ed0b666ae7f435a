// Package client implements the gasctl commands: it connects to gasguard-server,
// performs one SafetyService call and prints the response.
package client
