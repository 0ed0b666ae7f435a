// Package config defines the settings shared by the gas-guard binaries and
// provides helpers to load, validate and save them.
//
// Settings come from a YAML file and are then overridden by GASGUARD_*
// environment variables (an optional .env file is loaded first), so the same
// Config drives the long-running server, the CLI client and Lambda functions
// that have no file system configuration at all.
package config
