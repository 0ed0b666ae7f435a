// Package function runs the gas-guard AWS Lambda entry points.
//
// The process reads its configuration from the environment, builds the
// configured stores once and serves either the actuation or the record
// handler for the lifetime of the execution environment.
package function
