// Package safety adapts the gas safety services to AWS Lambda events.
package safety
