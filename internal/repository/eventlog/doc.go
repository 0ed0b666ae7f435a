// Package eventlog implements the append-only store of gas event records.
//
// Every backend overwrites by the (device id, timestamp) key, so recording the
// same observation twice leaves exactly one record.
package eventlog
