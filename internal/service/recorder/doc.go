// Package recorder snapshots the reported state of a device shadow into the event log.
//
// A record is appended only after the shadow was read and its gas level state
// extracted, so failed invocations never leave partial records behind.
package recorder
