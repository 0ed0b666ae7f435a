// Package gas contains the core domain types of the gas safety system.
//
// It defines risk classifications, the policy table that maps a classification
// to a desired actuator delta, the device shadow document and its parsing
// helpers, the Gas Event Record persisted as an audit trail, and the result and
// error taxonomy shared by every handler and transport.
package gas
