// Package control implements manual actuator requests and device status queries.
package control
