// Package actuation maps a gas risk classification to actuator commands and
// writes them into the desired section of the device shadow.
package actuation
