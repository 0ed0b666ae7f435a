// Package watcher polls device shadows through gasguard-server and plays the
// role of the cloud rules where none exist: whenever a device reports a new gas
// level classification it asks the server to reconcile the actuators and to
// record an event.
package watcher
