// Package bootstrap builds the configured stores and the services on top of them.
package bootstrap
