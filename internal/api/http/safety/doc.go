// Package safety exposes the gas safety services as a JSON HTTP API built on gin.
package safety
