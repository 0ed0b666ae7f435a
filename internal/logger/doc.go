// Package logger wraps zap for the gas-guard binaries. It offers:
//   - a global sugared logger with a console encoder for servers and CLIs
//     and a JSON encoder for Lambda functions,
//   - context helpers (ToContext/FromContext/WithName/WithKV) so request
//     scoped fields such as device_id travel with the context,
//   - level parsing and leveled convenience functions (InfoKV, ErrorKV, ...).
package logger
