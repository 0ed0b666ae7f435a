// Package shadow implements clients of the Device Shadow Store.
//
// Store is the interface the services depend on. IoTDataStore talks to the
// AWS IoT Device Shadow service over HTTPS, MQTTStore uses the shadow MQTT
// topics with clientToken correlation, and MemoryStore keeps documents in
// process for local runs and tests. Every backend merges desired updates at
// the field level, leaving attributes absent from the delta untouched.
package shadow
