// Package devicelink is a real-time telemetry client for a fleet of field
// devices (pumps, sensors, valves).
//
// A Session holds one authenticated WebSocket stream open, classifies every
// inbound frame, reconciles telemetry and status events into an in-memory
// device inventory and writes control intents back onto the same stream.
//
// # Layout
//
//   - credential: session identity and token validation
//   - connection: stream lifecycle (Disconnected, Connecting, Open, Closing)
//   - classifier: frame classification into typed events
//   - devicestate: the device inventory and per-type reading schemas
//   - command: outbound command envelopes
//   - session: composes the above and fans notifications out to observers
//   - output/natsbridge: optional republishing of notifications to NATS
//   - config, metric, health, errors: ambient infrastructure
//
// The devicelink command in cmd/devicelink wires everything together.
package devicelink
