// Package session wires the telemetry client together for one identity.
//
// A Session owns a connection.Manager, a devicestate.Store, a command.Gateway
// and a bounded telemetry history. Inbound frames flow through a single entry
// point on the manager's read goroutine:
//
//	frame -> classifier.Classify -> Store.Apply -> history, LastEvent -> observers
//
// Consumers read copies (State, LastEvent, Devices, Device, History) and
// register an Observer for push notifications. Control intents go out through
// Send and ControlDevice; their effect only shows up in device state once the
// matching telemetry or status event comes back.
//
// Sessions are explicitly owned values. Construct one when an identity is
// available, call IdentityChanged whenever the credential store changes, and
// Close it on shutdown.
package session
