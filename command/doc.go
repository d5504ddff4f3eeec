// Package command turns control intents into outbound frames.
//
// A Gateway sends only while the connection reports Open. Every frame is the
// caller's payload plus an envelope naming the command kind and the sender:
//
//	{"deviceId":"pump-1","action":"on","type":"device_control",
//	 "userId":"u-1","tenantId":"tenant-a","timestamp":"2026-03-01T12:00:00.000Z"}
//
// Delivery is fire and forget. Confirmation, if any, arrives later as an
// ordinary inbound event. A refused send is logged at warn level and returned
// as an error wrapping errors.ErrNotConnected; it never panics.
package command
