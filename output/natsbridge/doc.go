// Package natsbridge republishes session notifications onto NATS.
//
// A Bridge is registered as a session.Observer. Device updates, alerts and
// connection state changes are encoded as JSON and published fire-and-forget:
//
//	<prefix>.devices.<deviceId>
//	<prefix>.alerts.<severity>
//	<prefix>.connection
//
// Every message carries the session id so several clients can share a
// subject space. Publish failures are counted and logged, never returned to
// the session.
package natsbridge
