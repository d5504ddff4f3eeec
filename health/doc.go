// Package health reports whether the telemetry client is doing its job.
//
// A Status is healthy, degraded or unhealthy. FromConnection maps the
// connection manager's state onto that scale:
//
//	Open                      healthy
//	Connecting, Closing       degraded
//	Disconnected              unhealthy
//
// A Monitor holds the latest Status per named component and aggregates them;
// Handler serves an aggregate as JSON for the /health endpoint of the metrics
// server, answering 503 while unhealthy.
package health
