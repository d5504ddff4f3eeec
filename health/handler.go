package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the Status returned by source as JSON. Unhealthy answers 503,
// healthy and degraded answer 200.
func Handler(source func() Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := source()

		code := http.StatusOK
		if status.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
