// Package config loads the devicelink configuration.
//
// A Loader starts from defaults, merges each file layer on top (only the keys a
// layer sets are overridden), applies DEVICELINK_* environment overrides and
// optionally validates the result. The file format follows the extension:
//
//	.json          plain JSON
//	.jsonc         JSON with // and /* */ comments and trailing commas
//	.yaml, .yml    YAML
//
// Durations are written as strings ("10s", "2m", "1d"). Example:
//
//	stream:
//	  endpoint: wss://stream.example.com/ws
//	  connect_timeout: 10s
//	  reconnect:
//	    initial_delay: 5s
//	    max_delay: 5s
//	    multiplier: 1
//	credentials:
//	  file: /var/lib/devicelink/session.json
//	devices:
//	  - id: pump-1
//	    name: Water Pump Station
//	    type: pump
//	    can_control: true
//	nats:
//	  enabled: true
//	  urls: [nats://localhost:4222]
//	  subject_prefix: devicelink
//
// A device inventory can also live in its own YAML file (inventory), read with
// LoadInventory.
package config
