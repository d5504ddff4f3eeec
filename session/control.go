package session

import (
	"fmt"
	"strings"

	"github.com/c360/devicelink/errors"
)

// KindDeviceControl is the command kind for power intents
const KindDeviceControl = "device_control"

// Action is a power intent
type Action string

// Supported actions
const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
)

// Valid reports whether the action is supported
func (a Action) Valid() bool {
	return a == ActionOn || a == ActionOff
}

// Command returns the device command string, e.g. ON_DEVICE
func (a Action) Command() string {
	return strings.ToUpper(string(a)) + "_DEVICE"
}

// Roles allowed to control devices
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// CanControl reports whether role may issue control intents
func CanControl(role string) bool {
	return role == RoleAdmin || role == RoleOperator
}

// ControlDevice sends a power intent for deviceID. The device record only
// changes once the service reports back through telemetry or a status event.
func (s *Session) ControlDevice(deviceID string, action Action) error {
	if !action.Valid() {
		return errors.WrapInvalid(fmt.Errorf("%w: action %q", errors.ErrInvalidData, action),
			"Session", "ControlDevice", "check action")
	}

	id, ok := s.creds.Identity()
	if !ok {
		return errors.WrapInvalid(errors.ErrNoIdentity, "Session", "ControlDevice", "resolve role")
	}
	if !CanControl(id.Role) {
		s.logger.Warn("Control refused for role", "role", id.Role, "device_id", deviceID)
		return errors.WrapInvalid(fmt.Errorf("%w: role %q", errors.ErrNotPermitted, id.Role),
			"Session", "ControlDevice", "check role")
	}

	device, ok := s.store.Device(deviceID)
	if !ok {
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrUnknownDevice, deviceID),
			"Session", "ControlDevice", "look up device")
	}
	if !device.CanControl {
		return errors.WrapInvalid(fmt.Errorf("%w: device %s is not controllable", errors.ErrNotPermitted, deviceID),
			"Session", "ControlDevice", "check device")
	}

	return s.gateway.Send(KindDeviceControl, map[string]any{
		"deviceId": deviceID,
		"action":   string(action),
		"command":  action.Command(),
	})
}
