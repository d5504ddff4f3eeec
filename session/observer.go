package session

import (
	"github.com/c360/devicelink/classifier"
	"github.com/c360/devicelink/connection"
	"github.com/c360/devicelink/devicestate"
)

// Observer receives session notifications. Calls are made on the goroutine
// that produced the change, in order, and must not block for long.
type Observer interface {
	ConnectionStateChanged(state connection.State)
	DeviceUpdated(device devicestate.Device)
	AlertReceived(alert classifier.Alert)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState  func(connection.State)
	OnDevice func(devicestate.Device)
	OnAlert  func(classifier.Alert)
}

// ConnectionStateChanged implements Observer
func (f ObserverFuncs) ConnectionStateChanged(state connection.State) {
	if f.OnState != nil {
		f.OnState(state)
	}
}

// DeviceUpdated implements Observer
func (f ObserverFuncs) DeviceUpdated(device devicestate.Device) {
	if f.OnDevice != nil {
		f.OnDevice(device)
	}
}

// AlertReceived implements Observer
func (f ObserverFuncs) AlertReceived(alert classifier.Alert) {
	if f.OnAlert != nil {
		f.OnAlert(alert)
	}
}
