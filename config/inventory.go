package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/c360/devicelink/devicestate"
	"github.com/c360/devicelink/errors"
)

// inventoryFile is the top level of a YAML device inventory
type inventoryFile struct {
	Devices []devicestate.Device `yaml:"devices"`
}

// LoadInventory reads a YAML device inventory:
//
//	devices:
//	  - id: pump-1
//	    name: Water Pump Station
//	    type: pump
//	    can_control: true
//	    readings: {pressure: 110, flow: 30}
func LoadInventory(path string) ([]devicestate.Device, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "LoadInventory", "read inventory")
	}

	var inv inventoryFile
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, path, err),
			"config", "LoadInventory", "decode inventory")
	}

	for i, d := range inv.Devices {
		if err := d.Validate(); err != nil {
			return nil, errors.WrapFatal(fmt.Errorf("%w: %s devices[%d]: %v", errors.ErrInvalidConfig, path, i, err),
				"config", "LoadInventory", "validate inventory")
		}
	}
	return inv.Devices, nil
}
