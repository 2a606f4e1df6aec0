//go:build occa

package runner

import (
	"fmt"

	"github.com/notargets/gocca"
)

// deviceModes are tried in order; Serial is the last resort.
var deviceModes = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// NewDevice creates the first OCCA device that initializes.
func NewDevice() (*gocca.OCCADevice, error) {
	var errs []error
	for _, props := range deviceModes {
		device, err := gocca.NewDevice(props)
		if err == nil {
			return device, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: no OCCA device initialized: %v", ErrUnavailable, errs)
}

// Probe creates and releases a device, reporting its mode.
func Probe() (string, error) {
	device, err := NewDevice()
	if err != nil {
		return "", err
	}
	defer device.Free()
	return device.Mode(), nil
}
