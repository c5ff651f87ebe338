package ble

import (
	"github.com/rigado/ble"
	"github.com/rigado/ble/darwin"
)

func newDevice() (ble.Device, error) {
	return darwin.NewDevice()
}
