package ble

import (
	"github.com/rigado/ble"
	"github.com/rigado/ble/linux"
	"github.com/rigado/ble/linux/hci/cmd"
)

// scanParams requests active scanning (so advertisements carry the scan
// response with the local name) at a 10ms interval/window, unfiltered at
// the controller level — Scan applies the VIN-prefix filter itself, in
// software, once local names start arriving.
var scanParams = cmd.LESetScanParameters{
	LEScanType:           1,
	LEScanInterval:       0x10,
	LEScanWindow:         0x10,
	OwnAddressType:       0,
	ScanningFilterPolicy: 0,
}

func newDevice() (ble.Device, error) {
	return linux.NewDevice(
		ble.OptListenerTimeout(defaultScanTTL),
		ble.OptDialerTimeout(defaultScanTTL),
		ble.OptTransportHCISocket(0),
		ble.OptScanParams(scanParams),
	)
}
