// Package cli assembles the minimum configuration the bundled
// cmd/tesla-ble-scan tool needs to run: a VIN, an optional private key, and
// scan/connect timeouts. Fleet-API/keyring-backed account management is out
// of scope, so this Config only ever talks to the BLE transport directly.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rigado/ble"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/authentication"
	bleconnector "github.com/leonzdev/tsla-ble-dash-expo/pkg/connector/ble"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/vehicle"
)

const (
	defaultScanTimeout = 20 * time.Second
	defaultConnTimeout = 20 * time.Second
)

// Config holds the flags/environment-derived settings needed to scan for
// and connect to a vehicle.
type Config struct {
	VIN         string
	KeyFilename string
	ScanTimeout time.Duration
	ConnTimeout time.Duration
}

// NewConfig returns a Config with reasonable default scan/connect timeouts
// and no VIN or key file set.
func NewConfig() *Config {
	return &Config{
		ScanTimeout: defaultScanTimeout,
		ConnTimeout: defaultConnTimeout,
	}
}

// RegisterFlags wires -vin, -key-file, -scan-timeout, and -connect-timeout
// into fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.VIN, "vin", c.VIN, "VIN of the vehicle to control")
	fs.StringVar(&c.KeyFilename, "key-file", c.KeyFilename, "File containing a raw 32-byte private key scalar")
	fs.DurationVar(&c.ScanTimeout, "scan-timeout", c.ScanTimeout, "How long to scan for a vehicle advertisement")
	fs.DurationVar(&c.ConnTimeout, "connect-timeout", c.ConnTimeout, "How long to wait for a BLE connection to complete")
}

// ReadFromEnvironment fills in VIN and KeyFilename from TESLA_VIN and
// TESLA_KEY_FILE when the corresponding flag was left unset.
func (c *Config) ReadFromEnvironment() {
	if c.VIN == "" {
		c.VIN = os.Getenv("TESLA_VIN")
	}
	if c.KeyFilename == "" {
		c.KeyFilename = os.Getenv("TESLA_KEY_FILE")
	}
}

// LoadPrivateKey reads a raw 32-byte ECDH private key scalar from
// KeyFilename. PEM/PKCS8 parsing is out of scope (§1 Non-goals exclude key
// storage formats beyond the raw scalar the core's crypto primitives layer
// already accepts), so the file must contain exactly the 32 scalar bytes.
func (c *Config) LoadPrivateKey() (*authentication.NistP256Key, error) {
	if c.KeyFilename == "" {
		return nil, fmt.Errorf("no private key file configured")
	}
	raw, err := os.ReadFile(c.KeyFilename)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}
	return authentication.UnmarshalECDHPrivateKey(raw)
}

// Scan discovers nearby vehicle advertisements, filtered by VIN prefix when
// a VIN is configured.
func (c *Config) Scan(ctx context.Context) ([]bleconnector.Advertisement, error) {
	transport, err := bleconnector.NewConnector()
	if err != nil {
		return nil, err
	}
	mode := bleconnector.Unfiltered
	if c.VIN != "" {
		mode = bleconnector.VinPrefixValidation
	}
	return transport.Scan(ctx, mode, c.VIN, c.ScanTimeout)
}

// ConnectLocal connects to a specific advertised local name, re-scanning to
// resolve it to a BLE address. Prefer ConnectAddr when the caller already
// has an Advertisement from a prior Scan, since this re-scans for the full
// ScanTimeout on every call.
func (c *Config) ConnectLocal(ctx context.Context, localName string) (*vehicle.Vehicle, error) {
	connCtx, cancel := context.WithTimeout(ctx, c.ConnTimeout)
	defer cancel()

	ads, err := c.Scan(connCtx)
	if err != nil {
		return nil, err
	}
	var addr ble.Addr
	for _, ad := range ads {
		if ad.LocalName == localName {
			addr = ad.Addr
			break
		}
	}
	if addr == nil {
		return nil, fmt.Errorf("no advertisement matching local name %q found", localName)
	}
	return c.ConnectAddr(connCtx, addr)
}

// ConnectAddr connects directly to an already-discovered BLE address,
// returning a ready-to-use Vehicle façade. Use this over ConnectLocal when
// the caller already holds an Advertisement from Scan, to avoid paying for
// a second scan.
func (c *Config) ConnectAddr(ctx context.Context, addr ble.Addr) (*vehicle.Vehicle, error) {
	v, err := vehicle.New(c.VIN)
	if err != nil {
		return nil, err
	}
	if err := v.Connect(ctx, bleconnector.Unfiltered, addr); err != nil {
		return nil, err
	}
	return v, nil
}
