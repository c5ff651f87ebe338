// Package ble implements the BLE transport: scanning for a vehicle's
// advertisement, connecting to its fixed GATT service, negotiating an MTU,
// framing outbound messages with a 2-byte length prefix chunked to the
// negotiated block size, and reassembling inbound notifications back into
// whole messages. It is built on github.com/rigado/ble, with
// device_darwin.go/device_linux.go supplying the platform-specific device
// constructor under build tags.
package ble

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // VIN-prefix derivation, not a security property.
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rigado/ble"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/log"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol"
)

// Fixed Tesla BLE identifiers.
const (
	ServiceUUID        = "00000211-b2d1-43f0-9b88-960cebf8b91e"
	TXCharacteristicUUID = "00000212-b2d1-43f0-9b88-960cebf8b91e"
	RXCharacteristicUUID = "00000213-b2d1-43f0-9b88-960cebf8b91e"

	preferredMTU     = 247
	defaultBlockSize = 185
	minBlockSize     = 20
	maxMessageSize   = 1024
	reassemblyGap    = 1000 * time.Millisecond
	defaultScanTTL   = 20 * time.Second
)

// DiscoveryMode controls how Connect picks a device when none is supplied
// directly.
type DiscoveryMode int

const (
	// Unfiltered accepts the first advertisement seen, regardless of name.
	Unfiltered DiscoveryMode = iota
	// VinPrefixValidation accepts only advertisements whose local name
	// begins with the VIN-derived prefix.
	VinPrefixValidation
	// VinPrefixPromptFilter behaves like VinPrefixValidation once a device
	// has been chosen; an outer UI layer is expected to have already
	// narrowed the candidate list and supplied a device directly, so this
	// core treats the two modes identically (see DESIGN.md).
	VinPrefixPromptFilter
)

// VINAdvertisementPrefix computes the 18-character local-name prefix a
// vehicle advertises: "S" || lowercase_hex(SHA1(vin))[0:16] || "C", the
// first 8 bytes of the VIN's SHA1 checksum.
func VINAdvertisementPrefix(vin string) string {
	sum := sha1.Sum([]byte(vin)) //nolint:gosec
	return "S" + hex.EncodeToString(sum[:])[:16] + "C"
}

// Advertisement is the subset of a BLE scan result callers need to choose a
// device to connect to.
type Advertisement struct {
	LocalName string
	RSSI      int
	Addr      ble.Addr
}

// Connector owns one BLE device connection: its GATT characteristics, write
// serialization, and notification reassembly. It emits decoded messages and
// a disconnect signal to whatever callbacks the owning façade registers.
type Connector struct {
	device ble.Device

	mu          sync.Mutex
	client      ble.Client
	txChar      *ble.Characteristic
	rxChar      *ble.Characteristic
	blockLength int
	writeNoResp bool
	failures    int

	sendMu sync.Mutex // serializes Send calls into a FIFO

	reassembly    bytes.Buffer
	lastChunkTime time.Time

	onMessage    func([]byte)
	onDisconnect func()
}

// NewConnector constructs a Connector bound to the platform's BLE device
// (device_darwin.go / device_linux.go supply newDevice per build tag).
func NewConnector() (*Connector, error) {
	device, err := newDevice()
	if err != nil {
		return nil, &protocol.TransportError{Msg: "failed to open local BLE device", Err: err}
	}
	return &Connector{device: device, blockLength: defaultBlockSize}, nil
}

// OnMessage registers the callback invoked with each fully reassembled
// inbound message.
func (c *Connector) OnMessage(h func([]byte)) { c.onMessage = h }

// OnDisconnect registers the callback invoked once, when the connection is
// lost.
func (c *Connector) OnDisconnect(h func()) { c.onDisconnect = h }

// Scan listens for Tesla advertisements until ctx is cancelled or timeout
// elapses, filtering by the VIN-derived prefix when mode requests it.
func (c *Connector) Scan(ctx context.Context, mode DiscoveryMode, vin string, timeout time.Duration) ([]Advertisement, error) {
	if timeout <= 0 {
		timeout = defaultScanTTL
	}
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var prefix string
	if mode != Unfiltered {
		prefix = VINAdvertisementPrefix(vin)
	}

	var found []Advertisement
	var mu sync.Mutex
	handler := func(a ble.Advertisement) {
		name := a.LocalName()
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			return
		}
		mu.Lock()
		found = append(found, Advertisement{LocalName: name, RSSI: a.RSSI(), Addr: a.Addr()})
		mu.Unlock()
	}

	err := c.device.Scan(scanCtx, true, handler)
	if err != nil && scanCtx.Err() == nil {
		return found, &protocol.TransportError{Msg: "scan failed", Err: err}
	}
	return found, nil
}

// Connect dials addr (or, if addr is nil, the first scan match for mode),
// discovers the fixed Tesla service, and negotiates an MTU-derived block
// size. It does not perform the cryptographic handshake; that is the
// façade's job.
func (c *Connector) Connect(ctx context.Context, mode DiscoveryMode, vin string, addr ble.Addr) error {
	if addr == nil {
		ads, err := c.Scan(ctx, mode, vin, defaultScanTTL)
		if err != nil {
			return err
		}
		if len(ads) == 0 {
			return &protocol.TransportError{Msg: "no matching vehicle found within scan timeout"}
		}
		addr = ads[0].Addr
	}

	client, err := c.device.Dial(ctx, addr)
	if err != nil {
		return &protocol.TransportError{Msg: "gatt dial failed", Err: err}
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return &protocol.TransportError{Msg: "service discovery failed", Err: err}
	}

	var txChar, rxChar *ble.Characteristic
	for _, s := range profile.Services {
		if !strings.EqualFold(s.UUID.String(), normalizeUUID(ServiceUUID)) {
			continue
		}
		for _, ch := range s.Characteristics {
			switch {
			case strings.EqualFold(ch.UUID.String(), normalizeUUID(TXCharacteristicUUID)):
				txChar = ch
			case strings.EqualFold(ch.UUID.String(), normalizeUUID(RXCharacteristicUUID)):
				rxChar = ch
			}
		}
	}
	if txChar == nil || rxChar == nil {
		client.CancelConnection()
		return &protocol.TransportError{Msg: "vehicle service missing expected characteristics"}
	}

	if err := client.Subscribe(rxChar, false, func(_ uint, bb []byte) { c.handleNotification(bb) }); err != nil {
		client.CancelConnection()
		return &protocol.TransportError{Msg: "failed to subscribe to notifications", Err: err}
	}

	c.mu.Lock()
	c.client = client
	c.txChar = txChar
	c.rxChar = rxChar
	c.blockLength = negotiateBlockLength(client)
	c.writeNoResp = txChar.Property&ble.CharWrite == 0 && txChar.Property&ble.CharWriteNR != 0
	c.failures = 0
	c.mu.Unlock()

	go func() {
		<-client.Disconnected()
		c.handleDisconnect()
	}()

	return nil
}

func negotiateBlockLength(client ble.Client) int {
	mtu, err := client.ExchangeMTU(preferredMTU)
	if err != nil || mtu <= 0 {
		return defaultBlockSize
	}
	block := mtu - 3
	if block < minBlockSize {
		block = minBlockSize
	}
	if block > preferredMTU-3 {
		block = preferredMTU - 3
	}
	return block
}

func normalizeUUID(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

// Send frames payload with a 2-byte big-endian length prefix and writes it
// in block-length chunks, one send at a time (a FIFO: the next Send blocks
// until this one's last chunk is written).
func (c *Connector) Send(ctx context.Context, payload []byte) error {
	if len(payload) > maxMessageSize {
		return &protocol.ProtocolError{Msg: fmt.Sprintf("message of %d bytes exceeds %d-byte limit", len(payload), maxMessageSize)}
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	client, txChar, blockLength := c.client, c.txChar, c.blockLength
	c.mu.Unlock()
	if client == nil || txChar == nil {
		return &protocol.TransportError{Msg: "send attempted before connect"}
	}

	var framed bytes.Buffer
	var lengthPrefix [2]byte
	binary.BigEndian.PutUint16(lengthPrefix[:], uint16(len(payload)))
	framed.Write(lengthPrefix[:])
	framed.Write(payload)

	buf := framed.Bytes()
	for len(buf) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := blockLength
		if n > len(buf) {
			n = len(buf)
		}
		if err := c.writeChunk(client, txChar, buf[:n]); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// writeChunk writes one chunk, falling back between write-with-response and
// write-without-response on failure, and halving the block length (down to
// a floor of minBlockSize) after repeated failures.
func (c *Connector) writeChunk(client ble.Client, txChar *ble.Characteristic, chunk []byte) error {
	c.mu.Lock()
	noResp := c.writeNoResp
	c.mu.Unlock()

	err := client.WriteCharacteristic(txChar, chunk, noResp)
	if err == nil {
		c.mu.Lock()
		c.failures = 0
		c.mu.Unlock()
		return nil
	}

	// Try the other write mode once before giving up on this chunk.
	altErr := client.WriteCharacteristic(txChar, chunk, !noResp)
	if altErr == nil {
		c.mu.Lock()
		c.writeNoResp = !noResp
		c.failures = 0
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.failures++
	if c.failures >= 2 && c.blockLength > minBlockSize {
		c.blockLength = c.blockLength / 2
		if c.blockLength < minBlockSize {
			c.blockLength = minBlockSize
		}
		c.failures = 0
		log.Warning("ble: repeated write failures, halving block length to %d", c.blockLength)
	}
	c.mu.Unlock()

	return &protocol.TransportError{Msg: "characteristic write failed", Err: err}
}

// handleNotification implements the reassembly state machine: stale-gap
// reset, length-prefixed framing, and an oversize guard.
func (c *Connector) handleNotification(data []byte) {
	now := time.Now()

	c.mu.Lock()
	if !c.lastChunkTime.IsZero() && now.Sub(c.lastChunkTime) > reassemblyGap {
		c.reassembly.Reset()
	}
	c.lastChunkTime = now
	c.reassembly.Write(data)

	for c.reassembly.Len() >= 2 {
		header := c.reassembly.Bytes()[:2]
		length := int(binary.BigEndian.Uint16(header))
		if length > maxMessageSize {
			log.Warning("ble: oversized frame length %d, resetting reassembly buffer", length)
			c.reassembly.Reset()
			break
		}
		if c.reassembly.Len() < 2+length {
			break
		}
		full := c.reassembly.Bytes()
		msg := append([]byte(nil), full[2:2+length]...)
		remaining := append([]byte(nil), full[2+length:]...)
		c.reassembly.Reset()
		c.reassembly.Write(remaining)

		handler := c.onMessage
		c.mu.Unlock()
		if handler != nil {
			handler(msg)
		}
		c.mu.Lock()
	}
	c.mu.Unlock()
}

func (c *Connector) handleDisconnect() {
	c.mu.Lock()
	c.client = nil
	c.txChar = nil
	c.rxChar = nil
	c.reassembly.Reset()
	handler := c.onDisconnect
	c.mu.Unlock()
	if handler != nil {
		handler()
	}
}

// RSSI reports the most recent signal strength reading for the active
// connection, or 0 if not connected.
func (c *Connector) RSSI() int {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return 0
	}
	rssi, err := client.ReadRSSI()
	if err != nil {
		return 0
	}
	return int(rssi)
}

// Disconnect cancels the subscription, closes the BLE connection, and
// clears the reassembly buffer. It is idempotent.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	client, rxChar := c.client, c.rxChar
	c.client = nil
	c.txChar = nil
	c.rxChar = nil
	c.reassembly.Reset()
	c.mu.Unlock()

	if client == nil {
		return
	}
	if rxChar != nil {
		_ = client.Unsubscribe(rxChar, false)
	}
	_ = client.CancelConnection()
}
