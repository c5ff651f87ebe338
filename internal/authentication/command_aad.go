package authentication

import (
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/signatures"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/universalmessage"
)

// CommandAAD builds the associated-data hash for an outbound encrypted
// command: metadata items in ascending tag order
// (SIGNATURE_TYPE, DOMAIN, PERSONALIZATION, EPOCH, EXPIRES_AT, COUNTER,
// [FLAGS if non-zero]), hashed with SHA-256. FLAGS is omitted entirely when
// zero, matching the wire format's "absent field" convention for requests.
func CommandAAD(domain universalmessage.Domain_E, vin, epoch []byte, expiresAt, counter, flags uint32) ([]byte, error) {
	m := newMetadata()
	if err := m.Add(signatures.TAG_SIGNATURE_TYPE, []byte{byte(signatures.SIGNATURE_TYPE_AES_GCM_PERSONALIZED)}); err != nil {
		return nil, err
	}
	if err := m.AddUint32(signatures.TAG_DOMAIN, uint32(domain)); err != nil {
		return nil, err
	}
	if err := m.Add(signatures.TAG_PERSONALIZATION, vin); err != nil {
		return nil, err
	}
	if err := m.Add(signatures.TAG_EPOCH, epoch); err != nil {
		return nil, err
	}
	if err := m.AddUint32(signatures.TAG_EXPIRES_AT, expiresAt); err != nil {
		return nil, err
	}
	if err := m.AddUint32(signatures.TAG_COUNTER, counter); err != nil {
		return nil, err
	}
	if flags != 0 {
		if err := m.AddUint32(signatures.TAG_FLAGS, flags); err != nil {
			return nil, err
		}
	}
	return m.Checksum(nil), nil
}

// ResponseAAD builds the associated-data hash for an inbound encrypted
// response: SIGNATURE_TYPE=AES_GCM_RESPONSE, DOMAIN, PERSONALIZATION, COUNTER,
// FLAGS (included unconditionally, even when zero — this diverges from the
// request side's "omit if zero" rule, and that asymmetry is preserved
// exactly as the vehicle firmware expects it, not "fixed"), REQUEST_HASH
// (0x05 prepended to the originating request's AES-GCM tag), FAULT.
func ResponseAAD(domain universalmessage.Domain_E, vin []byte, counter, flags uint32, requestTag []byte, fault uint32) ([]byte, error) {
	m := newMetadata()
	if err := m.Add(signatures.TAG_SIGNATURE_TYPE, []byte{byte(signatures.SIGNATURE_TYPE_AES_GCM_RESPONSE)}); err != nil {
		return nil, err
	}
	if err := m.AddUint32(signatures.TAG_DOMAIN, uint32(domain)); err != nil {
		return nil, err
	}
	if err := m.Add(signatures.TAG_PERSONALIZATION, vin); err != nil {
		return nil, err
	}
	if err := m.AddUint32(signatures.TAG_COUNTER, counter); err != nil {
		return nil, err
	}
	if err := m.AddUint32(signatures.TAG_FLAGS, flags); err != nil {
		return nil, err
	}
	requestHash := append([]byte{byte(signatures.SIGNATURE_TYPE_AES_GCM_PERSONALIZED)}, requestTag...)
	if err := m.Add(signatures.TAG_REQUEST_HASH, requestHash); err != nil {
		return nil, err
	}
	if err := m.AddUint32(signatures.TAG_FAULT, fault); err != nil {
		return nil, err
	}
	return m.Checksum(nil), nil
}
