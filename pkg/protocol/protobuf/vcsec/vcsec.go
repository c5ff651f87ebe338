// Package vcsec mirrors the subset of the vendor's VCSEC schema the core
// needs: enrolling a key, reading the body-controller state, and listing
// already-enrolled keys. All three operate over the unauthenticated path
// VCSEC exposes for informational reads and NFC-card-approved enrollment;
// nothing here carries a cryptographic signature.
package vcsec

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/wireutil"
)

// KeyFormFactor_E classifies the physical medium holding an enrolled key.
type KeyFormFactor_E int32

const (
	KEY_FORM_FACTOR_IOS_DEVICE                  KeyFormFactor_E = 0
	KEY_FORM_FACTOR_ANDROID_DEVICE              KeyFormFactor_E = 1
	KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_NFC_CARD KeyFormFactor_E = 2
	KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_NFC_FOB  KeyFormFactor_E = 3
	KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_KEY_FOB   KeyFormFactor_E = 4
	KEY_FORM_FACTOR_OTHER                         KeyFormFactor_E = 5
)

var keyFormFactorNames = map[KeyFormFactor_E]string{
	KEY_FORM_FACTOR_IOS_DEVICE:                     "KEY_FORM_FACTOR_IOS_DEVICE",
	KEY_FORM_FACTOR_ANDROID_DEVICE:                 "KEY_FORM_FACTOR_ANDROID_DEVICE",
	KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_NFC_CARD:  "KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_NFC_CARD",
	KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_NFC_FOB:   "KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_NFC_FOB",
	KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_KEY_FOB:   "KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_KEY_FOB",
	KEY_FORM_FACTOR_OTHER:                          "KEY_FORM_FACTOR_OTHER",
}

func (f KeyFormFactor_E) String() string {
	if s, ok := keyFormFactorNames[f]; ok {
		return s
	}
	return "KEY_FORM_FACTOR_OTHER"
}

// Role_E is the permission level granted to an enrolled key.
type Role_E int32

const (
	ROLE_DRIVER          Role_E = 0
	ROLE_FLEET_MANAGER   Role_E = 1
	ROLE_OWNER           Role_E = 2
	ROLE_SERVICE         Role_E = 3
	ROLE_VEHICLE_MONITOR Role_E = 4
)

var roleNames = map[Role_E]string{
	ROLE_DRIVER:          "ROLE_DRIVER",
	ROLE_FLEET_MANAGER:   "ROLE_FLEET_MANAGER",
	ROLE_OWNER:           "ROLE_OWNER",
	ROLE_SERVICE:         "ROLE_SERVICE",
	ROLE_VEHICLE_MONITOR: "ROLE_VEHICLE_MONITOR",
}

func (r Role_E) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return "ROLE_UNKNOWN"
}

// InformationRequestType_E selects which read-only VCSEC query to perform.
type InformationRequestType_E int32

const (
	INFORMATION_REQUEST_GET_STATUS             InformationRequestType_E = 0
	INFORMATION_REQUEST_GET_WHITELIST_INFO     InformationRequestType_E = 1
	INFORMATION_REQUEST_GET_WHITELIST_ENTRY_INFO InformationRequestType_E = 2
)

// PublicKey wraps a raw, uncompressed P-256 public key.
type PublicKey struct {
	PublicKeyRaw []byte
}

const fieldPublicKeyRaw protowire.Number = 1

func (p *PublicKey) Marshal() []byte {
	if p == nil {
		return nil
	}
	return wireutil.AppendBytesField(nil, fieldPublicKeyRaw, p.PublicKeyRaw)
}

func unmarshalPublicKey(b []byte) (*PublicKey, error) {
	p := &PublicKey{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if num == fieldPublicKeyRaw && typ == protowire.BytesType {
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			p.PublicKeyRaw = append([]byte(nil), v...)
			continue
		}
		rest, err = wireutil.Skip(num, typ, b)
		if err != nil {
			return nil, err
		}
		b = rest
	}
	return p, nil
}

// KeyMetadata describes how a key was introduced to the vehicle.
type KeyMetadata struct {
	KeyFormFactor KeyFormFactor_E
}

const fieldKeyMetadataFormFactor protowire.Number = 1

func (k *KeyMetadata) Marshal() []byte {
	if k == nil {
		return nil
	}
	return wireutil.AppendVarintField(nil, fieldKeyMetadataFormFactor, uint64(k.KeyFormFactor))
}

func unmarshalKeyMetadata(b []byte) (*KeyMetadata, error) {
	k := &KeyMetadata{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if num == fieldKeyMetadataFormFactor && typ == protowire.VarintType {
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			k.KeyFormFactor = KeyFormFactor_E(v)
			continue
		}
		rest, err = wireutil.Skip(num, typ, b)
		if err != nil {
			return nil, err
		}
		b = rest
	}
	return k, nil
}

// PermissionChange requests that Key be whitelisted with Role and the given
// KeyMetadata. This is the body of an add-key request; it is never signed —
// the vehicle only accepts it while a physical NFC-card tap has put it into
// an enrollment-pending state.
type PermissionChange struct {
	Key      *PublicKey
	Role     Role_E
	Metadata *KeyMetadata
}

const (
	fieldPermissionChangeKey      protowire.Number = 1
	fieldPermissionChangeRole     protowire.Number = 2
	fieldPermissionChangeMetadata protowire.Number = 3
)

func (p *PermissionChange) Marshal() []byte {
	if p == nil {
		return nil
	}
	var b []byte
	b = wireutil.AppendMessageField(b, fieldPermissionChangeKey, p.Key != nil, p.Key.Marshal())
	b = wireutil.AppendVarintField(b, fieldPermissionChangeRole, uint64(p.Role))
	b = wireutil.AppendMessageField(b, fieldPermissionChangeMetadata, p.Metadata != nil, p.Metadata.Marshal())
	return b
}

// WhitelistOperation is the oneof payload of an UnsignedMessage that
// enrolls a key.
type WhitelistOperation struct {
	AddKeyToWhitelistAndAddPermissions *PermissionChange
}

const fieldWhitelistOpAddKey protowire.Number = 1

func (w *WhitelistOperation) Marshal() []byte {
	if w == nil {
		return nil
	}
	return wireutil.AppendMessageField(nil, fieldWhitelistOpAddKey, w.AddKeyToWhitelistAndAddPermissions != nil, w.AddKeyToWhitelistAndAddPermissions.Marshal())
}

// InformationRequest selects one of the read-only VCSEC queries: whole-
// vehicle status, the whitelist slot bitmap, or a single slot's entry.
type InformationRequest struct {
	Type InformationRequestType_E
	Slot *uint32
}

const (
	fieldInfoRequestType protowire.Number = 1
	fieldInfoRequestSlot protowire.Number = 2
)

func (i *InformationRequest) Marshal() []byte {
	if i == nil {
		return nil
	}
	b := wireutil.AppendVarintField(nil, fieldInfoRequestType, uint64(i.Type))
	if i.Slot != nil {
		b = wireutil.AppendVarintFieldAlways(b, fieldInfoRequestSlot, uint64(*i.Slot))
	}
	return b
}

// UnsignedMessage is the payload of a ToVCSECMessage that requires no
// signature: informational reads and the NFC-approved add-key flow.
type UnsignedMessage struct {
	WhitelistOperation  *WhitelistOperation
	InformationRequest *InformationRequest
}

const (
	fieldUnsignedWhitelistOp protowire.Number = 1
	fieldUnsignedInfoRequest protowire.Number = 2
)

func (u *UnsignedMessage) Marshal() []byte {
	if u == nil {
		return nil
	}
	var b []byte
	b = wireutil.AppendMessageField(b, fieldUnsignedWhitelistOp, u.WhitelistOperation != nil, u.WhitelistOperation.Marshal())
	b = wireutil.AppendMessageField(b, fieldUnsignedInfoRequest, u.InformationRequest != nil, u.InformationRequest.Marshal())
	return b
}

// ToVCSECMessage wraps UnsignedMessage as the top-level request envelope;
// this repo never populates the (also valid) SignedMessage variant because
// every operation it issues travels unsigned.
type ToVCSECMessage struct {
	UnsignedMessage *UnsignedMessage
}

const fieldToVCSECUnsigned protowire.Number = 2

func (t *ToVCSECMessage) Marshal() []byte {
	return wireutil.AppendMessageField(nil, fieldToVCSECUnsigned, t.UnsignedMessage != nil, t.UnsignedMessage.Marshal())
}

// WhitelistInfo reports which of the vehicle's key slots are occupied, as a
// bitmask indexed from slot 0.
type WhitelistInfo struct {
	SlotMask uint32
}

const fieldWhitelistInfoSlotMask protowire.Number = 1

func unmarshalWhitelistInfo(b []byte) (*WhitelistInfo, error) {
	w := &WhitelistInfo{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if num == fieldWhitelistInfoSlotMask && typ == protowire.VarintType {
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			w.SlotMask = uint32(v)
			continue
		}
		rest, err = wireutil.Skip(num, typ, b)
		if err != nil {
			return nil, err
		}
		b = rest
	}
	return w, nil
}

// WhitelistEntryInfo describes a single occupied key slot.
type WhitelistEntryInfo struct {
	PublicKey       *PublicKey
	MetadataForKey *KeyMetadata
	KeyRole        Role_E
}

const (
	fieldEntryPublicKey protowire.Number = 1
	fieldEntryMetadata  protowire.Number = 2
	fieldEntryKeyRole   protowire.Number = 3
)

func (w *WhitelistEntryInfo) GetPublicKey() *PublicKey        { return w.PublicKey }
func (w *WhitelistEntryInfo) GetMetadataForKey() *KeyMetadata { return w.MetadataForKey }
func (w *WhitelistEntryInfo) GetKeyRole() Role_E              { return w.KeyRole }

func (p *PublicKey) GetPublicKeyRaw() []byte {
	if p == nil {
		return nil
	}
	return p.PublicKeyRaw
}

func (k *KeyMetadata) GetKeyFormFactor() KeyFormFactor_E {
	if k == nil {
		return KEY_FORM_FACTOR_OTHER
	}
	return k.KeyFormFactor
}

func unmarshalWhitelistEntryInfo(b []byte) (*WhitelistEntryInfo, error) {
	w := &WhitelistEntryInfo{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldEntryPublicKey && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			w.PublicKey, err = unmarshalPublicKey(v)
			if err != nil {
				return nil, err
			}
		case num == fieldEntryMetadata && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			w.MetadataForKey, err = unmarshalKeyMetadata(v)
			if err != nil {
				return nil, err
			}
		case num == fieldEntryKeyRole && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			w.KeyRole = Role_E(v)
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return w, nil
}

// VehicleStatus is a minimal decode of the body-controller-state response:
// enough to show the command round-trips without modeling the vehicle's
// entire body-controller schema (out of scope for this core).
type VehicleStatus struct {
	VehicleLockState   uint32
	VehicleSleepStatus uint32
}

const (
	fieldStatusLockState   protowire.Number = 1
	fieldStatusSleepStatus protowire.Number = 2
)

func unmarshalVehicleStatus(b []byte) (*VehicleStatus, error) {
	s := &VehicleStatus{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldStatusLockState && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.VehicleLockState = uint32(v)
		case num == fieldStatusSleepStatus && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.VehicleSleepStatus = uint32(v)
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return s, nil
}

// FromVCSECMessage is the response envelope: exactly one of VehicleStatus,
// WhitelistInfo, or WhitelistEntryInfo is populated depending on what was
// requested.
type FromVCSECMessage struct {
	VehicleStatus      *VehicleStatus
	WhitelistInfo      *WhitelistInfo
	WhitelistEntryInfo *WhitelistEntryInfo
}

func (f *FromVCSECMessage) GetSlotMask() uint32 {
	if f.WhitelistInfo == nil {
		return 0
	}
	return f.WhitelistInfo.SlotMask
}

const (
	fieldFromVehicleStatus      protowire.Number = 1
	fieldFromWhitelistInfo      protowire.Number = 2
	fieldFromWhitelistEntryInfo protowire.Number = 3
)

// Unmarshal decodes a FromVCSECMessage from the bytes carried as
// RoutableMessage.ProtobufMessageAsBytes on an unauthenticated VCSEC
// response.
func Unmarshal(b []byte) (*FromVCSECMessage, error) {
	f := &FromVCSECMessage{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldFromVehicleStatus && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			f.VehicleStatus, err = unmarshalVehicleStatus(v)
			if err != nil {
				return nil, err
			}
		case num == fieldFromWhitelistInfo && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			f.WhitelistInfo, err = unmarshalWhitelistInfo(v)
			if err != nil {
				return nil, err
			}
		case num == fieldFromWhitelistEntryInfo && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			f.WhitelistEntryInfo, err = unmarshalWhitelistEntryInfo(v)
			if err != nil {
				return nil, err
			}
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return f, nil
}
