package vcsec

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/wireutil"
)

func TestToVCSECMessageAddKeyRequestMarshal(t *testing.T) {
	msg := &ToVCSECMessage{
		UnsignedMessage: &UnsignedMessage{
			WhitelistOperation: &WhitelistOperation{
				AddKeyToWhitelistAndAddPermissions: &PermissionChange{
					Key:      &PublicKey{PublicKeyRaw: bytes.Repeat([]byte{0x04}, 65)},
					Role:     ROLE_OWNER,
					Metadata: &KeyMetadata{KeyFormFactor: KEY_FORM_FACTOR_ANDROID_DEVICE},
				},
			},
		},
	}
	raw := msg.Marshal()
	if len(raw) == 0 {
		t.Fatal("Marshal produced no bytes")
	}

	// Walk the wire form back out by hand since ToVCSECMessage has no
	// top-level Unmarshal (this repo never receives one back).
	num, typ, rest, err := wireutil.Tag(raw)
	if err != nil || num != fieldToVCSECUnsigned || typ != protowire.BytesType {
		t.Fatalf("expected UnsignedMessage field, got num=%d typ=%v err=%v", num, typ, err)
	}
	unsignedBytes, rest, err := wireutil.Bytes(rest)
	if err != nil || len(rest) != 0 {
		t.Fatalf("unexpected trailing bytes after UnsignedMessage: %v", err)
	}

	num, typ, rest, err = wireutil.Tag(unsignedBytes)
	if err != nil || num != fieldUnsignedWhitelistOp || typ != protowire.BytesType {
		t.Fatalf("expected WhitelistOperation field, got num=%d typ=%v", num, typ)
	}
	opBytes, _, err := wireutil.Bytes(rest)
	if err != nil {
		t.Fatalf("decoding WhitelistOperation bytes: %v", err)
	}

	num, typ, rest, err = wireutil.Tag(opBytes)
	if err != nil || num != fieldWhitelistOpAddKey || typ != protowire.BytesType {
		t.Fatalf("expected AddKeyToWhitelistAndAddPermissions field, got num=%d typ=%v", num, typ)
	}
	pcBytes, _, err := wireutil.Bytes(rest)
	if err != nil {
		t.Fatalf("decoding PermissionChange bytes: %v", err)
	}

	foundRole := false
	for len(pcBytes) > 0 {
		n, ty, r, err := wireutil.Tag(pcBytes)
		if err != nil {
			t.Fatalf("Tag: %v", err)
		}
		pcBytes = r
		if n == fieldPermissionChangeRole && ty == protowire.VarintType {
			v, r, err := wireutil.Varint(pcBytes)
			if err != nil {
				t.Fatalf("Varint: %v", err)
			}
			pcBytes = r
			if Role_E(v) != ROLE_OWNER {
				t.Fatalf("got role %v, want ROLE_OWNER", Role_E(v))
			}
			foundRole = true
			continue
		}
		r, err = wireutil.Skip(n, ty, pcBytes)
		if err != nil {
			t.Fatalf("Skip: %v", err)
		}
		pcBytes = r
	}
	if !foundRole {
		t.Fatal("role field not found in marshaled PermissionChange")
	}
}

func TestFromVCSECMessageVehicleStatusRoundTrip(t *testing.T) {
	status := wireutil.AppendVarintField(nil, fieldStatusLockState, 1)
	status = wireutil.AppendVarintField(status, fieldStatusSleepStatus, 2)
	raw := wireutil.AppendBytesField(nil, fieldFromVehicleStatus, status)

	decoded, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.VehicleStatus == nil {
		t.Fatal("VehicleStatus missing")
	}
	if decoded.VehicleStatus.VehicleLockState != 1 || decoded.VehicleStatus.VehicleSleepStatus != 2 {
		t.Fatalf("got %+v", decoded.VehicleStatus)
	}
	if decoded.WhitelistInfo != nil || decoded.WhitelistEntryInfo != nil {
		t.Fatal("unset oneof members must decode as nil")
	}
}

func TestFromVCSECMessageWhitelistInfoRoundTrip(t *testing.T) {
	info := wireutil.AppendVarintField(nil, fieldWhitelistInfoSlotMask, 0b1011)
	raw := wireutil.AppendBytesField(nil, fieldFromWhitelistInfo, info)

	decoded, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.WhitelistInfo == nil {
		t.Fatal("WhitelistInfo missing")
	}
	if decoded.GetSlotMask() != 0b1011 {
		t.Fatalf("got slot mask %b, want %b", decoded.GetSlotMask(), 0b1011)
	}
}

func TestFromVCSECMessageWhitelistEntryInfoRoundTrip(t *testing.T) {
	pubKey := (&PublicKey{PublicKeyRaw: bytes.Repeat([]byte{0x04}, 65)}).Marshal()
	meta := (&KeyMetadata{KeyFormFactor: KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_NFC_CARD}).Marshal()

	var entry []byte
	entry = wireutil.AppendBytesField(entry, fieldEntryPublicKey, pubKey)
	entry = wireutil.AppendBytesField(entry, fieldEntryMetadata, meta)
	entry = wireutil.AppendVarintField(entry, fieldEntryKeyRole, uint64(ROLE_SERVICE))

	raw := wireutil.AppendBytesField(nil, fieldFromWhitelistEntryInfo, entry)

	decoded, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.WhitelistEntryInfo == nil {
		t.Fatal("WhitelistEntryInfo missing")
	}
	got := decoded.WhitelistEntryInfo
	if got.GetKeyRole() != ROLE_SERVICE {
		t.Fatalf("got role %v, want ROLE_SERVICE", got.GetKeyRole())
	}
	if !bytes.Equal(got.GetPublicKey().GetPublicKeyRaw(), bytes.Repeat([]byte{0x04}, 65)) {
		t.Fatal("public key mismatch")
	}
	if got.GetMetadataForKey().GetKeyFormFactor() != KEY_FORM_FACTOR_CRYPTOGRAPHIC_DEVICE_NFC_CARD {
		t.Fatalf("got form factor %v, want NFC_CARD", got.GetMetadataForKey().GetKeyFormFactor())
	}
}

func TestRoleAndKeyFormFactorStringers(t *testing.T) {
	if ROLE_OWNER.String() != "ROLE_OWNER" {
		t.Fatalf("got %q", ROLE_OWNER.String())
	}
	if Role_E(99).String() != "ROLE_UNKNOWN" {
		t.Fatalf("got %q for unrecognized role", Role_E(99).String())
	}
	if KEY_FORM_FACTOR_ANDROID_DEVICE.String() != "KEY_FORM_FACTOR_ANDROID_DEVICE" {
		t.Fatalf("got %q", KEY_FORM_FACTOR_ANDROID_DEVICE.String())
	}
	if KeyFormFactor_E(99).String() != "KEY_FORM_FACTOR_OTHER" {
		t.Fatalf("got %q for unrecognized form factor", KeyFormFactor_E(99).String())
	}
}
