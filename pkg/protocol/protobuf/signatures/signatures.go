// Package signatures mirrors the vendor's Signatures schema: SessionInfo,
// the SignatureData discriminated union, and the metadata Tag enum consumed
// by the canonical TLV serializer in internal/authentication.
package signatures

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/wireutil"
)

// Tag enumerates the metadata items that can be folded into the canonical
// TLV byte string used as AEAD associated data or HMAC input. Values and
// ordering are part of the wire contract: the vehicle computes the same
// canonicalization, so these must not be renumbered.
type Tag uint8

const (
	TAG_SIGNATURE_TYPE Tag = 0
	TAG_DOMAIN         Tag = 1
	TAG_PERSONALIZATION Tag = 2
	TAG_EPOCH          Tag = 3
	TAG_EXPIRES_AT     Tag = 4
	TAG_COUNTER        Tag = 5
	TAG_CHALLENGE      Tag = 6
	TAG_FLAGS          Tag = 7
	TAG_REQUEST_HASH   Tag = 8
	TAG_FAULT          Tag = 9
	TAG_END            Tag = 0xFF
)

// SignatureType enumerates the signing/encryption scheme used for a given
// SignatureData payload.
type SignatureType int32

const (
	SIGNATURE_TYPE_AES_GCM              SignatureType = 0
	SIGNATURE_TYPE_AES_GCM_PERSONALIZED SignatureType = 5
	SIGNATURE_TYPE_HMAC                 SignatureType = 6
	SIGNATURE_TYPE_HMAC_PERSONALIZED    SignatureType = 8
	SIGNATURE_TYPE_AES_GCM_RESPONSE     SignatureType = 9
	SIGNATURE_TYPE_PRESENT_KEY          SignatureType = 15
)

// SessionInfo is the plaintext payload a vehicle returns in response to a
// SessionInfoRequest. It is authenticated (not encrypted): the requester
// verifies it against the accompanying HMAC tag before trusting it.
type SessionInfo struct {
	Counter   uint32
	PublicKey []byte
	Epoch     []byte
	ClockTime uint32
}

const (
	fieldSessionInfoCounter   protowire.Number = 1
	fieldSessionInfoPublicKey protowire.Number = 2
	fieldSessionInfoEpoch     protowire.Number = 3
	fieldSessionInfoClockTime protowire.Number = 4
)

func (s *SessionInfo) Marshal() []byte {
	var b []byte
	b = wireutil.AppendVarintField(b, fieldSessionInfoCounter, uint64(s.Counter))
	b = wireutil.AppendBytesField(b, fieldSessionInfoPublicKey, s.PublicKey)
	b = wireutil.AppendBytesField(b, fieldSessionInfoEpoch, s.Epoch)
	b = wireutil.AppendVarintField(b, fieldSessionInfoClockTime, uint64(s.ClockTime))
	return b
}

// UnmarshalSessionInfo decodes the bytes carried in
// RoutableMessage.SessionInfo.
func UnmarshalSessionInfo(b []byte) (*SessionInfo, error) {
	s := &SessionInfo{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldSessionInfoCounter && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.Counter = uint32(v)
		case num == fieldSessionInfoPublicKey && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.PublicKey = append([]byte(nil), v...)
		case num == fieldSessionInfoEpoch && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.Epoch = append([]byte(nil), v...)
		case num == fieldSessionInfoClockTime && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.ClockTime = uint32(v)
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

// KeyIdentity carries the signer's raw ECDH public key, attached to
// SignatureData so a verifier that tracks multiple peers knows which shared
// secret to use.
type KeyIdentity struct {
	PublicKey []byte
}

const fieldKeyIdentityPublicKey protowire.Number = 1

func (k *KeyIdentity) Marshal() []byte {
	if k == nil {
		return nil
	}
	return wireutil.AppendBytesField(nil, fieldKeyIdentityPublicKey, k.PublicKey)
}

func unmarshalKeyIdentity(b []byte) (*KeyIdentity, error) {
	k := &KeyIdentity{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if num == fieldKeyIdentityPublicKey && typ == protowire.BytesType {
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			k.PublicKey = append([]byte(nil), v...)
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

// HMACSignatureData carries the session-info authentication tag.
type HMACSignatureData struct {
	Tag []byte
}

const fieldHMACTag protowire.Number = 1

func (h *HMACSignatureData) Marshal() []byte {
	if h == nil {
		return nil
	}
	return wireutil.AppendBytesField(nil, fieldHMACTag, h.Tag)
}

func unmarshalHMACSignatureData(b []byte) (*HMACSignatureData, error) {
	h := &HMACSignatureData{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if num == fieldHMACTag && typ == protowire.BytesType {
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			h.Tag = append([]byte(nil), v...)
			continue
		}
		rest, err = wireutil.Skip(num, typ, b)
		if err != nil {
			return nil, err
		}
		b = rest
	}
	return h, nil
}

// AESGCMPersonalizedSignatureData accompanies an encrypted command.
type AESGCMPersonalizedSignatureData struct {
	Epoch     []byte
	Nonce     []byte
	Counter   uint32
	ExpiresAt uint32
	Tag       []byte
}

const (
	fieldAGPEpoch     protowire.Number = 1
	fieldAGPNonce     protowire.Number = 2
	fieldAGPCounter   protowire.Number = 3
	fieldAGPExpiresAt protowire.Number = 4
	fieldAGPTag       protowire.Number = 5
)

func (a *AESGCMPersonalizedSignatureData) Marshal() []byte {
	if a == nil {
		return nil
	}
	var b []byte
	b = wireutil.AppendBytesField(b, fieldAGPEpoch, a.Epoch)
	b = wireutil.AppendBytesField(b, fieldAGPNonce, a.Nonce)
	b = wireutil.AppendVarintField(b, fieldAGPCounter, uint64(a.Counter))
	b = wireutil.AppendVarintField(b, fieldAGPExpiresAt, uint64(a.ExpiresAt))
	b = wireutil.AppendBytesField(b, fieldAGPTag, a.Tag)
	return b
}

func unmarshalAESGCMPersonalized(b []byte) (*AESGCMPersonalizedSignatureData, error) {
	a := &AESGCMPersonalizedSignatureData{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldAGPEpoch && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.Epoch = append([]byte(nil), v...)
		case num == fieldAGPNonce && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.Nonce = append([]byte(nil), v...)
		case num == fieldAGPCounter && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.Counter = uint32(v)
		case num == fieldAGPExpiresAt && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.ExpiresAt = uint32(v)
		case num == fieldAGPTag && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.Tag = append([]byte(nil), v...)
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return a, nil
}

// AESGCMResponseSignatureData accompanies a vehicle's encrypted response.
// The counter here identifies the epoch/nonce state the response was
// encrypted under; it is not compared against the request counter directly.
type AESGCMResponseSignatureData struct {
	Nonce   []byte
	Counter uint32
	Tag     []byte
}

const (
	fieldAGRNonce   protowire.Number = 1
	fieldAGRCounter protowire.Number = 2
	fieldAGRTag     protowire.Number = 3
)

func (a *AESGCMResponseSignatureData) Marshal() []byte {
	if a == nil {
		return nil
	}
	var b []byte
	b = wireutil.AppendBytesField(b, fieldAGRNonce, a.Nonce)
	b = wireutil.AppendVarintField(b, fieldAGRCounter, uint64(a.Counter))
	b = wireutil.AppendBytesField(b, fieldAGRTag, a.Tag)
	return b
}

func unmarshalAESGCMResponse(b []byte) (*AESGCMResponseSignatureData, error) {
	a := &AESGCMResponseSignatureData{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldAGRNonce && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.Nonce = append([]byte(nil), v...)
		case num == fieldAGRCounter && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.Counter = uint32(v)
		case num == fieldAGRTag && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			a.Tag = append([]byte(nil), v...)
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return a, nil
}

// SignatureData is the discriminated union attached to a RoutableMessage:
// SignerIdentity is always present once a session exists, and exactly one of
// SessionInfoTag / AESGCMPersonalizedData / AESGCMResponseData is set
// depending on what the enclosing message is.
type SignatureData struct {
	SignerIdentity         *KeyIdentity
	SessionInfoTag         *HMACSignatureData
	AESGCMPersonalizedData *AESGCMPersonalizedSignatureData
	AESGCMResponseData     *AESGCMResponseSignatureData
}

const (
	fieldSDSignerIdentity         protowire.Number = 1
	fieldSDSessionInfoTag         protowire.Number = 2
	fieldSDAESGCMPersonalizedData protowire.Number = 5
	fieldSDAESGCMResponseData     protowire.Number = 6
)

func (s *SignatureData) Marshal() []byte {
	if s == nil {
		return nil
	}
	var b []byte
	b = wireutil.AppendMessageField(b, fieldSDSignerIdentity, s.SignerIdentity != nil, s.SignerIdentity.Marshal())
	b = wireutil.AppendMessageField(b, fieldSDSessionInfoTag, s.SessionInfoTag != nil, s.SessionInfoTag.Marshal())
	b = wireutil.AppendMessageField(b, fieldSDAESGCMPersonalizedData, s.AESGCMPersonalizedData != nil, s.AESGCMPersonalizedData.Marshal())
	b = wireutil.AppendMessageField(b, fieldSDAESGCMResponseData, s.AESGCMResponseData != nil, s.AESGCMResponseData.Marshal())
	return b
}

// Unmarshal decodes the bytes carried in RoutableMessage.SignatureData.
func Unmarshal(b []byte) (*SignatureData, error) {
	s := &SignatureData{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldSDSignerIdentity && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.SignerIdentity, err = unmarshalKeyIdentity(v)
			if err != nil {
				return nil, err
			}
		case num == fieldSDSessionInfoTag && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.SessionInfoTag, err = unmarshalHMACSignatureData(v)
			if err != nil {
				return nil, err
			}
		case num == fieldSDAESGCMPersonalizedData && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.AESGCMPersonalizedData, err = unmarshalAESGCMPersonalized(v)
			if err != nil {
				return nil, err
			}
		case num == fieldSDAESGCMResponseData && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.AESGCMResponseData, err = unmarshalAESGCMResponse(v)
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
	return s, nil
}
