// Package universalmessage mirrors the vendor's UniversalMessage schema: the
// outermost envelope every BLE frame carries, regardless of which domain or
// subsystem ultimately consumes the payload. There is no protoc step in this
// tree, so the message is a hand-written Go struct with an explicit field
// table, marshaled against google.golang.org/protobuf/encoding/protowire.
package universalmessage

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/signatures"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/wireutil"
)

// Domain_E selects which vehicle subsystem terminates a RoutableMessage.
type Domain_E int32

const (
	DOMAIN_BROADCAST         Domain_E = 0
	DOMAIN_VEHICLE_SECURITY  Domain_E = 2
	DOMAIN_INFOTAINMENT      Domain_E = 3
)

// MessageFault_E enumerates the vehicle's reasons for rejecting a signed
// message outright (as opposed to a CarServer-level application error).
type MessageFault_E int32

const (
	MESSAGEFAULT_ERROR_NONE             MessageFault_E = 0
	MESSAGEFAULT_ERROR_BAD_PARAMETER    MessageFault_E = 1
	MESSAGEFAULT_ERROR_INVALID_SIGNATURE MessageFault_E = 3
	MESSAGEFAULT_ERROR_EXPIRED_COUNTER  MessageFault_E = 6
	MESSAGEFAULT_ERROR_EXPIRED_TIMESTAMP MessageFault_E = 8
)

// Destination is a wire-level oneof: either a domain enum, used when a client
// addresses the vehicle, or a 16-byte routing address, used when the vehicle
// addresses a client back.
type Destination struct {
	Domain         *Domain_E
	RoutingAddress []byte
}

const (
	fieldDestinationDomain         protowire.Number = 1
	fieldDestinationRoutingAddress protowire.Number = 2
)

func (d *Destination) Marshal() []byte {
	if d == nil {
		return nil
	}
	var b []byte
	if d.Domain != nil {
		// Domain is presence-tracked via the pointer: DOMAIN_BROADCAST (0) is a
		// meaningful, explicitly addressed value, not an absent field.
		b = wireutil.AppendVarintFieldAlways(b, fieldDestinationDomain, uint64(*d.Domain))
	} else if len(d.RoutingAddress) > 0 {
		b = wireutil.AppendBytesField(b, fieldDestinationRoutingAddress, d.RoutingAddress)
	}
	return b
}

func unmarshalDestination(b []byte) (*Destination, error) {
	d := &Destination{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldDestinationDomain && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			domain := Domain_E(v)
			d.Domain = &domain
		case num == fieldDestinationRoutingAddress && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			d.RoutingAddress = append([]byte(nil), v...)
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return d, nil
}

// DomainDestination builds a Destination addressed to a fixed vehicle domain.
func DomainDestination(domain Domain_E) *Destination {
	return &Destination{Domain: &domain}
}

// RoutingDestination builds a Destination addressed to a client's routing
// address.
func RoutingDestination(addr []byte) *Destination {
	return &Destination{RoutingAddress: addr}
}

// SessionInfoRequest is sent by a client to begin a handshake; it carries the
// client's ECDH public key so the vehicle knows who it is deriving a shared
// secret with.
type SessionInfoRequest struct {
	PublicKey []byte
}

const fieldSessionInfoRequestPublicKey protowire.Number = 1

func (s *SessionInfoRequest) Marshal() []byte {
	if s == nil {
		return nil
	}
	return wireutil.AppendBytesField(nil, fieldSessionInfoRequestPublicKey, s.PublicKey)
}

func unmarshalSessionInfoRequest(b []byte) (*SessionInfoRequest, error) {
	s := &SessionInfoRequest{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if num == fieldSessionInfoRequestPublicKey && typ == protowire.BytesType {
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.PublicKey = append([]byte(nil), v...)
			continue
		}
		rest, err = wireutil.Skip(num, typ, b)
		if err != nil {
			return nil, err
		}
		b = rest
	}
	return s, nil
}

// SignedMessageStatus carries the vehicle's signature-verification result
// when it rejects a message at the transport-authentication layer (as
// opposed to rejecting the command at the application layer).
type SignedMessageStatus struct {
	SignedMessageFault MessageFault_E
}

const fieldSignedMessageStatusFault protowire.Number = 1

func (s *SignedMessageStatus) Marshal() []byte {
	if s == nil {
		return nil
	}
	return wireutil.AppendVarintField(nil, fieldSignedMessageStatusFault, uint64(s.SignedMessageFault))
}

func unmarshalSignedMessageStatus(b []byte) (*SignedMessageStatus, error) {
	s := &SignedMessageStatus{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		if num == fieldSignedMessageStatusFault && typ == protowire.VarintType {
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			s.SignedMessageFault = MessageFault_E(v)
			continue
		}
		rest, err = wireutil.Skip(num, typ, b)
		if err != nil {
			return nil, err
		}
		b = rest
	}
	return s, nil
}

// RoutableMessage is the envelope every BLE frame carries. Exactly one of
// ProtobufMessageAsBytes or SessionInfoRequest is normally set as the
// payload; SessionInfo and SignatureData are populated on handshake
// responses and encrypted commands/responses respectively.
type RoutableMessage struct {
	ToDestination        *Destination
	FromDestination       *Destination
	ProtobufMessageAsBytes []byte
	SessionInfoRequest     *SessionInfoRequest
	SessionInfo            []byte
	Uuid                   []byte
	Flags                  *uint32
	SignatureData          *signatures.SignatureData
	SignedMessageStatus    *SignedMessageStatus
}

const (
	fieldToDestination         protowire.Number = 1
	fieldFromDestination        protowire.Number = 2
	fieldProtobufMessageAsBytes protowire.Number = 3
	fieldSessionInfoRequest     protowire.Number = 5
	fieldSessionInfo            protowire.Number = 6
	fieldSignedMessageStatus    protowire.Number = 7
	fieldSignatureData          protowire.Number = 8
	fieldUuid                   protowire.Number = 10
	fieldFlags                  protowire.Number = 11
)

// Marshal encodes the message. It never returns an error: every field is
// either absent, a byte slice, or a value we constructed ourselves.
func (m *RoutableMessage) Marshal() []byte {
	var b []byte
	b = wireutil.AppendMessageField(b, fieldToDestination, m.ToDestination != nil, m.ToDestination.Marshal())
	b = wireutil.AppendMessageField(b, fieldFromDestination, m.FromDestination != nil, m.FromDestination.Marshal())
	b = wireutil.AppendBytesField(b, fieldProtobufMessageAsBytes, m.ProtobufMessageAsBytes)
	b = wireutil.AppendMessageField(b, fieldSessionInfoRequest, m.SessionInfoRequest != nil, m.SessionInfoRequest.Marshal())
	b = wireutil.AppendBytesField(b, fieldSessionInfo, m.SessionInfo)
	b = wireutil.AppendMessageField(b, fieldSignatureData, m.SignatureData != nil, m.SignatureData.Marshal())
	b = wireutil.AppendMessageField(b, fieldSignedMessageStatus, m.SignedMessageStatus != nil, m.SignedMessageStatus.Marshal())
	b = wireutil.AppendBytesField(b, fieldUuid, m.Uuid)
	if m.Flags != nil {
		b = wireutil.AppendVarintField(b, fieldFlags, uint64(*m.Flags))
	}
	return b
}

// Unmarshal decodes a RoutableMessage. Unknown fields are skipped, not
// preserved: no spec invariant requires round-tripping bytes this module
// never produced itself.
func Unmarshal(b []byte) (*RoutableMessage, error) {
	m := &RoutableMessage{}
	for len(b) > 0 {
		num, typ, rest, err := wireutil.Tag(b)
		if err != nil {
			return nil, err
		}
		b = rest
		switch {
		case num == fieldToDestination && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			m.ToDestination, err = unmarshalDestination(v)
			if err != nil {
				return nil, err
			}
		case num == fieldFromDestination && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			m.FromDestination, err = unmarshalDestination(v)
			if err != nil {
				return nil, err
			}
		case num == fieldProtobufMessageAsBytes && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			m.ProtobufMessageAsBytes = append([]byte(nil), v...)
		case num == fieldSessionInfoRequest && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			m.SessionInfoRequest, err = unmarshalSessionInfoRequest(v)
			if err != nil {
				return nil, err
			}
		case num == fieldSessionInfo && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			m.SessionInfo = append([]byte(nil), v...)
		case num == fieldSignatureData && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			m.SignatureData, err = signatures.Unmarshal(v)
			if err != nil {
				return nil, err
			}
		case num == fieldSignedMessageStatus && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			m.SignedMessageStatus, err = unmarshalSignedMessageStatus(v)
			if err != nil {
				return nil, err
			}
		case num == fieldUuid && typ == protowire.BytesType:
			v, rest, err := wireutil.Bytes(b)
			if err != nil {
				return nil, err
			}
			b = rest
			m.Uuid = append([]byte(nil), v...)
		case num == fieldFlags && typ == protowire.VarintType:
			v, rest, err := wireutil.Varint(b)
			if err != nil {
				return nil, err
			}
			b = rest
			flags := uint32(v)
			m.Flags = &flags
		default:
			rest, err := wireutil.Skip(num, typ, b)
			if err != nil {
				return nil, err
			}
			b = rest
		}
	}
	return m, nil
}
