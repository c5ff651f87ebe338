// Package protocol provides the domain enum and the encode/decode
// operations used to build and interpret the messages carried over the BLE
// transport: the handshake envelope, the encrypted command/response
// envelope, and the unauthenticated VCSEC add-key envelope. It sits on top
// of the hand-rolled protobuf schema packages in pkg/protocol/protobuf.
package protocol

import (
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/carserver"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/signatures"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/universalmessage"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/vcsec"
)

// EncodeSessionInfoRequest builds the RoutableMessage that begins a
// handshake: a SessionInfoRequest carrying our public key, addressed to
// domain, tagged with uuid for correlation by the multiplexer.
func EncodeSessionInfoRequest(domain Domain, ourPub, routingAddr, uuid []byte) []byte {
	m := &universalmessage.RoutableMessage{
		ToDestination:      universalmessage.DomainDestination(domain.WireDomain()),
		FromDestination:    universalmessage.RoutingDestination(routingAddr),
		SessionInfoRequest: &universalmessage.SessionInfoRequest{PublicKey: ourPub},
		Uuid:               uuid,
	}
	return m.Marshal()
}

// DecodeRoutable decodes the outermost envelope carried on every BLE frame.
func DecodeRoutable(b []byte) (*universalmessage.RoutableMessage, error) {
	m, err := universalmessage.Unmarshal(b)
	if err != nil {
		return nil, &ProtocolError{Msg: "malformed routable message: " + err.Error()}
	}
	return m, nil
}

// DecodeSessionInfo decodes the plaintext SessionInfo payload a vehicle
// returns in RoutableMessage.SessionInfo.
func DecodeSessionInfo(sessionInfo []byte) (*signatures.SessionInfo, error) {
	if len(sessionInfo) == 0 {
		return nil, &ProtocolError{Msg: "handshake response carries no sessionInfo"}
	}
	info, err := signatures.UnmarshalSessionInfo(sessionInfo)
	if err != nil {
		return nil, &ProtocolError{Msg: "malformed sessionInfo: " + err.Error()}
	}
	if len(info.PublicKey) == 0 {
		return nil, &ProtocolError{Msg: "sessionInfo carries no vehicle public key"}
	}
	return info, nil
}

// ExtractSessionInfoTag returns the 32-byte HMAC tag a handshake response
// carries in signatureData.sessionInfoTag.tag.
func ExtractSessionInfoTag(msg *universalmessage.RoutableMessage) ([]byte, error) {
	if msg.SignatureData == nil || msg.SignatureData.SessionInfoTag == nil || len(msg.SignatureData.SessionInfoTag.Tag) == 0 {
		return nil, &ProtocolError{Msg: "handshake response carries no session info tag"}
	}
	return msg.SignatureData.SessionInfoTag.Tag, nil
}

// EncryptedCommandParams collects the fields EncodeEncryptedCommand needs to
// build an encrypted command envelope.
type EncryptedCommandParams struct {
	Domain          Domain
	RoutingAddr     []byte
	UUID            []byte
	Ciphertext      []byte
	Flags           uint32
	SignerPublicKey []byte
	Epoch           []byte
	Nonce           []byte
	Counter         uint32
	ExpiresAt       uint32
	Tag             []byte
}

// EncodeEncryptedCommand builds the RoutableMessage carrying an AES-GCM
// encrypted command: ciphertext as the opaque payload, and an
// AESGCMPersonalizedSignatureData recording the nonce/counter/expiry/tag the
// vehicle needs to reproduce the same AAD and authenticate the message.
func EncodeEncryptedCommand(p EncryptedCommandParams) []byte {
	m := &universalmessage.RoutableMessage{
		ToDestination:          universalmessage.DomainDestination(p.Domain.WireDomain()),
		FromDestination:        universalmessage.RoutingDestination(p.RoutingAddr),
		ProtobufMessageAsBytes: p.Ciphertext,
		Uuid:                   p.UUID,
		SignatureData: &signatures.SignatureData{
			SignerIdentity: &signatures.KeyIdentity{PublicKey: p.SignerPublicKey},
			AESGCMPersonalizedData: &signatures.AESGCMPersonalizedSignatureData{
				Epoch:     p.Epoch,
				Nonce:     p.Nonce,
				Counter:   p.Counter,
				ExpiresAt: p.ExpiresAt,
				Tag:       p.Tag,
			},
		},
	}
	if p.Flags != 0 {
		flags := p.Flags
		m.Flags = &flags
	}
	return m.Marshal()
}

// EncodeGetVehicleData returns the plaintext payload (a CarServer Action
// selecting one of the twelve GetVehicleData sub-requests) that gets
// encrypted and sent as an encrypted command's ciphertext-before-encryption.
func EncodeGetVehicleData(category carserver.VehicleDataCategory) []byte {
	return carserver.MarshalGetVehicleDataAction(category)
}

// DecodeCarServerResponse decodes a decrypted response payload.
// response.GetActionStatus().GetResult() == carserver.OPERATIONSTATUS_ERROR
// denotes a vehicle-reported error whose reason is in
// response.GetActionStatus().GetResultReason().GetPlainText().
func DecodeCarServerResponse(b []byte) (*carserver.Response, error) {
	r, err := carserver.Unmarshal(b)
	if err != nil {
		return nil, &ProtocolError{Msg: "malformed CarServer response: " + err.Error()}
	}
	return r, nil
}

// EncodeVCSECAddKeyRequest builds the unauthenticated envelope that requests
// the vehicle enroll pubRaw with the given role and form factor. The
// vehicle only honors this while it's in an NFC-tap-approved enrollment
// window; there is no cryptographic signature on this request, only the
// presented public key itself, carried as signatureData.signerIdentity. The
// VCSEC payload travels as an UnsignedMessage and no signature-type field
// (PRESENT_KEY or otherwise) is encoded.
func EncodeVCSECAddKeyRequest(pubRaw []byte, role vcsec.Role_E, formFactor vcsec.KeyFormFactor_E, uuid []byte) []byte {
	vcsecMsg := &vcsec.ToVCSECMessage{
		UnsignedMessage: &vcsec.UnsignedMessage{
			WhitelistOperation: &vcsec.WhitelistOperation{
				AddKeyToWhitelistAndAddPermissions: &vcsec.PermissionChange{
					Key:      &vcsec.PublicKey{PublicKeyRaw: pubRaw},
					Role:     role,
					Metadata: &vcsec.KeyMetadata{KeyFormFactor: formFactor},
				},
			},
		},
	}
	m := &universalmessage.RoutableMessage{
		ToDestination:          universalmessage.DomainDestination(DomainVCSEC.WireDomain()),
		ProtobufMessageAsBytes: vcsecMsg.Marshal(),
		Uuid:                   uuid,
		SignatureData: &signatures.SignatureData{
			SignerIdentity: &signatures.KeyIdentity{PublicKey: pubRaw},
		},
	}
	return m.Marshal()
}

// DecodeVCSECResponse decodes an unauthenticated VCSEC response payload
// (body-controller-state, whitelist info, or whitelist entry info).
func DecodeVCSECResponse(b []byte) (*vcsec.FromVCSECMessage, error) {
	m, err := vcsec.Unmarshal(b)
	if err != nil {
		return nil, &ProtocolError{Msg: "malformed VCSEC response: " + err.Error()}
	}
	return m, nil
}

// EncodeVCSECInformationRequest builds the unauthenticated envelope for a
// read-only VCSEC query (whole-vehicle status, the whitelist slot bitmap,
// or a single slot's entry).
func EncodeVCSECInformationRequest(reqType vcsec.InformationRequestType_E, slot *uint32, uuid []byte) []byte {
	vcsecMsg := &vcsec.ToVCSECMessage{
		UnsignedMessage: &vcsec.UnsignedMessage{
			InformationRequest: &vcsec.InformationRequest{Type: reqType, Slot: slot},
		},
	}
	m := &universalmessage.RoutableMessage{
		ToDestination:          universalmessage.DomainDestination(DomainVCSEC.WireDomain()),
		ProtobufMessageAsBytes: vcsecMsg.Marshal(),
		Uuid:                   uuid,
	}
	return m.Marshal()
}
