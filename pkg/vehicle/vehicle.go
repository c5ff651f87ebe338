// Package vehicle implements the session façade: the single type an
// integrator drives to connect to a vehicle, establish a domain's
// cryptographic session, fetch state, and request key enrollment. It wires
// together the BLE transport (pkg/connector/ble), the request multiplexer
// (internal/dispatcher), the per-domain session state (pkg/session), and the
// message codec (pkg/protocol) behind a small call surface: Connect,
// GetState, SendAddKeyRequest, KeySummary, KeyInfoBySlot,
// BodyControllerState, RSSI, Disconnect.
package vehicle

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/rigado/ble"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/authentication"
	"github.com/leonzdev/tsla-ble-dash-expo/internal/dispatcher"
	"github.com/leonzdev/tsla-ble-dash-expo/internal/log"
	bleconnector "github.com/leonzdev/tsla-ble-dash-expo/pkg/connector/ble"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/carserver"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/universalmessage"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/vcsec"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/session"
)

// commandExpiryWindow is how far in the future (vehicle clock) an outbound
// command's expires_at is set, per the handshake/command-send algorithm.
const commandExpiryWindow = 10 * time.Second

// defaultCommandFlags sets bit 1 ("encrypt response"), the default the
// façade asks for on every encrypted command.
const defaultCommandFlags uint32 = 0x2

// VehicleStateResult is what GetState returns: the category requested, the
// raw decrypted plaintext, the decoded CarServer response, and (on success)
// the vehicle-data submessage bytes.
type VehicleStateResult struct {
	Category    carserver.VehicleDataCategory
	Raw         []byte
	Decoded     *carserver.Response
	VehicleData *carserver.VehicleData
}

// Vehicle is the session façade for a single BLE-reachable vehicle.
type Vehicle struct {
	vin         string
	routingAddr []byte

	transport *bleconnector.Connector
	disp      *dispatcher.Dispatcher
	sessions  *session.Manager
}

// New constructs a Vehicle for vin. The transport is created but not yet
// connected; call Connect before issuing any requests.
func New(vin string) (*Vehicle, error) {
	transport, err := bleconnector.NewConnector()
	if err != nil {
		return nil, err
	}
	routingAddr, err := authentication.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	v := &Vehicle{
		vin:         vin,
		routingAddr: routingAddr,
		transport:   transport,
		sessions:    session.NewManager(),
	}
	v.disp = dispatcher.New(func(payload []byte) error {
		return v.transport.Send(context.Background(), payload)
	})
	v.transport.OnMessage(v.disp.HandleMessage)
	v.transport.OnDisconnect(func() {
		v.sessions.InvalidateAll()
		v.disp.HandleDisconnect()
	})
	return v, nil
}

// Connect establishes the BLE link. addr may be nil, in which case a scan
// is performed first. Connect does not perform the cryptographic handshake.
func (v *Vehicle) Connect(ctx context.Context, mode bleconnector.DiscoveryMode, addr ble.Addr) error {
	return v.transport.Connect(ctx, mode, v.vin, addr)
}

// RSSI reports the current connection's signal strength.
func (v *Vehicle) RSSI() int { return v.transport.RSSI() }

// Disconnect tears down the transport, invalidates every domain's session
// state, and fails any pending request.
func (v *Vehicle) Disconnect() {
	v.sessions.InvalidateAll()
	v.disp.HandleDisconnect()
	v.transport.Disconnect()
}

// ensureSession performs the handshake for domain if no session is
// currently established, otherwise returns immediately.
func (v *Vehicle) ensureSession(ctx context.Context, priv *authentication.NistP256Key, domain protocol.Domain) error {
	if _, ok := v.sessions.Get(domain); ok {
		return nil
	}

	ourPub := priv.PublicBytes()
	uuid, err := authentication.RandomBytes(16)
	if err != nil {
		return err
	}

	outbound := protocol.EncodeSessionInfoRequest(domain, ourPub, v.routingAddr, uuid)
	result, err := v.disp.SendAndAwait(ctx, outbound, uuid, nil)
	if err != nil {
		return err
	}
	msg := result.Message

	info, err := protocol.DecodeSessionInfo(msg.SessionInfo)
	if err != nil {
		return err
	}
	expectedTag, err := protocol.ExtractSessionInfoTag(msg)
	if err != nil {
		return err
	}

	crypto, err := priv.Exchange(info.PublicKey)
	if err != nil {
		return &protocol.AuthenticationError{Msg: "ecdh exchange with vehicle public key failed: " + err.Error()}
	}

	computedTag, err := crypto.SessionInfoHMAC([]byte(v.vin), uuid, msg.SessionInfo)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(computedTag, expectedTag) != 1 {
		return &protocol.AuthenticationError{Msg: "session info HMAC mismatch"}
	}

	state := session.New(domain, crypto, info.Epoch, info.PublicKey, ourPub, info.ClockTime, time.Now().UnixMilli())
	v.sessions.Set(domain, state)
	log.Debug("vehicle: handshake established for domain %s", domain)
	return nil
}

// sendEncryptedCommand performs the encrypted-command-send algorithm: it
// increments the domain's counter, builds the AAD, encrypts plaintext,
// sends, and returns the decrypted response plaintext.
func (v *Vehicle) sendEncryptedCommand(ctx context.Context, domain protocol.Domain, plaintext []byte, flags uint32) ([]byte, error) {
	state, ok := v.sessions.Get(domain)
	if !ok {
		return nil, &protocol.AuthenticationError{Msg: "no established session for domain"}
	}
	crypto := state.Crypto()

	counter := state.NextCounter()
	expiresAt := state.VehicleTimeSeconds(time.Now().UnixMilli()) + uint32(commandExpiryWindow.Seconds())

	aad, err := authentication.CommandAAD(domain.WireDomain(), []byte(v.vin), state.Epoch(), expiresAt, counter, flags)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext, tag, err := crypto.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}

	uuid, err := authentication.RandomBytes(16)
	if err != nil {
		return nil, err
	}

	outbound := protocol.EncodeEncryptedCommand(protocol.EncryptedCommandParams{
		Domain:          domain,
		RoutingAddr:     v.routingAddr,
		UUID:            uuid,
		Ciphertext:      ciphertext,
		Flags:           flags,
		SignerPublicKey: state.ClientPublicKey(),
		Epoch:           state.Epoch(),
		Nonce:           nonce,
		Counter:         counter,
		ExpiresAt:       expiresAt,
		Tag:             tag,
	})
	postHandler := func(msg *universalmessage.RoutableMessage) ([]byte, error) {
		return v.decryptResponse(domain, state, msg, tag)
	}
	result, err := v.disp.SendAndAwait(ctx, outbound, uuid, postHandler)
	if err != nil {
		if _, isAuth := err.(*protocol.AuthenticationError); isAuth {
			v.sessions.Invalidate(domain)
		}
		return nil, err
	}
	return result.Plaintext, nil
}

// decryptResponse is the dispatcher PostHandler for an encrypted command: it
// rebuilds the expected response AAD, then authenticates and decrypts.
func (v *Vehicle) decryptResponse(domain protocol.Domain, state *session.State, msg *universalmessage.RoutableMessage, requestGCMTag []byte) ([]byte, error) {
	if msg.SignatureData == nil || msg.SignatureData.AESGCMResponseData == nil {
		return nil, &protocol.ProtocolError{Msg: "encrypted response missing AES_GCM_ResponseData"}
	}
	sig := msg.SignatureData.AESGCMResponseData

	var fault uint32
	if msg.SignedMessageStatus != nil {
		fault = uint32(msg.SignedMessageStatus.SignedMessageFault)
	}
	var flags uint32
	if msg.Flags != nil {
		flags = *msg.Flags
	}

	responseDomain := domain.WireDomain()
	if msg.FromDestination != nil && msg.FromDestination.Domain != nil {
		responseDomain = *msg.FromDestination.Domain
	}

	aad, err := authentication.ResponseAAD(responseDomain, []byte(v.vin), sig.Counter, flags, requestGCMTag, fault)
	if err != nil {
		return nil, err
	}

	plaintext, err := state.Crypto().Decrypt(sig.Nonce, msg.ProtobufMessageAsBytes, aad, sig.Tag)
	if err != nil {
		return nil, &protocol.AuthenticationError{Msg: "response authentication failed"}
	}
	return plaintext, nil
}

// GetState fetches one category of vehicle state over an encrypted
// Infotainment command, establishing the session first if needed.
func (v *Vehicle) GetState(ctx context.Context, category carserver.VehicleDataCategory, priv *authentication.NistP256Key) (*VehicleStateResult, error) {
	if err := v.ensureSession(ctx, priv, protocol.DomainInfotainment); err != nil {
		return nil, err
	}

	plaintext := protocol.EncodeGetVehicleData(category)
	raw, err := v.sendEncryptedCommand(ctx, protocol.DomainInfotainment, plaintext, defaultCommandFlags)
	if err != nil {
		return nil, err
	}

	resp, err := protocol.DecodeCarServerResponse(raw)
	if err != nil {
		return nil, err
	}
	result := &VehicleStateResult{Category: category, Raw: raw, Decoded: resp, VehicleData: resp.VehicleData}
	if status := resp.GetActionStatus(); status != nil && status.GetResult() == carserver.OPERATIONSTATUS_ERROR {
		return result, &protocol.VehicleReportedError{Reason: status.GetResultReason().GetPlainText()}
	}
	return result, nil
}

// SendAddKeyRequest requests enrollment of pubRaw with the given role and
// form factor. This does not require an authenticated session: approval
// happens physically, via an NFC tap on the vehicle.
func (v *Vehicle) SendAddKeyRequest(ctx context.Context, pubRaw []byte, role vcsec.Role_E, formFactor vcsec.KeyFormFactor_E) error {
	uuid, err := authentication.RandomBytes(16)
	if err != nil {
		return err
	}
	outbound := protocol.EncodeVCSECAddKeyRequest(pubRaw, role, formFactor, uuid)
	_, err = v.disp.SendAndAwait(ctx, outbound, uuid, nil)
	return err
}

// BodyControllerState reads the unauthenticated VCSEC body-controller
// status (lock state, sleep status). It requires no session and works even
// while infotainment is asleep.
func (v *Vehicle) BodyControllerState(ctx context.Context) (*vcsec.VehicleStatus, error) {
	uuid, err := authentication.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	outbound := protocol.EncodeVCSECInformationRequest(vcsec.INFORMATION_REQUEST_GET_STATUS, nil, uuid)
	result, err := v.disp.SendAndAwait(ctx, outbound, uuid, nil)
	if err != nil {
		return nil, err
	}
	resp, err := protocol.DecodeVCSECResponse(result.Message.ProtobufMessageAsBytes)
	if err != nil {
		return nil, err
	}
	if resp.VehicleStatus == nil {
		return nil, &protocol.ProtocolError{Msg: "body-controller-state response missing VehicleStatus"}
	}
	return resp.VehicleStatus, nil
}

// KeySummary reads the VCSEC whitelist slot bitmap, identifying which slots
// are occupied. Requires no session.
func (v *Vehicle) KeySummary(ctx context.Context) (*vcsec.WhitelistInfo, error) {
	uuid, err := authentication.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	outbound := protocol.EncodeVCSECInformationRequest(vcsec.INFORMATION_REQUEST_GET_WHITELIST_INFO, nil, uuid)
	result, err := v.disp.SendAndAwait(ctx, outbound, uuid, nil)
	if err != nil {
		return nil, err
	}
	resp, err := protocol.DecodeVCSECResponse(result.Message.ProtobufMessageAsBytes)
	if err != nil {
		return nil, err
	}
	if resp.WhitelistInfo == nil {
		return nil, &protocol.ProtocolError{Msg: "whitelist-info response missing WhitelistInfo"}
	}
	return resp.WhitelistInfo, nil
}

// KeyInfoBySlot reads the enrolled key details for one whitelist slot.
// Requires no session.
func (v *Vehicle) KeyInfoBySlot(ctx context.Context, slot uint32) (*vcsec.WhitelistEntryInfo, error) {
	uuid, err := authentication.RandomBytes(16)
	if err != nil {
		return nil, err
	}
	outbound := protocol.EncodeVCSECInformationRequest(vcsec.INFORMATION_REQUEST_GET_WHITELIST_ENTRY_INFO, &slot, uuid)
	result, err := v.disp.SendAndAwait(ctx, outbound, uuid, nil)
	if err != nil {
		return nil, err
	}
	resp, err := protocol.DecodeVCSECResponse(result.Message.ProtobufMessageAsBytes)
	if err != nil {
		return nil, err
	}
	if resp.WhitelistEntryInfo == nil {
		return nil, &protocol.ProtocolError{Msg: "whitelist-entry-info response missing entry"}
	}
	return resp.WhitelistEntryInfo, nil
}
