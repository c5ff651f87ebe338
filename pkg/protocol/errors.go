package protocol

import (
	"errors"
	"fmt"
)

// ConfigError reports a problem with caller-supplied configuration: a
// missing VIN, an unreadable key file, or an unsupported curve.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config error: " + e.Msg }

// TransportError reports a failure at the BLE layer: scan timeout, GATT
// failure, permission denied, or a disconnect mid-operation.
type TransportError struct {
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error: %s: %s", e.Msg, e.Err)
	}
	return "transport error: " + e.Msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed wire message, an oversized frame, or a
// required field that wasn't present (e.g. a handshake response with no
// sessionInfo).
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Msg }

// AuthenticationError reports an HMAC mismatch on a SessionInfo, or an
// AES-GCM authentication failure on a response. Either invalidates the
// current session.
type AuthenticationError struct {
	Msg string
}

func (e *AuthenticationError) Error() string { return "authentication error: " + e.Msg }

// VehicleReportedError wraps an application-level failure the vehicle
// itself reported (CarServer ActionStatus.Result == OPERATIONSTATUS_ERROR).
type VehicleReportedError struct {
	Reason string
}

func (e *VehicleReportedError) Error() string { return "vehicle reported error: " + e.Reason }

// TimeoutError reports that a request's deadline elapsed with no matching
// response.
type TimeoutError struct{}

func (e *TimeoutError) Error() string { return "timed out waiting for vehicle response" }

// DisconnectError reports that the transport disconnected while a request
// was still pending.
type DisconnectError struct{}

func (e *DisconnectError) Error() string { return "disconnected while request was pending" }

// MayHaveSucceeded reports whether err leaves open the possibility that the
// vehicle actually carried out the command even though this client can't
// confirm it: a write can reach the vehicle and be acted on before the
// confirming notification is lost to a timeout or a disconnect. Callers use
// this to choose between "failed" and "couldn't verify success" messaging.
func MayHaveSucceeded(err error) bool {
	if err == nil {
		return true
	}
	var timeout *TimeoutError
	var disconnect *DisconnectError
	return errors.As(err, &timeout) || errors.As(err, &disconnect)
}
