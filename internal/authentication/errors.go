package authentication

import (
	"errors"
	"fmt"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/universalmessage"
)

type errCode int

const (
	errCodeBadParameter errCode = iota
	errCodeCrypto
	errCodeAuthentication
)

// Error is the concrete type of the ErrInvalidPublicKey and ErrCSPRNGFailure
// sentinels. Other errors this package returns, such as ErrInvalidPrivateKey
// and the metadata errors, are plain errors.New values, and a failed
// decryption check is an InvalidSignatureError.
type Error struct {
	code    errCode
	message string
}

func (e *Error) Error() string { return e.message }

func newError(code errCode, message string) *Error {
	return &Error{code: code, message: message}
}

var (
	// ErrInvalidPublicKey is raised when a remote peer provides a public key
	// that does not decode to a point on the curve.
	ErrInvalidPublicKey = newError(errCodeBadParameter, "invalid public key")
	// ErrInvalidPrivateKey indicates the local peer tried to load an
	// unsupported or malformed private key.
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrCSPRNGFailure indicates the platform random source returned an error
	// or, after repeated resampling, never produced a scalar in [1, n-1].
	ErrCSPRNGFailure = newError(errCodeCrypto, "failed to generate a valid private key")
)

// InvalidSignatureError reports that an AES-GCM tag failed to verify; it is
// what Session.Decrypt returns. Decrypt leaves Code, EncodedInfo and Tag at
// their zero values. When a caller does fill EncodedInfo and Tag, they
// should never be logged verbatim in a production build since EncodedInfo
// may include session material.
type InvalidSignatureError struct {
	Code        universalmessage.MessageFault_E
	EncodedInfo []byte
	Tag         []byte
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid signature (fault %d)", e.Code)
}
