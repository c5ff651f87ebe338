package authentication

// Why not crypto/ecdh or github.com/aead/ecdh?
//
// crypto/ecdh is specifically not chosen because the vehicle needs a static
// ECDH key. The crypto/ecdh package and the github.com/aead/ecdh.KeyExchange
// interface aren't safe to use with static keys if the private key might
// later live in an HSM: both require a caller to hand over the raw scalar
// to compute a shared secret, which would divulge a long-term secret to a
// compromised host machine. Using crypto/elliptic's curve arithmetic
// directly keeps ScalarMult as the only operation that touches the scalar.

import (
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/authentication/schnorr"
)

const (
	// PrivateKeySizeBytes is the length of a raw P-256 scalar.
	PrivateKeySizeBytes = 32
	// PublicKeySizeBytes is the length of an uncompressed P-256 point
	// (0x04 || X || Y).
	PublicKeySizeBytes = 65
)

// ECDHPrivateKey represents a local static ECDH private key usable to derive
// a Session with a remote peer, and to produce offline Schnorr signatures
// using the same key material.
type ECDHPrivateKey interface {
	// Exchange performs ECDH with a peer's uncompressed public key and
	// derives a Session from the result.
	Exchange(remotePublicBytes []byte) (Session, error)
	// PublicBytes returns this key's uncompressed public point.
	PublicBytes() []byte
	// SchnorrSignature signs message using Schnorr/P-256, for offline/fleet-
	// wide commands that don't have an interactive session to rely on.
	SchnorrSignature(message []byte) ([]byte, error)
}

var p256 = elliptic.P256()

// NistP256Key is the concrete ECDHPrivateKey implementation used throughout
// this module.
type NistP256Key struct {
	scalar    *big.Int
	publicKey []byte // cached uncompressed point, computed lazily
}

// GeneratePrivateKey draws a new private key from random, resampling until
// the scalar lands in [1, n-1]. random is normally crypto/rand.Reader; tests
// may substitute a deterministic source.
func GeneratePrivateKey(random io.Reader) (*NistP256Key, error) {
	n := p256.Params().N
	nNat := new(saferith.Nat).SetBig(n, n.BitLen())
	one := new(saferith.Nat).SetUint64(1)

	for attempt := 0; attempt < 16; attempt++ {
		buf := make([]byte, PrivateKeySizeBytes)
		if _, err := io.ReadFull(random, buf); err != nil {
			return nil, newError(errCodeCrypto, "csprng read failed: "+err.Error())
		}
		candidate := new(big.Int).SetBytes(buf)
		if candidate.Sign() == 0 || candidate.Cmp(n) >= 0 {
			continue
		}
		// Defense in depth: confirm the scalar is in [1, n-1] using
		// saferith's constant-time representation as well, so a subtly
		// wrong big.Int comparison above isn't the only thing standing
		// between us and an out-of-range scalar.
		candidateNat := new(saferith.Nat).SetBig(candidate, candidate.BitLen())
		gtN, eqN, _ := candidateNat.Cmp(nNat)
		_, _, ltOne := candidateNat.Cmp(one)
		if gtN == 1 || eqN == 1 || ltOne == 1 {
			continue
		}
		return &NistP256Key{scalar: candidate}, nil
	}
	return nil, ErrCSPRNGFailure
}

// UnmarshalECDHPrivateKey loads a private key from a raw 32-byte big-endian
// scalar. It rejects the scalar if it is zero or not less than the curve
// order.
func UnmarshalECDHPrivateKey(raw []byte) (*NistP256Key, error) {
	if len(raw) != PrivateKeySizeBytes {
		return nil, ErrInvalidPrivateKey
	}
	scalar := new(big.Int).SetBytes(raw)
	n := p256.Params().N
	if scalar.Sign() == 0 || scalar.Cmp(n) >= 0 {
		return nil, ErrInvalidPrivateKey
	}
	return &NistP256Key{scalar: scalar}, nil
}

// Bytes returns the raw 32-byte big-endian scalar. Callers that persist this
// value are responsible for protecting it; this package never writes it to
// disk or logs itself.
func (k *NistP256Key) Bytes() []byte {
	b := make([]byte, PrivateKeySizeBytes)
	k.scalar.FillBytes(b)
	return b
}

// PublicBytes returns (and caches) the uncompressed public point for this
// key.
func (k *NistP256Key) PublicBytes() []byte {
	if k.publicKey == nil {
		x, y := p256.ScalarBaseMult(k.scalar.Bytes())
		k.publicKey = elliptic.Marshal(p256, x, y)
	}
	return append([]byte(nil), k.publicKey...)
}

// Exchange computes ECDH(k, remotePublicBytes) and derives a Session from
// the resulting shared x-coordinate.
func (k *NistP256Key) Exchange(remotePublicBytes []byte) (Session, error) {
	x, y := elliptic.Unmarshal(p256, remotePublicBytes)
	if x == nil {
		return nil, ErrInvalidPublicKey
	}
	sharedX, _ := p256.ScalarMult(x, y, k.scalar.Bytes())
	shared := make([]byte, (p256.Params().BitSize+7)/8)
	sharedX.FillBytes(shared)
	return newSession(shared, k.PublicBytes()), nil
}

// SchnorrSignature signs message with a Schnorr/P-256 signature over this
// key, suitable for a command that must remain verifiable without an
// interactive ECDH session (e.g. a fleet-wide command signed once and
// delivered to an offline vehicle later).
func (k *NistP256Key) SchnorrSignature(message []byte) ([]byte, error) {
	return schnorr.Sign(rand.Reader, k.scalar, k.PublicBytes(), message)
}
