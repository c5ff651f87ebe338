// Package schnorr implements Schnorr signatures over NIST P-256 with
// SHA-256, for messages a vehicle can verify without an interactive ECDH
// session — the fleet-wide, possibly-offline command case.
//
// Some commands need to reach vehicles that are offline at send time. A
// scheme for that needs:
//
//  1. Messages signed once for an entire fleet, not once per vehicle.
//  2. No extra key pairing per vehicle beyond what ECDH already requires.
//  3. Safety to use alongside the existing ECDH/P-256 session protocol.
//
// Requirement 1 rules out deriving a MAC key via ECDH (that's inherently
// pairwise). Requirement 2 rules out bootstrapping the ECDH key to enroll a
// separate verification key. Requirement 3 makes reusing the ECDH/P-256 key
// pair as an ECDSA/P-256 key inadvisable, since interactions between the two
// schemes are hard to analyze. Schnorr/P-256 on the existing key pair
// satisfies all three, provided the hash inputs are domain separated from
// the ECDH KDF — which uses SHA-1, while this scheme uses SHA-256, so the
// two are free of interaction in the random oracle model.
package schnorr

import (
	"crypto/elliptic"
	"crypto/sha256"
	"errors"
	"io"
	"math/big"
)

// ScalarLength is the byte length of a P-256 scalar.
const ScalarLength = 32

var p256 = elliptic.P256()

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPublicKey  = errors.New("invalid public key")
)

func writeLengthValue(w io.Writer, buf []byte) {
	v := uint32(len(buf))
	w.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	w.Write(buf)
}

func challenge(publicNonce, senderPublicBytes, message []byte) []byte {
	h := sha256.New()
	writeLengthValue(h, elliptic.Marshal(p256, p256.Params().Gx, p256.Params().Gy))
	writeLengthValue(h, publicNonce)
	writeLengthValue(h, senderPublicBytes)
	writeLengthValue(h, message)
	return h.Sum(nil)
}

// Sign produces a Schnorr/P-256 signature over message using the private
// scalar priv (whose public point is pub, in uncompressed form). random
// supplies the per-signature nonce; crypto/rand.Reader is the normal choice.
func Sign(random io.Reader, priv *big.Int, pub, message []byte) ([]byte, error) {
	n := p256.Params().N
	var k *big.Int
	var rX, rY *big.Int
	for {
		buf := make([]byte, ScalarLength)
		if _, err := io.ReadFull(random, buf); err != nil {
			return nil, err
		}
		k = new(big.Int).SetBytes(buf)
		if k.Sign() == 0 || k.Cmp(n) >= 0 {
			continue
		}
		rX, rY = p256.ScalarBaseMult(k.Bytes())
		break
	}

	rXBytes := make([]byte, ScalarLength)
	rYBytes := make([]byte, ScalarLength)
	rX.FillBytes(rXBytes)
	rY.FillBytes(rYBytes)

	publicNonce := append([]byte{0x04}, append(append([]byte(nil), rXBytes...), rYBytes...)...)
	c := new(big.Int).SetBytes(challenge(publicNonce, pub, message))
	c.Mod(c, n)

	// r = k - c*priv (mod n)
	r := new(big.Int).Mul(c, priv)
	r.Sub(k, r)
	r.Mod(r, n)
	rBytes := make([]byte, ScalarLength)
	r.FillBytes(rBytes)

	sig := make([]byte, 0, 3*ScalarLength)
	sig = append(sig, rXBytes...)
	sig = append(sig, rYBytes...)
	sig = append(sig, rBytes...)
	return sig, nil
}

// Verify checks that signature is a valid Schnorr/P-256 signature over
// message under publicKeyBytes.
func Verify(publicKeyBytes, message, signature []byte) error {
	pX, pY := elliptic.Unmarshal(p256, publicKeyBytes)
	if pX == nil {
		return ErrInvalidPublicKey
	}
	if len(signature) != 3*ScalarLength {
		return ErrInvalidSignature
	}
	var vX, vY big.Int
	vX.SetBytes(signature[0:ScalarLength])
	vY.SetBytes(signature[ScalarLength : 2*ScalarLength])
	r := signature[2*ScalarLength:]
	c := challenge(append([]byte{0x04}, signature[:2*ScalarLength]...), publicKeyBytes, message)
	cX, cY := p256.ScalarMult(pX, pY, c)
	tempX, tempY := p256.ScalarBaseMult(r)
	sumX, sumY := p256.Add(tempX, tempY, cX, cY)
	if sumX.Cmp(&vX) == 0 && sumY.Cmp(&vY) == 0 {
		return nil
	}
	return ErrInvalidSignature
}
