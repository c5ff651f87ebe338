package authentication

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // dictated by vehicle-side key derivation, see SharedKeySizeBytes doc.
	"crypto/sha256"
	"crypto/subtle"
	"hash"
	"io"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/signatures"
)

const (
	labelSessionInfo = "session info"
	labelMessageAuth = "authenticated command"
)

// SharedKeySizeBytes is the length, in bytes, of the AES key a Session
// derives from an ECDH exchange. AES-128, not AES-256, because the vehicle
// truncates a SHA-1 digest of the shared secret; this is an interoperability
// requirement, not a security recommendation, and must not be "fixed" by
// swapping in a wider KDF.
const SharedKeySizeBytes = 16

// Session lets a caller encrypt, decrypt, and authenticate data using a
// shared secret derived from an ECDH exchange with a vehicle.
type Session interface {
	// SessionInfoHMAC returns the HMAC tag that should accompany a
	// SessionInfo encodedInfo, given verifier id (typically the VIN) and a
	// caller-supplied anti-replay challenge (typically a request UUID).
	SessionInfoHMAC(id, challenge, encodedInfo []byte) ([]byte, error)
	// Encrypt encrypts plaintext under a fresh random nonce, authenticating
	// associatedData alongside it. The returned ciphertext does not include
	// the 16-byte GCM tag; the tag is returned separately, the form Decrypt
	// takes it in.
	Encrypt(plaintext, associatedData []byte) (nonce, ciphertext, tag []byte, err error)
	// Decrypt authenticates ciphertext and associatedData against tag, then
	// decrypts and returns the plaintext.
	Decrypt(nonce, ciphertext, associatedData, tag []byte) (plaintext []byte, err error)
	// LocalPublicBytes returns this side's uncompressed ECDH public key.
	LocalPublicBytes() []byte
	// NewHMAC returns a hash.Hash rooted in the shared secret, domain
	// separated by label, usable as a lightweight KDF.
	NewHMAC(label string) hash.Hash
}

type p256Session struct {
	aesKey           [SharedKeySizeBytes]byte
	sessionInfoKey   [sha256.Size]byte
	localPublicBytes []byte
}

func newSession(sharedX []byte, localPublicBytes []byte) *p256Session {
	s := &p256Session{localPublicBytes: append([]byte(nil), localPublicBytes...)}

	digest := sha1.Sum(sharedX) //nolint:gosec // see SharedKeySizeBytes doc.
	copy(s.aesKey[:], digest[:SharedKeySizeBytes])

	mac := hmacSHA256(s.aesKey[:], []byte(labelSessionInfo))
	copy(s.sessionInfoKey[:], mac)
	return s
}

func (s *p256Session) SessionInfoHMAC(id, challenge, encodedInfo []byte) ([]byte, error) {
	meta := newMetadataHash(hmacNew(s.sessionInfoKey[:]))
	if err := meta.Add(signatures.TAG_SIGNATURE_TYPE, []byte{byte(signatures.SIGNATURE_TYPE_HMAC)}); err != nil {
		return nil, err
	}
	if err := meta.Add(signatures.TAG_PERSONALIZATION, id); err != nil {
		return nil, err
	}
	if err := meta.Add(signatures.TAG_CHALLENGE, challenge); err != nil {
		return nil, err
	}
	return meta.Checksum(encodedInfo), nil
}

func (s *p256Session) Encrypt(plaintext, associatedData []byte) (nonce, ciphertext, tag []byte, err error) {
	nonce, err = RandomBytes(gcmNonceSize)
	if err != nil {
		return nil, nil, nil, err
	}
	ctWithTag, err := aesGCMEncrypt(s.aesKey[:], nonce, plaintext, associatedData)
	if err != nil {
		return nil, nil, nil, err
	}
	split := len(ctWithTag) - gcmTagSize
	return nonce, ctWithTag[:split], ctWithTag[split:], nil
}

func (s *p256Session) Decrypt(nonce, ciphertext, associatedData, tag []byte) ([]byte, error) {
	ctWithTag := append(append([]byte(nil), ciphertext...), tag...)
	return aesGCMDecrypt(s.aesKey[:], nonce, ctWithTag, associatedData)
}

func (s *p256Session) LocalPublicBytes() []byte {
	return append([]byte(nil), s.localPublicBytes...)
}

func (s *p256Session) NewHMAC(label string) hash.Hash {
	key := hmacSHA256(s.aesKey[:], []byte(labelMessageAuth+":"+label))
	return hmacNew(key)
}

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// aesGCMEncrypt returns ciphertext with the 16-byte authentication tag
// appended, as specified by crypto/cipher.AEAD.Seal.
func aesGCMEncrypt(key, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(key) != SharedKeySizeBytes {
		return nil, newError(errCodeCrypto, "aes-gcm key must be 16 bytes")
	}
	if len(nonce) != gcmNonceSize {
		return nil, newError(errCodeCrypto, "aes-gcm nonce must be 12 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newError(errCodeCrypto, err.Error())
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, newError(errCodeCrypto, err.Error())
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// aesGCMDecrypt authenticates and decrypts ciphertextWithTag, which must end
// with the 16-byte GCM tag.
func aesGCMDecrypt(key, nonce, ciphertextWithTag, aad []byte) ([]byte, error) {
	if len(key) != SharedKeySizeBytes {
		return nil, newError(errCodeCrypto, "aes-gcm key must be 16 bytes")
	}
	if len(nonce) != gcmNonceSize {
		return nil, newError(errCodeCrypto, "aes-gcm nonce must be 12 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, newError(errCodeCrypto, err.Error())
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, newError(errCodeCrypto, err.Error())
	}
	plaintext, err := aead.Open(nil, nonce, ciphertextWithTag, aad)
	if err != nil {
		return nil, &InvalidSignatureError{}
	}
	return plaintext, nil
}

func hmacNew(key []byte) hash.Hash {
	return hmac.New(sha256.New, key)
}

// HMACSHA256 computes an HMAC-SHA256 tag over msg using key.
func HMACSHA256(key, msg []byte) []byte {
	return hmacSHA256(key, msg)
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmacNew(key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// VerifyHMAC reports whether expected matches the HMAC-SHA256 of msg under
// key, using a constant-time comparison.
func VerifyHMAC(key, msg, expected []byte) bool {
	computed := hmacSHA256(key, msg)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// SHA1Sum computes a SHA-1 digest. The only sanctioned use in this package
// is the truncated-SHA1 AES key derivation the vehicle protocol requires;
// do not use this for anything claiming a security property of its own.
func SHA1Sum(msg []byte) []byte {
	sum := sha1.Sum(msg) //nolint:gosec
	return sum[:]
}

// SHA256Sum computes a SHA-256 digest.
func SHA256Sum(msg []byte) []byte {
	sum := sha256.Sum256(msg)
	return sum[:]
}

// RandomBytes returns n cryptographically random bytes read from the
// platform CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, newError(errCodeCrypto, "csprng read failed: "+err.Error())
	}
	return b, nil
}
