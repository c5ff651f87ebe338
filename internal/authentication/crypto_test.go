package authentication

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func mustSession(t *testing.T) (alice, bob Session) {
	t.Helper()
	a, err := GeneratePrivateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GeneratePrivateKey(alice): %v", err)
	}
	b, err := GeneratePrivateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GeneratePrivateKey(bob): %v", err)
	}
	alice, err = a.Exchange(b.PublicBytes())
	if err != nil {
		t.Fatalf("alice.Exchange: %v", err)
	}
	bob, err = b.Exchange(a.PublicBytes())
	if err != nil {
		t.Fatalf("bob.Exchange: %v", err)
	}
	return alice, bob
}

func TestSessionEncryptDecryptRoundTrip(t *testing.T) {
	alice, bob := mustSession(t)

	plaintext := []byte("lock the doors")
	aad := []byte("associated metadata")

	nonce, ciphertext, tag, err := alice.Encrypt(plaintext, aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := bob.Decrypt(nonce, ciphertext, aad, tag)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestSessionDecryptFailsOnTamperedAAD(t *testing.T) {
	alice, bob := mustSession(t)

	nonce, ciphertext, tag, err := alice.Encrypt([]byte("honk"), []byte("original aad"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := bob.Decrypt(nonce, ciphertext, []byte("tampered aad"), tag); err == nil {
		t.Fatal("expected Decrypt to fail with tampered associated data")
	}
}

func TestSessionDecryptFailsOnTamperedCiphertext(t *testing.T) {
	alice, bob := mustSession(t)

	nonce, ciphertext, tag, err := alice.Encrypt([]byte("honk"), []byte("aad"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xFF
	if _, err := bob.Decrypt(nonce, tampered, []byte("aad"), tag); err == nil {
		t.Fatal("expected Decrypt to fail with tampered ciphertext")
	}
}

func TestSessionInfoHMACMatchesBothSides(t *testing.T) {
	alice, bob := mustSession(t)

	id := []byte("5YJSA1E2XMF000001")
	challenge := []byte("a-16-byte-uuid!!")
	encodedInfo := []byte("session info bytes")

	tagA, err := alice.SessionInfoHMAC(id, challenge, encodedInfo)
	if err != nil {
		t.Fatalf("alice SessionInfoHMAC: %v", err)
	}
	tagB, err := bob.SessionInfoHMAC(id, challenge, encodedInfo)
	if err != nil {
		t.Fatalf("bob SessionInfoHMAC: %v", err)
	}
	if !bytes.Equal(tagA, tagB) {
		t.Fatal("both sides of the same ECDH exchange must derive the same SessionInfo HMAC")
	}
}

func TestSessionInfoHMACDiffersWithChallenge(t *testing.T) {
	alice, _ := mustSession(t)

	tag1, err := alice.SessionInfoHMAC([]byte("vin"), []byte("uuid-one"), []byte("info"))
	if err != nil {
		t.Fatalf("SessionInfoHMAC: %v", err)
	}
	tag2, err := alice.SessionInfoHMAC([]byte("vin"), []byte("uuid-two"), []byte("info"))
	if err != nil {
		t.Fatalf("SessionInfoHMAC: %v", err)
	}
	if bytes.Equal(tag1, tag2) {
		t.Fatal("HMAC must differ when the challenge differs")
	}
}

func TestVerifyHMAC(t *testing.T) {
	key := []byte("a shared secret key")
	msg := []byte("authenticate me")
	tag := HMACSHA256(key, msg)

	if !VerifyHMAC(key, msg, tag) {
		t.Fatal("VerifyHMAC should accept a correctly computed tag")
	}
	tampered := append([]byte(nil), tag...)
	tampered[0] ^= 0x01
	if VerifyHMAC(key, msg, tampered) {
		t.Fatal("VerifyHMAC should reject a tampered tag")
	}
}

func TestRandomBytesLengthAndVariance(t *testing.T) {
	a, err := RandomBytes(16)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("got %d bytes, want 16", len(a))
	}
	b, err := RandomBytes(16)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two independent RandomBytes calls produced identical output")
	}
}
