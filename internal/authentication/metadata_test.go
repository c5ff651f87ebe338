package authentication

import (
	"bytes"
	"testing"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/signatures"
)

func TestMetadataAscendingOrderAccepted(t *testing.T) {
	m := newMetadata()
	if err := m.Add(signatures.TAG_SIGNATURE_TYPE, []byte{1}); err != nil {
		t.Fatalf("Add(SIGNATURE_TYPE): %v", err)
	}
	if err := m.Add(signatures.TAG_DOMAIN, []byte{2}); err != nil {
		t.Fatalf("Add(DOMAIN): %v", err)
	}
	if err := m.Add(signatures.TAG_COUNTER, []byte{3}); err != nil {
		t.Fatalf("Add(COUNTER): %v", err)
	}
}

func TestMetadataOutOfOrderRejected(t *testing.T) {
	m := newMetadata()
	if err := m.Add(signatures.TAG_COUNTER, []byte{1}); err != nil {
		t.Fatalf("Add(COUNTER): %v", err)
	}
	if err := m.Add(signatures.TAG_DOMAIN, []byte{2}); err != errOutOfOrderMetadata {
		t.Fatalf("Add(DOMAIN) after COUNTER: got %v, want errOutOfOrderMetadata", err)
	}
}

func TestMetadataRepeatedTagRejected(t *testing.T) {
	m := newMetadata()
	if err := m.Add(signatures.TAG_DOMAIN, []byte{1}); err != nil {
		t.Fatalf("first Add(DOMAIN): %v", err)
	}
	if err := m.Add(signatures.TAG_DOMAIN, []byte{2}); err != errOutOfOrderMetadata {
		t.Fatalf("repeated Add(DOMAIN): got %v, want errOutOfOrderMetadata", err)
	}
}

func TestMetadataUnsupportedTagRejected(t *testing.T) {
	m := newMetadata()
	if err := m.Add(signatures.TAG_END, []byte{1}); err != ErrUnsupportedMetadataTag {
		t.Fatalf("Add(TAG_END): got %v, want ErrUnsupportedMetadataTag", err)
	}
}

func TestMetadataFieldTooLongRejected(t *testing.T) {
	m := newMetadata()
	if err := m.Add(signatures.TAG_DOMAIN, make([]byte, 256)); err != ErrMetadataFieldTooLong {
		t.Fatalf("Add(256 bytes): got %v, want ErrMetadataFieldTooLong", err)
	}
}

func TestMetadataEmptyValueOmittedButOrderingFloorMoves(t *testing.T) {
	m := newMetadata()
	if err := m.Add(signatures.TAG_DOMAIN, nil); err != nil {
		t.Fatalf("Add(DOMAIN, nil): %v", err)
	}
	if m.Contains([]signatures.Tag{signatures.TAG_DOMAIN}) {
		t.Fatal("an empty value must not be recorded as present")
	}
	if err := m.Add(signatures.TAG_SIGNATURE_TYPE, []byte{1}); err != errOutOfOrderMetadata {
		t.Fatalf("Add(SIGNATURE_TYPE) after DOMAIN floor: got %v, want errOutOfOrderMetadata", err)
	}
}

func TestMetadataChecksumDeterministic(t *testing.T) {
	build := func() []byte {
		m := newMetadata()
		_ = m.Add(signatures.TAG_SIGNATURE_TYPE, []byte{5})
		_ = m.AddUint32(signatures.TAG_COUNTER, 42)
		return m.Checksum([]byte("payload"))
	}
	c1 := build()
	c2 := build()
	if !bytes.Equal(c1, c2) {
		t.Fatal("identical metadata items must produce identical checksums")
	}
}

func TestMetadataChecksumDiffersOnDifferentCounter(t *testing.T) {
	build := func(counter uint32) []byte {
		m := newMetadata()
		_ = m.AddUint32(signatures.TAG_COUNTER, counter)
		return m.Checksum(nil)
	}
	if bytes.Equal(build(1), build(2)) {
		t.Fatal("checksums for different counters must not collide")
	}
}
