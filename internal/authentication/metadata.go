package authentication

// Metadata serialization. Metadata items are appended in strictly ascending
// tag order and folded into a hash.Hash context as they're added, so the
// same code path can produce either a plain digest (used as AES-GCM
// associated data) or an HMAC (used to authenticate a vehicle's SessionInfo)
// depending on what hash.Hash the caller wraps. The serialization itself
// must be injective: no two distinct sets of metadata may collide on the
// same bytes, which is why every value is length-prefixed.

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"hash"

	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol/protobuf/signatures"
)

var (
	// errOutOfOrderMetadata indicates a programming error (as opposed to a
	// run-time error), so it isn't exported.
	errOutOfOrderMetadata = errors.New("metadata items must be added in strictly ascending tag order")

	// ErrMetadataFieldTooLong indicates a field is too long to be compatible
	// with the one-byte length prefix the serialization format uses.
	ErrMetadataFieldTooLong = errors.New("metadata fields can't be more than 255 bytes long")

	// ErrUnsupportedMetadataTag indicates a caller tried to add a tag this
	// implementation doesn't know how to canonicalize.
	ErrUnsupportedMetadataTag = errors.New("unsupported metadata tag")
)

var supportedTags = map[signatures.Tag]bool{
	signatures.TAG_SIGNATURE_TYPE:  true,
	signatures.TAG_DOMAIN:          true,
	signatures.TAG_PERSONALIZATION: true,
	signatures.TAG_EPOCH:           true,
	signatures.TAG_EXPIRES_AT:      true,
	signatures.TAG_COUNTER:         true,
	signatures.TAG_CHALLENGE:       true,
	signatures.TAG_FLAGS:           true,
	signatures.TAG_REQUEST_HASH:    true,
	signatures.TAG_FAULT:           true,
}

type metadata struct {
	context hash.Hash
	fields  map[signatures.Tag]bool
	last    signatures.Tag
	started bool
}

// newMetadata returns a metadata builder whose Checksum is a plain SHA-256
// digest, suitable for use as AES-GCM associated data.
func newMetadata() *metadata {
	return newMetadataHash(sha256.New())
}

// newMetadataHash returns a metadata builder rooted in an arbitrary
// hash.Hash, such as an hmac.New result, suitable for authenticating a
// vehicle-supplied SessionInfo.
func newMetadataHash(context hash.Hash) *metadata {
	return &metadata{
		context: context,
		fields:  make(map[signatures.Tag]bool),
	}
}

// Add appends a (tag, value) pair. Empty values are omitted entirely, matching
// the wire format's "absent field" convention; the tag is still recorded as
// the new ordering floor so a later Add of a smaller tag is still rejected.
func (m *metadata) Add(tag signatures.Tag, value []byte) error {
	if !supportedTags[tag] {
		return ErrUnsupportedMetadataTag
	}
	if m.started && tag <= m.last {
		return errOutOfOrderMetadata
	}
	m.last = tag
	m.started = true
	if len(value) == 0 {
		return nil
	}
	if len(value) > 255 {
		return ErrMetadataFieldTooLong
	}
	m.context.Write([]byte{byte(tag)})
	m.context.Write([]byte{byte(len(value))})
	m.context.Write(value)
	m.fields[tag] = true
	return nil
}

// AddUint32 appends a 4-byte big-endian encoded uint32 value.
func (m *metadata) AddUint32(tag signatures.Tag, value uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	return m.Add(tag, buf[:])
}

// Contains reports whether every tag in tags was added with a non-empty
// value.
func (m *metadata) Contains(tags []signatures.Tag) bool {
	for _, tag := range tags {
		if !m.fields[tag] {
			return false
		}
	}
	return true
}

// Checksum appends the TAG_END sentinel and message, then returns the
// underlying hash's sum. message may be nil, in which case the checksum
// covers only the metadata items themselves (the AES-GCM-AAD use case).
func (m *metadata) Checksum(message []byte) []byte {
	m.context.Write([]byte{byte(signatures.TAG_END)})
	m.context.Write(message)
	return m.context.Sum(nil)
}
