// Package wireutil provides the small set of append/consume helpers shared by
// this module's hand-written protobuf-wire schemas (universalmessage,
// signatures, vcsec, carserver). There is no .proto source to run protoc
// against in this tree, so each schema package marshals and unmarshals
// directly against google.golang.org/protobuf/encoding/protowire; this file
// exists only to avoid repeating the same tag/varint/bytes bookkeeping in
// every Marshal/Unmarshal method.
package wireutil

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrTruncated is returned when a field's tag or value runs past the end of
// the buffer.
var ErrTruncated = fmt.Errorf("wireutil: truncated message")

// AppendVarintField appends a (tag, varint) pair, skipping the field entirely
// when v is zero, matching proto3's default-value-is-absent convention.
func AppendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendVarintFieldAlways appends a (tag, varint) pair unconditionally, for
// fields whose presence is tracked separately (e.g. a *uint32 in the Go
// struct) rather than by the proto3 zero-is-absent convention.
func AppendVarintFieldAlways(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBytesField appends a (tag, length, value) triple, skipping the field
// when v is empty.
func AppendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendStringField appends a (tag, length, value) triple for a string field.
func AppendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendMessageField appends a nested message, selecting the field purely by
// its presence (used to encode oneof members backed by otherwise-empty
// submessages, such as the twelve GetVehicleData selectors).
func AppendMessageField(b []byte, num protowire.Number, present bool, payload []byte) []byte {
	if !present {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// Tag consumes a field tag, returning the remaining bytes.
func Tag(b []byte) (num protowire.Number, typ protowire.Type, rest []byte, err error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return 0, 0, nil, ErrTruncated
	}
	return num, typ, b[n:], nil
}

// Varint consumes a varint-typed field value.
func Varint(b []byte) (v uint64, rest []byte, err error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, ErrTruncated
	}
	return v, b[n:], nil
}

// Bytes consumes a length-delimited field value. The returned slice aliases b.
func Bytes(b []byte) (v []byte, rest []byte, err error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, nil, ErrTruncated
	}
	return v, b[n:], nil
}

// Skip consumes and discards a field of unknown or uninteresting type,
// regardless of its wire type.
func Skip(num protowire.Number, typ protowire.Type, b []byte) (rest []byte, err error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return nil, ErrTruncated
	}
	return b[n:], nil
}
