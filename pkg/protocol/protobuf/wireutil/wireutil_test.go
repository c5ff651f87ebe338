package wireutil

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestAppendVarintFieldOmitsZero(t *testing.T) {
	if b := AppendVarintField(nil, 1, 0); b != nil {
		t.Fatalf("expected nil for zero value, got %v", b)
	}
	b := AppendVarintField(nil, 1, 5)
	num, typ, rest, err := Tag(b)
	if err != nil || num != 1 || typ != protowire.VarintType {
		t.Fatalf("got num=%d typ=%v err=%v", num, typ, err)
	}
	v, rest, err := Varint(rest)
	if err != nil || v != 5 || len(rest) != 0 {
		t.Fatalf("got v=%d rest=%v err=%v", v, rest, err)
	}
}

func TestAppendBytesFieldOmitsEmpty(t *testing.T) {
	if b := AppendBytesField(nil, 1, nil); b != nil {
		t.Fatalf("expected nil for empty value, got %v", b)
	}
	b := AppendBytesField(nil, 2, []byte("hello"))
	num, typ, rest, err := Tag(b)
	if err != nil || num != 2 || typ != protowire.BytesType {
		t.Fatalf("got num=%d typ=%v err=%v", num, typ, err)
	}
	v, rest, err := Bytes(rest)
	if err != nil || !bytes.Equal(v, []byte("hello")) || len(rest) != 0 {
		t.Fatalf("got v=%q rest=%v err=%v", v, rest, err)
	}
}

func TestAppendStringFieldOmitsEmpty(t *testing.T) {
	if b := AppendStringField(nil, 1, ""); b != nil {
		t.Fatalf("expected nil for empty string, got %v", b)
	}
	b := AppendStringField(nil, 3, "vin")
	_, _, rest, err := Tag(b)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	v, _, err := Bytes(rest)
	if err != nil || string(v) != "vin" {
		t.Fatalf("got v=%q err=%v", v, err)
	}
}

func TestAppendMessageFieldHonorsPresence(t *testing.T) {
	if b := AppendMessageField(nil, 1, false, []byte("ignored")); b != nil {
		t.Fatalf("expected nil when not present, got %v", b)
	}
	b := AppendMessageField(nil, 4, true, nil)
	if b == nil {
		t.Fatal("expected a tag even for an empty but present submessage")
	}
	num, typ, rest, err := Tag(b)
	if err != nil || num != 4 || typ != protowire.BytesType {
		t.Fatalf("got num=%d typ=%v err=%v", num, typ, err)
	}
	v, _, err := Bytes(rest)
	if err != nil || len(v) != 0 {
		t.Fatalf("got v=%v err=%v", v, err)
	}
}

func TestSkipAdvancesPastUnknownField(t *testing.T) {
	var b []byte
	b = AppendVarintField(b, 1, 9)
	b = AppendBytesField(b, 2, []byte("payload"))
	num, typ, rest, err := Tag(b)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if num != 1 {
		t.Fatalf("got num=%d", num)
	}
	rest, err = Skip(num, typ, rest)
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	num, typ, rest, err = Tag(rest)
	if err != nil || num != 2 || typ != protowire.BytesType {
		t.Fatalf("got num=%d typ=%v err=%v", num, typ, err)
	}
}

func TestTruncatedInputReturnsErrTruncated(t *testing.T) {
	if _, _, _, err := Tag([]byte{0xFF}); err != ErrTruncated {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
	if _, _, err := Varint([]byte{0xFF, 0xFF}); err != ErrTruncated {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
	if _, _, err := Bytes([]byte{0x05, 0x01}); err != ErrTruncated {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}
