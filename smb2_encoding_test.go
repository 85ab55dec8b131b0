package smbauth

import (
	"bytes"
	"testing"
)

func TestByteWriterReader_RoundTrip(t *testing.T) {
	w := NewByteWriter(32)
	w.WriteUint16(0x0102)
	w.WriteUint32(0x03040506)
	w.WriteUint64(133537248000000000)
	w.WriteVarField(VarField{Len: 4, MaxLen: 4, Offset: 88})
	w.WriteZeros(2)
	w.WriteBytes([]byte("ab"))

	if w.Len() != 2+4+8+8+2+2 {
		t.Fatalf("Len() = %d, want 26", w.Len())
	}

	r := NewByteReader(w.Bytes())
	if got := r.ReadUint16(); got != 0x0102 {
		t.Errorf("ReadUint16() = 0x%X, want 0x0102", got)
	}
	if got := r.ReadUint32(); got != 0x03040506 {
		t.Errorf("ReadUint32() = 0x%X, want 0x03040506", got)
	}
	if got := r.ReadUint64(); got != 133537248000000000 {
		t.Errorf("ReadUint64() = %d, want 133537248000000000", got)
	}
	if got := r.ReadVarField(); got != (VarField{Len: 4, MaxLen: 4, Offset: 88}) {
		t.Errorf("ReadVarField() = %+v", got)
	}
	r.Skip(2)
	if got := r.ReadBytes(2); !bytes.Equal(got, []byte("ab")) {
		t.Errorf("ReadBytes(2) = %q, want %q", got, "ab")
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestByteReader_Short(t *testing.T) {
	r := NewByteReader([]byte{1, 2, 3, 4, 5, 6, 7})

	if got := r.ReadUint64(); got != 0 {
		t.Errorf("ReadUint64() on 7 bytes = %d, want 0", got)
	}
	if r.Remaining() != 7 {
		t.Errorf("Remaining() = %d, want 7 after a short read", r.Remaining())
	}
	if got := r.ReadBytes(8); got != nil {
		t.Errorf("ReadBytes(8) = % X, want nil", got)
	}
	if got := r.ReadUint32(); got != 0x04030201 {
		t.Errorf("ReadUint32() = 0x%X, want 0x04030201", got)
	}
}
