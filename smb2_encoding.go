package smbauth

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// SMB2 and NTLM use little-endian byte order for all multi-byte values
var le = binary.LittleEndian

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeStringToUTF16LE encodes a Go string to UTF-16LE bytes (wire format)
func EncodeStringToUTF16LE(s string) []byte {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return b
}

// DecodeUTF16LEToString decodes UTF-16LE bytes to a Go string
func DecodeUTF16LEToString(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	// Handle odd-length data by truncating
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	// Remove null terminator if present
	if n := len(data); n >= 2 && data[n-2] == 0 && data[n-1] == 0 {
		data = data[:n-2]
	}
	s, err := utf16le.NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return string(s)
}

// ByteReader provides convenient methods for reading binary data
type ByteReader struct {
	data []byte
	pos  int
}

// NewByteReader creates a new ByteReader
func NewByteReader(data []byte) *ByteReader {
	return &ByteReader{data: data, pos: 0}
}

// Remaining returns the number of unread bytes
func (r *ByteReader) Remaining() int {
	return len(r.data) - r.pos
}

// Skip advances the position by n bytes
func (r *ByteReader) Skip(n int) {
	r.pos += n
}

// ReadBytes reads n bytes and advances position
func (r *ByteReader) ReadBytes(n int) []byte {
	if r.pos+n > len(r.data) {
		return nil
	}
	result := r.data[r.pos : r.pos+n]
	r.pos += n
	return result
}

// ReadUint16 reads a little-endian uint16
func (r *ByteReader) ReadUint16() uint16 {
	if r.pos+2 > len(r.data) {
		return 0
	}
	v := le.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

// ReadUint32 reads a little-endian uint32
func (r *ByteReader) ReadUint32() uint32 {
	if r.pos+4 > len(r.data) {
		return 0
	}
	v := le.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

// ReadUint64 reads a little-endian uint64
func (r *ByteReader) ReadUint64() uint64 {
	if r.pos+8 > len(r.data) {
		return 0
	}
	v := le.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// ReadVarField reads an NTLM length/max-length/offset triple
func (r *ByteReader) ReadVarField() VarField {
	return VarField{
		Len:    r.ReadUint16(),
		MaxLen: r.ReadUint16(),
		Offset: r.ReadUint32(),
	}
}

// ByteWriter provides convenient methods for writing binary data
type ByteWriter struct {
	data []byte
}

// NewByteWriter creates a new ByteWriter with initial capacity
func NewByteWriter(capacity int) *ByteWriter {
	return &ByteWriter{data: make([]byte, 0, capacity)}
}

// Bytes returns the written bytes
func (w *ByteWriter) Bytes() []byte {
	return w.data
}

// Len returns the number of written bytes
func (w *ByteWriter) Len() int {
	return len(w.data)
}

// WriteBytes appends raw bytes
func (w *ByteWriter) WriteBytes(b []byte) {
	w.data = append(w.data, b...)
}

// WriteUint16 appends a little-endian uint16
func (w *ByteWriter) WriteUint16(v uint16) {
	w.data = le.AppendUint16(w.data, v)
}

// WriteUint32 appends a little-endian uint32
func (w *ByteWriter) WriteUint32(v uint32) {
	w.data = le.AppendUint32(w.data, v)
}

// WriteUint64 appends a little-endian uint64
func (w *ByteWriter) WriteUint64(v uint64) {
	w.data = le.AppendUint64(w.data, v)
}

// WriteVarField appends an NTLM length/max-length/offset triple
func (w *ByteWriter) WriteVarField(f VarField) {
	w.WriteUint16(f.Len)
	w.WriteUint16(f.MaxLen)
	w.WriteUint32(f.Offset)
}

// WriteZeros appends n zero bytes
func (w *ByteWriter) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		w.data = append(w.data, 0)
	}
}

