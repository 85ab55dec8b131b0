package smbauth

import "fmt"

// Tag class bits
const (
	ClassApplication     byte = 0x40
	ClassContextSpecific byte = 0x80
)

// Constructed is the tag bit marking a value whose payload is itself DER.
const Constructed byte = 0x20

// Universal tags used by the security blobs
const (
	TagOctetString   byte = 0x04
	TagOid           byte = 0x06
	TagGeneralString byte = 0x1B
	TagSequence      byte = 0x30 // universal 16, constructed
)

// MaxShortLength is the largest payload a single length byte can describe.
const MaxShortLength = 127

// DefaultMaxBufferSize bounds the growth of an owned Buffer.
const DefaultMaxBufferSize = 64 * 1024

// Codec is the read/write surface shared by owned buffers and views.
type Codec interface {
	Len() int
	Offset() int
	SetOffset(off int) error
	Rewind()
	Bytes() []byte

	PeekTag() (byte, error)
	ExtractTLV() (tag byte, length int, err error)
	GetConstructed() (byte, *View, error)
	ExpectConstructed(tag byte) (*View, error)
	GetSequence() (*View, error)
	GetOid() (string, error)
	GetGeneralString() (string, error)
	GetOpaque() (tag byte, payload []byte, err error)
	NextValue() (Value, error)

	AddOpaque(tag byte, payload []byte) error
	AddConstructed(child Codec, tag byte) error
	AddSequence(child Codec) error
	AddGeneralString(text string) error
	AddOid(oid string) error
	AddEncodedOid(oid string) error
}

var (
	_ Codec = (*Buffer)(nil)
	_ Codec = (*View)(nil)
)

// reserver makes room for n more bytes at the cursor.
type reserver interface {
	reserve(c *cursor, n int) error
}

// cursor holds the bytes and position shared by both buffer variants.
// len(data) is the buffer length; next is always within [0, len(data)].
type cursor struct {
	data  []byte
	next  int
	space reserver
}

// Buffer is an owned, growable DER buffer. Its length is the highest
// offset ever written.
type Buffer struct {
	cursor
}

// NewBuffer returns an empty buffer limited to DefaultMaxBufferSize.
func NewBuffer() *Buffer {
	return NewBufferSize(DefaultMaxBufferSize)
}

// NewBufferSize returns an empty buffer that fails with ErrAllocationFailure
// once it would need more than limit bytes.
func NewBufferSize(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultMaxBufferSize
	}
	return &Buffer{cursor{space: growable{limit: limit}}}
}

// Cap returns the current capacity of the buffer.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// View is a fixed-size window over a private copy of some bytes. Views never
// grow, so writes past the end fail with ErrBufferOverflow.
type View struct {
	cursor
}

// NewView returns a view over a copy of p.
func NewView(p []byte) *View {
	data := make([]byte, len(p))
	copy(data, p)
	return &View{cursor{data: data, space: fixed{}}}
}

// growable doubles capacity, starting at 1, up to limit.
type growable struct {
	limit int
}

func (g growable) reserve(c *cursor, n int) error {
	need := c.next + n
	if need <= len(c.data) {
		return nil
	}
	if need <= cap(c.data) {
		c.data = c.data[:need]
		return nil
	}
	if need > g.limit {
		return fmt.Errorf("need %d bytes, limit %d: %w", need, g.limit, ErrAllocationFailure)
	}

	size := cap(c.data)
	for size < need {
		if size == 0 {
			size = 1
		} else {
			size *= 2
		}
	}
	if size > g.limit {
		size = g.limit
	}

	data := make([]byte, need, size)
	copy(data, c.data)
	c.data = data
	return nil
}

type fixed struct{}

func (fixed) reserve(c *cursor, n int) error {
	if c.next+n > len(c.data) {
		return fmt.Errorf("need %d bytes, %d left: %w", n, len(c.data)-c.next, ErrBufferOverflow)
	}
	return nil
}

// Len returns the buffer length.
func (c *cursor) Len() int {
	return len(c.data)
}

// Offset returns the cursor position.
func (c *cursor) Offset() int {
	return c.next
}

// SetOffset moves the cursor. Offsets past the end fail with ErrTruncated.
func (c *cursor) SetOffset(off int) error {
	if off < 0 || off > len(c.data) {
		return decodeError("set offset", off, ErrTruncated)
	}
	c.next = off
	return nil
}

// Rewind moves the cursor back to the start of the buffer.
func (c *cursor) Rewind() {
	c.next = 0
}

// Bytes returns the bytes before the cursor, which after a sequence of Add
// calls is everything written. The slice aliases the buffer.
func (c *cursor) Bytes() []byte {
	return c.data[:c.next:c.next]
}

// PeekTag returns the next tag without consuming it.
func (c *cursor) PeekTag() (byte, error) {
	if c.next == len(c.data) {
		return 0, decodeError("peek tag", c.next, ErrEndOfData)
	}
	if c.next+2 > len(c.data) {
		return 0, decodeError("peek tag", c.next, ErrTruncated)
	}
	return c.data[c.next], nil
}

// ExtractTLV reads a tag and length and leaves the cursor on the payload.
// On failure the cursor does not move.
func (c *cursor) ExtractTLV() (byte, int, error) {
	tag, err := c.PeekTag()
	if err != nil {
		return 0, 0, err
	}

	lengthOctet := c.data[c.next+1]
	if lengthOctet&0x80 != 0 {
		return 0, 0, decodeError("extract", c.next, ErrUnsupportedLongLength)
	}

	length := int(lengthOctet)
	if c.next+2+length > len(c.data) {
		return 0, 0, decodeError("extract", c.next,
			fmt.Errorf("object length %d, only %d left: %w", length, len(c.data)-c.next-2, ErrTruncated))
	}

	c.next += 2
	return tag, length, nil
}

// payload consumes length bytes at the cursor. The result aliases the buffer
// and cannot be appended to.
func (c *cursor) payload(length int) []byte {
	p := c.data[c.next : c.next+length : c.next+length]
	c.next += length
	return p
}

// GetConstructed consumes a constructed value and returns its tag and a view
// over a copy of its payload.
func (c *cursor) GetConstructed() (byte, *View, error) {
	start := c.next
	tag, err := c.PeekTag()
	if err != nil {
		return 0, nil, err
	}
	if tag&Constructed == 0 {
		return 0, nil, decodeError("get constructed", start,
			fmt.Errorf("tag 0x%02X is not constructed: %w", tag, ErrWrongTag))
	}

	_, length, err := c.ExtractTLV()
	if err != nil {
		return 0, nil, err
	}
	return tag, NewView(c.payload(length)), nil
}

// ExpectConstructed is GetConstructed restricted to one tag.
func (c *cursor) ExpectConstructed(want byte) (*View, error) {
	tag, err := c.PeekTag()
	if err != nil {
		return nil, err
	}
	if tag != want {
		return nil, decodeError("expect constructed", c.next,
			fmt.Errorf("got tag 0x%02X, want 0x%02X: %w", tag, want, ErrWrongTag))
	}
	_, v, err := c.GetConstructed()
	return v, err
}

// GetSequence consumes a SEQUENCE.
func (c *cursor) GetSequence() (*View, error) {
	return c.ExpectConstructed(TagSequence)
}

// GetOid consumes an OBJECT IDENTIFIER and returns it in dotted form.
func (c *cursor) GetOid() (string, error) {
	start := c.next
	if err := c.expectTag("get oid", TagOid); err != nil {
		return "", err
	}

	_, length, err := c.ExtractTLV()
	if err != nil {
		return "", err
	}

	oid, err := DecodeOid(c.payload(length))
	if err != nil {
		c.next = start
		return "", decodeError("get oid", start, err)
	}
	return oid, nil
}

// GetGeneralString consumes a GeneralString and returns a copy of its text.
func (c *cursor) GetGeneralString() (string, error) {
	if err := c.expectTag("get general string", TagGeneralString); err != nil {
		return "", err
	}

	_, length, err := c.ExtractTLV()
	if err != nil {
		return "", err
	}
	return string(c.payload(length)), nil
}

// GetOpaque consumes any value. The payload aliases the buffer.
func (c *cursor) GetOpaque() (byte, []byte, error) {
	tag, length, err := c.ExtractTLV()
	if err != nil {
		return 0, nil, err
	}
	return tag, c.payload(length), nil
}

func (c *cursor) expectTag(op string, want byte) error {
	tag, err := c.PeekTag()
	if err != nil {
		return err
	}
	if tag != want {
		return decodeError(op, c.next, fmt.Errorf("got tag 0x%02X, want 0x%02X: %w", tag, want, ErrWrongTag))
	}
	return nil
}

// AddOpaque appends one value. Payloads longer than MaxShortLength are
// rejected since only short-form lengths are produced.
func (c *cursor) AddOpaque(tag byte, payload []byte) error {
	if len(payload) > MaxShortLength {
		return decodeError("add", c.next,
			fmt.Errorf("payload of %d bytes: %w", len(payload), ErrUnsupportedLongLength))
	}
	if err := c.space.reserve(c, 2+len(payload)); err != nil {
		return decodeError("add", c.next, err)
	}

	c.data[c.next] = tag
	c.data[c.next+1] = byte(len(payload))
	copy(c.data[c.next+2:], payload)
	c.next += 2 + len(payload)
	return nil
}

// AddConstructed appends the written bytes of child as one value.
func (c *cursor) AddConstructed(child Codec, tag byte) error {
	if tag&Constructed == 0 {
		return decodeError("add constructed", c.next,
			fmt.Errorf("tag 0x%02X is not constructed: %w", tag, ErrWrongTag))
	}

	var payload []byte
	if child != nil {
		payload = child.Bytes()
	}
	return c.AddOpaque(tag, payload)
}

// AddSequence appends child as a SEQUENCE.
func (c *cursor) AddSequence(child Codec) error {
	return c.AddConstructed(child, TagSequence)
}

// AddGeneralString appends text as a GeneralString.
func (c *cursor) AddGeneralString(text string) error {
	return c.AddOpaque(TagGeneralString, []byte(text))
}

// AddOid appends oid the way existing peers of this code expect it: the
// dotted text carried as a GeneralString. GetOid cannot read it back; use
// AddEncodedOid for a real OBJECT IDENTIFIER.
func (c *cursor) AddOid(oid string) error {
	return c.AddGeneralString(oid)
}

// AddEncodedOid appends oid as a base-128 encoded OBJECT IDENTIFIER.
func (c *cursor) AddEncodedOid(oid string) error {
	payload, err := EncodeOid(oid)
	if err != nil {
		return decodeError("add oid", c.next, err)
	}
	return c.AddOpaque(TagOid, payload)
}
