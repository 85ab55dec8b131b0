package smbauth

import "errors"

// Value is one decoded DER value. Exactly one of Oid, Text, Children or
// Payload is meaningful, depending on Tag.
type Value struct {
	Tag      byte
	Oid      string
	Text     string
	Children []Value
	Payload  []byte
}

// IsConstructed reports whether the value holds nested values.
func (v Value) IsConstructed() bool {
	return v.Tag&Constructed != 0
}

type valueKind int

const (
	kindOpaque valueKind = iota
	kindOid
	kindGeneralString
	kindSequence
	kindConstructed
)

// classify is the tag dispatch shared by decoding and printing.
func classify(tag byte) valueKind {
	switch {
	case tag == TagOid:
		return kindOid
	case tag == TagGeneralString:
		return kindGeneralString
	case tag == TagSequence:
		return kindSequence
	case tag&Constructed != 0:
		return kindConstructed
	default:
		return kindOpaque
	}
}

// NextValue consumes the next value, recursing into constructed ones.
// Opaque payloads alias the buffer.
func (c *cursor) NextValue() (Value, error) {
	tag, err := c.PeekTag()
	if err != nil {
		return Value{}, err
	}

	v := Value{Tag: tag}
	switch classify(tag) {
	case kindOid:
		v.Oid, err = c.GetOid()
	case kindGeneralString:
		v.Text, err = c.GetGeneralString()
	case kindSequence, kindConstructed:
		var child *View
		if _, child, err = c.GetConstructed(); err == nil {
			v.Children, err = DecodeAll(child)
		}
	default:
		_, v.Payload, err = c.GetOpaque()
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

// DecodeAll decodes every value from the cursor to the end of c.
func DecodeAll(c Codec) ([]Value, error) {
	var values []Value
	for {
		v, err := c.NextValue()
		if errors.Is(err, ErrEndOfData) {
			return values, nil
		}
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
}
