package smbauth

import (
	"fmt"
	"strings"
)

// NegotiateFlags is the NTLM NegotiateFlags bit set (MS-NLMP 2.2.2.5).
type NegotiateFlags uint32

const (
	FlagNegotiateUnicode             NegotiateFlags = 0x00000001
	FlagNegotiateOEM                 NegotiateFlags = 0x00000002
	FlagRequestTarget                NegotiateFlags = 0x00000004
	FlagNegotiateSign                NegotiateFlags = 0x00000010
	FlagNegotiateSeal                NegotiateFlags = 0x00000020
	FlagNegotiateLMKey               NegotiateFlags = 0x00000080
	FlagNegotiateNTLM                NegotiateFlags = 0x00000200
	FlagNegotiateAnonymous           NegotiateFlags = 0x00000800
	FlagNegotiateDomainSupplied      NegotiateFlags = 0x00001000
	FlagNegotiateWorkstationSupplied NegotiateFlags = 0x00002000
	FlagNegotiateAlwaysSign          NegotiateFlags = 0x00008000
	FlagTargetTypeDomain             NegotiateFlags = 0x00010000
	FlagTargetTypeServer             NegotiateFlags = 0x00020000
	FlagNegotiateExtendedSessionSec  NegotiateFlags = 0x00080000
	FlagNegotiateTargetInfo          NegotiateFlags = 0x00800000
	FlagNegotiateVersion             NegotiateFlags = 0x02000000
	FlagNegotiate128                 NegotiateFlags = 0x20000000
	FlagNegotiateKeyExch             NegotiateFlags = 0x40000000
	FlagNegotiate56                  NegotiateFlags = 0x80000000
)

// Has reports whether every bit in flags is set.
func (f NegotiateFlags) Has(flags NegotiateFlags) bool {
	return f&flags == flags
}

var flagNames = []struct {
	flag NegotiateFlags
	name string
}{
	{FlagNegotiateUnicode, "UNICODE"},
	{FlagNegotiateOEM, "OEM"},
	{FlagRequestTarget, "REQUEST_TARGET"},
	{FlagNegotiateSign, "SIGN"},
	{FlagNegotiateSeal, "SEAL"},
	{FlagNegotiateLMKey, "LM_KEY"},
	{FlagNegotiateNTLM, "NTLM"},
	{FlagNegotiateAnonymous, "ANONYMOUS"},
	{FlagNegotiateDomainSupplied, "DOMAIN_SUPPLIED"},
	{FlagNegotiateWorkstationSupplied, "WORKSTATION_SUPPLIED"},
	{FlagNegotiateAlwaysSign, "ALWAYS_SIGN"},
	{FlagTargetTypeDomain, "TARGET_TYPE_DOMAIN"},
	{FlagTargetTypeServer, "TARGET_TYPE_SERVER"},
	{FlagNegotiateExtendedSessionSec, "EXTENDED_SESSIONSECURITY"},
	{FlagNegotiateTargetInfo, "TARGET_INFO"},
	{FlagNegotiateVersion, "VERSION"},
	{FlagNegotiate128, "128"},
	{FlagNegotiateKeyExch, "KEY_EXCH"},
	{FlagNegotiate56, "56"},
}

func (f NegotiateFlags) String() string {
	var names []string
	rest := f
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%08x", uint32(rest)))
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, "|")
}

// VarField describes a variable-length payload field by its length and its
// offset from the start of the message.
type VarField struct {
	Len    uint16
	MaxLen uint16
	Offset uint32
}

// ReadFrom returns the bytes the field describes. Fields that run past the
// end of msg fail with ErrTruncated.
func (f VarField) ReadFrom(msg []byte) ([]byte, error) {
	end := uint64(f.Offset) + uint64(f.Len)
	if end > uint64(len(msg)) {
		return nil, fmt.Errorf("field at %d+%d exceeds message of %d bytes: %w",
			f.Offset, f.Len, len(msg), ErrTruncated)
	}
	return msg[f.Offset:end:end], nil
}

// ReadStringFrom reads the field as UTF-16LE text, or as OEM (treated as
// ASCII) when unicode is false.
func (f VarField) ReadStringFrom(msg []byte, unicode bool) (string, error) {
	b, err := f.ReadFrom(msg)
	if err != nil {
		return "", err
	}
	if unicode {
		return DecodeUTF16LEToString(b), nil
	}
	return string(b), nil
}

// newVarField describes size bytes at *ptr and advances *ptr past them.
func newVarField(ptr *int, size int) VarField {
	f := VarField{
		Len:    uint16(size),
		MaxLen: uint16(size),
		Offset: uint32(*ptr),
	}
	*ptr += size
	return f
}

// Version is the 8-byte VERSION structure. It is only meaningful when
// FlagNegotiateVersion is set.
type Version struct {
	Major    uint8
	Minor    uint8
	Build    uint16
	Revision uint8
}

// NTLMRevisionW2K3 is the only NTLM revision in use.
const NTLMRevisionW2K3 = 0x0F

func (v Version) marshal(w *ByteWriter) {
	w.WriteBytes([]byte{v.Major, v.Minor})
	w.WriteUint16(v.Build)
	w.WriteZeros(3)
	w.WriteBytes([]byte{v.Revision})
}

func readVersion(r *ByteReader) Version {
	b := r.ReadBytes(8)
	return Version{
		Major:    b[0],
		Minor:    b[1],
		Build:    le.Uint16(b[2:4]),
		Revision: b[7],
	}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d (rev %d)", v.Major, v.Minor, v.Build, v.Revision)
}

// AvID identifies an AV_PAIR in target info (MS-NLMP 2.2.2.1).
type AvID uint16

const (
	AvEOL AvID = iota
	AvNbComputerName
	AvNbDomainName
	AvDNSComputerName
	AvDNSDomainName
	AvDNSTreeName
	AvFlags
	AvTimestamp
	AvSingleHost
	AvTargetName
	AvChannelBindings
)

// AvPair is one attribute/value entry of target info.
type AvPair struct {
	ID    AvID
	Value []byte
}

// AvPairs is target info in wire order, without the terminating MsvAvEOL.
type AvPairs []AvPair

// Get returns the value of the first pair with the given id.
func (p AvPairs) Get(id AvID) ([]byte, bool) {
	for _, pair := range p {
		if pair.ID == id {
			return pair.Value, true
		}
	}
	return nil, false
}

// Marshal encodes the pairs followed by MsvAvEOL.
func (p AvPairs) Marshal() []byte {
	w := NewByteWriter(64)
	for _, pair := range p {
		if pair.ID == AvEOL {
			continue
		}
		w.WriteUint16(uint16(pair.ID))
		w.WriteUint16(uint16(len(pair.Value)))
		w.WriteBytes(pair.Value)
	}
	w.WriteUint16(uint16(AvEOL))
	w.WriteUint16(0)
	return w.Bytes()
}

// ParseAvPairs decodes target info up to MsvAvEOL.
func ParseAvPairs(data []byte) (AvPairs, error) {
	var pairs AvPairs
	r := NewByteReader(data)
	for {
		if r.Remaining() < 4 {
			return nil, fmt.Errorf("target info without MsvAvEOL: %w", ErrTruncated)
		}
		id := AvID(r.ReadUint16())
		n := int(r.ReadUint16())
		if id == AvEOL {
			return pairs, nil
		}
		if r.Remaining() < n {
			return nil, fmt.Errorf("av pair %d of %d bytes, %d left: %w", id, n, r.Remaining(), ErrTruncated)
		}
		value := make([]byte, n)
		copy(value, r.ReadBytes(n))
		pairs = append(pairs, AvPair{ID: id, Value: value})
	}
}
