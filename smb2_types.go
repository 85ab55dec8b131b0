package smbauth

import (
	"encoding/binary"
	"time"
)

// SMB2 Protocol constants
const (
	// SMB2 protocol signature
	SMB2ProtocolID = "\xFESMB"

	// SMB2 header size
	SMB2HeaderSize = 64

	// Largest frame accepted by default
	MaxTransactSize = 8 * 1024 * 1024 // 8MB

	// NetBIOS session header size
	netbiosHeaderSize = 4

	// Largest length a NetBIOS session header can carry (24 bits)
	maxNetbiosLength = 1<<24 - 1
)

// SMB2 Command opcodes used around session setup
const (
	SMB2_NEGOTIATE     uint16 = 0x0000
	SMB2_SESSION_SETUP uint16 = 0x0001
	SMB2_LOGOFF        uint16 = 0x0002
	SMB2_ECHO          uint16 = 0x000D
)

// CommandName returns the human-readable name for an SMB2 command
func CommandName(cmd uint16) string {
	switch cmd {
	case SMB2_NEGOTIATE:
		return "NEGOTIATE"
	case SMB2_SESSION_SETUP:
		return "SESSION_SETUP"
	case SMB2_LOGOFF:
		return "LOGOFF"
	case SMB2_ECHO:
		return "ECHO"
	default:
		return "UNKNOWN"
	}
}

// NT Status codes
type NTStatus uint32

const (
	STATUS_SUCCESS                  NTStatus = 0x00000000
	STATUS_INVALID_PARAMETER        NTStatus = 0xC000000D
	STATUS_MORE_PROCESSING_REQUIRED NTStatus = 0xC0000016
	STATUS_ACCESS_DENIED            NTStatus = 0xC0000022
	STATUS_LOGON_FAILURE            NTStatus = 0xC000006D
	STATUS_INSUFFICIENT_RESOURCES   NTStatus = 0xC000009A
	STATUS_NOT_SUPPORTED            NTStatus = 0xC00000BB
)

// IsSuccess returns true if status indicates success
func (s NTStatus) IsSuccess() bool {
	return s == STATUS_SUCCESS
}

// IsError returns true if status indicates an error (high bit set)
func (s NTStatus) IsError() bool {
	return s&0xC0000000 == 0xC0000000
}

// String returns the status name
func (s NTStatus) String() string {
	switch s {
	case STATUS_SUCCESS:
		return "STATUS_SUCCESS"
	case STATUS_INVALID_PARAMETER:
		return "STATUS_INVALID_PARAMETER"
	case STATUS_MORE_PROCESSING_REQUIRED:
		return "STATUS_MORE_PROCESSING_REQUIRED"
	case STATUS_ACCESS_DENIED:
		return "STATUS_ACCESS_DENIED"
	case STATUS_LOGON_FAILURE:
		return "STATUS_LOGON_FAILURE"
	case STATUS_INSUFFICIENT_RESOURCES:
		return "STATUS_INSUFFICIENT_RESOURCES"
	case STATUS_NOT_SUPPORTED:
		return "STATUS_NOT_SUPPORTED"
	default:
		return "STATUS_UNKNOWN"
	}
}

// SMB2 Header flags
const (
	SMB2_FLAGS_SERVER_TO_REDIR uint32 = 0x00000001 // Response flag
	SMB2_FLAGS_SIGNED          uint32 = 0x00000008 // Message is signed
)

// SMB2Header represents the fixed 64-byte header for all SMB2/3 messages
type SMB2Header struct {
	ProtocolID    [4]byte  // 0xFE 'S' 'M' 'B'
	StructureSize uint16   // Always 64
	CreditCharge  uint16   // Number of credits consumed
	Status        NTStatus // NT status code (response) or channel sequence (request)
	Command       uint16   // SMB2 command code
	CreditRequest uint16   // Credits requested (request) or granted (response)
	Flags         uint32   // Flags
	NextCommand   uint32   // Offset to next command in compound
	MessageID     uint64   // Unique message identifier
	Reserved      uint32   // Reserved (or AsyncID high bits)
	TreeID        uint32   // Tree identifier
	SessionID     uint64   // Session identifier
	Signature     [16]byte // Message signature (if signed)
}

// IsResponse returns true if this is a response message
func (h *SMB2Header) IsResponse() bool {
	return h.Flags&SMB2_FLAGS_SERVER_TO_REDIR != 0
}

// IsSigned returns true if the message is signed
func (h *SMB2Header) IsSigned() bool {
	return h.Flags&SMB2_FLAGS_SIGNED != 0
}

// Marshal encodes the header to bytes
func (h *SMB2Header) Marshal() []byte {
	buf := make([]byte, SMB2HeaderSize)
	copy(buf[0:4], SMB2ProtocolID)
	binary.LittleEndian.PutUint16(buf[4:6], SMB2HeaderSize)
	binary.LittleEndian.PutUint16(buf[6:8], h.CreditCharge)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Status))
	binary.LittleEndian.PutUint16(buf[12:14], h.Command)
	binary.LittleEndian.PutUint16(buf[14:16], h.CreditRequest)
	binary.LittleEndian.PutUint32(buf[16:20], h.Flags)
	binary.LittleEndian.PutUint32(buf[20:24], h.NextCommand)
	binary.LittleEndian.PutUint64(buf[24:32], h.MessageID)
	binary.LittleEndian.PutUint32(buf[32:36], h.Reserved)
	binary.LittleEndian.PutUint32(buf[36:40], h.TreeID)
	binary.LittleEndian.PutUint64(buf[40:48], h.SessionID)
	copy(buf[48:64], h.Signature[:])
	return buf
}

// UnmarshalSMB2Header decodes an SMB2 header from bytes
func UnmarshalSMB2Header(data []byte) (*SMB2Header, error) {
	if len(data) < SMB2HeaderSize {
		return nil, ErrInvalidMessage
	}
	if string(data[0:4]) != SMB2ProtocolID {
		return nil, ErrInvalidMessage
	}

	h := &SMB2Header{
		StructureSize: binary.LittleEndian.Uint16(data[4:6]),
		CreditCharge:  binary.LittleEndian.Uint16(data[6:8]),
		Status:        NTStatus(binary.LittleEndian.Uint32(data[8:12])),
		Command:       binary.LittleEndian.Uint16(data[12:14]),
		CreditRequest: binary.LittleEndian.Uint16(data[14:16]),
		Flags:         binary.LittleEndian.Uint32(data[16:20]),
		NextCommand:   binary.LittleEndian.Uint32(data[20:24]),
		MessageID:     binary.LittleEndian.Uint64(data[24:32]),
		Reserved:      binary.LittleEndian.Uint32(data[32:36]),
		TreeID:        binary.LittleEndian.Uint32(data[36:40]),
		SessionID:     binary.LittleEndian.Uint64(data[40:48]),
	}
	copy(h.ProtocolID[:], data[0:4])
	copy(h.Signature[:], data[48:64])
	return h, nil
}

// SMB2Message wraps a header and payload
type SMB2Message struct {
	Header  *SMB2Header
	Payload []byte
}

// Windows FILETIME helpers
// FILETIME is 100-nanosecond intervals since January 1, 1601 UTC

const (
	// Offset between Unix epoch (1970) and Windows epoch (1601) in 100-ns intervals
	windowsEpochOffset = 116444736000000000
)

// now is replaced in tests.
var now = time.Now

// TimeToFiletime converts a Go time.Time to Windows FILETIME
func TimeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100) + windowsEpochOffset
}

// FiletimeToTime converts a Windows FILETIME to Go time.Time
func FiletimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	nsec := int64(ft-windowsEpochOffset) * 100
	return time.Unix(0, nsec)
}
