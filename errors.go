package smbauth

import (
	"errors"
	"fmt"
)

// DER decode and encode errors.
var (
	// ErrEndOfData indicates the cursor reached the end of the buffer.
	ErrEndOfData = errors.New("der: end of data")

	// ErrTruncated indicates a value or offset runs past the end of the buffer.
	ErrTruncated = errors.New("der: truncated")

	// ErrUnsupportedLongLength indicates a long-form length (values above 127).
	ErrUnsupportedLongLength = errors.New("der: long form lengths not supported")

	// ErrWrongTag indicates the next value does not carry the expected tag.
	ErrWrongTag = errors.New("der: wrong tag")

	// ErrBufferOverflow indicates a write past the end of a fixed view.
	ErrBufferOverflow = errors.New("der: buffer overflow")

	// ErrAllocationFailure indicates an owned buffer hit its size limit.
	ErrAllocationFailure = errors.New("der: allocation failure")

	// ErrInvalidOid indicates a malformed object identifier.
	ErrInvalidOid = errors.New("der: invalid object identifier")
)

// NTLM message errors.
var (
	// ErrSignatureMismatch indicates a message without the NTLMSSP signature.
	ErrSignatureMismatch = errors.New("ntlmssp: signature mismatch")

	// ErrSizeTooSmall indicates a message shorter than its fixed record.
	ErrSizeTooSmall = errors.New("ntlmssp: message too small")

	// ErrWrongMessageType indicates a valid signature with an unexpected message type.
	ErrWrongMessageType = errors.New("ntlmssp: wrong message type")

	// ErrAuthenticationFailed indicates the NTLMv2 response did not verify.
	ErrAuthenticationFailed = errors.New("ntlmssp: authentication failed")
)

// Connection errors.
var (
	// ErrOutOfCredits indicates the credit window is empty.
	ErrOutOfCredits = errors.New("out of credits")

	// ErrInvalidCreditGrant indicates a grant that would shrink the window below its first id.
	ErrInvalidCreditGrant = errors.New("invalid credit grant")

	// ErrConnectionClosed indicates the connection has been closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrInvalidMessage indicates a malformed SMB2 frame.
	ErrInvalidMessage = errors.New("invalid SMB2 message")

	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoSessionKey indicates signing was enabled before authentication.
	ErrNoSessionKey = errors.New("no session key")

	// ErrBadSignature indicates a frame whose signature is missing or does not verify.
	ErrBadSignature = errors.New("bad message signature")
)

// DecodeError records the operation and buffer offset of a codec failure.
type DecodeError struct {
	Op     string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// decodeError wraps err with operation and offset information.
func decodeError(op string, offset int, err error) error {
	if err == nil {
		return nil
	}

	// Don't double-wrap errors raised deeper in the same call chain
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}

	return &DecodeError{
		Op:     op,
		Offset: offset,
		Err:    err,
	}
}

// IsBackpressure reports whether err means the caller should wait for more
// credits rather than fail.
func IsBackpressure(err error) bool {
	return errors.Is(err, ErrOutOfCredits)
}

// IsHostileInput reports whether err is a rejection of malformed peer data.
func IsHostileInput(err error) bool {
	switch {
	case errors.Is(err, ErrSignatureMismatch),
		errors.Is(err, ErrSizeTooSmall),
		errors.Is(err, ErrWrongMessageType),
		errors.Is(err, ErrTruncated),
		errors.Is(err, ErrUnsupportedLongLength),
		errors.Is(err, ErrWrongTag),
		errors.Is(err, ErrInvalidOid),
		errors.Is(err, ErrInvalidMessage),
		errors.Is(err, ErrBadSignature):
		return true
	}
	return false
}

// netError interface for network errors.
type netError interface {
	Timeout() bool
	Temporary() bool
}

// isRetryable returns true if the error indicates a transient failure
// that might succeed if retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsBackpressure(err) {
		return true
	}

	var netErr netError
	if errors.As(err, &netErr) {
		if netErr.Temporary() {
			return true
		}
		if netErr.Timeout() {
			return true
		}
	}

	// Check wrapped errors
	unwrapped := errors.Unwrap(err)
	if unwrapped != nil && unwrapped != err {
		return isRetryable(unwrapped)
	}

	return false
}
