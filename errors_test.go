package smbauth

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestDecodeError(t *testing.T) {
	err := &DecodeError{Op: "extract", Offset: 12, Err: ErrTruncated}

	expected := "extract at offset 12: der: truncated"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if unwrapped := err.Unwrap(); unwrapped != ErrTruncated {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrTruncated)
	}
}

func TestDecodeErrorWrapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantNil    bool
		wantOp     string
		wantOffset int
	}{
		{
			name:    "nil error returns nil",
			err:     nil,
			wantNil: true,
		},
		{
			name:       "wraps sentinel",
			err:        ErrWrongTag,
			wantOp:     "get oid",
			wantOffset: 7,
		},
		{
			name:       "doesn't double-wrap",
			err:        fmt.Errorf("inner: %w", &DecodeError{Op: "extract", Offset: 3, Err: ErrTruncated}),
			wantOp:     "extract",
			wantOffset: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := decodeError("get oid", 7, tt.err)

			if tt.wantNil {
				if result != nil {
					t.Errorf("decodeError() = %v, want nil", result)
				}
				return
			}

			var de *DecodeError
			if !errors.As(result, &de) {
				t.Fatalf("decodeError() result is not a DecodeError: %T", result)
			}
			if de.Op != tt.wantOp || de.Offset != tt.wantOffset {
				t.Errorf("DecodeError = {%q, %d}, want {%q, %d}", de.Op, de.Offset, tt.wantOp, tt.wantOffset)
			}
		})
	}
}

func TestIsHostileInput(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"signature mismatch", ErrSignatureMismatch, true},
		{"size too small", fmt.Errorf("10 bytes: %w", ErrSizeTooSmall), true},
		{"wrong message type", ErrWrongMessageType, true},
		{"truncated DER", &DecodeError{Op: "extract", Err: ErrTruncated}, true},
		{"long form length", ErrUnsupportedLongLength, true},
		{"invalid frame", ErrInvalidMessage, true},
		{"bad signature", fmt.Errorf("ECHO id 3: %w", ErrBadSignature), true},
		{"no session key", ErrNoSessionKey, false},
		{"out of credits", ErrOutOfCredits, false},
		{"authentication failed", ErrAuthenticationFailed, false},
		{"allocation failure", ErrAllocationFailure, false},
		{"io error", io.ErrUnexpectedEOF, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHostileInput(tt.err); got != tt.expected {
				t.Errorf("IsHostileInput(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error is not retryable",
			err:      nil,
			expected: false,
		},
		{
			name:     "ErrOutOfCredits is retryable",
			err:      ErrOutOfCredits,
			expected: true,
		},
		{
			name:     "wrapped ErrOutOfCredits is retryable",
			err:      fmt.Errorf("send: %w", ErrOutOfCredits),
			expected: true,
		},
		{
			name:     "ErrConnectionClosed is not retryable",
			err:      ErrConnectionClosed,
			expected: false,
		},
		{
			name:     "ErrInvalidCreditGrant is not retryable",
			err:      ErrInvalidCreditGrant,
			expected: false,
		},
		{
			name:     "temporary network error is retryable",
			err:      &mockNetError{error: errors.New("temp"), temporary: true},
			expected: true,
		},
		{
			name:     "timeout network error is retryable",
			err:      &mockNetError{error: errors.New("timeout"), timeout: true},
			expected: true,
		},
		{
			name:     "permanent network error is not retryable",
			err:      &mockNetError{error: errors.New("refused")},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.expected {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsBackpressure(t *testing.T) {
	if !IsBackpressure(fmt.Errorf("acquire: %w", ErrOutOfCredits)) {
		t.Error("IsBackpressure(wrapped ErrOutOfCredits) = false, want true")
	}
	if IsBackpressure(ErrInvalidCreditGrant) {
		t.Error("IsBackpressure(ErrInvalidCreditGrant) = true, want false")
	}
}
