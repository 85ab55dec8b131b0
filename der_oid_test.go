package smbauth

import (
	"bytes"
	"encoding/asn1"
	"errors"
	"testing"
)

func TestDecodeOid(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"md2WithRSA", []byte{0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x02, 0x02}, "1.2.840.113549.1.2.2"},
		{"ntlmssp", []byte{0x2B, 0x06, 0x01, 0x04, 0x01, 0x82, 0x37, 0x02, 0x02, 0x0A}, "1.3.6.1.4.1.311.2.2.10"},
		{"spnego", []byte{0x2B, 0x06, 0x01, 0x05, 0x05, 0x02}, "1.3.6.1.5.5.2"},
		{"first arc zero", []byte{0x00}, "0.0"},
		{"first group 119", []byte{0x77}, "2.39"},
		{"first group 120", []byte{0x78}, "3.0"},
		{"first group 1079", []byte{0x88, 0x37, 0x03}, "26.39.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOid(tt.payload)
			if err != nil {
				t.Fatalf("DecodeOid() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeOid() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeOidX690(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"md2WithRSA", []byte{0x2A, 0x86, 0x48, 0x86, 0xF7, 0x0D, 0x01, 0x02, 0x02}, "1.2.840.113549.1.2.2"},
		{"first group 119", []byte{0x77}, "2.39"},
		{"first group 120", []byte{0x78}, "2.40"},
		{"first group 1079", []byte{0x88, 0x37, 0x03}, "2.999.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOidX690(tt.payload)
			if err != nil {
				t.Fatalf("DecodeOidX690() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeOidX690() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := DecodeOidX690([]byte{0x2A, 0x86}); !errors.Is(err, ErrInvalidOid) {
		t.Errorf("DecodeOidX690() error = %v, want ErrInvalidOid", err)
	}
}

func TestDecodeOid_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"incomplete last arc", []byte{0x2A, 0x86}},
		{"arc overflows uint64", append(bytes.Repeat([]byte{0xFF}, 10), 0x7F)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeOid(tt.payload); !errors.Is(err, ErrInvalidOid) {
				t.Errorf("DecodeOid() error = %v, want ErrInvalidOid", err)
			}
		})
	}
}

func TestEncodeOid_RoundTrip(t *testing.T) {
	oids := []string{
		"1.2.840.113549.1.2.2",
		"1.2.840.113554.1.2.2",
		"1.3.6.1.4.1.311.2.2.10",
		"1.3.6.1.4.1.311.2.2.30",
		"2.5.4.3",
		"2.39.1",
		"0.39",
	}

	for _, oid := range oids {
		t.Run(oid, func(t *testing.T) {
			payload, err := EncodeOid(oid)
			if err != nil {
				t.Fatalf("EncodeOid() error = %v", err)
			}
			got, err := DecodeOid(payload)
			if err != nil {
				t.Fatalf("DecodeOid() error = %v", err)
			}
			if got != oid {
				t.Errorf("round trip = %q, want %q", got, oid)
			}
		})
	}
}

func TestEncodeOid_LargeSecondArc(t *testing.T) {
	payload, err := EncodeOid("2.999.3")
	if err != nil {
		t.Fatalf("EncodeOid() error = %v", err)
	}
	if !bytes.Equal(payload, []byte{0x88, 0x37, 0x03}) {
		t.Errorf("EncodeOid() = % X, want 88 37 03", payload)
	}

	if got, _ := DecodeOidX690(payload); got != "2.999.3" {
		t.Errorf("DecodeOidX690() = %q, want %q", got, "2.999.3")
	}
	if got, _ := DecodeOid(payload); got != "26.39.3" {
		t.Errorf("DecodeOid() = %q, want %q", got, "26.39.3")
	}
}

func TestEncodeOid_Invalid(t *testing.T) {
	tests := []string{"", "1", "3.1", "1.40", "0.40", "1.a", "1..2", "-1.2", "1.2."}

	for _, oid := range tests {
		t.Run(oid, func(t *testing.T) {
			if _, err := EncodeOid(oid); !errors.Is(err, ErrInvalidOid) {
				t.Errorf("EncodeOid(%q) error = %v, want ErrInvalidOid", oid, err)
			}
		})
	}
}

func TestAddEncodedOid_MatchesEncodingASN1(t *testing.T) {
	oids := []asn1.ObjectIdentifier{
		{1, 2, 840, 113549, 1, 2, 2},
		{1, 3, 6, 1, 4, 1, 311, 2, 2, 10},
		{2, 5, 4, 3},
	}

	for _, oid := range oids {
		t.Run(oid.String(), func(t *testing.T) {
			want, err := asn1.Marshal(oid)
			if err != nil {
				t.Fatal(err)
			}

			buf := NewBuffer()
			if err := buf.AddEncodedOid(oid.String()); err != nil {
				t.Fatalf("AddEncodedOid() error = %v", err)
			}
			if !bytes.Equal(buf.Bytes(), want) {
				t.Errorf("AddEncodedOid() = % X, want % X", buf.Bytes(), want)
			}

			got, err := NewView(want).GetOid()
			if err != nil {
				t.Fatalf("GetOid() error = %v", err)
			}
			if got != oid.String() {
				t.Errorf("GetOid() = %q, want %q", got, oid.String())
			}
		})
	}
}

func TestAddOid_WritesGeneralString(t *testing.T) {
	const oid = "1.2.840.113554.1.2.2"

	buf := NewBuffer()
	if err := buf.AddOid(oid); err != nil {
		t.Fatalf("AddOid() error = %v", err)
	}
	if buf.Bytes()[0] != TagGeneralString {
		t.Fatalf("tag = 0x%02X, want GeneralString 0x%02X", buf.Bytes()[0], TagGeneralString)
	}

	v := NewView(buf.Bytes())
	if _, err := v.GetOid(); !errors.Is(err, ErrWrongTag) {
		t.Errorf("GetOid() error = %v, want ErrWrongTag", err)
	}
	text, err := v.GetGeneralString()
	if err != nil {
		t.Fatalf("GetGeneralString() error = %v", err)
	}
	if text != oid {
		t.Errorf("GetGeneralString() = %q, want %q", text, oid)
	}
}

func TestGetOid_InvalidPayloadRestoresCursor(t *testing.T) {
	v := NewView([]byte{0x06, 0x01, 0x80})
	if _, err := v.GetOid(); !errors.Is(err, ErrInvalidOid) {
		t.Fatalf("GetOid() error = %v, want ErrInvalidOid", err)
	}
	if v.Offset() != 0 {
		t.Errorf("Offset() = %d, want 0", v.Offset())
	}
}

func TestAddEncodedOid_Invalid(t *testing.T) {
	buf := NewBuffer()
	if err := buf.AddEncodedOid("not.an.oid"); !errors.Is(err, ErrInvalidOid) {
		t.Errorf("AddEncodedOid() error = %v, want ErrInvalidOid", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Len() = %d, want 0", buf.Len())
	}
}
