package smbauth

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DecodeOid turns an OBJECT IDENTIFIER payload into dotted-decimal form.
// Each arc is a big-endian base-128 group whose bytes, except the last, have
// the high bit set. The first group v is split into v/40 and v%40.
func DecodeOid(payload []byte) (string, error) {
	return decodeOid(payload, func(v uint64) uint64 { return v / 40 })
}

// DecodeOidX690 is DecodeOid with the X.690 8.19.4 split: first groups of
// 80 and above all belong to arc 2, so 0x88 0x37 reads as 2.999 rather than
// 26.39. It is the exact inverse of EncodeOid.
func DecodeOidX690(payload []byte) (string, error) {
	return decodeOid(payload, func(v uint64) uint64 { return min(v/40, 2) })
}

func decodeOid(payload []byte, topArc func(uint64) uint64) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty payload: %w", ErrInvalidOid)
	}

	var sb strings.Builder
	var arc uint64
	first := true

	for i, b := range payload {
		if arc > math.MaxUint64>>7 {
			return "", fmt.Errorf("arc overflows at byte %d: %w", i, ErrInvalidOid)
		}
		arc = arc<<7 | uint64(b&0x7F)
		if b&0x80 != 0 {
			continue
		}

		if first {
			top := topArc(arc)
			sb.WriteString(strconv.FormatUint(top, 10))
			sb.WriteByte('.')
			sb.WriteString(strconv.FormatUint(arc-top*40, 10))
			first = false
		} else {
			sb.WriteByte('.')
			sb.WriteString(strconv.FormatUint(arc, 10))
		}
		arc = 0
	}

	if payload[len(payload)-1]&0x80 != 0 {
		return "", fmt.Errorf("last arc is incomplete: %w", ErrInvalidOid)
	}
	return sb.String(), nil
}

// EncodeOid packs a dotted OID into base-128 groups. DecodeOid reads its
// output back unchanged while the first group stays below 120, that is for
// every OID under arcs 0 and 1 and for 2.x with x below 40.
func EncodeOid(oid string) ([]byte, error) {
	parts := strings.Split(oid, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%q has fewer than two arcs: %w", oid, ErrInvalidOid)
	}

	arcs := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q arc %d: %w", oid, i, ErrInvalidOid)
		}
		arcs[i] = v
	}

	if arcs[0] > 2 {
		return nil, fmt.Errorf("%q first arc %d: %w", oid, arcs[0], ErrInvalidOid)
	}
	if arcs[0] < 2 && arcs[1] >= 40 {
		return nil, fmt.Errorf("%q second arc %d: %w", oid, arcs[1], ErrInvalidOid)
	}
	if arcs[1] > math.MaxUint64-80 {
		return nil, fmt.Errorf("%q second arc %d: %w", oid, arcs[1], ErrInvalidOid)
	}

	out := appendBase128(nil, arcs[0]*40+arcs[1])
	for _, v := range arcs[2:] {
		out = appendBase128(out, v)
	}
	return out, nil
}

// appendBase128 appends v as a minimal base-128 group.
func appendBase128(dst []byte, v uint64) []byte {
	var tmp [10]byte
	n := len(tmp) - 1
	tmp[n] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		n--
		tmp[n] = byte(v&0x7F) | 0x80
	}
	return append(dst, tmp[n:]...)
}
