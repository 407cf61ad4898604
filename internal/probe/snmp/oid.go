package snmp

import (
	"errors"
	"strconv"
	"strings"
)

var errInvalidOID = errors.New("snmp: invalid OID")

// encodeOID packs a dotted-decimal OID per spec §4.6: the first two
// sub-identifiers combine as 40*a+b, remaining ones use base-128
// variable-length encoding with the continuation bit set on all but the
// last byte of each sub-identifier.
func encodeOID(dotted string) ([]byte, error) {
	parts, err := parseOID(dotted)
	if err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, errInvalidOID
	}
	var out []byte
	out = append(out, encodeSubIdentifier(parts[0]*40+parts[1])...)
	for _, p := range parts[2:] {
		out = append(out, encodeSubIdentifier(p)...)
	}
	return encodeTLV(tagOID, out), nil
}

func encodeSubIdentifier(v uint32) []byte {
	if v < 0x80 {
		return []byte{byte(v)}
	}
	var b []byte
	for v > 0 {
		b = append([]byte{byte(v & 0x7F)}, b...)
		v >>= 7
	}
	for i := 0; i < len(b)-1; i++ {
		b[i] |= 0x80
	}
	return b
}

// decodeOID is the inverse of encodeOID given the OID's raw value bytes
// (without tag/length).
func decodeOID(value []byte) (string, error) {
	if len(value) == 0 {
		return "", errInvalidOID
	}
	var parts []uint32
	var current uint32
	for _, b := range value {
		current = current<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			parts = append(parts, current)
			current = 0
		}
	}
	if len(parts) == 0 {
		return "", errInvalidOID
	}
	first := parts[0]
	a := first / 40
	b := first % 40
	if a > 2 {
		// The encoding caps a at 2: anything left over folds into b,
		// matching the canonical decoder behavior for the 2.* arc.
		a = 2
		b = first - 80
	}
	dotted := make([]string, 0, len(parts)+1)
	dotted = append(dotted, strconv.FormatUint(uint64(a), 10), strconv.FormatUint(uint64(b), 10))
	for _, p := range parts[1:] {
		dotted = append(dotted, strconv.FormatUint(uint64(p), 10))
	}
	return strings.Join(dotted, "."), nil
}

func parseOID(dotted string) ([]uint32, error) {
	fields := strings.Split(strings.TrimPrefix(dotted, "."), ".")
	if len(fields) < 2 {
		return nil, errInvalidOID
	}
	out := make([]uint32, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, errInvalidOID
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

// isPrefixDescendant reports whether oid is child.oid beginning with
// root followed by a dot boundary (spec §4.6/§8 S7: prefix boundary on dot).
func isPrefixDescendant(oid, root string) bool {
	return oid == root || strings.HasPrefix(oid, root+".")
}
