// Package snmp implements a from-scratch BER/ASN.1 codec and SNMPv1/v2c/v3
// (noAuthNoPriv) poller, per spec §4.6.
package snmp

import (
	"errors"
)

// BER tags used on the wire.
const (
	tagInteger    = 0x02
	tagOctetStr   = 0x04
	tagNull       = 0x05
	tagOID        = 0x06
	tagSequence   = 0x30
	tagIPAddress  = 0x40
	tagCounter32  = 0x41
	tagGauge32    = 0x42
	tagTimeTicks  = 0x43
	tagCounter64  = 0x46
	tagNoSuchObj  = 0x80
	tagNoSuchInst = 0x81
	tagEndOfMib   = 0x82

	pduGetRequest  = 0xA0
	pduGetNext     = 0xA1
	pduGetResponse = 0xA2
)

var errTruncated = errors.New("snmp: truncated BER encoding")

// tlv is one decoded tag-length-value triple plus the offset immediately
// following it in the source buffer.
type tlv struct {
	tag   byte
	value []byte
	next  int
}

// encodeLength implements spec §4.6's short/long form length encoding.
func encodeLength(n int) []byte {
	if n < 128 {
		return []byte{byte(n)}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xFF)}, b...)
		n >>= 8
	}
	return append([]byte{byte(0x80 | len(b))}, b...)
}

// decodeLength reads a length field starting at buf[0] and returns the
// decoded length plus the number of bytes consumed.
func decodeLength(buf []byte) (int, int, error) {
	if len(buf) == 0 {
		return 0, 0, errTruncated
	}
	if buf[0] < 128 {
		return int(buf[0]), 1, nil
	}
	n := int(buf[0] & 0x7F)
	if n == 0 || len(buf) < 1+n {
		return 0, 0, errTruncated
	}
	length := 0
	for i := 0; i < n; i++ {
		length = length<<8 | int(buf[1+i])
	}
	return length, 1 + n, nil
}

func encodeTLV(tag byte, value []byte) []byte {
	out := append([]byte{tag}, encodeLength(len(value))...)
	return append(out, value...)
}

// decodeTLV reads one tag-length-value triple from the front of buf.
func decodeTLV(buf []byte) (tlv, error) {
	if len(buf) == 0 {
		return tlv{}, errTruncated
	}
	tag := buf[0]
	length, consumed, err := decodeLength(buf[1:])
	if err != nil {
		return tlv{}, err
	}
	start := 1 + consumed
	end := start + length
	if end > len(buf) {
		return tlv{}, errTruncated
	}
	return tlv{tag: tag, value: buf[start:end], next: end}, nil
}

func encodeInteger(v int64) []byte {
	if v == 0 {
		return encodeTLV(tagInteger, []byte{0})
	}
	var b []byte
	neg := v < 0
	u := v
	for u != 0 && u != -1 {
		b = append([]byte{byte(u & 0xFF)}, b...)
		u >>= 8
	}
	if neg {
		if len(b) == 0 || b[0]&0x80 == 0 {
			b = append([]byte{0xFF}, b...)
		}
	} else if len(b) > 0 && b[0]&0x80 != 0 {
		b = append([]byte{0x00}, b...)
	}
	return encodeTLV(tagInteger, b)
}

func decodeInteger(v []byte) int64 {
	if len(v) == 0 {
		return 0
	}
	var n int64
	neg := v[0]&0x80 != 0
	if neg {
		n = -1
	}
	for _, b := range v {
		n = n<<8 | int64(b)
	}
	return n
}

func decodeUnsigned(v []byte) uint64 {
	var n uint64
	for _, b := range v {
		n = n<<8 | uint64(b)
	}
	return n
}

func encodeOctetString(s []byte) []byte { return encodeTLV(tagOctetStr, s) }
func encodeNull() []byte                { return encodeTLV(tagNull, nil) }
func encodeSequence(parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	return encodeTLV(tagSequence, body)
}
