package snmp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegerRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, 128, -128, -129, 255, 256, 65535, -65536, 1 << 30} {
		encoded := encodeInteger(v)
		decoded, err := decodeTLV(encoded)
		require.NoError(t, err)
		require.Equal(t, tagInteger, int(decoded.tag))
		require.Equal(t, v, decodeInteger(decoded.value))
	}
}

func TestLengthRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 127, 128, 255, 256, 65535, 70000} {
		encoded := encodeLength(n)
		decoded, consumed, err := decodeLength(encoded)
		require.NoError(t, err)
		require.Equal(t, n, decoded)
		require.Equal(t, len(encoded), consumed)
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	seq := encodeSequence(encodeInteger(5), encodeOctetString([]byte("hi")))
	decoded, err := decodeTLV(seq)
	require.NoError(t, err)
	require.Equal(t, tagSequence, int(decoded.tag))

	first, err := decodeTLV(decoded.value)
	require.NoError(t, err)
	require.Equal(t, int64(5), decodeInteger(first.value))

	second, err := decodeTLV(decoded.value[first.next:])
	require.NoError(t, err)
	require.Equal(t, "hi", string(second.value))
}

func TestDecodeTLVRejectsTruncatedBuffer(t *testing.T) {
	_, err := decodeTLV([]byte{tagInteger, 0x05, 0x01})
	require.Error(t, err)
}
