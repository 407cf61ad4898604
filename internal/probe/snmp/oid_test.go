package snmp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Invariant 5: OID round-trip holds for every well-formed dotted-decimal
// string with >= 2 components and first sub-identifier <= 2.
func TestOIDRoundTrip(t *testing.T) {
	cases := []string{
		"1.3.6.1.2.1.1.1.0",
		"1.3.6.1.2.1.1",
		"0.0",
		"2.999.1",
		"1.1",
	}
	for _, dotted := range cases {
		encoded, err := encodeOID(dotted)
		require.NoError(t, err, dotted)

		decoded, err := decodeTLV(encoded)
		require.NoError(t, err, dotted)
		require.Equal(t, tagOID, int(decoded.tag))

		roundTripped, err := decodeOID(decoded.value)
		require.NoError(t, err, dotted)
		require.Equal(t, dotted, roundTripped)
	}
}

func TestEncodeOIDRejectsSingleComponent(t *testing.T) {
	_, err := encodeOID("1")
	require.Error(t, err)
}

func TestIsPrefixDescendant(t *testing.T) {
	root := "1.3.6.1.2.1.1"
	require.True(t, isPrefixDescendant("1.3.6.1.2.1.1.1.0", root))
	require.True(t, isPrefixDescendant(root, root))
	require.False(t, isPrefixDescendant("1.3.6.1.2.1.11.1.0", root))
	require.False(t, isPrefixDescendant("1.3.6.1.2.1.2", root))
}
