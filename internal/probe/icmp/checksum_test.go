package icmp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// S1: echo-request {type=8, code=0, id=0x1234, seq=0x0001, payload=0 bytes}
// padded to 64 bytes. The one's-complement sum over the emitted bytes
// (checksum field populated, not zeroed) is 0xFFFF — the standard
// identity sum + ~sum == 0xFFFF. checksum returns the complement of that
// sum, so it is complemented back before the comparison.
func TestChecksumScenarioS1(t *testing.T) {
	packet := make([]byte, packetSize)
	packet[0] = typeEchoRequest
	packet[1] = 0
	binary.BigEndian.PutUint16(packet[4:6], 0x1234)
	binary.BigEndian.PutUint16(packet[6:8], 0x0001)

	sum := checksum(packet)
	binary.BigEndian.PutUint16(packet[2:4], sum)

	require.Equal(t, uint16(0xFFFF), ^checksum(packet))
}

func TestChecksumOddLength(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	// Must not panic on an odd-length buffer.
	_ = checksum(b)
}
