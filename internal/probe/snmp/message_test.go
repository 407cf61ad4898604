package snmp

import (
	"testing"

	"github.com/rcourtman/netpulse/internal/models"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseV2cGetResponseRoundTrip(t *testing.T) {
	req, err := buildRequest(models.SnmpV2c, models.SnmpCredentials{Community: "public"}, 42, pduGetRequest, []string{"1.3.6.1.2.1.1.1.0"})
	require.NoError(t, err)
	require.NotEmpty(t, req)

	response := encodeGetResponse(t, models.SnmpV2c, "public", 42, []varbindFixture{
		{oid: "1.3.6.1.2.1.1.1.0", tag: tagOctetStr, value: []byte("a test device")},
	}, 0, 0)

	version, varbinds, errStatus, errIndex, err := parseResponse(response)
	require.NoError(t, err)
	require.Equal(t, models.SnmpV2c, version)
	require.Equal(t, 0, errStatus)
	require.Equal(t, 0, errIndex)
	require.Len(t, varbinds, 1)
	require.Equal(t, "a test device", varbinds[0].Value)
	require.Equal(t, models.SnmpTypeOctetString, varbinds[0].Type)
}

func TestParseResponseReportsNonZeroErrorStatus(t *testing.T) {
	response := encodeGetResponse(t, models.SnmpV1, "public", 1, nil, 2, 1)
	version, varbinds, errStatus, errIndex, err := parseResponse(response)
	require.NoError(t, err)
	require.Equal(t, models.SnmpV1, version)
	require.Nil(t, varbinds)
	require.Equal(t, 2, errStatus)
	require.Equal(t, 1, errIndex)
	require.Equal(t, "noSuchName", errorStatusMessage(errStatus))
}

func TestParseResponseDecodesCounterTypes(t *testing.T) {
	response := encodeGetResponse(t, models.SnmpV2c, "public", 1, []varbindFixture{
		{oid: "1.3.6.1.2.1.2.2.1.10.1", tag: tagCounter32, value: []byte{0x00, 0x00, 0x01, 0x00}},
	}, 0, 0)
	_, varbinds, _, _, err := parseResponse(response)
	require.NoError(t, err)
	require.Len(t, varbinds, 1)
	require.Equal(t, models.SnmpTypeCounter32, varbinds[0].Type)
	require.Equal(t, uint64(256), *varbinds[0].CounterValue)
}

type varbindFixture struct {
	oid   string
	tag   byte
	value []byte
}

// encodeGetResponse hand-builds a GetResponse message matching spec §4.6's
// v1/v2c wire shape, used to exercise parseResponse without a live agent.
func encodeGetResponse(t *testing.T, version models.SnmpVersion, community string, requestID int32, varbinds []varbindFixture, errStatus, errIndex int) []byte {
	t.Helper()

	var entries []byte
	for _, vb := range varbinds {
		encodedOID, err := encodeOID(vb.oid)
		require.NoError(t, err)
		entries = append(entries, encodeSequence(encodedOID, encodeTLV(vb.tag, vb.value))...)
	}
	pdu := encodeTLV(pduGetResponse, concat(
		encodeInteger(int64(requestID)),
		encodeInteger(int64(errStatus)),
		encodeInteger(int64(errIndex)),
		encodeSequence(entries),
	))

	return encodeSequence(
		encodeInteger(versionNumber(version)),
		encodeOctetString([]byte(community)),
		pdu,
	)
}
