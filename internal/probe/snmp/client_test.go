package snmp

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeAgent answers GET and GET-NEXT requests from a small, fixed, sorted
// OID table, enough to exercise the client against a real UDP socket
// without a live SNMP agent.
type fakeAgent struct {
	conn    net.PacketConn
	entries []varbindFixture
}

func startFakeAgent(t *testing.T, entries []varbindFixture) (addr string, stop func()) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	agent := &fakeAgent{conn: conn, entries: entries}
	go agent.serve(t)

	return conn.LocalAddr().String(), func() { conn.Close() }
}

func (a *fakeAgent) serve(t *testing.T) {
	buf := make([]byte, 4096)
	for {
		n, from, err := a.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		resp := a.handle(t, buf[:n])
		if resp != nil {
			_, _ = a.conn.WriteTo(resp, from)
		}
	}
}

func (a *fakeAgent) handle(t *testing.T, raw []byte) []byte {
	outer, err := decodeTLV(raw)
	if err != nil {
		return nil
	}
	body := outer.value
	verTLV, err := decodeTLV(body)
	if err != nil {
		return nil
	}
	rest := body[verTLV.next:]
	communityTLV, err := decodeTLV(rest)
	if err != nil {
		return nil
	}
	pduBytes := rest[communityTLV.next:]
	pduTLV, err := decodeTLV(pduBytes)
	if err != nil {
		return nil
	}
	// Skip requestID, errorStatus, errorIndex to reach the varbind list.
	cursor := pduTLV.value
	for i := 0; i < 3; i++ {
		tlv, err := decodeTLV(cursor)
		if err != nil {
			return nil
		}
		cursor = cursor[tlv.next:]
	}
	listTLV, err := decodeTLV(cursor)
	if err != nil {
		return nil
	}

	entryTLV, err := decodeTLV(listTLV.value)
	if err != nil {
		return nil
	}
	oidTLV, err := decodeTLV(entryTLV.value)
	if err != nil {
		return nil
	}
	requestedOID, err := decodeOID(oidTLV.value)
	if err != nil {
		return nil
	}

	var matched *varbindFixture
	if pduTLV.tag == pduGetNext {
		for i := range a.entries {
			if a.entries[i].oid > requestedOID {
				matched = &a.entries[i]
				break
			}
		}
	} else {
		for i := range a.entries {
			if a.entries[i].oid == requestedOID {
				matched = &a.entries[i]
				break
			}
		}
	}

	if matched == nil {
		return encodeGetResponse(t, models.SnmpV2c, "public", 1, []varbindFixture{
			{oid: requestedOID, tag: tagEndOfMib, value: nil},
		}, 0, 0)
	}
	return encodeGetResponse(t, models.SnmpV2c, "public", 1, []varbindFixture{*matched}, 0, 0)
}

func TestClientGetAgainstFakeAgent(t *testing.T) {
	addr, stop := startFakeAgent(t, []varbindFixture{
		{oid: "1.3.6.1.2.1.1.1.0", tag: tagOctetStr, value: []byte("device-a")},
	})
	defer stop()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	client := NewClient()
	result := client.Get(host, []string{"1.3.6.1.2.1.1.1.0"}, Config{
		Version: models.SnmpV2c,
		Creds:   models.SnmpCredentials{Community: "public"},
		Port:    portNum,
		Timeout: 2 * time.Second,
	})
	require.True(t, result.Success, result.ErrorMessage)
	require.Len(t, result.VarBinds, 1)
	require.Equal(t, "device-a", result.VarBinds[0].Value)
}

// S7: walk from 1.3.6.1.2.1.1 stops at the first varbind whose OID does not
// begin with "1.3.6.1.2.1.1.". This fixture reaches that boundary before the
// end of the agent's MIB, so the EndOfMibView stop is not exercised here.
func TestWalkScenarioS7(t *testing.T) {
	addr, stop := startFakeAgent(t, []varbindFixture{
		{oid: "1.3.6.1.2.1.1.1.0", tag: tagOctetStr, value: []byte("sysDescr")},
		{oid: "1.3.6.1.2.1.1.2.0", tag: tagOID, value: mustEncodeOIDValue(t, "1.3.6.1.4.1.1")},
		{oid: "1.3.6.1.2.1.2.1.0", tag: tagInteger, value: []byte{0x01}}, // outside the 1.1 subtree
	})
	defer stop()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	client := NewClient()
	results, err := client.Walk(host, "1.3.6.1.2.1.1", Config{
		Version: models.SnmpV2c,
		Creds:   models.SnmpCredentials{Community: "public"},
		Port:    portNum,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "1.3.6.1.2.1.1.1.0", results[0].OID)
	require.Equal(t, "1.3.6.1.2.1.1.2.0", results[1].OID)
}

func mustEncodeOIDValue(t *testing.T, dotted string) []byte {
	t.Helper()
	encoded, err := encodeOID(dotted)
	require.NoError(t, err)
	tlv, err := decodeTLV(encoded)
	require.NoError(t, err)
	return tlv.value
}
