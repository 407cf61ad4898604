package snmp

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rcourtman/netpulse/internal/models"
)

var errMalformed = errors.New("snmp: malformed message")

// versionNumber maps the model's version enum to the wire INTEGER per
// spec §4.6 (v1=0, v2c=1, v3=3).
func versionNumber(v models.SnmpVersion) int64 {
	switch v {
	case models.SnmpV1:
		return 0
	case models.SnmpV2c:
		return 1
	case models.SnmpV3:
		return 3
	default:
		return 1
	}
}

// buildRequest encodes a GetRequest/GetNextRequest PDU for the given OIDs,
// per spec §4.6's v1/v2c and v3 message shapes.
func buildRequest(version models.SnmpVersion, creds models.SnmpCredentials, requestID int32, pduTag byte, oids []string) ([]byte, error) {
	varbinds, err := encodeVarbindList(oids)
	if err != nil {
		return nil, err
	}
	pdu := encodeTLV(pduTag, concat(
		encodeInteger(int64(requestID)),
		encodeInteger(0), // errorStatus
		encodeInteger(0), // errorIndex
		varbinds,
	))

	if version == models.SnmpV3 {
		return buildV3Message(creds, pdu), nil
	}

	return encodeSequence(
		encodeInteger(versionNumber(version)),
		encodeOctetString([]byte(creds.Community)),
		pdu,
	), nil
}

func encodeVarbindList(oids []string) ([]byte, error) {
	var entries []byte
	for _, oid := range oids {
		encodedOID, err := encodeOID(oid)
		if err != nil {
			return nil, fmt.Errorf("encode oid %q: %w", oid, err)
		}
		entries = append(entries, encodeSequence(encodedOID, encodeNull())...)
	}
	return encodeSequence(entries), nil
}

// buildV3Message wraps the PDU in a ScopedPDU with empty contextEngineID/
// contextName, and a msgGlobalData/msgSecurityParameters pair that sets the
// msgFlags reportable bit (0x04) plus auth/priv bits implied by the
// requested security level — without computing digests or privacy, per
// spec §4.6's explicit noAuthNoPriv-only scope.
func buildV3Message(creds models.SnmpCredentials, pdu []byte) []byte {
	flags := byte(0x04)
	switch creds.SecurityLevel {
	case models.SnmpAuthNoPriv:
		flags |= 0x01
	case models.SnmpAuthPriv:
		flags |= 0x01 | 0x02
	}

	msgGlobalData := encodeSequence(
		encodeInteger(0),                        // msgID
		encodeInteger(65507),                     // msgMaxSize
		encodeOctetString([]byte{flags}),         // msgFlags
		encodeInteger(3),                         // msgSecurityModel (USM)
	)

	usm := encodeSequence(
		encodeOctetString(nil), // msgAuthoritativeEngineID
		encodeInteger(0),       // msgAuthoritativeEngineBoots
		encodeInteger(0),       // msgAuthoritativeEngineTime
		encodeOctetString([]byte(creds.Username)),
		encodeOctetString(nil), // msgAuthenticationParameters
		encodeOctetString(nil), // msgPrivacyParameters
	)
	msgSecurityParameters := encodeOctetString(usm)

	scopedPDU := encodeSequence(
		encodeOctetString([]byte(creds.ContextEngineID)),
		encodeOctetString([]byte(creds.ContextName)),
		pdu,
	)

	return encodeSequence(
		encodeInteger(3),
		msgGlobalData,
		msgSecurityParameters,
		scopedPDU,
	)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// parseResponse decodes a GetResponse message per spec §4.6's parsing
// rules, branching on version and skipping the v3 security envelope.
func parseResponse(raw []byte) (version models.SnmpVersion, varbinds []models.SnmpVarBind, errStatus, errIndex int, err error) {
	outer, err := decodeTLV(raw)
	if err != nil || outer.tag != tagSequence {
		return "", nil, 0, 0, errMalformed
	}
	body := outer.value

	verTLV, err := decodeTLV(body)
	if err != nil || verTLV.tag != tagInteger {
		return "", nil, 0, 0, errMalformed
	}
	verNum := decodeInteger(verTLV.value)
	rest := body[verTLV.next:]

	var pduBytes []byte
	switch verNum {
	case 0, 1:
		version = models.SnmpV1
		if verNum == 1 {
			version = models.SnmpV2c
		}
		communityTLV, err := decodeTLV(rest)
		if err != nil {
			return "", nil, 0, 0, errMalformed
		}
		pduBytes = rest[communityTLV.next:]
	case 3:
		version = models.SnmpV3
		globalTLV, err := decodeTLV(rest)
		if err != nil {
			return "", nil, 0, 0, errMalformed
		}
		rest = rest[globalTLV.next:]
		secTLV, err := decodeTLV(rest)
		if err != nil {
			return "", nil, 0, 0, errMalformed
		}
		rest = rest[secTLV.next:]
		scopedTLV, err := decodeTLV(rest)
		if err != nil || scopedTLV.tag != tagSequence {
			return "", nil, 0, 0, errMalformed
		}
		scoped := scopedTLV.value
		engineIDTLV, err := decodeTLV(scoped)
		if err != nil {
			return "", nil, 0, 0, errMalformed
		}
		scoped = scoped[engineIDTLV.next:]
		contextNameTLV, err := decodeTLV(scoped)
		if err != nil {
			return "", nil, 0, 0, errMalformed
		}
		pduBytes = scoped[contextNameTLV.next:]
	default:
		return "", nil, 0, 0, errMalformed
	}

	pduTLV, err := decodeTLV(pduBytes)
	if err != nil || pduTLV.tag != pduGetResponse {
		return "", nil, 0, 0, errMalformed
	}

	reqIDTLV, err := decodeTLV(pduTLV.value)
	if err != nil {
		return "", nil, 0, 0, errMalformed
	}
	cursor := pduTLV.value[reqIDTLV.next:]

	errStatusTLV, err := decodeTLV(cursor)
	if err != nil {
		return "", nil, 0, 0, errMalformed
	}
	cursor = cursor[errStatusTLV.next:]
	errIndexTLV, err := decodeTLV(cursor)
	if err != nil {
		return "", nil, 0, 0, errMalformed
	}
	cursor = cursor[errIndexTLV.next:]

	errStatus = int(decodeInteger(errStatusTLV.value))
	errIndex = int(decodeInteger(errIndexTLV.value))
	if errStatus != 0 {
		return version, nil, errStatus, errIndex, nil
	}

	listTLV, err := decodeTLV(cursor)
	if err != nil || listTLV.tag != tagSequence {
		return "", nil, 0, 0, errMalformed
	}

	varbinds, err = parseVarbindList(listTLV.value)
	if err != nil {
		return "", nil, 0, 0, errMalformed
	}
	return version, varbinds, 0, 0, nil
}

func parseVarbindList(buf []byte) ([]models.SnmpVarBind, error) {
	var out []models.SnmpVarBind
	for len(buf) > 0 {
		entryTLV, err := decodeTLV(buf)
		if err != nil || entryTLV.tag != tagSequence {
			return nil, errMalformed
		}
		buf = buf[entryTLV.next:]

		entry := entryTLV.value
		oidTLV, err := decodeTLV(entry)
		if err != nil || oidTLV.tag != tagOID {
			return nil, errMalformed
		}
		oid, err := decodeOID(oidTLV.value)
		if err != nil {
			return nil, errMalformed
		}
		valueTLV, err := decodeTLV(entry[oidTLV.next:])
		if err != nil {
			return nil, errMalformed
		}
		out = append(out, decodeVarbind(oid, valueTLV))
	}
	return out, nil
}

// decodeVarbind renders a value by tag, per spec §4.6: Counter/Gauge/
// TimeTicks parse as unsigned big-endian, IpAddress (length 4) as dotted
// decimal, unknown tags as hex.
func decodeVarbind(oid string, v tlv) models.SnmpVarBind {
	vb := models.SnmpVarBind{OID: oid}
	switch v.tag {
	case tagInteger:
		n := decodeInteger(v.value)
		vb.Type = models.SnmpTypeInteger
		vb.IntValue = &n
		vb.Value = fmt.Sprintf("%d", n)
	case tagOctetStr:
		vb.Type = models.SnmpTypeOctetString
		vb.Value = string(v.value)
	case tagNull:
		vb.Type = models.SnmpTypeNull
	case tagOID:
		decoded, err := decodeOID(v.value)
		vb.Type = models.SnmpTypeObjectID
		if err == nil {
			vb.Value = decoded
		}
	case tagIPAddress:
		vb.Type = models.SnmpTypeIPAddress
		if len(v.value) == 4 {
			vb.Value = net.IP(v.value).String()
		}
	case tagCounter32:
		u := decodeUnsigned(v.value)
		vb.Type = models.SnmpTypeCounter32
		vb.CounterValue = &u
		vb.Value = fmt.Sprintf("%d", u)
	case tagGauge32:
		u := decodeUnsigned(v.value)
		vb.Type = models.SnmpTypeGauge32
		vb.CounterValue = &u
		vb.Value = fmt.Sprintf("%d", u)
	case tagTimeTicks:
		u := decodeUnsigned(v.value)
		vb.Type = models.SnmpTypeTimeTicks
		vb.CounterValue = &u
		vb.Value = fmt.Sprintf("%d", u)
	case tagCounter64:
		u := decodeUnsigned(v.value)
		vb.Type = models.SnmpTypeCounter64
		vb.CounterValue = &u
		vb.Value = fmt.Sprintf("%d", u)
	case tagNoSuchObj:
		vb.Type = models.SnmpTypeNoSuchObject
	case tagNoSuchInst:
		vb.Type = models.SnmpTypeNoSuchInstance
	case tagEndOfMib:
		vb.Type = models.SnmpTypeEndOfMibView
	default:
		vb.Type = models.SnmpTypeUnknown
		vb.Value = fmt.Sprintf("%x", v.value)
	}
	return vb
}

func errorStatusMessage(status int) string {
	messages := map[int]string{
		1: "tooBig", 2: "noSuchName", 3: "badValue", 4: "readOnly",
		5: "genErr", 6: "noAccess", 7: "wrongType", 8: "wrongLength",
		9: "wrongEncoding", 10: "wrongValue", 11: "noCreation",
		12: "inconsistentValue", 13: "resourceUnavailable", 14: "commitFailed",
		15: "undoFailed", 16: "authorizationError", 17: "notWritable",
		18: "inconsistentName",
	}
	if msg, ok := messages[status]; ok {
		return msg
	}
	return strings.TrimSpace(fmt.Sprintf("snmp error status %d", status))
}
