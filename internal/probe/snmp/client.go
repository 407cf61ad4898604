package snmp

import (
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
)

const defaultPort = 161
const maxWalkIterations = 1000

// Config parameterizes one poll.
type Config struct {
	Version    models.SnmpVersion
	Creds      models.SnmpCredentials
	Port       int
	Timeout    time.Duration
	Retries    int
}

// Client issues SNMP GET/GET-NEXT/WALK requests over UDP. Like the ICMP
// Prober, its methods block; callers run them on the I/O Runtime pool to
// get asynchronous behavior.
type Client struct{}

func NewClient() *Client { return &Client{} }

// Get performs a single GetRequest for oids against address.
func (c *Client) Get(address string, oids []string, cfg Config) *models.SnmpResult {
	return c.request(address, oids, pduGetRequest, cfg)
}

// GetNext performs a single GetNextRequest for oids against address.
func (c *Client) GetNext(address string, oids []string, cfg Config) *models.SnmpResult {
	return c.request(address, oids, pduGetNext, cfg)
}

// Walk implements spec §4.6's walk algorithm: repeated GET-NEXT, stopping
// at the first varbind outside rootOid's subtree, an end-of-MIB marker, or
// after maxWalkIterations (cycle guard).
func (c *Client) Walk(address, rootOID string, cfg Config) ([]models.SnmpVarBind, error) {
	var out []models.SnmpVarBind
	currentOID := rootOID

	for i := 0; i < maxWalkIterations; i++ {
		result := c.request(address, []string{currentOID}, pduGetNext, cfg)
		if !result.Success || len(result.VarBinds) == 0 {
			return out, fmt.Errorf("snmp walk: %s", result.ErrorMessage)
		}
		vb := result.VarBinds[0]
		if !isPrefixDescendant(vb.OID, rootOID) {
			break
		}
		switch vb.Type {
		case models.SnmpTypeEndOfMibView, models.SnmpTypeNoSuchObject, models.SnmpTypeNoSuchInstance:
			return out, nil
		}
		out = append(out, vb)
		currentOID = vb.OID
	}
	return out, nil
}

func (c *Client) request(address string, oids []string, pduTag byte, cfg Config) *models.SnmpResult {
	result := &models.SnmpResult{
		Timestamp: time.Now(),
		Version:   cfg.Version,
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}

	requestID := rand.Int31()
	req, err := buildRequest(cfg.Version, cfg.Creds, requestID, pduTag, oids)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	target := net.JoinHostPort(address, fmt.Sprintf("%d", port))

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		start := time.Now()
		resp, err := c.roundTrip(target, req, timeout)
		if err != nil {
			lastErr = err
			continue
		}
		result.ResponseTimeUs = time.Since(start).Microseconds()

		version, varbinds, errStatus, errIndex, err := parseResponse(resp)
		if err != nil {
			lastErr = err
			continue
		}
		if errStatus != 0 {
			result.Success = false
			result.ErrorStatus = errStatus
			result.ErrorIndex = errIndex
			result.ErrorMessage = errorStatusMessage(errStatus)
			return result
		}

		result.Success = true
		result.Version = version
		result.VarBinds = varbinds
		return result
	}

	result.ErrorMessage = fmt.Sprintf("snmp request failed after %d attempt(s): %v", retries+1, lastErr)
	return result
}

func (c *Client) roundTrip(target string, req []byte, timeout time.Duration) ([]byte, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	return buf[:n], nil
}
