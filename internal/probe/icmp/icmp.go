// Package icmp sends ICMP echo requests over a raw IPv4 socket and matches
// replies by (identifier, sequence), per spec §4.4. Requires CAP_NET_RAW (or
// root) on UNIX-like systems; per spec §9 this implementation fails fast
// with a clear error rather than falling back to an unprivileged datagram
// socket.
package icmp

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rs/dnscache"
)

const (
	typeEchoRequest = 8
	typeEchoReply   = 0
	packetSize      = 64
	headerSize      = 8
)

// Prober sends ICMP echo requests. A Prober is safe for concurrent use; the
// identifier is randomized once per process and the sequence counter is
// monotonic across every call.
type Prober struct {
	id       uint16
	sequence uint32
	resolver *dnscache.Resolver
}

// New returns a Prober with a process-wide randomized identifier.
func New() *Prober {
	return &Prober{
		id:       uint16(rand.Intn(1 << 16)),
		resolver: &dnscache.Resolver{},
	}
}

// Ping sends a single echo request to address (an IPv4 literal or DNS name)
// and waits up to timeout for the matching reply. It never returns an
// error: every failure mode is recorded on the result.
func (p *Prober) Ping(address string, timeout time.Duration) *models.PingResult {
	result := &models.PingResult{Timestamp: time.Now()}

	ip, err := p.resolve(address)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("resolve %s: %v", address, err)
		return result
	}

	conn, err := net.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("open raw socket (requires elevated privilege): %v", err)
		return result
	}
	defer conn.Close()

	seq := uint16(atomic.AddUint32(&p.sequence, 1))
	packet := p.buildEchoRequest(seq)

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		result.ErrorMessage = fmt.Sprintf("set read deadline: %v", err)
		return result
	}

	start := time.Now()
	if _, err := conn.WriteTo(packet, &net.IPAddr{IP: ip}); err != nil {
		result.ErrorMessage = fmt.Sprintf("send echo request: %v", err)
		return result
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			result.ErrorMessage = fmt.Sprintf("receive timeout: %v", err)
			return result
		}
		rtt := time.Since(start)

		ttl, replyID, replySeq, ok := parseEchoReply(buf[:n])
		if !ok {
			// Not a reply we recognize (header too short / not type 0); keep
			// listening until the deadline, since other traffic can arrive
			// on the same raw socket.
			continue
		}
		if replyID != p.id || replySeq != seq {
			continue
		}

		result.Success = true
		result.LatencyUs = rtt.Microseconds()
		result.TTL = &ttl
		return result
	}
}

func (p *Prober) resolve(address string) (net.IP, error) {
	if ip := net.ParseIP(address); ip != nil {
		return ip.To4(), nil
	}
	ips, err := p.resolver.LookupHost(context.Background(), address)
	if err != nil || len(ips) == 0 {
		if ip := net.ParseIP(address); ip != nil {
			return ip, nil
		}
		return nil, fmt.Errorf("could not resolve %s", address)
	}
	ip := net.ParseIP(ips[0])
	if ip == nil {
		return nil, fmt.Errorf("invalid resolved address %q", ips[0])
	}
	return ip.To4(), nil
}

// monoEpoch anchors the echo payload's timestamp; time.Since reads its
// monotonic clock reading, not the wall clock.
var monoEpoch = time.Now()

// buildEchoRequest builds type=8 code=0, 16-bit id/seq, and a monotonic
// timestamp payload (nanoseconds since monoEpoch) zero-padded to 64 bytes,
// with a valid RFC1071 checksum.
func (p *Prober) buildEchoRequest(seq uint16) []byte {
	packet := make([]byte, packetSize)
	packet[0] = typeEchoRequest
	packet[1] = 0 // code
	// packet[2:4] checksum, filled below
	binary.BigEndian.PutUint16(packet[4:6], p.id)
	binary.BigEndian.PutUint16(packet[6:8], seq)
	binary.BigEndian.PutUint64(packet[8:16], uint64(time.Since(monoEpoch)))

	sum := checksum(packet)
	binary.BigEndian.PutUint16(packet[2:4], sum)
	return packet
}

// parseEchoReply parses the 20+ byte IPv4 header (header length from the low
// nibble of byte 0, TTL at byte 8) followed by the ICMP header. It returns
// ok=false for anything shorter than a minimal IPv4+ICMP header.
func parseEchoReply(b []byte) (ttl int, id, seq uint16, ok bool) {
	if len(b) < 20 {
		return 0, 0, 0, false
	}
	ihl := int(b[0]&0x0f) * 4
	if ihl < 20 || len(b) < ihl+headerSize {
		return 0, 0, 0, false
	}
	ttl = int(b[8])
	icmpHeader := b[ihl:]
	if icmpHeader[0] != typeEchoReply {
		return ttl, 0, 0, false
	}
	id = binary.BigEndian.Uint16(icmpHeader[4:6])
	seq = binary.BigEndian.Uint16(icmpHeader[6:8])
	return ttl, id, seq, true
}
