// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"github.com/tytonet/tyto/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40
)

// decodeIP decodes an IP header (IPv4 or IPv6) and returns the header plus
// the payload trimmed to the length the header claims. Captured frames are
// often longer than the datagram (ethernet trailer padding); the trim keeps
// those trailing bytes away from the dissectors.
func decodeIP(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < 1 {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	switch data[0] >> 4 {
	case 4:
		return decodeIPv4(data)
	case 6:
		return decodeIPv6(data)
	default:
		return core.IPHeader{}, nil, core.ErrUnsupportedProto
	}
}

// decodeIPv4 decodes an IPv4 header.
func decodeIPv4(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	// IHL is in 32-bit words
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPHeader{Version: 4}
	ip.TotalLen = binary.BigEndian.Uint16(data[2:4])
	ip.TTL = data[8]
	ip.Protocol = data[9]

	// Flags and fragment offset at offset 6: MF flag or a non-zero offset
	// marks a fragment.
	flagsOffset := binary.BigEndian.Uint16(data[6:8])
	ip.Fragment = (flagsOffset&0x2000) != 0 || (flagsOffset&0x1FFF) != 0

	addr, ok := netip.AddrFromSlice(data[12:16])
	if !ok {
		return ip, nil, core.ErrPacketTooShort
	}
	ip.SrcIP = addr

	addr, ok = netip.AddrFromSlice(data[16:20])
	if !ok {
		return ip, nil, core.ErrPacketTooShort
	}
	ip.DstIP = addr

	payload := data[headerLen:]
	// Trim to the datagram's own length when it is plausible. A zero or
	// undersized TotalLen (TSO capture artifacts) leaves the payload as is.
	if end := int(ip.TotalLen); end >= headerLen && end <= len(data) {
		payload = data[headerLen:end]
	}
	return ip, payload, nil
}

// decodeIPv6 decodes an IPv6 header. Extension headers are not walked; the
// next-header value is reported as the protocol.
func decodeIPv6(data []byte) (core.IPHeader, []byte, error) {
	if len(data) < ipv6HeaderLen {
		return core.IPHeader{}, nil, core.ErrPacketTooShort
	}

	ip := core.IPHeader{Version: 6}

	payloadLen := binary.BigEndian.Uint16(data[4:6])
	ip.TotalLen = uint16(ipv6HeaderLen) + payloadLen
	ip.Protocol = data[6] // next header
	ip.TTL = data[7]      // hop limit

	addr, ok := netip.AddrFromSlice(data[8:24])
	if !ok {
		return ip, nil, core.ErrPacketTooShort
	}
	ip.SrcIP = addr

	addr, ok = netip.AddrFromSlice(data[24:40])
	if !ok {
		return ip, nil, core.ErrPacketTooShort
	}
	ip.DstIP = addr

	payload := data[ipv6HeaderLen:]
	if end := ipv6HeaderLen + int(payloadLen); payloadLen > 0 && end <= len(data) {
		payload = data[ipv6HeaderLen:end]
	}
	return ip, payload, nil
}
