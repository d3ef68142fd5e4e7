// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"github.com/tytonet/tyto/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20

	// Protocol numbers
	protocolTCP = 6
	protocolUDP = 17
)

// decodeTransport decodes a transport layer header (TCP/UDP).
// Returns the header and remaining payload.
func decodeTransport(data []byte, protocol uint8) (core.TransportHeader, []byte, error) {
	switch protocol {
	case protocolTCP:
		return decodeTCP(data)
	case protocolUDP:
		return decodeUDP(data)
	default:
		// Unsupported transport protocol (e.g., SCTP, ICMP)
		return core.TransportHeader{Protocol: protocol}, data, nil
	}
}

// decodeUDP decodes a UDP header. The payload is trimmed to the datagram
// length the header claims when that length is plausible.
func decodeUDP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{Protocol: protocolUDP}
	transport.SrcPort = binary.BigEndian.Uint16(data[0:2])
	transport.DstPort = binary.BigEndian.Uint16(data[2:4])

	payload := data[udpHeaderLen:]
	// Length at offset 4 covers header plus data.
	if udpLen := int(binary.BigEndian.Uint16(data[4:6])); udpLen >= udpHeaderLen && udpLen <= len(data) {
		payload = data[udpHeaderLen:udpLen]
	}
	return transport, payload, nil
}

// decodeTCP decodes a TCP header.
func decodeTCP(data []byte) (core.TransportHeader, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TransportHeader{}, nil, core.ErrPacketTooShort
	}

	transport := core.TransportHeader{Protocol: protocolTCP}
	transport.SrcPort = binary.BigEndian.Uint16(data[0:2])
	transport.DstPort = binary.BigEndian.Uint16(data[2:4])
	transport.SeqNum = binary.BigEndian.Uint32(data[4:8])
	transport.AckNum = binary.BigEndian.Uint32(data[8:12])

	// Data offset is in 32-bit words (upper 4 bits of byte 12)
	headerLen := int(data[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return transport, nil, core.ErrPacketTooShort
	}

	// Byte 13: | reserved (2 bits) | flags (6 bits: URG ACK PSH RST SYN FIN) |
	transport.TCPFlags = data[13] & 0x3F

	// Payload starts after TCP header (including options)
	return transport, data[headerLen:], nil
}
