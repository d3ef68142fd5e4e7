// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"github.com/tytonet/tyto/internal/core"
)

const (
	// Protocol numbers
	protocolIPIP = 4
	protocolGRE  = 47

	// Well-known UDP ports
	vxlanPort  = 4789
	genevePort = 6081

	// Header lengths
	greHeaderMinLen = 4
	vxlanHeaderLen  = 8
	geneveHeaderLen = 8
)

// decapsulate unwraps one level of GRE, IPIP, VXLAN or Geneve encapsulation
// and returns the inner IP header and payload. ok is false when the data does
// not carry a recognizable tunnel; a malformed inner frame counts as not a
// tunnel, leaving the caller on the outer headers.
func decapsulate(protocol uint8, data []byte) (core.IPHeader, []byte, bool) {
	switch protocol {
	case protocolGRE:
		return decapGRE(data)
	case protocolIPIP:
		return innerIP(data)
	case protocolUDP:
		// VXLAN and Geneve ride UDP; peek at the destination port.
		if len(data) < udpHeaderLen {
			return core.IPHeader{}, nil, false
		}
		switch binary.BigEndian.Uint16(data[2:4]) {
		case vxlanPort:
			return decapVXLAN(data[udpHeaderLen:])
		case genevePort:
			return decapGeneve(data[udpHeaderLen:])
		}
	}
	return core.IPHeader{}, nil, false
}

// decapGRE unwraps a GRE header (RFC 2784/2890). The checksum, key and
// sequence flag bits each add a 4-byte word to the base header.
func decapGRE(data []byte) (core.IPHeader, []byte, bool) {
	if len(data) < greHeaderMinLen {
		return core.IPHeader{}, nil, false
	}

	flags := binary.BigEndian.Uint16(data[0:2])
	protocolType := binary.BigEndian.Uint16(data[2:4])

	headerLen := greHeaderMinLen
	if flags&0x8000 != 0 { // checksum present
		headerLen += 4
	}
	if flags&0x2000 != 0 { // key present
		headerLen += 4
	}
	if flags&0x1000 != 0 { // sequence present
		headerLen += 4
	}

	if len(data) < headerLen {
		return core.IPHeader{}, nil, false
	}
	if protocolType != etherTypeIPv4 && protocolType != etherTypeIPv6 {
		return core.IPHeader{}, nil, false
	}
	return innerIP(data[headerLen:])
}

// decapVXLAN unwraps a VXLAN header (RFC 7348). The I flag must be set for
// the frame to count as VXLAN; the payload is an Ethernet frame.
func decapVXLAN(data []byte) (core.IPHeader, []byte, bool) {
	if len(data) < vxlanHeaderLen {
		return core.IPHeader{}, nil, false
	}
	if data[0]&0x08 == 0 {
		return core.IPHeader{}, nil, false
	}
	return innerEthernet(data[vxlanHeaderLen:])
}

// decapGeneve unwraps a Geneve header (RFC 8926) including its variable
// options block; the payload is an Ethernet frame.
func decapGeneve(data []byte) (core.IPHeader, []byte, bool) {
	if len(data) < geneveHeaderLen {
		return core.IPHeader{}, nil, false
	}
	if data[0]>>6 != 0 { // version must be 0
		return core.IPHeader{}, nil, false
	}

	headerLen := geneveHeaderLen + int(data[0]&0x3F)*4
	if len(data) < headerLen {
		return core.IPHeader{}, nil, false
	}
	return innerEthernet(data[headerLen:])
}

// innerEthernet strips the inner Ethernet header carried by VXLAN and Geneve
// and decodes the IP datagram behind it. VLAN tags inside the tunnel are not
// walked.
func innerEthernet(frame []byte) (core.IPHeader, []byte, bool) {
	if len(frame) < ethernetHeaderLen {
		return core.IPHeader{}, nil, false
	}
	etherType := binary.BigEndian.Uint16(frame[12:14])
	if etherType != etherTypeIPv4 && etherType != etherTypeIPv6 {
		return core.IPHeader{}, nil, false
	}
	return innerIP(frame[ethernetHeaderLen:])
}

func innerIP(data []byte) (core.IPHeader, []byte, bool) {
	ip, payload, err := decodeIP(data)
	if err != nil {
		return core.IPHeader{}, nil, false
	}
	return ip, payload, true
}
