// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// LinkHeader represents the L2 header of a captured frame. For link types
// without MAC addressing (raw IP, null/loopback) only EtherType is set.
type LinkHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType uint16   // 0x0800=IPv4, 0x86DD=IPv6 after VLAN stripping
	VLANs     []uint16 // 0~2 VLAN IDs (QinQ captures have 2)
}

// IPHeader represents L3 IP header (IPv4/IPv6).
type IPHeader struct {
	Version  uint8
	SrcIP    netip.Addr // Go stdlib value type, zero allocation
	DstIP    netip.Addr
	Protocol uint8 // TCP=6, UDP=17
	TTL      uint8
	TotalLen uint16
	Fragment bool // IPv4 fragment, payload is not dissectable
}

// TransportHeader represents L4 transport layer header (TCP/UDP).
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8 // Redundant storage for convenience
	// TCP-specific fields (only populated for TCP)
	TCPFlags uint8
	SeqNum   uint32
	AckNum   uint32
}
