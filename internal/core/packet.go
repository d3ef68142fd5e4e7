// Package core defines core data structures with zero external dependencies.
package core

import (
	"net/netip"
	"time"
)

// RawPacket is one frame as read from the capture file.
type RawPacket struct {
	Number     uint32    // 1-based position in the capture
	Data       []byte    // Raw frame data
	Timestamp  time.Time // Capture timestamp from the file
	CaptureLen uint32    // Bytes present in Data
	OrigLen    uint32    // Original frame length on the wire
}

// DecodedPacket is the result of L2-L4 protocol stack decoding. Payload is
// trimmed to the length the IP and transport headers claim, so capture-level
// trailing bytes (ethernet padding) never reach the dissectors.
type DecodedPacket struct {
	Number    uint32
	Timestamp time.Time
	Link      LinkHeader
	IP        IPHeader
	Transport TransportHeader
	Payload   []byte // Application layer payload, zero-copy slice
	Truncated bool   // Capture snapped the frame short of its wire length
}

// OutputRecord is the per-frame analysis result handed to the renderers.
type OutputRecord struct {
	Number    uint32
	Timestamp time.Time

	// Network context
	SrcIP    netip.Addr
	DstIP    netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8

	// Dissection result
	Dissector string // name of the dissector that claimed the payload, "" if none
	Labels    Labels // summary annotations, see labels.go
	Consumed  int    // bytes of payload the dissector accounted for
	Err       string // first structural fault, empty when clean
}
