package decoder

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/tytonet/tyto/internal/core"
)

// Helper function to create a simple IPv4 UDP packet with a 4-byte payload.
func makeSimpleUDPPacket() []byte {
	packet := make([]byte, 46) // Ethernet + IPv4 + UDP headers + payload

	// Ethernet header (14 bytes)
	// Dst MAC: 00:11:22:33:44:55
	packet[0], packet[1], packet[2] = 0x00, 0x11, 0x22
	packet[3], packet[4], packet[5] = 0x33, 0x44, 0x55
	// Src MAC: AA:BB:CC:DD:EE:FF
	packet[6], packet[7], packet[8] = 0xAA, 0xBB, 0xCC
	packet[9], packet[10], packet[11] = 0xDD, 0xEE, 0xFF
	// EtherType: IPv4 (0x0800)
	packet[12], packet[13] = 0x08, 0x00

	// IPv4 header (20 bytes)
	packet[14] = 0x45                   // Version 4, IHL 5
	packet[15] = 0x00                   // DSCP, ECN
	packet[16], packet[17] = 0x00, 0x20 // Total Length: 32 bytes
	packet[18], packet[19] = 0x12, 0x34 // Identification
	packet[20], packet[21] = 0x00, 0x00 // Flags, Fragment Offset
	packet[22] = 0x40                   // TTL: 64
	packet[23] = 0x11                   // Protocol: UDP (17)
	packet[24], packet[25] = 0x00, 0x00 // Checksum (not calculated)
	// Src IP: 192.168.1.1
	packet[26], packet[27], packet[28], packet[29] = 192, 168, 1, 1
	// Dst IP: 192.168.1.2
	packet[30], packet[31], packet[32], packet[33] = 192, 168, 1, 2

	// UDP header (8 bytes)
	packet[34], packet[35] = 0x13, 0x88 // Src Port: 5000
	packet[36], packet[37] = 0x13, 0x89 // Dst Port: 5001
	packet[38], packet[39] = 0x00, 0x0C // Length: 12 bytes (8 header + 4 data)
	packet[40], packet[41] = 0x00, 0x00 // Checksum (not calculated)

	// Payload
	packet[42], packet[43], packet[44], packet[45] = 0xDE, 0xAD, 0xBE, 0xEF

	return packet
}

func TestDecoderDecode(t *testing.T) {
	d, err := New(LinkTypeEthernet)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	raw := core.RawPacket{
		Number:     1,
		Data:       makeSimpleUDPPacket(),
		Timestamp:  time.Now(),
		CaptureLen: 46,
		OrigLen:    46,
	}

	decoded, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// Verify link header
	if decoded.Link.EtherType != 0x0800 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", decoded.Link.EtherType)
	}
	expectedSrcMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if decoded.Link.SrcMAC != expectedSrcMAC {
		t.Errorf("Expected SrcMAC %v, got %v", expectedSrcMAC, decoded.Link.SrcMAC)
	}

	// Verify IP header
	if decoded.IP.Version != 4 {
		t.Errorf("Expected IP version 4, got %d", decoded.IP.Version)
	}
	if decoded.IP.Protocol != 17 {
		t.Errorf("Expected protocol 17 (UDP), got %d", decoded.IP.Protocol)
	}
	expectedSrcIP := netip.MustParseAddr("192.168.1.1")
	if decoded.IP.SrcIP != expectedSrcIP {
		t.Errorf("Expected SrcIP %v, got %v", expectedSrcIP, decoded.IP.SrcIP)
	}
	expectedDstIP := netip.MustParseAddr("192.168.1.2")
	if decoded.IP.DstIP != expectedDstIP {
		t.Errorf("Expected DstIP %v, got %v", expectedDstIP, decoded.IP.DstIP)
	}

	// Verify transport header
	if decoded.Transport.SrcPort != 5000 {
		t.Errorf("Expected SrcPort 5000, got %d", decoded.Transport.SrcPort)
	}
	if decoded.Transport.DstPort != 5001 {
		t.Errorf("Expected DstPort 5001, got %d", decoded.Transport.DstPort)
	}

	// Verify payload
	if len(decoded.Payload) != 4 {
		t.Fatalf("Expected payload length 4, got %d", len(decoded.Payload))
	}
	if decoded.Payload[0] != 0xDE || decoded.Payload[3] != 0xEF {
		t.Errorf("Payload bytes mismatch: %x", decoded.Payload)
	}
	if decoded.Number != 1 {
		t.Errorf("Expected frame number 1, got %d", decoded.Number)
	}
}

func TestDecoderTrimsEthernetTrailer(t *testing.T) {
	d, _ := New(LinkTypeEthernet)

	// Append 6 trailer bytes past the IP datagram; they must not reach
	// the payload.
	data := append(makeSimpleUDPPacket(), 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	raw := core.RawPacket{
		Data:       data,
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
	}

	decoded, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Payload) != 4 {
		t.Errorf("Expected trimmed payload length 4, got %d", len(decoded.Payload))
	}
}

func TestDecoderFragment(t *testing.T) {
	d, _ := New(LinkTypeEthernet)

	data := makeSimpleUDPPacket()
	data[20], data[21] = 0x20, 0x00 // MF flag set
	raw := core.RawPacket{Data: data, CaptureLen: uint32(len(data)), OrigLen: uint32(len(data))}

	decoded, err := d.Decode(raw)
	if !errors.Is(err, core.ErrFragmented) {
		t.Fatalf("Expected ErrFragmented, got %v", err)
	}
	if !decoded.IP.Fragment {
		t.Error("Expected Fragment=true on decoded header")
	}
}

func TestDecoderNonIP(t *testing.T) {
	d, _ := New(LinkTypeEthernet)

	data := makeSimpleUDPPacket()
	data[12], data[13] = 0x08, 0x06 // ARP
	raw := core.RawPacket{Data: data, CaptureLen: uint32(len(data)), OrigLen: uint32(len(data))}

	_, err := d.Decode(raw)
	if !errors.Is(err, core.ErrUnsupportedProto) {
		t.Fatalf("Expected ErrUnsupportedProto, got %v", err)
	}
}

func TestDecoderEmptyPacket(t *testing.T) {
	d, _ := New(LinkTypeEthernet)

	_, err := d.Decode(core.RawPacket{Data: []byte{}})
	if err == nil {
		t.Error("Expected error for empty packet, got nil")
	}
}

func TestDecoderUnknownLinkType(t *testing.T) {
	_, err := New(147)
	if !errors.Is(err, core.ErrUnsupportedLink) {
		t.Fatalf("Expected ErrUnsupportedLink, got %v", err)
	}
}

func TestDecoderTruncated(t *testing.T) {
	d, _ := New(LinkTypeEthernet)

	data := makeSimpleUDPPacket()
	raw := core.RawPacket{
		Data:       data,
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)) + 20, // snaplen cut the frame
	}

	decoded, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !decoded.Truncated {
		t.Error("Expected Truncated=true")
	}
}

func BenchmarkDecoderDecode(b *testing.B) {
	d, _ := New(LinkTypeEthernet)
	packet := makeSimpleUDPPacket()

	raw := core.RawPacket{
		Data:       packet,
		CaptureLen: uint32(len(packet)),
		OrigLen:    uint32(len(packet)),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := d.Decode(raw)
		if err != nil {
			b.Fatal(err)
		}
	}
}
