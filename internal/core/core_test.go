package core

import (
	"errors"
	"net/netip"
	"testing"
	"time"
)

// Test zero values of core structs
func TestStructZeroValues(t *testing.T) {
	t.Run("LinkHeader", func(t *testing.T) {
		var link LinkHeader
		if link.EtherType != 0 {
			t.Errorf("expected EtherType=0, got %d", link.EtherType)
		}
		if link.VLANs != nil {
			t.Errorf("expected VLANs=nil, got %v", link.VLANs)
		}
	})

	t.Run("IPHeader", func(t *testing.T) {
		var ip IPHeader
		if ip.Version != 0 {
			t.Errorf("expected Version=0, got %d", ip.Version)
		}
		if ip.SrcIP.IsValid() {
			t.Errorf("expected invalid SrcIP, got %v", ip.SrcIP)
		}
		if ip.Fragment {
			t.Error("expected Fragment=false")
		}
	})

	t.Run("TransportHeader", func(t *testing.T) {
		var th TransportHeader
		if th.SrcPort != 0 || th.DstPort != 0 {
			t.Errorf("expected zero ports, got src=%d dst=%d", th.SrcPort, th.DstPort)
		}
	})

	t.Run("RawPacket", func(t *testing.T) {
		var raw RawPacket
		if raw.Data != nil {
			t.Errorf("expected Data=nil, got %v", raw.Data)
		}
		if !raw.Timestamp.IsZero() {
			t.Errorf("expected zero Timestamp, got %v", raw.Timestamp)
		}
	})

	t.Run("DecodedPacket", func(t *testing.T) {
		var decoded DecodedPacket
		if decoded.Truncated {
			t.Errorf("expected Truncated=false, got true")
		}
		if decoded.Payload != nil {
			t.Errorf("expected Payload=nil, got %v", decoded.Payload)
		}
	})

	t.Run("OutputRecord", func(t *testing.T) {
		var out OutputRecord
		if out.Dissector != "" {
			t.Errorf("expected empty Dissector, got %q", out.Dissector)
		}
		if out.Labels != nil {
			t.Errorf("expected Labels=nil, got %v", out.Labels)
		}
	})
}

// Test Labels operations
func TestLabels(t *testing.T) {
	t.Run("CreateAndSet", func(t *testing.T) {
		labels := make(Labels)
		labels[LabelRTCPTypes] = "SR,SDES"
		labels[LabelTPNCPName] = "acEV_KEEP_ALIVE"

		if labels[LabelRTCPTypes] != "SR,SDES" {
			t.Errorf("expected SR,SDES, got %s", labels[LabelRTCPTypes])
		}
		if labels[LabelTPNCPName] != "acEV_KEEP_ALIVE" {
			t.Errorf("expected acEV_KEEP_ALIVE, got %s", labels[LabelTPNCPName])
		}
	})

	t.Run("LabelConstants", func(t *testing.T) {
		// Verify label naming convention {protocol}.{field}
		expected := map[string]string{
			LabelSIPMethod:     "sip.method",
			LabelSIPCallID:     "sip.call_id",
			LabelRTCPTypes:     "rtcp.types",
			LabelRTCPRoundtrip: "rtcp.roundtrip_ms",
			LabelTPNCPKind:     "tpncp.kind",
			LabelTPNCPID:       "tpncp.id",
		}

		for constant, expectedName := range expected {
			if constant != expectedName {
				t.Errorf("label constant mismatch: expected %s, got %s", expectedName, constant)
			}
		}
	})

	t.Run("NilLabels", func(t *testing.T) {
		var labels Labels
		// Accessing nil map should not panic, but return zero value
		if val := labels[LabelSIPMethod]; val != "" {
			t.Errorf("expected empty string from nil map, got %s", val)
		}
	})
}

// Test sentinel errors
func TestSentinelErrors(t *testing.T) {
	t.Run("ErrorIdentity", func(t *testing.T) {
		err := ErrPacketTooShort
		if !errors.Is(err, ErrPacketTooShort) {
			t.Error("errors.Is failed for ErrPacketTooShort")
		}

		err = ErrBadCaptureFile
		if !errors.Is(err, ErrBadCaptureFile) {
			t.Error("errors.Is failed for ErrBadCaptureFile")
		}
	})

	t.Run("ErrorMessages", func(t *testing.T) {
		tests := []struct {
			err     error
			message string
		}{
			{ErrPacketTooShort, "tyto: packet too short"},
			{ErrUnsupportedLink, "tyto: unsupported link type"},
			{ErrUnsupportedProto, "tyto: unsupported protocol"},
			{ErrFragmented, "tyto: fragmented datagram"},
			{ErrSourceExhausted, "tyto: capture source exhausted"},
			{ErrBadCaptureFile, "tyto: unreadable capture file"},
			{ErrConfigInvalid, "tyto: invalid configuration"},
		}

		for _, tt := range tests {
			if tt.err.Error() != tt.message {
				t.Errorf("expected error message %q, got %q", tt.message, tt.err.Error())
			}
		}
	})

	t.Run("ErrorWrapping", func(t *testing.T) {
		wrapped := errors.Join(ErrUnsupportedLink, errors.New("additional context"))
		if !errors.Is(wrapped, ErrUnsupportedLink) {
			t.Error("errors.Is failed for wrapped error")
		}
	})
}

// Test packet structures with real data
func TestPacketStructures(t *testing.T) {
	t.Run("DecodedPacket", func(t *testing.T) {
		srcIP := netip.MustParseAddr("192.168.1.1")
		dstIP := netip.MustParseAddr("192.168.1.2")

		decoded := DecodedPacket{
			Number:    7,
			Timestamp: time.Now(),
			Link: LinkHeader{
				EtherType: 0x0800, // IPv4
			},
			IP: IPHeader{
				Version:  4,
				SrcIP:    srcIP,
				DstIP:    dstIP,
				Protocol: 17, // UDP
			},
			Transport: TransportHeader{
				SrcPort:  5005,
				DstPort:  5007,
				Protocol: 17,
			},
			Payload: []byte("test payload"),
		}

		if decoded.IP.SrcIP != srcIP {
			t.Errorf("SrcIP mismatch")
		}
		if decoded.IP.DstIP != dstIP {
			t.Errorf("DstIP mismatch")
		}
		if decoded.Transport.SrcPort != 5005 {
			t.Errorf("expected SrcPort=5005, got %d", decoded.Transport.SrcPort)
		}
	})

	t.Run("OutputRecord", func(t *testing.T) {
		labels := make(Labels)
		labels[LabelRTCPTypes] = "SR"

		out := OutputRecord{
			Number:    1,
			Timestamp: time.Now(),
			SrcIP:     netip.MustParseAddr("10.0.0.1"),
			DstIP:     netip.MustParseAddr("10.0.0.2"),
			SrcPort:   5005,
			DstPort:   5007,
			Protocol:  17,
			Dissector: "rtcp",
			Labels:    labels,
			Consumed:  28,
		}

		if out.Dissector != "rtcp" {
			t.Errorf("expected Dissector=rtcp, got %s", out.Dissector)
		}
		if out.Labels[LabelRTCPTypes] != "SR" {
			t.Errorf("label mismatch")
		}
	})
}
