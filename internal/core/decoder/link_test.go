package decoder

import "testing"

func TestDecodeLinuxSLL(t *testing.T) {
	data := []byte{
		0x00, 0x00, // Packet type: to us
		0x00, 0x01, // ARPHRD: Ethernet
		0x00, 0x06, // Address length: 6
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00, 0x00, // Address (8 bytes)
		0x08, 0x00, // Protocol: IPv4
		0x45, 0x00, // Payload
	}

	link, payload, err := decodeLinuxSLL(data)
	if err != nil {
		t.Fatalf("decodeLinuxSLL failed: %v", err)
	}
	if link.EtherType != 0x0800 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", link.EtherType)
	}
	expectedMAC := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	if link.SrcMAC != expectedMAC {
		t.Errorf("Expected SrcMAC %v, got %v", expectedMAC, link.SrcMAC)
	}
	if len(payload) != 2 {
		t.Errorf("Expected payload length 2, got %d", len(payload))
	}
}

func TestDecodeLinuxSLLTooShort(t *testing.T) {
	_, _, err := decodeLinuxSLL(make([]byte, 10))
	if err == nil {
		t.Error("Expected error for short SLL header, got nil")
	}
}

func TestDecodeNull(t *testing.T) {
	t.Run("IPv4LittleEndian", func(t *testing.T) {
		data := []byte{0x02, 0x00, 0x00, 0x00, 0x45, 0x00}
		link, payload, err := decodeNull(data)
		if err != nil {
			t.Fatalf("decodeNull failed: %v", err)
		}
		if link.EtherType != 0x0800 {
			t.Errorf("Expected EtherType 0x0800, got 0x%04x", link.EtherType)
		}
		if len(payload) != 2 {
			t.Errorf("Expected payload length 2, got %d", len(payload))
		}
	})

	t.Run("IPv4BigEndian", func(t *testing.T) {
		data := []byte{0x00, 0x00, 0x00, 0x02, 0x45, 0x00}
		link, _, err := decodeNull(data)
		if err != nil {
			t.Fatalf("decodeNull failed: %v", err)
		}
		if link.EtherType != 0x0800 {
			t.Errorf("Expected EtherType 0x0800, got 0x%04x", link.EtherType)
		}
	})

	t.Run("IPv6", func(t *testing.T) {
		data := []byte{0x1E, 0x00, 0x00, 0x00, 0x60, 0x00} // family 30
		link, _, err := decodeNull(data)
		if err != nil {
			t.Fatalf("decodeNull failed: %v", err)
		}
		if link.EtherType != 0x86DD {
			t.Errorf("Expected EtherType 0x86DD, got 0x%04x", link.EtherType)
		}
	})
}

func TestDecodeRawIP(t *testing.T) {
	t.Run("IPv4", func(t *testing.T) {
		data := []byte{0x45, 0x00, 0x00, 0x18}
		link, payload, err := decodeRawIP(data)
		if err != nil {
			t.Fatalf("decodeRawIP failed: %v", err)
		}
		if link.EtherType != 0x0800 {
			t.Errorf("Expected EtherType 0x0800, got 0x%04x", link.EtherType)
		}
		// Raw IP keeps the full data as payload
		if len(payload) != 4 {
			t.Errorf("Expected payload length 4, got %d", len(payload))
		}
	})

	t.Run("IPv6", func(t *testing.T) {
		data := []byte{0x60, 0x00}
		link, _, err := decodeRawIP(data)
		if err != nil {
			t.Fatalf("decodeRawIP failed: %v", err)
		}
		if link.EtherType != 0x86DD {
			t.Errorf("Expected EtherType 0x86DD, got 0x%04x", link.EtherType)
		}
	})
}
