// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"github.com/tytonet/tyto/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	// EtherType values
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
)

// decodeEthernet decodes an Ethernet frame header including VLAN tags.
// Returns the link header and remaining payload. Non-IP EtherTypes (ARP,
// LLDP) decode successfully; the caller decides whether to proceed.
func decodeEthernet(data []byte) (core.LinkHeader, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return core.LinkHeader{}, nil, core.ErrPacketTooShort
	}

	link := core.LinkHeader{}
	copy(link.DstMAC[:], data[0:6])
	copy(link.SrcMAC[:], data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	// Handle VLAN tags (can be nested: QinQ)
	var vlans []uint16
	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return link, nil, core.ErrPacketTooShort
		}

		// VLAN header: 2 bytes TCI + 2 bytes EtherType
		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		vlans = append(vlans, tci&0x0FFF) // lower 12 bits are the VLAN ID

		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	link.EtherType = etherType
	link.VLANs = vlans
	return link, data[offset:], nil
}
