// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"github.com/tytonet/tyto/internal/core"
)

const sllHeaderLen = 16

// decodeLinuxSLL decodes a Linux cooked capture v1 header. Layout: packet
// type (2), ARPHRD (2), address length (2), address (8), protocol (2).
func decodeLinuxSLL(data []byte) (core.LinkHeader, []byte, error) {
	if len(data) < sllHeaderLen {
		return core.LinkHeader{}, nil, core.ErrPacketTooShort
	}

	link := core.LinkHeader{}
	// SLL stores up to 8 address bytes; keep the leading 6 as the source MAC
	// when the address is MAC-sized.
	if addrLen := binary.BigEndian.Uint16(data[4:6]); addrLen == 6 {
		copy(link.SrcMAC[:], data[6:12])
	}
	link.EtherType = binary.BigEndian.Uint16(data[14:16])
	return link, data[sllHeaderLen:], nil
}

// decodeNull decodes a BSD null/loopback header: one 4-byte address family
// word written in the byte order of the capturing host.
func decodeNull(data []byte) (core.LinkHeader, []byte, error) {
	if len(data) < 4 {
		return core.LinkHeader{}, nil, core.ErrPacketTooShort
	}

	family := binary.LittleEndian.Uint32(data[0:4])
	if family > 0xFF {
		// Written by a big-endian host.
		family = binary.BigEndian.Uint32(data[0:4])
	}

	link := core.LinkHeader{}
	switch family {
	case 2: // AF_INET
		link.EtherType = etherTypeIPv4
	case 24, 28, 30: // AF_INET6 across the BSDs
		link.EtherType = etherTypeIPv6
	}
	return link, data[4:], nil
}

// decodeRawIP handles captures without any link header. The IP version
// nibble selects the synthesized EtherType.
func decodeRawIP(data []byte) (core.LinkHeader, []byte, error) {
	if len(data) < 1 {
		return core.LinkHeader{}, nil, core.ErrPacketTooShort
	}

	link := core.LinkHeader{}
	switch data[0] >> 4 {
	case 4:
		link.EtherType = etherTypeIPv4
	case 6:
		link.EtherType = etherTypeIPv6
	}
	return link, data, nil
}
