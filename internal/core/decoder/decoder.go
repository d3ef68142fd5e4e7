// Package decoder implements L2-L4 protocol stack decoding.
package decoder

import (
	"fmt"

	"github.com/tytonet/tyto/internal/core"
)

// Pcap link types the decoder understands.
const (
	LinkTypeNull     = 0 // BSD loopback, 4-byte host-order family word
	LinkTypeEthernet = 1
	LinkTypeRaw      = 101 // bare IP, no link header
	LinkTypeLinuxSLL = 113 // Linux cooked capture v1
)

// Decoder turns raw captured frames into decoded packets. One decoder is
// bound to the link type of its capture file.
type Decoder struct {
	linkType int
}

// New returns a decoder for the given pcap link type.
func New(linkType int) (*Decoder, error) {
	switch linkType {
	case LinkTypeNull, LinkTypeEthernet, LinkTypeRaw, LinkTypeLinuxSLL:
		return &Decoder{linkType: linkType}, nil
	default:
		return nil, fmt.Errorf("decoder: link type %d: %w", linkType, core.ErrUnsupportedLink)
	}
}

// LinkType returns the pcap link type the decoder was built for.
func (d *Decoder) LinkType() int { return d.linkType }

// Decode decodes the L2-L4 headers of raw and returns the packet with its
// application payload. Non-IP frames and IP fragments return an error; the
// headers decoded up to that point stay populated for diagnostics. Tunnelled
// frames are unwrapped one level and report the inner headers.
func (d *Decoder) Decode(raw core.RawPacket) (core.DecodedPacket, error) {
	pkt := core.DecodedPacket{
		Number:    raw.Number,
		Timestamp: raw.Timestamp,
		Truncated: raw.CaptureLen < raw.OrigLen,
	}

	link, rest, err := d.decodeLink(raw.Data)
	if err != nil {
		return pkt, err
	}
	pkt.Link = link

	if link.EtherType != etherTypeIPv4 && link.EtherType != etherTypeIPv6 {
		return pkt, fmt.Errorf("decoder: ethertype 0x%04x: %w", link.EtherType, core.ErrUnsupportedProto)
	}

	ip, rest, err := decodeIP(rest)
	pkt.IP = ip
	if err != nil {
		return pkt, err
	}
	if ip.Fragment {
		return pkt, core.ErrFragmented
	}

	// Unwrap one level of tunnel encapsulation (GRE, IPIP, VXLAN, Geneve)
	// so dissection sees the inner flow endpoints, not the tunnel's.
	if inner, innerPayload, ok := decapsulate(ip.Protocol, rest); ok {
		ip, rest = inner, innerPayload
		pkt.IP = ip
		if ip.Fragment {
			return pkt, core.ErrFragmented
		}
	}

	transport, payload, err := decodeTransport(rest, ip.Protocol)
	pkt.Transport = transport
	if err != nil {
		return pkt, err
	}
	pkt.Payload = payload
	return pkt, nil
}

func (d *Decoder) decodeLink(data []byte) (core.LinkHeader, []byte, error) {
	switch d.linkType {
	case LinkTypeEthernet:
		return decodeEthernet(data)
	case LinkTypeLinuxSLL:
		return decodeLinuxSLL(data)
	case LinkTypeNull:
		return decodeNull(data)
	case LinkTypeRaw:
		return decodeRawIP(data)
	}
	return core.LinkHeader{}, nil, core.ErrUnsupportedLink
}
