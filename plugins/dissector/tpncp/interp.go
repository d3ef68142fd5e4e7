package tpncp

import (
	"encoding/binary"
	"net/netip"
	"strings"

	"github.com/tytonet/tyto/pkg/dissect"
)

// Address family codes carried by AddressFamily fields. pSOS firmware
// reports IPv6 with its own constant.
const (
	afIPv4     = 2
	afIPv6     = 10
	afIPv6PSOS = 28
)

// recordEncoding carries the byte order sniffed from the message id
// field. le additionally flips the bitfield packing direction.
type recordEncoding struct {
	bo binary.ByteOrder
	le bool
}

// bitMasks[i] selects bit i, LSB first.
var bitMasks = [8]byte{0x01, 0x02, 0x04, 0x08, 0x10, 0x20, 0x40, 0x80}

// cursor tracks the decode position with sub-byte resolution. Big
// endian records pack bitfields from the LSB up, little endian from the
// MSB down; the byte offset advances only when the bit index wraps, so
// consecutive sub-byte fields share a byte. Jumps move the byte offset
// alone and leave the bit index where it was.
type cursor struct {
	off int
	bit int
	le  bool
}

func newCursor(off int, le bool) cursor {
	c := cursor{off: off, le: le}
	c.resetBit()
	return c
}

func (c *cursor) resetBit() {
	if c.le {
		c.bit = 7
	} else {
		c.bit = 0
	}
}

// maskBits extracts a width-bit value from b at the current bit index
// and walks the index across the consumed bits. The value is shifted
// down to the least significant consumed bit.
func (c *cursor) maskBits(b byte, width int) uint8 {
	var mask int
	shift := c.bit
	for i := 0; i < width; i++ {
		if c.bit >= 0 && c.bit <= 7 {
			mask |= int(bitMasks[c.bit])
			if c.le {
				shift = c.bit
			}
		}
		if c.le {
			c.bit--
		} else {
			c.bit++
		}
	}
	if shift < 0 || shift > 7 {
		return 0
	}
	return uint8((int(b) & mask) >> uint(shift))
}

// byteDone advances past the current byte once a plain byte field or a
// completed bitfield group has consumed it. A group that has not filled
// its byte keeps the offset so the next sub-byte field shares it.
func (c *cursor) byteDone() {
	if c.le {
		if c.bit == -1 || c.bit == 7 {
			c.off++
			c.resetBit()
		}
		return
	}
	if c.bit == 0 || c.bit == 8 {
		c.off++
		c.resetBit()
	}
}

// recordState keeps the redirect registers the special roles drive. A
// register value of 0 (or -1 for the anchor) means inactive.
type recordState struct {
	openChannelStart int
	securityTarget   int
	rtpStateTarget   int
	rtpTxTarget      int
	rtpStateSize     int
	channelBTarget   int
	family           uint32
}

// redirected reports whether off already lies inside a pending redirect
// region, in which case the in-order field is skipped and the cursor
// parks until the matching start role jumps.
func (st *recordState) redirected(off int) bool {
	if st.openChannelStart != -1 && st.securityTarget > 0 && off >= st.securityTarget {
		return true
	}
	if st.rtpStateTarget > 0 && off >= st.rtpStateTarget {
		return true
	}
	if st.rtpTxTarget > 0 && off >= st.rtpTxTarget {
		return true
	}
	if st.channelBTarget > 0 && off >= st.channelBTarget {
		return true
	}
	return false
}

// interpretRecord drives a field layout over data from start on and
// annotates every decoded field into body. The layout is authoritative
// for widths and order; bytes past the last descriptor are reported as
// unknown data. The returned offset is always len(data).
func interpretRecord(data []byte, start int, fields []Field, ver int, enc recordEncoding, body *dissect.Node) int {
	cur := newCursor(start, enc.le)
	st := recordState{openChannelStart: -1, family: afIPv4}

	for i := range fields {
		f := &fields[i]
		if f.Since > 0 && f.Since > ver {
			continue
		}

		switch f.Role {
		case RoleOpenChannelStart:
			st.openChannelStart = cur.off
		case RoleSecurityOffset:
			if cur.off >= 0 && cur.off+4 <= len(data) {
				if sec := int(enc.bo.Uint32(data[cur.off:])); sec > 0 && st.openChannelStart >= 0 {
					st.securityTarget = st.openChannelStart + sec
				}
			}
		case RoleSecurityStart:
			cur.off = st.securityTarget
			st.openChannelStart = -1
			st.securityTarget = 0
		case RoleRTPStateOffset:
			if cur.off >= 0 && cur.off+4 <= len(data) {
				if rel := int(int32(enc.bo.Uint32(data[cur.off:]))); rel > 0 {
					// the stored offset counts from past the channel id
					st.rtpStateTarget = rel + start + 4
				}
			}
		case RoleRTPStateStart:
			cur.off = st.rtpStateTarget
			st.rtpStateTarget = 0
			if st.rtpTxTarget == 0 {
				st.rtpStateSize = (len(data) - cur.off - 4) / 2
				st.rtpTxTarget = cur.off + st.rtpStateSize
			} else {
				cur.off = st.rtpTxTarget
				st.rtpTxTarget += st.rtpStateSize
			}
		case RoleRTPStateEnd:
			st.rtpTxTarget = 0
		case RoleChannelConfig:
			if st.channelBTarget == 0 {
				st.channelBTarget = cur.off + (len(data)-cur.off)/2
			} else {
				cur.off = st.channelBTarget
				st.channelBTarget = 0
			}
		case RoleAddressFamily:
			if cur.off >= 0 && cur.off+4 <= len(data) {
				st.family = enc.bo.Uint32(data[cur.off:])
			}
			if st.redirected(cur.off) {
				continue
			}
		default:
			if st.redirected(cur.off) {
				continue
			}
		}

		switch {
		case f.Size >= 1 && f.Size <= 8:
			if f.ArrayDim > 0 {
				n := f.ArrayDim
				if rem := len(data) - cur.off; n > rem {
					n = rem
				}
				if cur.off < 0 || n <= 0 {
					return truncated(body, f, len(data))
				}
				body.Add("tpncp."+f.Name, cur.off, n, asciiString(data[cur.off:cur.off+n]))
				cur.off += n
			} else {
				if cur.off < 0 || cur.off >= len(data) {
					return truncated(body, f, len(data))
				}
				b := data[cur.off]
				if f.Size != 8 {
					v := cur.maskBits(b, int(f.Size))
					addField(body, f, cur.off, 1, v, int(v))
				} else if f.Unsigned {
					addField(body, f, cur.off, 1, b, int(b))
				} else {
					addField(body, f, cur.off, 1, int8(b), int(int8(b)))
				}
				cur.byteDone()
			}
		case f.Size == 16:
			if cur.off < 0 || cur.off+2 > len(data) {
				return truncated(body, f, len(data))
			}
			raw := enc.bo.Uint16(data[cur.off:])
			if f.Unsigned {
				addField(body, f, cur.off, 2, raw, int(raw))
			} else {
				addField(body, f, cur.off, 2, int16(raw), int(int16(raw)))
			}
			cur.off += 2
		case f.Size == 32:
			if cur.off < 0 || cur.off+4 > len(data) {
				return truncated(body, f, len(data))
			}
			switch raw := enc.bo.Uint32(data[cur.off:]); {
			case f.Role == RoleIPAddr:
				body.Add("tpncp."+f.Name, cur.off, 4, ipv4At(data, cur.off, enc.le))
			case f.Unsigned:
				addField(body, f, cur.off, 4, raw, int(raw))
			default:
				addField(body, f, cur.off, 4, int32(raw), int(int32(raw)))
			}
			cur.off += 4
		case f.Size == 128:
			if f.Role == RoleIPAddr {
				if st.family == afIPv6 || st.family == afIPv6PSOS {
					if cur.off < 0 || cur.off+16 > len(data) {
						return truncated(body, f, len(data))
					}
					var b [16]byte
					copy(b[:], data[cur.off:])
					body.Add("tpncp."+f.Name, cur.off, 16, netip.AddrFrom16(b))
				} else {
					if cur.off < 0 || cur.off+4 > len(data) {
						return truncated(body, f, len(data))
					}
					body.Add("tpncp."+f.Name, cur.off, 4, ipv4At(data, cur.off, enc.le))
				}
				st.family = afIPv4
			}
			cur.off += 16
		}

		if len(data)-cur.off <= 0 {
			break
		}
	}

	if rem := len(data) - cur.off; rem > 0 {
		u := body.Addf("tpncp.unknown_data", cur.off, rem, nil, "Unknown data: %d bytes", rem)
		u.Expert(dissect.SeverityWarn, "unknown data past the last descriptor")
		cur.off = len(data)
	}
	return cur.off
}

// truncated records a layout that runs past the captured record and
// consumes the remainder.
func truncated(body *dissect.Node, f *Field, end int) int {
	body.Expert(dissect.SeverityWarn, "field %s extends past the record end", f.Name)
	return end
}

// addField annotates one integer field, appending the enum label when
// the driver table names the value.
func addField(body *dissect.Node, f *Field, off, length int, v any, num int) *dissect.Node {
	item := body.Add("tpncp."+f.Name, off, length, v)
	if label, ok := f.Enum[num]; ok {
		item.AppendText(" (%s)", label)
	}
	return item
}

// ipv4At reads an IPv4 address field. Little endian records store the
// address word-swapped like any other 32-bit value.
func ipv4At(data []byte, off int, le bool) netip.Addr {
	var b [4]byte
	copy(b[:], data[off:off+4])
	if le {
		b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	}
	return netip.AddrFrom4(b)
}

// asciiString renders a fixed-width ASCII field. Records pad short
// strings with NULs.
func asciiString(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
