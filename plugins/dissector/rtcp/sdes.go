package rtcp

import (
	"encoding/binary"

	"github.com/tytonet/tyto/pkg/dissect"
)

// decodeSDES walks count source description chunks. Each chunk is an
// SSRC followed by type/length/value items, terminated by a zero type
// byte and padded so the next chunk starts on a 32-bit boundary.
func (d *Dissector) decodeSDES(data []byte, offset, end, count int, seg *dissect.Node) int {
	for i := 0; i < count; i++ {
		if offset+4 > end {
			seg.Expert(dissect.SeverityError, "SDES chunk %d truncated before SSRC", i+1)
			return offset
		}
		chunkStart := offset
		ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
		chunk := seg.Branch("rtcp.sdes.chunk", offset, 0, "Chunk %d, SSRC/CSRC 0x%08X", i+1, ssrc)
		chunk.Addf("rtcp.sdes.ssrc_csrc", offset, 4, ssrc, "Identifier: 0x%08x (%d)", ssrc, ssrc)
		offset += 4

		for offset < end {
			itemType := data[offset]
			if itemType == sdesEnd {
				chunk.Addf("rtcp.sdes.type", offset, 1, itemType, "Type: END (0)")
				offset++
				break
			}
			if offset+2 > end {
				chunk.Expert(dissect.SeverityError, "SDES item truncated before length")
				return offset
			}
			itemLen := int(data[offset+1])
			if offset+2+itemLen > end {
				chunk.Expert(dissect.SeverityError, "SDES item length %d exceeds the chunk", itemLen)
				return offset
			}
			typeName := nameOrUnknown(sdesTypeNames, itemType)
			item := chunk.Branch("rtcp.sdes.item", offset, 2+itemLen, "%s", typeName)
			item.Addf("rtcp.sdes.type", offset, 1, itemType, "Type: %s (%d)", typeName, itemType)
			item.Addf("rtcp.sdes.length", offset+1, 1, uint8(itemLen), "Length: %d", itemLen)

			if itemType == sdesPRIV {
				// PRIV nests its own prefix length and string inside
				// the item value.
				if itemLen < 1 {
					item.Expert(dissect.SeverityError, "PRIV item too short for a prefix length")
					return offset + 2
				}
				prefixLen := int(data[offset+2])
				if prefixLen+1 > itemLen {
					item.Expert(dissect.SeverityError, "PRIV prefix length %d exceeds the item", prefixLen)
					return offset + 2
				}
				item.Addf("rtcp.sdes.prefix.length", offset+2, 1, uint8(prefixLen), "Prefix length: %d", prefixLen)
				prefix := string(data[offset+3 : offset+3+prefixLen])
				item.Addf("rtcp.sdes.prefix.text", offset+3, prefixLen, prefix, "Prefix: %s", prefix)
				value := string(data[offset+3+prefixLen : offset+2+itemLen])
				item.Addf("rtcp.sdes.text", offset+3+prefixLen, itemLen-1-prefixLen, value, "Text: %s", value)
			} else {
				value := string(data[offset+2 : offset+2+itemLen])
				item.Addf("rtcp.sdes.text", offset+2, itemLen, value, "Text: %s", value)
			}
			offset += 2 + itemLen
		}

		// Chunks align to the next 32-bit boundary; a chunk already on
		// the boundary takes no pad bytes.
		aligned := chunkStart + ((offset-chunkStart)+3)&^3
		if aligned > end {
			aligned = end
		}
		offset = aligned
		chunk.SetLength(offset - chunkStart)
	}
	return offset
}

// decodeBYE decodes the goodbye packet: count SSRC identifiers and an
// optional length-prefixed reason, padded with zero bytes to the segment
// boundary.
func (d *Dissector) decodeBYE(data []byte, offset, end, count int, seg *dissect.Node) int {
	for i := 0; i < count; i++ {
		if offset+4 > end {
			seg.Expert(dissect.SeverityError, "BYE truncated before SSRC %d", i+1)
			return offset
		}
		ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
		seg.Addf("rtcp.ssrc.identifier", offset, 4, ssrc, "Identifier: 0x%08x (%d)", ssrc, ssrc)
		offset += 4
	}

	if offset < end {
		reasonLen := int(data[offset])
		if offset+1+reasonLen > end {
			item := seg.Addf("rtcp.length", offset, 1, uint8(reasonLen), "Length: %d", reasonLen)
			item.Expert(dissect.SeverityError, "reason length %d exceeds the segment", reasonLen)
			return offset + 1
		}
		seg.Addf("rtcp.length", offset, 1, uint8(reasonLen), "Length: %d", reasonLen)
		reason := string(data[offset+1 : offset+1+reasonLen])
		seg.Addf("rtcp.sdes.text", offset+1, reasonLen, reason, "Reason for leaving: %s", reason)
		offset += 1 + reasonLen
	}

	// The reason is padded to the 32-bit boundary with zero bytes.
	if offset < end && offset%4 != 0 {
		padLen := 4 - offset%4
		if offset+padLen > end {
			padLen = end - offset
		}
		pad := seg.Add("rtcp.bye.padding", offset, padLen, data[offset:offset+padLen])
		for _, b := range data[offset : offset+padLen] {
			if b != 0 {
				pad.Expert(dissect.SeverityWarn, "non-zero BYE padding")
				break
			}
		}
		offset += padLen
	}
	return offset
}
