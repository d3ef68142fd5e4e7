package rtcp

import (
	"encoding/binary"

	"github.com/tytonet/tyto/pkg/dissect"
)

// decodeAVB dissects an IEEE 1733 AVB RTCP packet, type 208: media clock
// identity plus the gPTP/RTP timestamp pair that maps between the two
// timelines.
func (d *Dissector) decodeAVB(data []byte, offset, end int, seg *dissect.Node) int {
	if offset+36 > end {
		seg.Expert(dissect.SeverityError, "AVB packet truncated (%d bytes remain, need 36)", end-offset)
		if end > offset {
			seg.Add("rtcp.payload", offset, end-offset, data[offset:end])
		}
		return end
	}

	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.ssrc.identifier", offset, 4, ssrc, "Identifier: 0x%08x (%d)", ssrc, ssrc)
	offset += 4

	name := string(data[offset : offset+4])
	seg.Addf("rtcp.app.name", offset, 4, name, "Name (ASCII): %s", name)
	offset += 4

	timebase := binary.BigEndian.Uint16(data[offset : offset+2])
	seg.Addf("rtcp.timebase_indicator", offset, 2, timebase, "Timebase Indicator: %d", timebase)
	offset += 2

	seg.Add("rtcp.identity", offset, 10, data[offset:offset+10])
	offset += 10

	streamID := binary.BigEndian.Uint64(data[offset : offset+8])
	seg.Addf("rtcp.stream_id", offset, 8, streamID, "Stream id: 0x%016x", streamID)
	offset += 8

	asTS := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.timestamp.as", offset, 4, asTS, "AS timestamp: %d", asTS)
	offset += 4

	rtpTS := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.timestamp.rtp", offset, 4, rtpTS, "RTP timestamp: %d", rtpTS)
	offset += 4

	return offset
}

// decodeRSI dissects a receiver summary information packet, type 209.
// After the distributor and summarized SSRCs and the NTP timestamp the
// remainder is a run of sub-report blocks, each a type byte and a length
// in 32-bit words covering the whole block.
func (d *Dissector) decodeRSI(data []byte, offset, end int, seg *dissect.Node) int {
	if offset+16 > end {
		seg.Expert(dissect.SeverityError, "RSI packet truncated (%d bytes remain, need 16)", end-offset)
		if end > offset {
			seg.Add("rtcp.payload", offset, end-offset, data[offset:end])
		}
		return end
	}

	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.ssrc.identifier", offset, 4, ssrc, "Identifier: 0x%08x (%d)", ssrc, ssrc)
	offset += 4
	summarized := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.ssrc.identifier", offset, 4, summarized, "Identifier: 0x%08x (%d)", summarized, summarized)
	offset += 4

	msw := binary.BigEndian.Uint32(data[offset : offset+4])
	lsw := binary.BigEndian.Uint32(data[offset+4 : offset+8])
	seg.Addf("rtcp.timestamp.ntp.msw", offset, 4, msw, "Timestamp, MSW: %d (0x%08x)", msw, msw)
	seg.Addf("rtcp.timestamp.ntp.lsw", offset+4, 4, lsw, "Timestamp, LSW: %d (0x%08x)", lsw, lsw)
	seg.Addf("rtcp.timestamp.ntp", offset, 8, ntpText(msw, lsw), "Timestamp, NTP: %s", ntpText(msw, lsw))
	offset += 8

	count := 0
	for offset+2 <= end {
		count++
		srbt := data[offset]
		blockLen := int(data[offset+1]) * 4
		block := seg.Branch("rtcp.rsi.srb", offset, blockLen, "Sub-report block %d (type %d)", count, srbt)
		block.Addf("rtcp.rsi.srb.type", offset, 1, srbt, "Type: %d", srbt)
		block.Addf("rtcp.rsi.srb.length", offset+1, 1, data[offset+1], "Length: %d (%d bytes)", data[offset+1], blockLen)
		if blockLen == 0 || offset+blockLen > end {
			block.SetLength(end - offset)
			block.Expert(dissect.SeverityError, "invalid sub-report block length %d", data[offset+1])
			return end
		}
		if blockLen > 2 {
			block.Add("rtcp.rsi.srb.data", offset+2, blockLen-2, data[offset+2:offset+blockLen])
		}
		offset += blockLen
	}
	if offset < end {
		seg.Add("rtcp.payload", offset, end-offset, data[offset:end])
		offset = end
	}
	return offset
}

// decodeToken dissects a port mapping packet, type 210. Only the shared
// SSRC prefix has a fixed shape; the subtype-specific token bodies stay
// opaque.
func (d *Dissector) decodeToken(data []byte, offset, end int, subtype uint8, subtypeItem, seg *dissect.Node) int {
	subtypeItem.AppendText(" (%s)", nameOrUnknown(tokenSubtypeNames, subtype))
	if offset+4 > end {
		seg.Expert(dissect.SeverityError, "TOKEN packet truncated before SSRC")
		return end
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.ssrc.identifier", offset, 4, ssrc, "Identifier: 0x%08x (%d)", ssrc, ssrc)
	offset += 4
	if end > offset {
		seg.Add("rtcp.token.data", offset, end-offset, data[offset:end])
	}
	return end
}
