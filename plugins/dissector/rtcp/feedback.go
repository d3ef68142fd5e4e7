package rtcp

import (
	"encoding/binary"
	"strings"

	"github.com/tytonet/tyto/pkg/dissect"
)

// decodeLegacyFIR decodes the H.261 full intra-frame request, packet
// type 192. The shape is fixed: header plus one SSRC.
func (d *Dissector) decodeLegacyFIR(data []byte, offset, end int, seg *dissect.Node) int {
	seg.Addf("rtcp.rc", offset, 1, data[offset]&0x1f, "Reception report count: %d", data[offset]&0x1f)
	offset++
	seg.Addf("rtcp.pt", offset, 1, data[offset], "Packet type: %s (%d)", nameOrUnknown(packetTypeNames, data[offset]), data[offset])
	offset++
	offset = addLengthField(seg, data, offset)
	if offset+4 > end {
		seg.Expert(dissect.SeverityError, "FIR truncated before SSRC")
		return offset
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.ssrc.identifier", offset, 4, ssrc, "Identifier: 0x%08x", ssrc)
	return offset + 4
}

// decodeLegacyNACK decodes the H.261 negative acknowledgement, packet
// type 193: SSRC, first sequence number and a 16-bit bitmask of later
// lost packets.
func (d *Dissector) decodeLegacyNACK(data []byte, offset, end int, seg *dissect.Node) int {
	seg.Addf("rtcp.rc", offset, 1, data[offset]&0x1f, "Reception report count: %d", data[offset]&0x1f)
	offset++
	seg.Addf("rtcp.pt", offset, 1, data[offset], "Packet type: %s (%d)", nameOrUnknown(packetTypeNames, data[offset]), data[offset])
	offset++
	offset = addLengthField(seg, data, offset)
	if offset+8 > end {
		seg.Expert(dissect.SeverityError, "NACK truncated")
		return offset
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.ssrc.identifier", offset, 4, ssrc, "Identifier: 0x%08x", ssrc)
	offset += 4
	fsn := binary.BigEndian.Uint16(data[offset : offset+2])
	seg.Addf("rtcp.fsn", offset, 2, fsn, "First sequence number: %d", fsn)
	offset += 2
	blp := binary.BigEndian.Uint16(data[offset : offset+2])
	seg.Addf("rtcp.blp", offset, 2, blp, "Bitmask of following lost packets: 0x%04x", blp)
	return offset + 2
}

// rtpfbHeader decodes the common transport feedback header: format,
// packet type, length and the sender SSRC.
func rtpfbHeader(data []byte, offset int, seg *dissect.Node) int {
	fmtVal := data[offset] & 0x1f
	seg.Addf("rtcp.rtpfb.fmt", offset, 1, fmtVal, "RTCP Feedback message type (FMT): %s (%d)", nameOrUnknown(rtpfbFmtNames, fmtVal), fmtVal)
	offset++
	pt := data[offset]
	seg.Addf("rtcp.pt", offset, 1, pt, "Packet type: %s (%d)", nameOrUnknown(packetTypeNames, pt), pt)
	offset++
	offset = addLengthField(seg, data, offset)
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.senderssrc", offset, 4, ssrc, "Sender SSRC: 0x%08x (%d)", ssrc, ssrc)
	return offset + 4
}

// decodeRTPFB dispatches a transport layer feedback segment, packet
// type 205. A registered handler for the format wins over the built-in
// grammars and receives the whole segment.
func (d *Dissector) decodeRTPFB(data []byte, offset, end int, frame *dissect.Frame, seg *dissect.Node) int {
	fmtVal := data[offset] & 0x1f
	if sub, ok := d.lookupUint(TableRTPFBFormat, uint32(fmtVal)); ok {
		sub.Dissect(data[offset:end], frame, seg)
		return end
	}
	if end-offset < 12 {
		seg.Expert(dissect.SeverityError, "transport feedback truncated before media SSRC")
		return offset
	}
	offset = rtpfbHeader(data, offset, seg)
	if fmtVal == rtpfbFmtCCFB {
		// CCFB has no media SSRC in the common position; the FCI
		// carries one per reported stream.
		return d.decodeCCFB(data, offset, end, seg)
	}
	mediaSSRC := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.mediassrc", offset, 4, mediaSSRC, "Media source SSRC: 0x%08x (%d)", mediaSSRC, mediaSSRC)
	offset += 4

	switch fmtVal {
	case rtpfbFmtNACK:
		return d.decodeGenericNACK(data, offset, end, seg)
	case rtpfbFmtTMMBR:
		return d.decodeTMMB(data, offset, end, seg, false)
	case rtpfbFmtTMMBN:
		return d.decodeTMMB(data, offset, end, seg, true)
	case rtpfbFmtTransportCC:
		for offset < end {
			prev := offset
			offset = d.decodeTransportCC(data, offset, end, seg)
			if offset <= prev {
				break
			}
		}
		return offset
	default:
		if end > offset {
			fci := seg.Addf("rtcp.fci", offset, end-offset, data[offset:end], "Feedback Control Information (FCI)")
			fci.Expert(dissect.SeverityNote, "RTPFB format %d not decoded", fmtVal)
		}
		return end
	}
}

// decodeGenericNACK walks the RFC 4585 generic NACK FCI entries: a
// packet ID and a bitmask of the 16 following sequence numbers.
func (d *Dissector) decodeGenericNACK(data []byte, offset, end int, seg *dissect.Node) int {
	framesLost := 0
	for offset+4 <= end {
		pid := binary.BigEndian.Uint16(data[offset : offset+2])
		seg.Addf("rtcp.rtpfb.nack.pid", offset, 2, pid, "RTCP Transport Feedback NACK PID: %d", pid)
		offset += 2

		blp := binary.BigEndian.Uint16(data[offset : offset+2])
		blpItem := seg.Addf("rtcp.rtpfb.nack.blp", offset, 2, blp, "RTCP Transport Feedback NACK BLP: 0x%04x", blp)
		framesLost++
		if blp != 0 {
			blpItem.AppendText(" (Frames")
			for i := 0; i < 16; i++ {
				if blp&(1<<i) != 0 {
					lost := pid + uint16(i) + 1
					blpItem.Addf("rtcp.rtpfb.nack.pid", offset, 2, lost, "Frame %d also lost", lost)
					blpItem.AppendText(" %d", lost)
					framesLost++
				}
			}
			blpItem.AppendText(" lost)")
		} else {
			blpItem.AppendText(" (No additional frames lost)")
		}
		offset += 2
	}
	seg.AppendText(": NACK: %d frames lost", framesLost)
	return offset
}

// decodeTMMB walks TMMBR or TMMBN FCI entries. The bitrate is a 6-bit
// exponent and 17-bit mantissa with a 9-bit measured overhead.
func (d *Dissector) decodeTMMB(data []byte, offset, end int, seg *dissect.Node, notification bool) int {
	label := "TMMBR"
	if notification {
		label = "TMMBN"
	}
	num := 0
	for offset+8 <= end {
		num++
		fci := seg.Branch("rtcp.rtpfb.tmmbr.fci", offset, 8, "%s %d", label, num)

		ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
		fci.Addf("rtcp.rtpfb.tmmbr.fci.ssrc", offset, 4, ssrc, "SSRC: 0x%08x", ssrc)
		offset += 4

		word := binary.BigEndian.Uint32(data[offset : offset+4])
		exp := (data[offset] & 0xfc) >> 2
		mantissa := (word & 0x03fffe00) >> 9
		overhead := word & 0x1ff
		bitrate := uint64(mantissa) << exp

		fci.Addf("rtcp.rtpfb.tmmbr.fci.exp", offset, 1, exp, "Exponent: %d", exp)
		fci.Addf("rtcp.rtpfb.tmmbr.fci.mantissa", offset, 3, mantissa, "Mantissa: %d", mantissa)
		fci.Addf("rtcp.rtpfb.tmmbr.fci.bitrate", offset, 3, bitrate, "Maximum total media bitrate: %d (%d*2^%d)", bitrate, mantissa, exp)
		offset += 3
		fci.Addf("rtcp.rtpfb.tmmbr.fci.overhead", offset, 1, overhead, "Measured overhead: %d", overhead)
		offset++

		seg.AppendText(": %s: %d", label, bitrate)
	}
	return offset
}

// decodeCCFB decodes the RFC 8888 congestion control feedback: per
// media stream a begin sequence and 16-bit metric blocks, with a report
// timestamp in the last four bytes of the segment.
func (d *Dissector) decodeCCFB(data []byte, offset, end int, seg *dissect.Node) int {
	fci := seg.Branch("rtcp.rtpfb.ccfb.fci", offset, end-offset, "Feedback Control Information (FCI)")
	for offset < end-4 {
		prev := offset
		offset = d.decodeCCFBSource(data, offset, end, fci)
		if offset <= prev {
			break
		}
	}
	if offset+4 <= end {
		ts := binary.BigEndian.Uint32(data[end-4 : end])
		seg.Addf("rtcp.rtpfb.ccfb.timestamp", end-4, 4, ts, "Report Timestamp: %d", ts)
	}
	return end
}

func (d *Dissector) decodeCCFBSource(data []byte, offset, end int, fci *dissect.Node) int {
	if offset+8 > end-4 {
		fci.Expert(dissect.SeverityError, "congestion control feedback truncated before metric blocks")
		return end
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	src := fci.Branch("rtcp.rtpfb.ccfb.source", offset, 0, "Media Source Stream: 0x%x (%d)", ssrc, ssrc)
	src.Addf("rtcp.mediassrc", offset, 4, ssrc, "Media source SSRC: 0x%08x", ssrc)
	offset += 4

	beginSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	src.Addf("rtcp.rtpfb.ccfb.beginseq", offset, 2, beginSeq, "Begin Sequence Number: %d", beginSeq)
	offset += 2

	numReports := int(binary.BigEndian.Uint16(data[offset:offset+2])) + 1
	src.Addf("rtcp.rtpfb.ccfb.numreports", offset, 2, numReports, "Number of metric blocks: %d", numReports)
	blocks := src.Branch("rtcp.rtpfb.ccfb.blocks", offset, 0, "Metric Blocks")
	offset += 2

	if numReports > 16384 {
		blocks.Expert(dissect.SeverityError, "implausible metric block count %d", numReports)
		return end
	}
	for i := 0; i < numReports; i++ {
		if offset+2 > end-4 {
			blocks.Expert(dissect.SeverityError, "metric block %d truncated", i+1)
			return end
		}
		metric := binary.BigEndian.Uint16(data[offset : offset+2])
		received := metric >> 15
		ecn := (metric >> 13) & 0x3
		ato := metric & 0x1fff
		atoMS := float64(ato) / 1024 * 1000

		block := blocks.Branch("rtcp.rtpfb.ccfb.block", offset, 2, "Metric Block (R:%d, ECN:%d, ATO:%f ms)", received, ecn, atoMS)
		block.Addf("rtcp.rtpfb.ccfb.received", offset, 2, received, "Received: %d", received)
		block.Addf("rtcp.rtpfb.ccfb.ecn", offset, 2, ecn, "ECN: %d", ecn)
		atoItem := block.Addf("rtcp.rtpfb.ccfb.ato", offset, 2, ato, "Arrival Time Offset: %d", ato)
		atoItem.AppendText(" (%f ms)", atoMS)
		offset += 2
	}
	// An odd block count leaves two pad bytes before the next stream.
	if numReports%2 == 1 {
		if offset+2 <= end-4 {
			blocks.Add("rtcp.rtpfb.ccfb.padding", offset, 2, binary.BigEndian.Uint16(data[offset:offset+2]))
		}
		offset += 2
	}
	return offset
}

// decodeTransportCC decodes one draft-holmer-rmcat transport-wide
// congestion control FCI: base sequence, status chunks and receive time
// deltas.
func (d *Dissector) decodeTransportCC(data []byte, offset, end int, seg *dissect.Node) int {
	if offset+8 > end {
		seg.Expert(dissect.SeverityError, "transport-cc truncated before chunk list")
		return offset
	}
	fci := seg.Branch("rtcp.rtpfb.transportcc", offset, end-offset, "Transport-cc")

	baseSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	fci.Addf("rtcp.rtpfb.transportcc.baseseq", offset, 2, baseSeq, "Base Sequence Number: %d", baseSeq)
	offset += 2

	statusCount := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	fci.Addf("rtcp.rtpfb.transportcc.statuscount", offset, 2, uint16(statusCount), "Packet Status Count: %d", statusCount)
	offset += 2

	refTime := uint32(data[offset])<<16 | uint32(data[offset+1])<<8 | uint32(data[offset+2])
	fci.Addf("rtcp.rtpfb.transportcc.reftime", offset, 3, refTime, "Reference Time: %d (%d ms)", refTime, int64(refTime)*64)
	offset += 3

	fci.Addf("rtcp.rtpfb.transportcc.fbpktcount", offset, 1, data[offset], "Feedback Packets Count: %d", data[offset])
	offset++

	// Chunk walk. deltaSizes records, per received packet, whether a one
	// or two byte delta follows the chunk list.
	type deltaRef struct {
		size int
		seq  uint16
	}
	deltas := make([]deltaRef, 0, statusCount)
	seq := baseSeq

	chunks := fci.Branch("rtcp.rtpfb.transportcc.chunks", offset, 0, "Packet Chunks")
	for i := 0; i < statusCount; {
		if offset+2 > end {
			chunks.Expert(dissect.SeverityError, "chunk list truncated (%d of %d packet statuses)", i, statusCount)
			return offset
		}
		chunk := binary.BigEndian.Uint16(data[offset : offset+2])
		item := chunks.Addf("rtcp.rtpfb.transportcc.chunk", offset, 2, chunk, "Packet Chunk: %d", chunk)

		if chunk&0x8000 == 0 {
			// Run length chunk.
			length := int(chunk & 0x1fff)
			if length == 0 || statusCount-len(deltas) < length {
				chunks.Expert(dissect.SeverityError, "malformed run length chunk")
				return offset + 2
			}
			switch (chunk >> 13) & 0x3 {
			case 0:
				item.AppendText(" [Run Length Chunk] Packet not received. Length : %d", length)
				seq += uint16(length)
			case 1:
				item.AppendText(" [Run Length Chunk] Small Delta. Length : %d", length)
				for j := 0; j < length; j++ {
					deltas = append(deltas, deltaRef{size: 1, seq: seq})
					seq++
				}
			case 2:
				item.AppendText(" [Run Length Chunk] Large or Negative Delta. Length : %d", length)
				for j := 0; j < length; j++ {
					deltas = append(deltas, deltaRef{size: 2, seq: seq})
					seq++
				}
			default:
				item.AppendText(" [Run Length Chunk] [Reserved]. Length : %d", length)
				seq += uint16(length)
			}
			i += length
		} else if chunk&0x4000 == 0 {
			// Status vector chunk, one bit per packet.
			var status strings.Builder
			status.WriteString("|")
			for k := 0; k < 14; k++ {
				if chunk&(0x2000>>k) == 0 {
					if i+k < statusCount {
						status.WriteString(" N |")
						seq++
					} else {
						status.WriteString(" _ |")
					}
				} else {
					if len(deltas) >= statusCount {
						chunks.Expert(dissect.SeverityError, "more received packets than packet statuses")
						return offset + 2
					}
					status.WriteString(" R |")
					deltas = append(deltas, deltaRef{size: 1, seq: seq})
					seq++
				}
			}
			item.AppendText(" [1 bit Status Vector Chunk]: %s", status.String())
			i += 14
		} else {
			// Status vector chunk, two bits per packet.
			var status strings.Builder
			status.WriteString("|")
			for k := 0; k < 7; k++ {
				symbol := (chunk & (0x3000 >> (2 * k))) >> (2 * (6 - k))
				switch symbol {
				case 0:
					if i+k < statusCount {
						status.WriteString(" NR |")
						seq++
					} else {
						status.WriteString(" __ |")
					}
				case 1:
					if len(deltas) >= statusCount {
						chunks.Expert(dissect.SeverityError, "more received packets than packet statuses")
						return offset + 2
					}
					status.WriteString(" SD |")
					deltas = append(deltas, deltaRef{size: 1, seq: seq})
					seq++
				case 2:
					if len(deltas) >= statusCount {
						chunks.Expert(dissect.SeverityError, "more received packets than packet statuses")
						return offset + 2
					}
					status.WriteString(" LD |")
					deltas = append(deltas, deltaRef{size: 2, seq: seq})
					seq++
				default:
					// Received without a usable timestamp, no delta.
					status.WriteString(" WO |")
					seq++
				}
			}
			item.AppendText(" [2 bits Status Vector Chunk]: %s", status.String())
			i += 7
		}
		offset += 2
	}

	recv := fci.Branch("rtcp.rtpfb.transportcc.deltas", offset, 0, "Recv Delta")
	for _, ref := range deltas {
		if ref.size == 1 {
			if offset+1 > end {
				recv.Expert(dissect.SeverityError, "delta list truncated")
				return offset
			}
			delta := data[offset]
			item := recv.Addf("rtcp.rtpfb.transportcc.delta", offset, 1, delta, "Recv Delta: %d", delta)
			item.AppendText(" Small Delta: [seq: %d] %f ms", ref.seq, float64(delta)*250/1000)
			offset++
		} else {
			if offset+2 > end {
				recv.Expert(dissect.SeverityError, "delta list truncated")
				return offset
			}
			delta := int16(binary.BigEndian.Uint16(data[offset : offset+2]))
			item := recv.Addf("rtcp.rtpfb.transportcc.delta", offset, 2, delta, "Recv Delta: %d", delta)
			if delta < 0 {
				item.AppendText(" Negative Delta: [seq: %d] %f ms", ref.seq, float64(delta)*250/1000)
			} else {
				item.AppendText(" Large Delta: [seq: %d] %f ms", ref.seq, float64(delta)*250/1000)
			}
			offset += 2
		}
	}

	if end > offset {
		recv.Add("rtcp.rtpfb.transportcc.padding", offset, end-offset, data[offset:end])
		offset = end
	}
	return offset
}

// decodePSFB decodes a payload-specific feedback segment, packet type
// 206. A registered handler for the format receives the FCI bytes after
// the two SSRC fields.
func (d *Dissector) decodePSFB(data []byte, offset, end int, frame *dissect.Frame, seg *dissect.Node) int {
	if end-offset < 12 {
		seg.Expert(dissect.SeverityError, "payload-specific feedback truncated before media SSRC")
		return end
	}
	fmtVal := data[offset] & 0x1f
	seg.Addf("rtcp.psfb.fmt", offset, 1, fmtVal, "RTCP Feedback message type (FMT): %s (%d)", nameOrUnknown(psfbFmtNames, fmtVal), fmtVal)
	seg.AppendText(": %s", nameOrUnknown(psfbFmtSummaryNames, fmtVal))
	offset++
	pt := data[offset]
	seg.Addf("rtcp.pt", offset, 1, pt, "Packet type: %s (%d)", nameOrUnknown(packetTypeNames, pt), pt)
	offset++
	// FCI length in 32-bit words: declared length minus the two SSRCs.
	numFCI := int(binary.BigEndian.Uint16(data[offset:offset+2])) - 2
	offset = addLengthField(seg, data, offset)

	senderSSRC := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.senderssrc", offset, 4, senderSSRC, "Sender SSRC: 0x%08x (%d)", senderSSRC, senderSSRC)
	offset += 4
	mediaSSRC := binary.BigEndian.Uint32(data[offset : offset+4])
	mediaItem := seg.Addf("rtcp.mediassrc", offset, 4, mediaSSRC, "Media source SSRC: 0x%08x (%d)", mediaSSRC, mediaSSRC)
	if name, ok := ssrcSpecialNames[mediaSSRC]; ok {
		mediaItem.AppendText(" %s", name)
	}
	offset += 4

	if end > offset {
		if sub, ok := d.lookupUint(TablePSFBFormat, uint32(fmtVal)); ok {
			sub.Dissect(data[offset:end], frame, seg)
			return end
		}
	}

	counter := 0
	readFCI := 0
	for readFCI < numFCI {
		switch fmtVal {
		case psfbFmtPLI:
			// A plain PLI has no FCI; content here is the MS PLI
			// extension: request ID and a 64-bit sync frame bitmask.
			if offset+12 > end {
				seg.Expert(dissect.SeverityError, "PLI extension truncated")
				readFCI = numFCI
				break
			}
			fci := seg.Branch("rtcp.psfb.pli.ms", offset, 12, "MS PLI")
			reqID := binary.BigEndian.Uint16(data[offset : offset+2])
			fci.Addf("rtcp.psfb.pli.ms.request_id", offset, 2, reqID, "Request ID: %d", reqID)
			offset += 4
			for i := 0; i < 8; i++ {
				fci.Addf("rtcp.psfb.pli.ms.sfr", offset, 1, data[offset], "PRID %d - %d Sync Frame Request: 0x%02x", i*8, (i+1)*8-1, data[offset])
				offset++
			}
			readFCI += 3

		case psfbFmtSLI:
			if offset+4 > end {
				seg.Expert(dissect.SeverityError, "SLI entry truncated")
				readFCI = numFCI
				break
			}
			counter++
			word := binary.BigEndian.Uint32(data[offset : offset+4])
			fci := seg.Branch("rtcp.psfb.sli", offset, 4, "SLI %d", counter)
			fci.Addf("rtcp.psfb.sli.first", offset, 4, uint16(word>>19), "First MB: %d", word>>19)
			fci.Addf("rtcp.psfb.sli.number", offset, 4, uint16((word>>6)&0x1fff), "Number of MBs: %d", (word>>6)&0x1fff)
			fci.Addf("rtcp.psfb.sli.picture_id", offset, 4, uint8(word&0x3f), "Picture ID: %d", word&0x3f)
			offset += 4
			readFCI++

		case psfbFmtFIR:
			if offset+8 > end {
				seg.Expert(dissect.SeverityError, "FIR entry truncated")
				readFCI = numFCI
				break
			}
			counter++
			fci := seg.Branch("rtcp.psfb.fir.fci", offset, 8, "FIR %d", counter)
			ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
			fci.Addf("rtcp.psfb.fir.fci.ssrc", offset, 4, ssrc, "SSRC: 0x%08x", ssrc)
			offset += 4
			fci.Addf("rtcp.psfb.fir.fci.csn", offset, 1, data[offset], "Command Sequence Number: %d", data[offset])
			offset++
			fci.Add("rtcp.psfb.fir.fci.reserved", offset, 3, data[offset:offset+3])
			offset += 3
			readFCI += 2

		case psfbFmtALFB:
			if offset+4 <= end && string(data[offset:offset+4]) == "REMB" {
				counter++
				var ok bool
				offset, readFCI, ok = d.decodeREMB(data, offset, end, counter, readFCI, seg)
				if !ok {
					readFCI = numFCI
				}
			} else {
				// Vendor feedback without a recognizable signature.
				if end > offset {
					seg.Add("rtcp.psfb.alfb", offset, end-offset, data[offset:end])
					offset = end
				}
				readFCI = numFCI
			}

		default:
			readFCI = numFCI
		}
	}

	if end > offset {
		seg.Addf("rtcp.fci", offset, end-offset, data[offset:end], "Feedback Control Information (FCI)")
	}
	return end
}

// decodeREMB decodes the receiver estimated maximum bitrate feedback:
// the ASCII signature, SSRC count and a 6-bit exponent with an 18-bit
// mantissa, followed by the listed SSRCs.
func (d *Dissector) decodeREMB(data []byte, offset, end, counter, readFCI int, seg *dissect.Node) (int, int, bool) {
	if offset+8 > end {
		seg.Expert(dissect.SeverityError, "REMB truncated")
		return offset, readFCI, false
	}
	fci := seg.Branch("rtcp.psfb.remb", offset, 8, "REMB %d", counter)
	fci.Addf("rtcp.psfb.remb.identifier", offset, 4, string(data[offset:offset+4]), "Unique identifier: %s", data[offset:offset+4])

	numSSRC := int(data[offset+4])
	fci.Addf("rtcp.psfb.remb.number_ssrcs", offset+4, 1, uint8(numSSRC), "Number of SSRCs: %d", numSSRC)

	exp := data[offset+5] >> 2
	mantissa := binary.BigEndian.Uint32(data[offset+4:offset+8]) & 0x3ffff
	bitrate := uint64(mantissa) << exp
	fci.Addf("rtcp.psfb.remb.exp", offset+5, 1, exp, "BR Exp: %d", exp)
	fci.Addf("rtcp.psfb.remb.mantissa", offset+5, 3, mantissa, "BR Mantissa: %d", mantissa)
	fci.Addf("rtcp.psfb.remb.bitrate", offset+5, 3, bitrate, "Maximum bit rate: %d", bitrate)
	offset += 8

	for i := 0; i < numSSRC; i++ {
		if offset+4 > end {
			fci.Expert(dissect.SeverityError, "REMB SSRC list truncated (%d of %d)", i, numSSRC)
			return offset, readFCI, false
		}
		ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
		fci.Addf("rtcp.psfb.remb.ssrc", offset, 4, ssrc, "SSRC: 0x%08x", ssrc)
		offset += 4
	}
	seg.AppendText(": REMB: max bitrate=%d", bitrate)
	return offset, readFCI + 2 + numSSRC, true
}
