package rtcp

import (
	"encoding/binary"

	"github.com/tytonet/tyto/pkg/dissect"
)

// decodeXR walks the extended report blocks of an RFC 3611 XR packet.
// Each block carries its own type, a type-specific byte and a length in
// 32-bit words; unknown block types stay opaque under the declared
// length so the walk never desynchronizes.
func (d *Dissector) decodeXR(data []byte, offset, end int, seg *dissect.Node) int {
	if offset+4 > end {
		seg.Expert(dissect.SeverityError, "extended report truncated before sender SSRC")
		return end
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.senderssrc", offset, 4, ssrc, "Sender SSRC: 0x%08x (%d)", ssrc, ssrc)
	offset += 4

	blockNum := 0
	for offset+4 <= end {
		blockNum++
		blockStart := offset
		block := seg.Branch("rtcp.xr.block", offset, 0, "Block %d", blockNum)

		blockType := data[offset]
		block.Addf("rtcp.xr.bt", offset, 1, blockType, "Block type: %s (%d)", nameOrUnknown(xrBlockTypeNames, blockType), blockType)
		offset++

		var thinning uint8
		switch blockType {
		case xrLossRLE, xrDupRLE, xrPktRxTimes:
			thinning = data[offset] & 0x0f
			block.Addf("rtcp.xr.thinning", offset, 1, thinning, "Thinning factor: %d", thinning)
		case xrStatsSummary:
			flags := data[offset]
			block.Addf("rtcp.xr.stats.loss_flag", offset, 1, flags&0x80 != 0, "Loss report flag: %t", flags&0x80 != 0)
			block.Addf("rtcp.xr.stats.dup_flag", offset, 1, flags&0x40 != 0, "Duplicate report flag: %t", flags&0x40 != 0)
			block.Addf("rtcp.xr.stats.jitter_flag", offset, 1, flags&0x20 != 0, "Jitter report flag: %t", flags&0x20 != 0)
			ttl := (flags & 0x18) >> 3
			block.Addf("rtcp.xr.stats.ttl", offset, 1, ttl, "TTL or Hop Limit flag: %s (%d)", nameOrUnknown(xrIPTTLNames, ttl), ttl)
		case xrIDMS:
			spst := data[offset] & 0x0f
			block.Addf("rtcp.xr.idms.spst", offset, 1, spst, "Synchronization Packet Sender Type: %s (%d)", nameOrUnknown(xrIDMSSPSTNames, spst), spst)
		default:
			block.Addf("rtcp.xr.block_specific", offset, 1, data[offset], "Type specific: %d", data[offset])
		}
		offset++

		words := binary.BigEndian.Uint16(data[offset : offset+2])
		lenItem := block.Addf("rtcp.xr.block_length", offset, 2, words, "Block length: %d", words)
		lenItem.AppendText(" (%d bytes)", int(words)*4)
		if fixed, ok := xrFixedBlockWords[blockType]; ok && words != fixed {
			lenItem.Expert(dissect.SeverityError, "Invalid block length, should be %d", fixed)
		}
		offset += 2

		contentLength := int(words) * 4
		if contentLength > end-offset {
			lenItem.Expert(dissect.SeverityError, "block length %d bytes exceeds the %d remaining", contentLength, end-offset)
			if end > offset {
				block.Add("rtcp.xr.data", offset, end-offset, data[offset:end])
			}
			block.SetLength(end - blockStart)
			return end
		}
		if contentLength == 0 {
			block.SetLength(offset - blockStart)
			continue
		}

		blockEnd := offset + contentLength
		content := block.Branch("rtcp.xr.contents", offset, contentLength, "Contents")
		switch blockType {
		case xrVoIPMetrics:
			d.decodeXRVoIP(data, offset, blockEnd, content)
		case xrStatsSummary:
			d.decodeXRStatsSummary(data, offset, blockEnd, content)
		case xrRefTime:
			if contentLength >= 8 {
				msw := binary.BigEndian.Uint32(data[offset : offset+4])
				lsw := binary.BigEndian.Uint32(data[offset+4 : offset+8])
				content.Addf("rtcp.xr.timestamp.msw", offset, 4, msw, "Timestamp, MSW: %d (0x%08x)", msw, msw)
				content.Addf("rtcp.xr.timestamp.lsw", offset+4, 4, lsw, "Timestamp, LSW: %d (0x%08x)", lsw, lsw)
				content.Addf("rtcp.xr.timestamp", offset, 8, uint64(msw)<<32|uint64(lsw), "Reference Time: %s", ntpText(msw, lsw))
			}
		case xrDLRR:
			d.decodeXRDLRR(data, offset, blockEnd, content)
		case xrPktRxTimes:
			d.decodeXRPktRxTimes(data, offset, blockEnd, thinning, content)
		case xrLossRLE, xrDupRLE:
			d.decodeXRRLE(data, offset, blockEnd, content)
		case xrBTXNQ:
			d.decodeXRBTXNQ(data, offset, blockEnd, content)
		case xrIDMS:
			d.decodeXRIDMS(data, offset, blockEnd, content)
		default:
			content.Add("rtcp.xr.data", offset, contentLength, data[offset:blockEnd])
		}
		offset = blockEnd
		block.SetLength(blockEnd - blockStart)
	}
	return offset
}

// decodeXRVoIP decodes the RFC 3611 VoIP metrics block.
func (d *Dissector) decodeXRVoIP(data []byte, offset, end int, content *dissect.Node) {
	if end-offset < 32 {
		content.Expert(dissect.SeverityError, "VoIP metrics block shorter than 32 bytes")
		return
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	content.Addf("rtcp.xr.ssrc", offset, 4, ssrc, "Source identifier: 0x%08x", ssrc)
	offset += 4

	content.Addf("rtcp.xr.voip.loss_rate", offset, 1, data[offset], "Loss rate: %d / 256", data[offset])
	offset++
	content.Addf("rtcp.xr.voip.discard_rate", offset, 1, data[offset], "Discard rate: %d / 256", data[offset])
	offset++
	content.Addf("rtcp.xr.voip.burst_density", offset, 1, data[offset], "Burst density: %d", data[offset])
	offset++
	content.Addf("rtcp.xr.voip.gap_density", offset, 1, data[offset], "Gap density: %d", data[offset])
	offset++

	burstDur := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.voip.burst_duration", offset, 2, burstDur, "Burst duration: %d ms", burstDur)
	offset += 2
	gapDur := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.voip.gap_duration", offset, 2, gapDur, "Gap duration: %d ms", gapDur)
	offset += 2
	rtd := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.voip.rtdelay", offset, 2, rtd, "Round trip delay: %d ms", rtd)
	offset += 2
	esd := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.voip.esdelay", offset, 2, esd, "End system delay: %d ms", esd)
	offset += 2

	addXRLevel(content, "rtcp.xr.voip.signal_level", offset, data[offset], "Signal level")
	offset++
	addXRLevel(content, "rtcp.xr.voip.noise_level", offset, data[offset], "Noise level")
	offset++
	if data[offset] == 0x7f {
		content.Addf("rtcp.xr.voip.rerl", offset, 1, data[offset], "Residual echo return loss: Unavailable")
	} else {
		content.Addf("rtcp.xr.voip.rerl", offset, 1, data[offset], "Residual echo return loss: %d dB", data[offset])
	}
	offset++
	content.Addf("rtcp.xr.voip.gmin", offset, 1, data[offset], "Gmin: %d", data[offset])
	offset++

	addXRFactor(content, "rtcp.xr.voip.rfactor", offset, data[offset], "R factor")
	offset++
	addXRFactor(content, "rtcp.xr.voip.ext_rfactor", offset, data[offset], "External R factor")
	offset++
	addXRMOS(content, "rtcp.xr.voip.mos_lq", offset, data[offset], "MOS - listening quality")
	offset++
	addXRMOS(content, "rtcp.xr.voip.mos_cq", offset, data[offset], "MOS - conversational quality")
	offset++

	cfg := data[offset]
	plc := (cfg & 0xc0) >> 6
	content.Addf("rtcp.xr.voip.plc", offset, 1, plc, "Packet loss concealment: %s (%d)", nameOrUnknown(xrPLCAlgoNames, plc), plc)
	jba := (cfg & 0x30) >> 4
	content.Addf("rtcp.xr.voip.jb_adaptive", offset, 1, jba, "Adaptive jitter buffer: %s (%d)", nameOrUnknown(xrJBAdaptiveNames, jba), jba)
	content.Addf("rtcp.xr.voip.jb_rate", offset, 1, cfg&0x0f, "Jitter buffer rate: %d", cfg&0x0f)
	// One reserved byte after the configuration flags.
	offset += 2

	jbNominal := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.voip.jb_nominal", offset, 2, jbNominal, "Nominal jitter buffer size: %d ms", jbNominal)
	offset += 2
	jbMax := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.voip.jb_max", offset, 2, jbMax, "Maximum jitter buffer size: %d ms", jbMax)
	offset += 2
	jbAbsMax := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.voip.jb_abs_max", offset, 2, jbAbsMax, "Absolute maximum jitter buffer size: %d ms", jbAbsMax)
}

func addXRLevel(parent *dissect.Node, field string, offset int, raw byte, label string) {
	if raw == 0x7f {
		parent.Addf(field, offset, 1, int8(raw), "%s: Unavailable", label)
		return
	}
	parent.Addf(field, offset, 1, int8(raw), "%s: %d dBm", label, int8(raw))
}

func addXRFactor(parent *dissect.Node, field string, offset int, raw byte, label string) {
	if raw == 0x7f {
		parent.Addf(field, offset, 1, raw, "%s: Unavailable", label)
		return
	}
	parent.Addf(field, offset, 1, raw, "%s: %d", label, raw)
}

func addXRMOS(parent *dissect.Node, field string, offset int, raw byte, label string) {
	if raw == 0x7f {
		parent.Addf(field, offset, 1, raw, "%s: Unavailable", label)
		return
	}
	parent.Addf(field, offset, 1, raw, "%s: %.1f", label, float64(raw)/10)
}

// decodeXRStatsSummary decodes the RFC 3611 statistics summary block.
func (d *Dissector) decodeXRStatsSummary(data []byte, offset, end int, content *dissect.Node) {
	if end-offset < 36 {
		content.Expert(dissect.SeverityError, "statistics summary block shorter than 36 bytes")
		return
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	content.Addf("rtcp.xr.ssrc", offset, 4, ssrc, "Source identifier: 0x%08x", ssrc)
	offset += 4

	beginSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.beginseq", offset, 2, beginSeq, "Begin sequence number: %d", beginSeq)
	offset += 2
	endSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.endseq", offset, 2, endSeq, "End sequence number: %d", endSeq)
	offset += 2

	for _, f := range []struct {
		field string
		label string
	}{
		{"rtcp.xr.stats.lost", "Lost packets"},
		{"rtcp.xr.stats.dups", "Duplicate packets"},
		{"rtcp.xr.stats.minjitter", "Minimum jitter"},
		{"rtcp.xr.stats.maxjitter", "Maximum jitter"},
		{"rtcp.xr.stats.meanjitter", "Mean jitter"},
		{"rtcp.xr.stats.devjitter", "Developed jitter"},
	} {
		v := binary.BigEndian.Uint32(data[offset : offset+4])
		content.Addf(f.field, offset, 4, v, "%s: %d", f.label, v)
		offset += 4
	}
	for _, f := range []struct {
		field string
		label string
	}{
		{"rtcp.xr.stats.minttl", "Minimum TTL or hop limit"},
		{"rtcp.xr.stats.maxttl", "Maximum TTL or hop limit"},
		{"rtcp.xr.stats.meanttl", "Mean TTL or hop limit"},
		{"rtcp.xr.stats.devttl", "Developed TTL or hop limit"},
	} {
		content.Addf(f.field, offset, 1, data[offset], "%s: %d", f.label, data[offset])
		offset++
	}
}

// decodeXRDLRR decodes the delay since last receiver report block, one
// 12-byte entry per reported source.
func (d *Dissector) decodeXRDLRR(data []byte, offset, end int, content *dissect.Node) {
	num := 0
	for offset+12 <= end {
		num++
		src := content.Branch("rtcp.xr.dlrr.source", offset, 12, "Source %d", num)
		ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
		src.Addf("rtcp.xr.ssrc", offset, 4, ssrc, "Source identifier: 0x%08x", ssrc)
		offset += 4
		lrr := binary.BigEndian.Uint32(data[offset : offset+4])
		src.Addf("rtcp.xr.lrr", offset, 4, lrr, "Last RR timestamp: %d (0x%08x)", lrr, lrr)
		offset += 4
		dlrr := binary.BigEndian.Uint32(data[offset : offset+4])
		src.Addf("rtcp.xr.dlrr.delay", offset, 4, dlrr, "Delay since last RR timestamp: %d", dlrr)
		offset += 4
	}
}

// decodeXRPktRxTimes decodes the packet receipt times block. The begin
// sequence rounds up to the thinning interval; each receipt time then
// covers sequence begin + count*2^thinning.
func (d *Dissector) decodeXRPktRxTimes(data []byte, offset, end int, thinning uint8, content *dissect.Node) {
	if end-offset < 8 {
		content.Expert(dissect.SeverityError, "packet receipt times block shorter than 8 bytes")
		return
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	content.Addf("rtcp.xr.ssrc", offset, 4, ssrc, "Source identifier: 0x%08x", ssrc)
	offset += 4

	beginSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.beginseq", offset, 2, beginSeq, "Begin sequence number: %d", beginSeq)
	offset += 2
	endSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.endseq", offset, 2, endSeq, "End sequence number: %d", endSeq)
	offset += 2

	interval := uint32(1) << thinning
	begin := (uint32(beginSeq) + interval - 1) &^ (interval - 1)
	for count := uint32(0); offset+4 <= end; count++ {
		rx := binary.BigEndian.Uint32(data[offset : offset+4])
		seq := (begin + (count << thinning)) % 65536
		content.Addf("rtcp.xr.receipt_time", offset, 4, rx, "Seq: %d, Receipt Time: %d", seq, rx)
		offset += 4
	}
}

// decodeXRRLE decodes the loss or duplicate run length encoding block.
func (d *Dissector) decodeXRRLE(data []byte, offset, end int, content *dissect.Node) {
	if end-offset < 8 {
		content.Expert(dissect.SeverityError, "RLE block shorter than 8 bytes")
		return
	}
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	content.Addf("rtcp.xr.ssrc", offset, 4, ssrc, "Source identifier: 0x%08x", ssrc)
	offset += 4

	beginSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.beginseq", offset, 2, beginSeq, "Begin sequence number: %d", beginSeq)
	offset += 2
	endSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.endseq", offset, 2, endSeq, "End sequence number: %d", endSeq)
	offset += 2

	chunks := content.Branch("rtcp.xr.chunks", offset, end-offset, "Report Chunks")
	for count := 1; offset+2 <= end; count++ {
		v := binary.BigEndian.Uint16(data[offset : offset+2])
		switch {
		case v == 0:
			chunks.Addf("rtcp.xr.chunk", offset, 2, v, "Chunk: %d -- Null Terminator", count)
		case v&0x8000 == 0:
			runType := "0s"
			if v&0x4000 != 0 {
				runType = "1s"
			}
			chunks.Addf("rtcp.xr.chunk", offset, 2, v, "Chunk: %d -- Length Run %s, length: %d", count, runType, v&0x3fff)
		default:
			chunks.Addf("rtcp.xr.chunk", offset, 2, v, "Chunk: %d -- Bit Vector 0x%x", count, v&0x7fff)
		}
		offset += 2
	}
}

// decodeXRBTXNQ decodes the RFC 5093 BT XNQ block. The last four
// metrics are 24-bit values carried in 32-bit words whose high byte
// must be zero.
func (d *Dissector) decodeXRBTXNQ(data []byte, offset, end int, content *dissect.Node) {
	if end-offset < 32 {
		content.Expert(dissect.SeverityError, "BT XNQ block shorter than 32 bytes")
		return
	}
	begSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.btxnq.begseq", offset, 2, begSeq, "Starting sequence number: %d", begSeq)
	offset += 2
	endSeq := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.btxnq.endseq", offset, 2, endSeq, "Last sequence number: %d", endSeq)
	offset += 2
	vmaxdiff := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.btxnq.vmaxdiff", offset, 2, vmaxdiff, "Maximum IPDV difference in 1 cycle: %d", vmaxdiff)
	offset += 2
	vrange := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.btxnq.vrange", offset, 2, vrange, "Maximum IPDV difference seen to date: %d", vrange)
	offset += 2
	vsum := binary.BigEndian.Uint32(data[offset : offset+4])
	content.Addf("rtcp.xr.btxnq.vsum", offset, 4, vsum, "Sum of peak IPDV differences to date: %d", vsum)
	offset += 4
	cycles := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.btxnq.cycles", offset, 2, cycles, "Number of cycles: %d", cycles)
	offset += 2
	jbevents := binary.BigEndian.Uint16(data[offset : offset+2])
	content.Addf("rtcp.xr.btxnq.jbevents", offset, 2, jbevents, "Number of jitter buffer adaptations: %d", jbevents)
	offset += 2

	for _, f := range []struct {
		field string
		label string
	}{
		{"rtcp.xr.btxnq.tdegnet", "Time duration of degradation from network loss: %d ms"},
		{"rtcp.xr.btxnq.tdegjit", "Time duration of degradation from jitter buffer: %d ms"},
		{"rtcp.xr.btxnq.es", "Errored seconds: %d ms"},
		{"rtcp.xr.btxnq.ses", "Severely errored seconds: %d ms"},
	} {
		if data[offset] != 0 {
			content.Addf("rtcp.xr.btxnq.spare", offset, 1, data[offset], "Warning - spare bits not 0")
		}
		v := uint32(data[offset+1])<<16 | uint32(data[offset+2])<<8 | uint32(data[offset+3])
		content.Addf(f.field, offset+1, 3, v, f.label, v)
		offset += 4
	}
}

// decodeXRIDMS decodes the inter-destination media synchronization
// block, ETSI TISPAN 183 063 and RFC 7272.
func (d *Dissector) decodeXRIDMS(data []byte, offset, end int, content *dissect.Node) {
	if end-offset < 28 {
		content.Expert(dissect.SeverityError, "IDMS block shorter than 28 bytes")
		return
	}
	content.Addf("rtcp.xr.idms.pt", offset, 1, data[offset]&0x7f, "Payload type: %d", data[offset]&0x7f)
	offset += 4

	msci := binary.BigEndian.Uint32(data[offset : offset+4])
	content.Addf("rtcp.xr.idms.msci", offset, 4, msci, "Media Stream Correlation Identifier: %d", msci)
	offset += 4
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	content.Addf("rtcp.xr.idms.source_ssrc", offset, 4, ssrc, "Source SSRC: 0x%08x", ssrc)
	offset += 4

	msw := binary.BigEndian.Uint32(data[offset : offset+4])
	lsw := binary.BigEndian.Uint32(data[offset+4 : offset+8])
	content.Addf("rtcp.xr.idms.ntp_rcv_ts", offset, 8, uint64(msw)<<32|uint64(lsw), "NTP timestamp of packet reception: %s", ntpText(msw, lsw))
	offset += 8

	rtpTS := binary.BigEndian.Uint32(data[offset : offset+4])
	content.Addf("rtcp.xr.idms.rtp_ts", offset, 4, rtpTS, "RTP timestamp of packet: %d", rtpTS)
	offset += 4

	presTS := binary.BigEndian.Uint32(data[offset : offset+4])
	hour := (presTS >> 16) / 3600
	min := ((presTS >> 16) - hour*3600) / 60
	sec := (presTS >> 16) - hour*3600 - min*60
	msec := (presTS & 0xffff) / 66
	content.Addf("rtcp.xr.idms.ntp_pres_ts", offset, 4, presTS, "NTP timestamp of presentation: %d:%02d:%02d:%03d [h:m:s:ms]", hour, min, sec, msec)
}
