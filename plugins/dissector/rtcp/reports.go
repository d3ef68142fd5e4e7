package rtcp

import (
	"encoding/binary"
	"time"

	"github.com/tytonet/tyto/pkg/dissect"
)

// Seconds between the NTP epoch (1900) and the Unix epoch (1970).
const ntpEpochOffset = 2208988800

// ntpText renders a 64-bit NTP timestamp the way capture tooling does,
// with "NULL" for the all-zero wire value.
func ntpText(msw, lsw uint32) string {
	if msw == 0 && lsw == 0 {
		return "NULL"
	}
	secs := int64(msw) - ntpEpochOffset
	nanos := (uint64(lsw) * 1000000000) >> 32
	return time.Unix(secs, int64(nanos)).UTC().Format("Jan _2, 2006 15:04:05.000000000 UTC")
}

// decodeSenderReport decodes the SR sender info, the trailing report
// blocks and any profile-specific extensions.
func (d *Dissector) decodeSenderReport(data []byte, offset, end, count int, frame *dissect.Frame, seg *dissect.Node) int {
	if offset+20 > end {
		seg.Expert(dissect.SeverityError, "sender report truncated before sender info")
		return offset
	}
	msw := binary.BigEndian.Uint32(data[offset : offset+4])
	lsw := binary.BigEndian.Uint32(data[offset+4 : offset+8])
	seg.Addf("rtcp.timestamp.ntp", offset, 8, ntpText(msw, lsw), "Timestamp, NTP: %s", ntpText(msw, lsw))
	seg.Addf("rtcp.timestamp.ntp.msw", offset, 4, msw, "Timestamp, MSW: %d (0x%08x)", msw, msw)
	seg.Addf("rtcp.timestamp.ntp.lsw", offset+4, 4, lsw, "Timestamp, LSW: %d (0x%08x)", lsw, lsw)
	offset += 8

	rtpTS := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.timestamp.rtp", offset, 4, rtpTS, "Timestamp, RTP: %d", rtpTS)
	offset += 4
	pktCount := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.sender.packetcount", offset, 4, pktCount, "Sender's packet count: %d", pktCount)
	offset += 4
	octetCount := binary.BigEndian.Uint32(data[offset : offset+4])
	seg.Addf("rtcp.sender.octetcount", offset, 4, octetCount, "Sender's octet count: %d", octetCount)
	offset += 4

	// The middle 32 bits of the NTP timestamp are what report blocks
	// echo back as their LSR, so remember them against the reverse flow.
	if d.opts.ShowRoundtrip && !frame.Visited {
		lsr := (msw&0xffff)<<16 | lsw>>16
		d.recordSentSR(frame, lsr)
	}

	return d.decodeReportBlocks(data, offset, end, count, frame, seg)
}

// decodeReceiverReport decodes the RR report blocks and any
// profile-specific extensions.
func (d *Dissector) decodeReceiverReport(data []byte, offset, end, count int, frame *dissect.Frame, seg *dissect.Node) int {
	return d.decodeReportBlocks(data, offset, end, count, frame, seg)
}

// decodeReportBlocks walks count 24-byte reception report blocks and the
// profile-specific extension records that may follow them.
func (d *Dissector) decodeReportBlocks(data []byte, offset, end, count int, frame *dissect.Frame, seg *dissect.Node) int {
	for i := 0; i < count; i++ {
		if offset+24 > end {
			seg.Expert(dissect.SeverityError, "report block %d truncated (%d bytes remain)", i+1, end-offset)
			return offset
		}
		ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
		rb := seg.Branch("rtcp.rb", offset, 24, "Source %d (SSRC 0x%08x)", i+1, ssrc)
		rb.Addf("rtcp.ssrc.identifier", offset, 4, ssrc, "Identifier: 0x%08x (%d)", ssrc, ssrc)
		offset += 4

		fraction := data[offset]
		rb.Addf("rtcp.ssrc.fraction", offset, 1, fraction, "Fraction lost: %d / 256", fraction)
		offset++

		// 24-bit signed magnitude: the high bit flags a negative count,
		// which peers emit when duplicates outnumber losses.
		raw := int(data[offset])<<16 | int(data[offset+1])<<8 | int(data[offset+2])
		lost := raw
		if raw&0x800000 != 0 {
			lost = -(raw & 0x7fffff)
		}
		rb.Addf("rtcp.ssrc.cum_nr", offset, 3, lost, "Cumulative number of packets lost: %d", lost)
		offset += 3

		extSeq := binary.BigEndian.Uint32(data[offset : offset+4])
		ext := rb.Branch("rtcp.ssrc.ext_high", offset, 4, "Extended highest sequence number received: %d", extSeq)
		ext.Addf("rtcp.ssrc.cycles", offset, 2, uint16(extSeq>>16), "Sequence number cycles count: %d", extSeq>>16)
		ext.Addf("rtcp.ssrc.high_seq", offset+2, 2, uint16(extSeq&0xffff), "Highest sequence number received: %d", extSeq&0xffff)
		offset += 4

		jitter := binary.BigEndian.Uint32(data[offset : offset+4])
		rb.Addf("rtcp.ssrc.jitter", offset, 4, jitter, "Interarrival jitter: %d", jitter)
		offset += 4

		lsr := binary.BigEndian.Uint32(data[offset : offset+4])
		rb.Addf("rtcp.ssrc.lsr", offset, 4, lsr, "Last SR timestamp: %d (0x%08x)", lsr, lsr)
		offset += 4

		dlsr := binary.BigEndian.Uint32(data[offset : offset+4])
		dlsrMS := int64(dlsr) * 1000 / 65536
		rb.Addf("rtcp.ssrc.dlsr", offset, 4, dlsr, "Delay since last SR timestamp: %d (%d milliseconds)", dlsr, dlsrMS)
		offset += 4

		if d.opts.ShowRoundtrip && lsr != 0 {
			d.correlateRoundtrip(frame, lsr, dlsrMS, rb)
		}
	}
	return d.decodePSE(data, offset, end, frame, seg)
}

// decodePSE walks the profile-specific extension records that follow the
// report blocks of an SR or RR. Each record leads with a 16-bit type and
// the registry's extension table decides who decodes it and how far the
// record reaches, since profiles disagree about the length field's unit.
// A region nobody claims stays opaque, including whatever follows it.
func (d *Dissector) decodePSE(data []byte, offset, end int, frame *dissect.Frame, seg *dissect.Node) int {
	for offset+2 <= end {
		pseType := binary.BigEndian.Uint16(data[offset : offset+2])
		ext := seg.Branch("rtcp.pse", offset, end-offset, "Profile Specific Extension")
		if sub, ok := d.lookupUint(TablePSExt, uint32(pseType)); ok {
			n, _ := sub.Dissect(data[offset:end], frame, ext)
			if n > 0 {
				if n > end-offset {
					n = end - offset
				}
				ext.SetLength(n)
				offset += n
				continue
			}
		}
		ext.AppendText(" (Unknown)")
		ext.Add("rtcp.profile-specific-extension", offset, end-offset, data[offset:end])
		return end
	}
	if offset < end {
		seg.Add("rtcp.profile-specific-extension", offset, end-offset, data[offset:end])
		return end
	}
	return offset
}

// lookupUint consults the registry when one is wired.
func (d *Dissector) lookupUint(table string, key uint32) (dissect.Dissector, bool) {
	if d.registry == nil {
		return nil, false
	}
	return d.registry.LookupUint(table, key)
}

// lookupString consults the registry when one is wired.
func (d *Dissector) lookupString(table string, key string) (dissect.Dissector, bool) {
	if d.registry == nil {
		return nil, false
	}
	return d.registry.LookupString(table, key)
}
