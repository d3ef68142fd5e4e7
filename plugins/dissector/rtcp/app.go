package rtcp

import (
	"encoding/binary"
	"net/netip"
	"strings"

	"github.com/tytonet/tyto/pkg/dissect"
)

// decodeAPP dissects an application-defined packet, type 204. The
// four-character name selects the grammar: PoC1 talk burst control,
// 3GPP RTP multiplexing, mission critical push-to-talk and MBMS
// subchannel control are built in; other names go through the
// rtcp.app.name registry table with the whole segment, and fall back
// to opaque data.
func (d *Dissector) decodeAPP(data []byte, offset, end int, subtype uint8, frame *dissect.Frame, subtypeItem, seg *dissect.Node) int {
	if offset+4 > end {
		seg.Expert(dissect.SeverityError, "application packet truncated before name")
		return end
	}
	name := string(data[offset : offset+4])
	ascii := isPrintableASCII(data[offset : offset+4])
	if ascii {
		seg.Addf("rtcp.app.name", offset, 4, name, "Name (ASCII): %s", name)
		switch {
		case strings.EqualFold(name, "PoC1"):
			return d.decodePoC1(data, offset, end, subtype, subtypeItem, seg)
		case strings.EqualFold(name, "3GPP"):
			return d.decodeRTPMux(data, offset, end, seg)
		case strings.EqualFold(name, "MCPT"):
			return d.decodeMCPT(data, offset, end, subtype, subtypeItem, seg)
		case strings.EqualFold(name, "MCCP"):
			return d.decodeMCCP(data, offset, end, subtype, subtypeItem, seg)
		}
		if sub, ok := d.lookupString(TableAppName, name); ok {
			// Vendor grammars see the segment from its header on.
			sub.Dissect(data[offset-8:end], frame, seg)
			return end
		}
	} else {
		item := seg.Add("rtcp.app.name", offset, 4, data[offset:offset+4])
		item.Expert(dissect.SeverityError, "application name is not a printable string")
	}
	offset += 4
	if end > offset {
		seg.Add("rtcp.app.data", offset, end-offset, data[offset:end])
	}
	return end
}

func isPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// decodeRTPMux dissects the 3GPP TS 29.414 Nb RTP multiplexing
// announcement. The payload is exactly four bytes: capability flags and
// a local mux port carried divided by two.
func (d *Dissector) decodeRTPMux(data []byte, offset, end int, seg *dissect.Node) int {
	offset += 4
	if end-offset != 4 {
		if end > offset {
			seg.Add("rtcp.app.data", offset, end-offset, data[offset:end])
		}
		return end
	}
	mux := seg.Branch("rtcp.app.mux", offset, 4, "RtpMux Application specific data")
	flags := data[offset]
	mux.Addf("rtcp.app.mux.mux", offset, 1, flags&0x80 != 0, "Multiplexing supported: %t", flags&0x80 != 0)
	mux.Addf("rtcp.app.mux.cp", offset, 1, flags&0x40 != 0, "Header compression supported: %t", flags&0x40 != 0)
	sel := (flags & 0x30) >> 4
	mux.Addf("rtcp.app.mux.selection", offset, 1, sel, "Multiplexing selection: %s (%d)", nameOrUnknown(muxSelectionNames, sel), sel)
	port := uint32(binary.BigEndian.Uint16(data[offset+2:offset+4])) * 2
	mux.Addf("rtcp.app.mux.muxport", offset+2, 2, port, "Local Mux Port: %d", port)
	return end
}

// decodePoC1 dissects OMA push-to-talk-over-cellular talk burst
// control, keyed by the packet subtype. Optional items carry a one byte
// code and length; a code or length other than the one the subtype
// mandates ends the decode, as the remainder cannot be framed.
func (d *Dissector) decodePoC1(data []byte, offset, end int, subtype uint8, subtypeItem, seg *dissect.Node) int {
	subtypeItem.AppendText(" %s", nameOrUnknown(pocSubtypeNames, subtype))
	offset += 4
	if offset >= end {
		return offset
	}
	poc := seg.Branch("rtcp.app.poc1", offset, end-offset, "PoC1 Application specific data")

	switch subtype {
	case tbcpBurstRequest:
		code := data[offset]
		offset++
		if code == 102 {
			// Priority, optional.
			if offset >= end {
				return offset
			}
			itemLen := int(data[offset])
			offset++
			if itemLen != 2 || offset+2 > end {
				return offset
			}
			pri := binary.BigEndian.Uint16(data[offset : offset+2])
			poc.Addf("rtcp.app.poc1.priority", offset, 2, pri, "Priority: %s (%d)", nameOrUnknown(pocPriorityNames, pri), pri)
			offset += 2
			if offset >= end {
				return offset
			}
			code = data[offset]
			offset++
		}
		if code == 103 {
			// Request timestamp, optional.
			if offset >= end {
				return offset
			}
			itemLen := int(data[offset])
			offset++
			if itemLen != 8 || offset+8 > end {
				return offset
			}
			msw := binary.BigEndian.Uint32(data[offset : offset+4])
			lsw := binary.BigEndian.Uint32(data[offset+4 : offset+8])
			poc.Addf("rtcp.app.poc1.request.ts", offset, 8, uint64(msw)<<32|uint64(lsw), "Talk Burst Request Timestamp: %s", ntpText(msw, lsw))
			offset += 8
		}

	case tbcpBurstGranted:
		// Stop talking timer, mandatory.
		if data[offset] != 101 {
			return offset + 1
		}
		offset++
		if offset >= end || data[offset] != 2 {
			return offset
		}
		offset++
		if offset+2 > end {
			return offset
		}
		stt := binary.BigEndian.Uint16(data[offset : offset+2])
		sttItem := poc.Addf("rtcp.app.poc1.stt", offset, 2, stt, "Stop talking timer: %d", stt)
		switch stt {
		case 0:
			sttItem.AppendText(" unknown")
		case 65535:
			sttItem.AppendText(" infinity")
		default:
			sttItem.AppendText(" seconds")
		}
		offset += 2
		offset = d.decodePoC1Participants(data, offset, end, poc)

	case tbcpBurstTakenNoReply, tbcpBurstTakenExpectReply:
		if offset+5 > end {
			return offset
		}
		granted := binary.BigEndian.Uint32(data[offset : offset+4])
		poc.Addf("rtcp.app.poc1.ssrc.granted", offset, 4, granted, "SSRC of client granted permission to talk: 0x%08x", granted)
		offset += 4

		// CNAME of the talker, mandatory.
		sdesType := data[offset]
		poc.Addf("rtcp.sdes.type", offset, 1, sdesType, "Type: %s (%d)", nameOrUnknown(sdesTypeNames, sdesType), sdesType)
		offset++
		if sdesType != sdesCNAME || offset >= end {
			return offset
		}
		uriLen := int(data[offset])
		if offset+1+uriLen > end {
			return offset + 1
		}
		poc.Addf("rtcp.app.poc1.sip.uri", offset, 1+uriLen, string(data[offset+1:offset+1+uriLen]), "SIP URI: %s", data[offset+1:offset+1+uriLen])
		offset += 1 + uriLen

		// Display name, optional.
		if offset < end && data[offset] == sdesNAME {
			poc.Addf("rtcp.sdes.type", offset, 1, data[offset], "Type: %s (%d)", nameOrUnknown(sdesTypeNames, data[offset]), data[offset])
			offset++
			if offset >= end {
				return offset
			}
			nameLen := int(data[offset])
			if offset+1+nameLen > end {
				return offset + 1
			}
			poc.Addf("rtcp.app.poc1.disp.name", offset, 1+nameLen, string(data[offset+1:offset+1+nameLen]), "Display Name: %s", data[offset+1:offset+1+nameLen])
			offset += 1 + nameLen
			if offset >= end {
				return offset
			}
			if offset%4 != 0 {
				offset += 4 - offset%4
				if offset > end {
					return end
				}
			}
		}
		offset = d.decodePoC1Participants(data, offset, end, poc)

	case tbcpBurstDeny:
		reason := data[offset]
		poc.Addf("rtcp.app.poc1.reason.code", offset, 1, reason, "Reason code: %s (%d)", nameOrUnknown(pocDenyReasonNames, reason), reason)
		offset++
		if offset >= end {
			return offset
		}
		phraseLen := int(data[offset])
		if phraseLen != 0 && offset+1+phraseLen <= end {
			poc.Addf("rtcp.app.poc1.reason.phrase", offset, 1+phraseLen, string(data[offset+1:offset+1+phraseLen]), "Reason Phrase: %s", data[offset+1:offset+1+phraseLen])
		}
		offset += phraseLen + 1

	case tbcpBurstRelease:
		if offset+4 > end {
			return offset
		}
		lastSeq := binary.BigEndian.Uint16(data[offset : offset+2])
		poc.Addf("rtcp.app.poc1.last.pkt.seq.no", offset, 2, lastSeq, "Sequence number of last RTP packet: %d", lastSeq)
		offset += 2
		ignore := binary.BigEndian.Uint16(data[offset:offset+2])&0x8000 != 0
		poc.Addf("rtcp.app.poc1.ignore.seq.no", offset, 2, ignore, "Ignore sequence number field: %t", ignore)
		offset += 2

	case tbcpBurstIdle:

	case tbcpBurstRevoke:
		if offset+4 > end {
			return offset
		}
		reason := binary.BigEndian.Uint16(data[offset : offset+2])
		poc.Addf("rtcp.app.poc1.reason.code", offset, 2, reason, "Reason code: %s (%d)", nameOrUnknown(pocRevokeReasonNames, reason), reason)
		if reason == 2 {
			// Talk burst too long carries the time a client may request.
			next := binary.BigEndian.Uint16(data[offset+2 : offset+4])
			poc.Addf("rtcp.app.poc1.new.time.request", offset+2, 2, next, "New time client can request (seconds): %d", next)
		}
		offset += 4

	case tbcpBurstAcknowledgment:
		if offset+4 > end {
			return offset
		}
		ackSubtype := (data[offset] & 0xf8) >> 3
		poc.Addf("rtcp.app.poc1.ack.subtype", offset, 1, ackSubtype, "Subtype: %s (%d)", nameOrUnknown(pocSubtypeNames, ackSubtype), ackSubtype)
		if ackSubtype == tbcpConnect {
			reason := binary.BigEndian.Uint16(data[offset:offset+2]) & 0x07ff
			poc.Addf("rtcp.app.poc1.ack.reason.code", offset, 2, reason, "Reason code: %s (%d)", nameOrUnknown(pocAckReasonNames, reason), reason)
		}
		offset += 4

	case tbcpQueueStatusRequest:

	case tbcpQueueStatusResponse:
		if offset+4 > end {
			return offset
		}
		pri := uint16(data[offset])
		poc.Addf("rtcp.app.poc1.qsresp.priority", offset, 1, pri, "Priority: %s (%d)", nameOrUnknown(pocPriorityNames, pri), pri)
		position := binary.BigEndian.Uint16(data[offset+1 : offset+3])
		posItem := poc.Addf("rtcp.app.poc1.qsresp.position", offset+1, 2, position, "Position (number of clients ahead): %d", position)
		switch position {
		case 0:
			posItem.AppendText(" (client is un-queued)")
		case 65535:
			posItem.AppendText(" (position not available)")
		}
		offset += 4

	case tbcpDisconnect:

	case tbcpConnect:
		if offset+4 > end {
			return offset
		}
		flags := binary.BigEndian.Uint16(data[offset : offset+2])
		content := poc.Branch("rtcp.app.poc1.conn.content", offset, 2, "SDES item content")
		var present [5]bool
		itemsSet := 0
		for i := 0; i < 5; i++ {
			present[i] = flags&(1<<(15-i)) != 0
			content.Addf("rtcp.app.poc1.conn.content.flag", offset, 2, present[i], "%s: %t", pocConnContentNames[i], present[i])
			if present[i] {
				itemsSet++
			}
		}
		content.AppendText(" (%d items)", itemsSet)

		sessType := data[offset+2]
		poc.Addf("rtcp.app.poc1.conn.session.type", offset+2, 1, sessType, "Session type: %s (%d)", nameOrUnknown(pocConnSessionTypeNames, sessType), sessType)
		mao := data[offset+3]&0x80 != 0
		poc.Addf("rtcp.app.poc1.conn.add.ind.mao", offset+3, 1, mao, "Manual answer override: %t", mao)
		offset += 4

		// One length-prefixed SDES value per set flag.
		for i := 0; i < 5; i++ {
			if !present[i] {
				continue
			}
			if offset+2 > end {
				return offset
			}
			offset++ // SDES type, value implied by the flag position
			itemLen := int(data[offset])
			if offset+1+itemLen > end {
				return offset + 1
			}
			poc.Addf("rtcp.app.poc1.conn.sdes", offset, 1+itemLen, string(data[offset+1:offset+1+itemLen]), "%s: %s", pocConnContentNames[i], data[offset+1:offset+1+itemLen])
			offset += 1 + itemLen
		}
	}

	if offset%4 != 0 {
		padLen := 4 - offset%4
		if offset+padLen > end {
			padLen = end - offset
		}
		if padLen > 0 {
			poc.Add("rtcp.app.padding", offset, padLen, data[offset:offset+padLen])
			offset += padLen
		}
	}
	return offset
}

// decodePoC1Participants reads the optional participant count item
// shared by the granted and taken subtypes.
func (d *Dissector) decodePoC1Participants(data []byte, offset, end int, poc *dissect.Node) int {
	if offset >= end {
		return offset
	}
	if data[offset] != 100 {
		return offset + 1
	}
	offset++
	if offset >= end || data[offset] != 2 {
		return offset
	}
	offset++
	if offset+2 > end {
		return offset
	}
	participants := binary.BigEndian.Uint16(data[offset : offset+2])
	item := poc.Addf("rtcp.app.poc1.participants", offset, 2, participants, "Number of participants: %d", participants)
	switch participants {
	case 0:
		item.AppendText(" (not known)")
	case 65535:
		item.AppendText(" (or more)")
	}
	return offset + 2
}

// decodeMCPT dissects mission critical push-to-talk floor control,
// 3GPP TS 24.380. Fields are TLVs padded to 32-bit boundaries; field
// ids of 192 and above carry a two byte length.
func (d *Dissector) decodeMCPT(data []byte, offset, end int, subtype uint8, subtypeItem, seg *dissect.Node) int {
	subtypeItem.AppendText(" %s", nameOrUnknown(mcptSubtypeNames, subtype))
	sub := seg.Branch("rtcp.mcptt", offset, end-offset, "Mission Critical Push To Talk(MCPTT)")
	offset += 4
	if offset >= end {
		return offset
	}

	// Some encoders ship plain text where the TLVs belong.
	if n := end - offset - 3; n > 0 && isPrintableASCII(data[offset:offset+n]) {
		item := seg.Addf("rtcp.mcptt.str", offset, end-offset, string(data[offset:end]), "String: %s", data[offset:end])
		item.Expert(dissect.SeverityError, "data not according to standards")
		return end
	}

	for offset+2 <= end {
		fieldStart := offset
		fieldID := data[offset]
		idItem := sub.Addf("rtcp.mcptt.fld_id", offset, 1, fieldID, "Field Id: %s (%d)", nameOrUnknown(mcptFieldNames, fieldID), fieldID)
		offset++

		lenLen := 1
		if fieldID >= 192 {
			lenLen = 2
		}
		if offset+lenLen > end {
			break
		}
		var fldLen int
		if lenLen == 1 {
			fldLen = int(data[offset])
		} else {
			fldLen = int(binary.BigEndian.Uint16(data[offset : offset+2]))
		}
		sub.Addf("rtcp.mcptt.fld_len", offset, lenLen, uint16(fldLen), "Length: %d", fldLen)
		offset += lenLen

		if fldLen > end-offset {
			idItem.Expert(dissect.SeverityError, "field length %d exceeds the %d bytes left", fldLen, end-offset)
			if end > offset {
				sub.Add("rtcp.mcptt.fld_val", offset, end-offset, data[offset:end])
			}
			return end
		}
		if fldLen != 0 {
			d.decodeMCPTField(data, offset, offset+fldLen, fieldID, subtype, sub)
			offset += fldLen
		}

		if pad := (4 - (1+lenLen+fldLen)%4) % 4; pad > 0 && offset+pad <= end {
			padItem := sub.Add("rtcp.app.padding", offset, pad, data[offset:offset+pad])
			for _, b := range data[offset : offset+pad] {
				if b != 0 {
					padItem.Expert(dissect.SeverityError, "non-zero padding, faulty encoding?")
					break
				}
			}
			offset += pad
		}
		if end-offset >= 4 && binary.BigEndian.Uint32(data[offset:offset+4]) == 0 {
			extra := sub.Add("rtcp.mcptt.extra", offset, 4, uint32(0))
			extra.Expert(dissect.SeverityError, "extra zero bytes")
			offset += 4
		}
		if offset <= fieldStart {
			break
		}
	}
	return offset
}

// decodeMCPTField dissects one MCPT field value between offset and
// valueEnd. Short values for fixed-shape fields flag the parent and
// leave the declared length to resync the TLV walk.
func (d *Dissector) decodeMCPTField(data []byte, offset, valueEnd int, fieldID, subtype uint8, sub *dissect.Node) {
	fldLen := valueEnd - offset
	short := func(need int) bool {
		if fldLen >= need {
			return false
		}
		sub.Expert(dissect.SeverityError, "field value %d bytes, need %d", fldLen, need)
		return true
	}

	switch fieldID {
	case 0: // Floor Priority
		if short(2) {
			return
		}
		v := binary.BigEndian.Uint16(data[offset : offset+2])
		sub.Addf("rtcp.mcptt.priority", offset, 2, v, "Floor Priority: %d", v)

	case mcptFieldDuration:
		if short(2) {
			return
		}
		v := binary.BigEndian.Uint16(data[offset : offset+2])
		sub.Addf("rtcp.mcptt.duration", offset, 2, v, "Duration: %d", v)

	case 2: // Reject Cause
		if short(2) {
			return
		}
		cause := binary.BigEndian.Uint16(data[offset : offset+2])
		switch subtype {
		case 0x03: // Floor Deny
			sub.Addf("rtcp.mcptt.rej_cause", offset, 2, cause, "Reject Cause: %s (%d)", nameOrUnknown(mcptDenyReasonNames, cause), cause)
		case 0x06: // Floor Revoke
			sub.Addf("rtcp.mcptt.rej_cause", offset, 2, cause, "Reject Cause: %s (%d)", nameOrUnknown(mcptRevokeReasonNames, cause), cause)
		default:
			sub.Addf("rtcp.mcptt.rej_cause", offset, 2, cause, "Reject Cause: %d", cause)
		}
		if fldLen > 2 {
			sub.Addf("rtcp.mcptt.rej_phrase", offset+2, fldLen-2, string(data[offset+2:valueEnd]), "Reject Phrase: %s", data[offset+2:valueEnd])
		}

	case 3: // Queue Info
		if short(2) {
			return
		}
		sub.Addf("rtcp.mcptt.queue_pos_inf", offset, 1, data[offset], "Queue Position Info: %d", data[offset])
		sub.Addf("rtcp.mcptt.queue_pri_lev", offset+1, 1, data[offset+1], "Queue Priority Level: %d", data[offset+1])

	case 4, 106: // Granted Party's Identity
		sub.Addf("rtcp.mcptt.granted_partys_id", offset, fldLen, string(data[offset:valueEnd]), "Granted Party's Identity: %s", data[offset:valueEnd])

	case 5: // Permission to Request the Floor
		if short(2) {
			return
		}
		v := binary.BigEndian.Uint16(data[offset : offset+2])
		sub.Addf("rtcp.mcptt.perm_to_req_floor", offset, 2, v, "Permission to Request the Floor: %s (%d)", nameOrUnknown(mcptPermissionNames, v), v)

	case 6: // User ID
		sub.Addf("rtcp.mcptt.user_id", offset, fldLen, string(data[offset:valueEnd]), "User ID: %s", data[offset:valueEnd])

	case 7: // Queue Size
		if short(2) {
			return
		}
		v := binary.BigEndian.Uint16(data[offset : offset+2])
		sub.Addf("rtcp.mcptt.queue_size", offset, 2, v, "Queue Size: %d", v)

	case mcptFieldMsgSeq:
		if short(2) {
			return
		}
		v := binary.BigEndian.Uint16(data[offset : offset+2])
		sub.Addf("rtcp.mcptt.msg_seq_num", offset, 2, v, "Message Sequence Number: %d", v)

	case 9: // Queued User ID
		sub.Addf("rtcp.mcptt.queued_user_id", offset, fldLen, string(data[offset:valueEnd]), "Queued User ID: %s", data[offset:valueEnd])

	case 10: // Source
		if short(2) {
			return
		}
		v := binary.BigEndian.Uint16(data[offset : offset+2])
		sub.Addf("rtcp.mcptt.source", offset, 2, v, "Source: %s (%d)", nameOrUnknown(mcptSourceNames, v), v)

	case 11: // Track Info
		d.decodeMCPTTrackInfo(data, offset, valueEnd, sub)

	case 12: // Message Type
		if short(2) {
			return
		}
		sub.Addf("rtcp.mcptt.msg_type", offset, 1, data[offset], "Message Type: %s (%d)", nameOrUnknown(mcptSubtypeNames, data[offset]), data[offset])
		sub.Addf("rtcp.spare", offset+1, 1, data[offset+1], "Spare: %d", data[offset+1])

	case 13: // Floor Indicator
		if short(2) {
			return
		}
		v := binary.BigEndian.Uint16(data[offset : offset+2])
		sub.Addf("rtcp.mcptt.floor_ind", offset, 2, v, "Floor Indicator: %s (0x%04x)", nameOrUnknown(mcptFloorIndNames, v), v)

	case 14: // SSRC
		if short(6) {
			return
		}
		ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
		sub.Addf("rtcp.mcptt.ssrc", offset, 4, ssrc, "SSRC: 0x%08x", ssrc)
		sub.Addf("rtcp.spare", offset+4, 2, binary.BigEndian.Uint16(data[offset+4:offset+6]), "Spare: %d", binary.BigEndian.Uint16(data[offset+4:offset+6]))

	case 15: // List of Granted Users
		if short(1) {
			return
		}
		numUsers := int(data[offset])
		sub.Addf("rtcp.mcptt.num_users", offset, 1, uint8(numUsers), "Number of users: %d", numUsers)
		offset++
		for i := 0; i < numUsers && offset < valueEnd; i++ {
			idLen := int(data[offset])
			sub.Addf("rtcp.mcptt.user_id_len", offset, 1, uint8(idLen), "User ID length: %d", idLen)
			offset++
			if offset+idLen > valueEnd {
				break
			}
			sub.Addf("rtcp.mcptt.user_id", offset, idLen, string(data[offset:offset+idLen]), "User ID: %s", data[offset:offset+idLen])
			offset += idLen
		}

	case 16: // List of SSRCs
		if short(3) {
			return
		}
		numSSRC := int(data[offset])
		sub.Addf("rtcp.mcptt.num_ssrc", offset, 1, uint8(numSSRC), "Number of SSRC: %d", numSSRC)
		sub.Addf("rtcp.spare", offset+1, 2, binary.BigEndian.Uint16(data[offset+1:offset+3]), "Spare: %d", binary.BigEndian.Uint16(data[offset+1:offset+3]))
		offset += 3
		for i := 0; i < numSSRC && offset+4 <= valueEnd; i++ {
			ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
			sub.Addf("rtcp.mcptt.ssrc", offset, 4, ssrc, "SSRC: 0x%08x", ssrc)
			offset += 4
		}

	case 17: // Functional Alias
		sub.Addf("rtcp.mcptt.func_alias", offset, fldLen, string(data[offset:valueEnd]), "Functional Alias: %s", data[offset:valueEnd])

	case 18: // List of Functional Aliases
		if short(1) {
			return
		}
		numFAs := int(data[offset])
		sub.Addf("rtcp.mcptt.num_fa", offset, 1, uint8(numFAs), "Number of Functional Alias: %d", numFAs)
		offset++
		for i := 0; i < numFAs && offset < valueEnd; i++ {
			faLen := int(data[offset])
			sub.Addf("rtcp.mcptt.fa_len", offset, 1, uint8(faLen), "Functional Alias length: %d", faLen)
			offset++
			if offset+faLen > valueEnd {
				break
			}
			sub.Addf("rtcp.mcptt.func_alias", offset, faLen, string(data[offset:offset+faLen]), "Functional Alias: %s", data[offset:offset+faLen])
			offset += faLen
		}

	case 19, 20: // Location, List of Locations
		sub.Addf("rtcp.mcptt.location", offset, fldLen, data[offset:valueEnd], "%s", nameOrUnknown(mcptFieldNames, fieldID))

	default:
		unknown := sub.Add("rtcp.mcptt.fld_val", offset, fldLen, data[offset:valueEnd])
		unknown.Expert(dissect.SeverityWarn, "unknown field")
	}
}

// decodeMCPTTrackInfo dissects the track info field: queueing
// capability, a participant type string padded to a word boundary and
// the floor participant references.
func (d *Dissector) decodeMCPTTrackInfo(data []byte, offset, valueEnd int, sub *dissect.Node) {
	if valueEnd-offset < 2 {
		sub.Expert(dissect.SeverityError, "track info shorter than 2 bytes")
		return
	}
	sub.Addf("rtcp.mcptt.queueing_cap", offset, 1, data[offset], "Queueing Capability: %d", data[offset])
	offset++
	ptLen := int(data[offset])
	sub.Addf("rtcp.mcptt.part_type_len", offset, 1, uint8(ptLen), "Participant Type Length: %d", ptLen)
	offset++
	if ptLen > valueEnd-offset {
		sub.Expert(dissect.SeverityError, "participant type length %d exceeds track info", ptLen)
		return
	}
	sub.Addf("rtcp.mcptt.participant_type", offset, ptLen, string(data[offset:offset+ptLen]), "Participant Type: %s", data[offset:offset+ptLen])
	offset += ptLen

	// Value padding runs 1 to 4 bytes, always present.
	pad := 4 - ptLen%4
	if pad > 0 && offset+pad <= valueEnd {
		padItem := sub.Add("rtcp.app.padding", offset, pad, data[offset:offset+pad])
		for _, b := range data[offset : offset+pad] {
			if b != 0 {
				padItem.Expert(dissect.SeverityError, "non-zero padding, faulty encoding?")
				break
			}
		}
		offset += pad
	}
	for num := 1; valueEnd-offset >= 4; num++ {
		part := sub.Branch("rtcp.mcptt.participant_ref", offset, 4, "Floor Participant Reference %d", num)
		ref := binary.BigEndian.Uint32(data[offset : offset+4])
		part.Addf("rtcp.mcptt.floor_participant_ref", offset, 4, ref, "Floor Participant Reference: %d", ref)
		offset += 4
	}
}

// decodeMCCP dissects MBMS subchannel control, 3GPP TS 24.380. The
// TLVs carry a one byte id and length and pad to 32-bit boundaries.
func (d *Dissector) decodeMCCP(data []byte, offset, end int, subtype uint8, subtypeItem, seg *dissect.Node) int {
	subtypeItem.AppendText(" %s", nameOrUnknown(mccpSubtypeNames, subtype))
	sub := seg.Branch("rtcp.mccp", offset, end-offset, "MBMS subchannel control")
	offset += 4

	for offset+2 <= end {
		fieldStart := offset
		fieldID := data[offset]
		idItem := sub.Addf("rtcp.mccp.field_id", offset, 1, fieldID, "Field id: %s (%d)", nameOrUnknown(mccpFieldNames, fieldID), fieldID)
		offset++
		fldLen := int(data[offset])
		sub.Addf("rtcp.mccp.len", offset, 1, uint8(fldLen), "Length: %d", fldLen)
		offset++

		if fldLen > end-offset {
			idItem.Expert(dissect.SeverityError, "field length %d exceeds the %d bytes left", fldLen, end-offset)
			if end > offset {
				sub.Add("rtcp.mcptt.fld_val", offset, end-offset, data[offset:end])
			}
			return end
		}
		valueEnd := offset + fldLen

		switch fieldID {
		case mccpFieldSubchannel:
			d.decodeMCCPSubchannel(data, offset, valueEnd, sub)

		case 1: // TMGI
			sub.Addf("rtcp.mccp.tmgi", offset, fldLen, data[offset:valueEnd], "TMGI")

		case 2: // MCPTT Group ID
			sub.Addf("rtcp.mccp.mcptt_grp_id", offset, fldLen, string(data[offset:valueEnd]), "MCPTT Group Identity: %s", data[offset:valueEnd])

		case 3: // Monitoring State
			sub.Addf("rtcp.mccp.monitoring_state", offset, fldLen, data[offset:valueEnd], "Monitoring State")

		default:
			unknown := sub.Add("rtcp.mcptt.fld_val", offset, fldLen, data[offset:valueEnd])
			unknown.Expert(dissect.SeverityWarn, "unknown field")
		}
		offset = valueEnd

		if pad := (4 - (2+fldLen)%4) % 4; pad > 0 && offset+pad <= end {
			padItem := sub.Add("rtcp.app.padding", offset, pad, data[offset:offset+pad])
			for _, b := range data[offset : offset+pad] {
				if b != 0 {
					padItem.Expert(dissect.SeverityError, "non-zero padding, faulty encoding?")
					break
				}
			}
			offset += pad
		}
		if end-offset >= 4 && binary.BigEndian.Uint32(data[offset:offset+4]) == 0 {
			extra := sub.Add("rtcp.mcptt.extra", offset, 4, uint32(0))
			extra.Expert(dissect.SeverityError, "extra zero bytes")
			offset += 4
		}
		if offset <= fieldStart {
			break
		}
	}
	return offset
}

// decodeMCCPSubchannel dissects the MBMS subchannel field: m-line
// numbers, IP version, the floor and media ports carried as 32-bit
// values, then the bearer address. The floor port is present only when
// a floor m-line is announced.
func (d *Dissector) decodeMCCPSubchannel(data []byte, offset, valueEnd int, sub *dissect.Node) {
	if valueEnd-offset < 2 {
		sub.Expert(dissect.SeverityError, "subchannel field shorter than 2 bytes")
		return
	}
	audioMLine := (data[offset] & 0xf0) >> 4
	sub.Addf("rtcp.mccp.audio_m_line_no", offset, 1, audioMLine, "Audio m-line Number: %d", audioMLine)
	floorMLine := data[offset] & 0x0f
	sub.Addf("rtcp.mccp.floor_m_line_no", offset, 1, floorMLine, "Floor m-line Number: %d", floorMLine)
	offset++

	ipVer := (data[offset] & 0xf0) >> 4
	sub.Addf("rtcp.mccp.ip_version", offset, 1, ipVer, "IP version: %d", ipVer)
	offset++

	if floorMLine > 0 {
		if valueEnd-offset < 4 {
			sub.Expert(dissect.SeverityError, "subchannel truncated before floor port")
			return
		}
		port := binary.BigEndian.Uint32(data[offset : offset+4])
		sub.Addf("rtcp.mccp.floor_port_no", offset, 4, port, "Floor Port Number: %d", port)
		offset += 4
	}
	if valueEnd-offset < 4 {
		sub.Expert(dissect.SeverityError, "subchannel truncated before media port")
		return
	}
	port := binary.BigEndian.Uint32(data[offset : offset+4])
	sub.Addf("rtcp.mccp.media_port_no", offset, 4, port, "Media Port Number: %d", port)
	offset += 4

	if ipVer == 0 {
		if valueEnd-offset < 4 {
			sub.Expert(dissect.SeverityError, "subchannel truncated before IPv4 address")
			return
		}
		addr := netip.AddrFrom4([4]byte(data[offset : offset+4]))
		sub.Addf("rtcp.mccp.ipv4", offset, 4, addr, "IP Address: %s", addr)
	} else {
		if valueEnd-offset < 16 {
			sub.Expert(dissect.SeverityError, "subchannel truncated before IPv6 address")
			return
		}
		addr := netip.AddrFrom16([16]byte(data[offset : offset+16]))
		sub.Addf("rtcp.mccp.ipv6", offset, 16, addr, "IP Address: %s", addr)
	}
}
