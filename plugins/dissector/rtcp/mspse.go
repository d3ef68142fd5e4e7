package rtcp

import (
	"encoding/binary"

	"github.com/tytonet/tyto/pkg/dissect"
)

// MSPSE decodes the Microsoft profile-specific extension family carried
// after the report blocks of sender and receiver reports. Each record is
// a 16-bit type, a 16-bit length in bytes covering the whole record
// including this header, and a type-specific body.
type MSPSE struct{}

// Name returns the registry identifier.
func (MSPSE) Name() string { return "rtcp_ms_pse" }

// RegisterExtensions binds the Microsoft extension decoder to every type
// code it understands in the registry's profile-specific extension
// table. Other vendors' handlers go into TablePSExt the same way.
func RegisterExtensions(reg *dissect.Registry) {
	ms := MSPSE{}
	for extType := range msPSETypeNames {
		reg.AddUint(TablePSExt, uint32(extType), ms)
	}
}

// Dissect decodes one extension record handed over by the extension walk
// and reports the bytes it spans. Item offsets are relative to the
// record start.
func (MSPSE) Dissect(data []byte, frame *dissect.Frame, tree *dissect.Node) (int, error) {
	if len(data) < 4 {
		return 0, dissect.ErrTruncated
	}
	extType := binary.BigEndian.Uint16(data[0:2])
	extLen := int(binary.BigEndian.Uint16(data[2:4]))
	if extLen < 4 {
		extLen = 4
	}
	if extLen > len(data) {
		extLen = len(data)
	}

	tree.AppendText(" (%s)", nameOrUnknown(msPSETypeNames, extType))
	tree.Addf("rtcp.profile-specific-extension.type", 0, 2, extType, "Extension Type: %s (%d)", nameOrUnknown(msPSETypeNames, extType), extType)
	tree.Addf("rtcp.profile-specific-extension.length", 2, 2, uint16(extLen), "Extension Length: %d", extLen)

	need := func(n int) bool {
		if n > len(data) {
			tree.Expert(dissect.SeverityError, "extension body truncated (%d bytes, need %d)", len(data), n)
			return false
		}
		return true
	}

	switch extType {
	case msPSEEstimatedBandwidth:
		if !need(12) {
			break
		}
		addPSESenderSSRC(data, 4, tree)
		bw := binary.BigEndian.Uint32(data[8:12])
		tree.Addf("rtcp.ms_pse.bandwidth", 8, 4, bw, "Bandwidth: %d", bw)
		// The confidence level byte is optional and pads the record out
		// to 16 bytes when present.
		if extLen == 16 && need(13) {
			tree.Addf("rtcp.ms_pse.confidence_level", 12, 1, data[12], "Confidence Level: %d", data[12])
		}
	case 4: // Packet Loss Notification
		if !need(8) {
			break
		}
		seq := binary.BigEndian.Uint16(data[6:8])
		tree.Addf("rtcp.ms_pse.seq_num", 6, 2, seq, "Sequence Number: %d", seq)
	case 5: // Video Preference
		if !need(18) {
			break
		}
		width := binary.BigEndian.Uint16(data[8:10])
		tree.Addf("rtcp.ms_pse.frame_res_width", 8, 2, width, "Frame Resolution Width: %d", width)
		height := binary.BigEndian.Uint16(data[10:12])
		tree.Addf("rtcp.ms_pse.frame_res_height", 10, 2, height, "Frame Resolution Height: %d", height)
		bitrate := binary.BigEndian.Uint32(data[12:16])
		tree.Addf("rtcp.ms_pse.bitrate", 12, 4, bitrate, "Bitrate: %d", bitrate)
		rate := binary.BigEndian.Uint16(data[16:18])
		tree.Addf("rtcp.ms_pse.frame_rate", 16, 2, rate, "Frame Rate: %d", rate)
	case 7, 8, 10: // Policy Server, TURN Server, Receiver-side Bandwidth
		if !need(12) {
			break
		}
		bw := binary.BigEndian.Uint32(data[8:12])
		tree.Addf("rtcp.ms_pse.bandwidth", 8, 4, bw, "Bandwidth: %d", bw)
	case 9: // Audio Healer Metrics
		if !need(28) {
			break
		}
		addPSESenderSSRC(data, 4, tree)
		counters := []struct {
			field string
			label string
		}{
			{"rtcp.ms_pse.concealed_frames", "Concealed Frames"},
			{"rtcp.ms_pse.stretched_frames", "Stretched Frames"},
			{"rtcp.ms_pse.compressed_frames", "Compressed Frames"},
			{"rtcp.ms_pse.total_frames", "Total Frames"},
		}
		off := 8
		for _, c := range counters {
			v := binary.BigEndian.Uint32(data[off : off+4])
			tree.Addf(c.field, off, 4, v, "%s: %d", c.label, v)
			off += 4
		}
		// Two reserved bytes precede the state fields.
		tree.Addf("rtcp.ms_pse.receive_quality_state", 26, 1, data[26], "Received Quality State: %d", data[26])
		tree.Addf("rtcp.ms_pse.fec_distance_request", 27, 1, data[27], "FEC Distance Request: %d", data[27])
	case 11: // Packet Train Packet
		if !need(12) {
			break
		}
		addPSESenderSSRC(data, 4, tree)
		last := data[8]&0x80 != 0
		tree.Addf("rtcp.ms_pse.last_packet_train", 8, 1, last, "Last Packet Train Flag: %t", last)
		tree.Addf("rtcp.ms_pse.packet_index", 8, 1, data[8]&0x7f, "Packet Index: %d", data[8]&0x7f)
		tree.Addf("rtcp.ms_pse.packet_count", 9, 1, data[9], "Packet Count: %d", data[9])
		byteCnt := binary.BigEndian.Uint16(data[10:12])
		tree.Addf("rtcp.ms_pse.packet_train_byte_count", 10, 2, byteCnt, "Packet Train Byte Count: %d", byteCnt)
	case 12: // Peer Info Exchange
		if !need(17) {
			break
		}
		addPSESenderSSRC(data, 4, tree)
		inbound := binary.BigEndian.Uint32(data[8:12])
		tree.Addf("rtcp.ms_pse.inbound_bandwidth", 8, 4, inbound, "Inbound Link Bandwidth: %d", inbound)
		outbound := binary.BigEndian.Uint32(data[12:16])
		tree.Addf("rtcp.ms_pse.outbound_bandwidth", 12, 4, outbound, "Outbound Link Bandwidth: %d", outbound)
		tree.Addf("rtcp.ms_pse.no_cache", 16, 1, data[16], "No Cache Flag: %d", data[16])
	case 13: // Network Congestion Notification
		if !need(17) {
			break
		}
		msw := binary.BigEndian.Uint32(data[4:8])
		lsw := binary.BigEndian.Uint32(data[8:12])
		tree.Addf("rtcp.timestamp.ntp.msw", 4, 4, msw, "Timestamp, MSW: %d (0x%08x)", msw, msw)
		tree.Addf("rtcp.timestamp.ntp.lsw", 8, 4, lsw, "Timestamp, LSW: %d (0x%08x)", lsw, lsw)
		tree.Addf("rtcp.timestamp.ntp", 4, 8, ntpText(msw, lsw), "Timestamp, NTP: %s", ntpText(msw, lsw))
		tree.Addf("rtcp.ms_pse.congestion_info", 16, 1, data[16], "Congestion Information: %d", data[16])
	case 14: // Modality Send Bandwidth Limit
		if !need(12) {
			break
		}
		tree.Addf("rtcp.ms_pse.modality", 4, 1, data[4], "Modality: %d", data[4])
		// Three reserved bytes follow the modality byte.
		bw := binary.BigEndian.Uint32(data[8:12])
		tree.Addf("rtcp.ms_pse.bandwidth", 8, 4, bw, "Bandwidth: %d", bw)
	default:
		// Padding (type 6) and unrecognized types stay opaque.
		if extLen > 4 {
			tree.Add("rtcp.profile-specific-extension", 4, extLen-4, data[4:extLen])
		}
	}
	return extLen, nil
}

// addPSESenderSSRC renders the SSRC field several extension bodies lead
// with, tagging the MS wildcard values.
func addPSESenderSSRC(data []byte, offset int, tree *dissect.Node) {
	ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
	item := tree.Addf("rtcp.senderssrc", offset, 4, ssrc, "Sender SSRC: 0x%08x (%d)", ssrc, ssrc)
	if name, ok := ssrcSpecialNames[ssrc]; ok {
		item.AppendText(" %s", name)
	}
}
