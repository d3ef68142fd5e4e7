// Package rtcp dissects RTCP and SRTCP compound packets.
//
// A compound packet is a sequence of variable-length segments sharing a
// 4-byte header: version (always 2), padding flag, a 5-bit count whose
// role depends on the type, the packet type byte (192-210) and a 16-bit
// length in 32-bit words minus one. The dissector walks the segments,
// hands each one to its sub-record decoder (sender/receiver reports,
// SDES, BYE, APP vendor grammars, XR blocks, transport and payload
// feedback, AVB, RSI, TOKEN) and annotates everything into the caller's
// tree. Consistency findings (length mismatches, misplaced padding,
// malformed chunk arithmetic) surface as expert info, not as decode
// aborts.
//
// Two operating modes mirror the RTP conventions:
//
//  1. Conversation hit: signalling pinned the flow to this dissector and
//     may carry SRTCP framing parameters negotiated by SDP.
//
//  2. Heuristic claim: strict first-header validation (version, leading
//     packet type in the SR..XR range, declared length consistency); the
//     configured default protocol decides whether such traffic is read
//     as plain RTCP or as SRTCP with unknown trailer geometry.
//
// Sender reports additionally feed the roundtrip correlator: the LSR
// timestamp is remembered against the reverse flow and matched with the
// LSR/DLSR echoed in later report blocks to estimate network roundtrip.
package rtcp

import (
	"encoding/binary"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/tytonet/tyto/internal/metrics"
	"github.com/tytonet/tyto/pkg/dissect"
)

// Conversation value keys owned by this dissector.
const (
	// ValueSRTCP holds an *SRTCPInfo describing negotiated SRTCP framing.
	ValueSRTCP = "rtcp.srtcp"
	// valueRoundtrip holds the *roundtripState fed by sender reports.
	valueRoundtrip = "rtcp.roundtrip"
)

// SRTCPInfo carries the SRTCP framing parameters a signalling dissector
// negotiated for a flow. Encrypted mirrors "encryption algorithm is not
// NULL"; whether an individual packet is encrypted also depends on its
// E bit.
type SRTCPInfo struct {
	Encrypted  bool
	MKILen     int
	AuthTagLen int
}

// Options are the decode preferences.
type Options struct {
	ShowSetupInfo   bool   `mapstructure:"show_setup_info"`
	ShowRoundtrip   bool   `mapstructure:"show_roundtrip"`
	RoundtripMinMS  int    `mapstructure:"roundtrip_min_ms"`
	DefaultProtocol string `mapstructure:"default_protocol"` // rtcp | srtcp
	Heuristic       bool   `mapstructure:"heuristic"`
}

// DefaultOptions returns the stock preferences.
func DefaultOptions() Options {
	return Options{
		ShowSetupInfo:   true,
		ShowRoundtrip:   false,
		RoundtripMinMS:  10,
		DefaultProtocol: "rtcp",
		Heuristic:       true,
	}
}

// OptionsFromMap decodes a raw option map over the defaults.
func OptionsFromMap(raw map[string]any) (Options, error) {
	opts := DefaultOptions()
	if err := mapstructure.Decode(raw, &opts); err != nil {
		return opts, fmt.Errorf("rtcp: decode options: %w", err)
	}
	return opts, nil
}

// Dissector decodes RTCP/SRTCP compound packets.
type Dissector struct {
	opts     Options
	registry *dissect.Registry
	store    dissect.Store

	// roundtrip results keyed by frame number, so re-dissecting a frame
	// reuses the first computation instead of re-deriving it from
	// conversation state that has moved on since.
	roundtrips map[uint32]*roundtripResult
}

// New returns a dissector wired to the given registry and conversation
// store. The registry supplies fallback handlers for feedback formats,
// profile-specific extensions and APP names the built-in grammars do not
// claim; it may be nil when no extensions are registered.
func New(opts Options, registry *dissect.Registry, store dissect.Store) *Dissector {
	if store == nil {
		store = dissect.NopStore{}
	}
	return &Dissector{
		opts:       opts,
		registry:   registry,
		store:      store,
		roundtrips: make(map[uint32]*roundtripResult),
	}
}

// Name returns the dissector identifier used in registries and output.
func (d *Dissector) Name() string { return "rtcp" }

// CanHandle applies strict compound validation for heuristic claims:
// version 2, a plausible leading packet type, a declared first segment
// that fits the datagram, and a version-2 follow-up header when one is
// present.
func (d *Dissector) CanHandle(data []byte, frame *dissect.Frame) bool {
	if !d.opts.Heuristic {
		return false
	}
	if len(data) < 8 {
		return false
	}
	if data[0]>>6 != 2 {
		return false
	}
	// A compound starts with SR, RR or (in practice) another of the
	// RFC 3550/4585/3611 types; the legacy H.261 range is too loose a
	// signature to claim traffic on.
	pt := data[1]
	if pt < typeSR || pt > typeXR {
		return false
	}
	segLen := (int(binary.BigEndian.Uint16(data[2:4])) + 1) * 4
	if segLen > len(data) {
		return false
	}
	if segLen+4 <= len(data) && data[segLen]>>6 != 2 {
		return false
	}
	return true
}

// compoundPadding locates the trailing padding of a compound packet.
// segStart is -1 when no final-segment padding applies.
type compoundPadding struct {
	segStart int
	count    int
}

// scanPadding walks the segment headers once to find the final segment
// and its padding flag, so every grammar decodes against the effective
// payload length instead of re-trimming per branch.
func scanPadding(data []byte, limit int) compoundPadding {
	pad := compoundPadding{segStart: -1}
	offset := 0
	for offset+4 <= limit {
		pt := data[offset+1]
		if pt < packetTypeMin || pt > packetTypeMax {
			break
		}
		segLen := (int(binary.BigEndian.Uint16(data[offset+2:offset+4])) + 1) * 4
		segEnd := offset + segLen
		if segEnd > limit {
			break
		}
		if data[offset]&0x20 != 0 {
			pad = compoundPadding{segStart: offset, count: int(data[segEnd-1])}
		} else {
			pad = compoundPadding{segStart: -1}
		}
		offset = segEnd
	}
	return pad
}

// Dissect walks the compound packet and returns the bytes consumed. A
// version mismatch on the first header annotates the fault and consumes
// nothing; it only happens on pinned or port-bound flows, since the
// heuristic rejects such payloads before they get here.
func (d *Dissector) Dissect(data []byte, frame *dissect.Frame, tree *dissect.Node) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("rtcp: empty payload: %w", dissect.ErrTruncated)
	}

	srtcpInfo := d.srtcpInfo(frame)
	isSRTCP := srtcpInfo != nil || d.opts.DefaultProtocol == "srtcp"
	protoName := "RTCP"
	if isSRTCP {
		protoName = "SRTCP"
	}

	// SRTCP trailer geometry and the per-packet E bit.
	srtcpEncrypted := false
	srtcpOffset := -1
	srtcpIndex := uint32(0)
	srtcpEBit := false
	if srtcpInfo != nil {
		srtcpOffset = len(data) - srtcpInfo.AuthTagLen - srtcpInfo.MKILen - 4
		if srtcpOffset >= 0 && srtcpOffset+4 <= len(data) {
			raw := binary.BigEndian.Uint32(data[srtcpOffset : srtcpOffset+4])
			srtcpEBit = raw&0x80000000 != 0
			srtcpIndex = raw & 0x7fffffff
		}
		srtcpEncrypted = srtcpInfo.Encrypted && srtcpEBit
	} else if isSRTCP {
		// Heuristic SRTCP: the trailer geometry is unknown, so assume
		// the payload is encrypted rather than misdecode ciphertext.
		srtcpEncrypted = true
	}

	if data[0]>>6 != 2 {
		seg := tree.Branch("rtcp", 0, len(data), "%s", protoName)
		v := seg.Addf("rtcp.version", 0, 1, data[0]>>6, "Version: %d", data[0]>>6)
		v.Expert(dissect.SeverityError, "unknown %s version %d", protoName, data[0]>>6)
		return 0, nil
	}

	// The compound content ends where the SRTCP trailer begins.
	contentLimit := len(data)
	if srtcpInfo != nil && srtcpOffset >= 0 {
		contentLimit = srtcpOffset
	}

	pad := compoundPadding{segStart: -1}
	if !srtcpEncrypted {
		pad = scanPadding(data, contentLimit)
	}

	var (
		offset       int
		total        int
		nowEncrypted bool
		prevPadItem  *dissect.Node
		prevPadSet   bool
		lastSeg      *dissect.Node
	)

	for !nowEncrypted && offset+4 <= len(data) {
		segStart := offset
		if data[offset]>>6 != 2 {
			if lastSeg != nil {
				lastSeg.Expert(dissect.SeverityError, "version %d on a non-initial header, compound walk stopped", data[offset]>>6)
			}
			break
		}
		packetType := data[offset+1]
		if packetType < packetTypeMin || packetType > packetTypeMax {
			break
		}
		typeName := nameOrUnknown(packetTypeNames, packetType)
		segLen := (int(binary.BigEndian.Uint16(data[offset+2:offset+4])) + 1) * 4
		segEnd := offset + segLen
		total += segLen
		metrics.RTCPSegmentsTotal.WithLabelValues(typeName).Inc()

		claim := segLen
		if segEnd > len(data) {
			claim = len(data) - offset
		}
		seg := tree.Branch("rtcp", offset, claim, "%s (%s)", protoName, typeName)
		lastSeg = seg

		if d.opts.ShowSetupInfo {
			d.showSetupInfo(frame, seg)
		}

		// Padding is only legal on the final segment.
		if prevPadSet && prevPadItem != nil {
			prevPadItem.Expert(dissect.SeverityWarn, "padding flag set on a non-final packet")
		}

		b0 := data[offset]
		seg.Addf("rtcp.version", offset, 1, uint8(b0>>6), "Version: RFC 1889 Version (%d)", b0>>6)
		padSet := b0&0x20 != 0
		padItem := seg.Addf("rtcp.padding", offset, 1, padSet, "Padding: %t", padSet)
		prevPadItem, prevPadSet = padItem, padSet
		count := int(b0 & 0x1f)

		// Grammars stop before the final segment's padding.
		budgetEnd := segEnd
		if budgetEnd > contentLimit {
			budgetEnd = contentLimit
		}
		if pad.segStart == segStart {
			if pad.count <= 0 || pad.count > segLen-4 {
				padItem.Expert(dissect.SeverityWarn, "invalid padding count %d", pad.count)
				pad.segStart = -1
			} else {
				budgetEnd = segEnd - pad.count
			}
		}

		if segEnd > len(data) {
			seg.Expert(dissect.SeverityError, "segment length %d bytes exceeds the %d remaining", segLen, len(data)-offset)
			break
		}

		switch packetType {
		case typeSR, typeRR:
			seg.Addf("rtcp.rc", offset, 1, uint8(count), "Reception report count: %d", count)
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
			seg.Addf("rtcp.senderssrc", offset, 4, ssrc, "Sender SSRC: 0x%08x (%d)", ssrc, ssrc)
			offset += 4

			if srtcpEncrypted {
				// The first header and SSRC are sent in the clear; the
				// rest of the compound is ciphertext.
				nowEncrypted = true
				break
			}
			if packetType == typeSR {
				offset = d.decodeSenderReport(data, offset, budgetEnd, count, frame, seg)
			} else {
				offset = d.decodeReceiverReport(data, offset, budgetEnd, count, frame, seg)
			}

		case typeSDES:
			seg.Addf("rtcp.sc", offset, 1, uint8(count), "Source count: %d", count)
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			offset = d.decodeSDES(data, offset, budgetEnd, count, seg)

		case typeBYE:
			seg.Addf("rtcp.sc", offset, 1, uint8(count), "Source count: %d", count)
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			offset = d.decodeBYE(data, offset, budgetEnd, count, seg)

		case typeAPP:
			subtypeItem := seg.Addf("rtcp.app.subtype", offset, 1, uint8(count), "Subtype: %d", count)
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			if offset+4 > budgetEnd {
				seg.Expert(dissect.SeverityError, "application packet truncated before SSRC")
				break
			}
			ssrc := binary.BigEndian.Uint32(data[offset : offset+4])
			seg.Addf("rtcp.app.ssrc", offset, 4, ssrc, "SSRC/CSRC: 0x%08x", ssrc)
			offset += 4
			if srtcpEncrypted {
				nowEncrypted = true
				break
			}
			offset = d.decodeAPP(data, offset, budgetEnd, uint8(count), frame, subtypeItem, seg)

		case typeXR:
			// Reserved 5 bits, ignored.
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			offset = d.decodeXR(data, offset, budgetEnd, seg)

		case typeAVB:
			seg.Addf("rtcp.app.subtype", offset, 1, uint8(count), "Subtype: %d", count)
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			offset = d.decodeAVB(data, offset, budgetEnd, seg)

		case typeRSI:
			// Reserved 5 bits, ignored.
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			offset = d.decodeRSI(data, offset, budgetEnd, seg)

		case typeTOKEN:
			subtypeItem := seg.Addf("rtcp.app.subtype", offset, 1, uint8(count), "Subtype: %d", count)
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			offset = d.decodeToken(data, offset, budgetEnd, uint8(count), subtypeItem, seg)

		case typeFIR:
			offset = d.decodeLegacyFIR(data, offset, budgetEnd, seg)

		case typeNACK:
			offset = d.decodeLegacyNACK(data, offset, budgetEnd, seg)

		case typeRTPFB:
			offset = d.decodeRTPFB(data, offset, budgetEnd, frame, seg)

		case typePSFB:
			offset = d.decodePSFB(data, offset, budgetEnd, frame, seg)

		default:
			// SMPTE-TC, IJ and the unassigned 196..199 range share the
			// compound header but have no field grammar here; keep the
			// payload opaque and let the declared length carry the walk.
			seg.Addf("rtcp.count", offset, 1, uint8(count), "Count: %d", count)
			offset++
			seg.Addf("rtcp.pt", offset, 1, packetType, "Packet type: %s (%d)", typeName, packetType)
			offset++
			offset = addLengthField(seg, data, offset)
			if budgetEnd > offset {
				seg.Add("rtcp.payload", offset, budgetEnd-offset, data[offset:budgetEnd])
			}
			offset = budgetEnd
		}

		// Sub-decoders are expected to land on the segment boundary;
		// when one stops short the next header read decides whether the
		// walk can continue, and the length check reports the shortfall.
		if pad.segStart == segStart && offset == budgetEnd && !nowEncrypted {
			if pad.count > 1 {
				seg.Add("rtcp.padding.data", offset, pad.count-1, data[offset:offset+pad.count-1])
			}
			seg.Addf("rtcp.padding.count", segEnd-1, 1, uint8(pad.count), "Padding count: %d", pad.count)
			offset = segEnd
		}
	}

	// The encrypted remainder and the SRTCP trailer.
	if srtcpEncrypted {
		if srtcpInfo != nil {
			if srtcpOffset > offset {
				enc := tree.Add("srtcp.encrypted", offset, srtcpOffset-offset, data[offset:srtcpOffset])
				enc.Text = "Encrypted RTCP payload"
				enc.Expert(dissect.SeverityNote, "encrypted, not decoded")
			}
		} else if len(data) > offset {
			enc := tree.Add("srtcp.encrypted", offset, len(data)-offset, data[offset:])
			enc.Text = "Encrypted RTCP payload"
			enc.Expert(dissect.SeverityNote, "encrypted, not decoded")
		}
	}
	if srtcpInfo != nil && srtcpOffset >= 0 && srtcpOffset+4 <= len(data) {
		trailerOff := srtcpOffset
		tree.Addf("srtcp.e", trailerOff, 4, srtcpEBit, "SRTCP E flag: %t", srtcpEBit)
		tree.Addf("srtcp.index", trailerOff, 4, srtcpIndex, "SRTCP index: %d", srtcpIndex)
		trailerOff += 4
		if srtcpInfo.MKILen > 0 && trailerOff+srtcpInfo.MKILen <= len(data) {
			tree.Add("srtcp.mki", trailerOff, srtcpInfo.MKILen, data[trailerOff:trailerOff+srtcpInfo.MKILen])
			trailerOff += srtcpInfo.MKILen
		}
		if srtcpInfo.AuthTagLen > 0 && trailerOff+srtcpInfo.AuthTagLen <= len(data) {
			tree.Add("srtcp.auth_tag", trailerOff, srtcpInfo.AuthTagLen, data[trailerOff:trailerOff+srtcpInfo.AuthTagLen])
		}
		// The whole datagram is accounted for once the trailer is read.
		if !srtcpEncrypted && offset == total {
			tree.Addf("rtcp.length_check", 0, 0, true, "RTCP frame length check: OK - %d bytes", offset)
		} else if !srtcpEncrypted {
			check := tree.Addf("rtcp.length_check", 0, 0, false,
				"RTCP frame length check: Wrong (expected %d bytes, found %d)", total, offset)
			check.Expert(dissect.SeverityWarn, "incorrect RTCP packet length information (expected %d bytes, found %d)", total, offset)
		}
		return len(data), nil
	}

	if !srtcpEncrypted {
		if offset == total {
			tree.Addf("rtcp.length_check", 0, 0, true, "RTCP frame length check: OK - %d bytes", offset)
		} else {
			check := tree.Addf("rtcp.length_check", 0, 0, false,
				"RTCP frame length check: Wrong (expected %d bytes, found %d)", total, offset)
			check.Expert(dissect.SeverityWarn, "incorrect RTCP packet length information (expected %d bytes, found %d)", total, offset)
		}
		return offset, nil
	}
	return len(data), nil
}

// srtcpInfo returns the SRTCP framing negotiated for the flow, nil for
// plain RTCP.
func (d *Dissector) srtcpInfo(frame *dissect.Frame) *SRTCPInfo {
	conv, ok := d.store.Lookup(frame.Key())
	if !ok {
		return nil
	}
	v, ok := conv.Value(ValueSRTCP)
	if !ok {
		return nil
	}
	info, ok := v.(*SRTCPInfo)
	if !ok {
		return nil
	}
	return info
}

// showSetupInfo annotates how the flow was established, when signalling
// recorded it.
func (d *Dissector) showSetupInfo(frame *dissect.Frame, seg *dissect.Node) {
	conv, ok := d.store.Lookup(frame.Key())
	if !ok || conv.SetupMethod == "" {
		return
	}
	setup := seg.Branch("rtcp.setup", 0, 0, "Stream setup by %s (frame %d)", conv.SetupMethod, conv.SetupFrame)
	setup.Addf("rtcp.setup.method", 0, 0, conv.SetupMethod, "Setup method: %s", conv.SetupMethod)
	setup.Addf("rtcp.setup.frame", 0, 0, conv.SetupFrame, "Setup frame: %d", conv.SetupFrame)
}

// addLengthField renders the 16-bit length with its byte translation and
// advances past it.
func addLengthField(seg *dissect.Node, data []byte, offset int) int {
	raw := binary.BigEndian.Uint16(data[offset : offset+2])
	seg.Addf("rtcp.length", offset, 2, raw, "Length: %d (%d bytes)", raw, (int(raw)+1)*4)
	return offset + 2
}

var (
	_ dissect.Dissector  = (*Dissector)(nil)
	_ dissect.Heuristic  = (*Dissector)(nil)
	_ dissect.Summarizer = (*Dissector)(nil)
	_ dissect.Dissector  = MSPSE{}
)
