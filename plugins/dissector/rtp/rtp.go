// Package rtp dissects RTP media packets.
//
// Two operating modes mirror the RTCP conventions:
//
//  1. Conversation hit: signalling pinned the flow to this dissector
//     and may carry the codec negotiated in the SDP rtpmap, which then
//     names dynamic payload types.
//
//  2. Heuristic claim: version and payload-type checks on the fixed
//     header. The header carries too little structure for that to be
//     safe on arbitrary traffic, so the heuristic stays off unless
//     configured on.
//
// Flows multiplexing RTCP onto the RTP port (RFC 5761) are handled by
// declining datagrams whose second byte sits in the RTCP packet type
// range; the engine then falls through to the RTCP dissector.
package rtp

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tytonet/tyto/internal/metrics"
	"github.com/tytonet/tyto/pkg/dissect"
)

// ValueCodec holds the first SDP rtpmap value ("PCMU/8000") negotiated
// for the flow, set by the signalling dissector.
const ValueCodec = "rtp.codec"

const (
	rtpVersion   = 2
	rtpHeaderLen = 12

	// Second-byte values marking multiplexed RTCP (RFC 5761).
	rtcpPacketTypeMin = 200
	rtcpPacketTypeMax = 209

	dynamicPayloadTypeMin = 96
)

// payloadTypeNames maps the static payload types of RFC 3551 to display
// names. Types 96-127 are dynamic and resolve through the negotiated
// rtpmap when signalling recorded one.
var payloadTypeNames = map[uint8]string{
	0:  "ITU-T G.711 PCMU",
	3:  "GSM 06.10",
	4:  "ITU-T G.723",
	5:  "DVI4 8000 samples/s",
	6:  "DVI4 16000 samples/s",
	7:  "Experimental linear predictive encoding",
	8:  "ITU-T G.711 PCMA",
	9:  "ITU-T G.722",
	10: "16-bit uncompressed audio, stereo",
	11: "16-bit uncompressed audio, monaural",
	12: "Qualcomm Code Excited Linear Predictive coding",
	13: "Comfort noise",
	14: "MPEG-I/II Audio",
	15: "ITU-T G.728",
	16: "DVI4 11025 samples/s",
	17: "DVI4 22050 samples/s",
	18: "ITU-T G.729",
	25: "Sun CellB video encoding",
	26: "JPEG-compressed video",
	28: "nv encoding",
	31: "ITU-T H.261",
	32: "MPEG-I/II Video",
	33: "MPEG-II transport streams",
	34: "ITU-T H.263",
}

// Dissector decodes RTP packets.
type Dissector struct {
	store dissect.Store
}

// New returns a dissector reading negotiated codec and setup metadata
// from the given conversation store.
func New(store dissect.Store) *Dissector {
	if store == nil {
		store = dissect.NopStore{}
	}
	return &Dissector{store: store}
}

// Name returns the dissector identifier used in registries and output.
func (d *Dissector) Name() string { return "rtp" }

// CanHandle applies the fixed-header checks: version 2, a payload type
// that is either statically assigned or dynamic, not in the RTCP range,
// and room for the CSRC list the first byte declares.
func (d *Dissector) CanHandle(data []byte, frame *dissect.Frame) bool {
	if len(data) < rtpHeaderLen {
		return false
	}
	if data[0]>>6 != rtpVersion {
		return false
	}
	if data[1] >= rtcpPacketTypeMin && data[1] <= rtcpPacketTypeMax {
		return false
	}
	pt := data[1] & 0x7F
	if _, ok := payloadTypeNames[pt]; !ok && pt < dynamicPayloadTypeMin {
		return false
	}
	return rtpHeaderLen+int(data[0]&0x0F)*4 <= len(data)
}

// Dissect decodes the fixed header, CSRC list, header extension and
// padding of one RTP packet. Datagrams carrying multiplexed RTCP or an
// unexpected version are declined for the other dissectors.
func (d *Dissector) Dissect(data []byte, frame *dissect.Frame, tree *dissect.Node) (int, error) {
	if len(data) < rtpHeaderLen {
		return 0, fmt.Errorf("rtp: %d byte datagram: %w", len(data), dissect.ErrTruncated)
	}
	if data[1] >= rtcpPacketTypeMin && data[1] <= rtcpPacketTypeMax {
		return 0, nil
	}

	version := data[0] >> 6
	if version != rtpVersion {
		return 0, nil
	}

	padding := data[0]&0x20 != 0
	extension := data[0]&0x10 != 0
	csrcCount := int(data[0] & 0x0F)
	marker := data[1]&0x80 != 0
	pt := data[1] & 0x7F
	seq := binary.BigEndian.Uint16(data[2:4])
	timestamp := binary.BigEndian.Uint32(data[4:8])
	ssrc := binary.BigEndian.Uint32(data[8:12])

	name := d.payloadTypeName(pt, frame)
	metrics.RTPPacketsTotal.WithLabelValues(name).Inc()

	root := tree.Branch("rtp", 0, len(data), "RTP: PT=%s, SSRC=0x%08x, Seq=%d, Time=%d",
		name, ssrc, seq, timestamp)
	if marker {
		root.AppendText(", Mark")
	}

	root.Addf("rtp.version", 0, 1, version, "Version: RFC 1889 version (%d)", version)
	root.Addf("rtp.padding", 0, 1, padding, "Padding: %t", padding)
	root.Addf("rtp.ext", 0, 1, extension, "Extension: %t", extension)
	root.Addf("rtp.cc", 0, 1, uint8(csrcCount), "Contributing source identifiers count: %d", csrcCount)
	root.Addf("rtp.marker", 1, 1, marker, "Marker: %t", marker)
	root.Addf("rtp.p_type", 1, 1, pt, "Payload type: %s (%d)", name, pt)
	root.Addf("rtp.seq", 2, 2, seq, "Sequence number: %d", seq)
	root.Addf("rtp.timestamp", 4, 4, timestamp, "Timestamp: %d", timestamp)
	root.Addf("rtp.ssrc", 8, 4, ssrc, "Synchronization Source identifier: 0x%08x", ssrc)

	offset := rtpHeaderLen
	for i := 0; i < csrcCount; i++ {
		if offset+4 > len(data) {
			root.Expert(dissect.SeverityWarn, "CSRC list runs past the end of the datagram")
			d.showSetupInfo(frame, root)
			return len(data), nil
		}
		csrc := binary.BigEndian.Uint32(data[offset : offset+4])
		root.Addf("rtp.csrc.item", offset, 4, csrc, "CSRC item %d: 0x%08x", i, csrc)
		offset += 4
	}

	if extension {
		var ok bool
		offset, ok = d.dissectExtension(data, offset, root)
		if !ok {
			d.showSetupInfo(frame, root)
			return len(data), nil
		}
	}

	payloadLen := len(data) - offset
	if padding && payloadLen > 0 {
		padCount := int(data[len(data)-1])
		if padCount == 0 || padCount > payloadLen {
			root.Expert(dissect.SeverityWarn, "padding flag set but the padding count byte is %d of %d remaining", padCount, payloadLen)
		} else {
			payloadLen -= padCount
			root.Addf("rtp.padding.count", len(data)-1, 1, uint8(padCount), "Padding count: %d", padCount)
		}
	}
	if payloadLen > 0 {
		root.Addf("rtp.payload", offset, payloadLen, data[offset:offset+payloadLen], "Payload (%d bytes)", payloadLen)
	}

	d.showSetupInfo(frame, root)
	return len(data), nil
}

// dissectExtension reads the RFC 3550 header extension. Returns the
// offset past the extension and false when the datagram ends early.
func (d *Dissector) dissectExtension(data []byte, offset int, root *dissect.Node) (int, bool) {
	if offset+4 > len(data) {
		root.Expert(dissect.SeverityWarn, "extension header runs past the end of the datagram")
		return offset, false
	}
	profile := binary.BigEndian.Uint16(data[offset : offset+2])
	extLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))

	ext := root.Branch("rtp.hdr_ext", offset, 4+extLen*4, "Header extension (profile 0x%04x, %d words)", profile, extLen)
	ext.Addf("rtp.ext.profile", offset, 2, profile, "Defined by profile: 0x%04x", profile)
	ext.Addf("rtp.ext.len", offset+2, 2, uint16(extLen), "Extension length: %d", extLen)
	offset += 4

	end := offset + extLen*4
	if end > len(data) {
		ext.Expert(dissect.SeverityWarn, "extension data runs past the end of the datagram")
		return offset, false
	}
	if extLen > 0 {
		ext.Addf("rtp.ext.data", offset, extLen*4, data[offset:end], "Extension data (%d bytes)", extLen*4)
	}
	return end, true
}

// payloadTypeName resolves a payload type to its display name. Dynamic
// types prefer the codec negotiated in SDP for the flow.
func (d *Dissector) payloadTypeName(pt uint8, frame *dissect.Frame) string {
	if name, ok := payloadTypeNames[pt]; ok {
		return name
	}
	if pt < dynamicPayloadTypeMin {
		return "Unknown"
	}
	if conv, ok := d.store.Lookup(frame.Key()); ok {
		if v, ok := conv.Value(ValueCodec); ok {
			if codec, ok := v.(string); ok && codec != "" {
				return shortCodecName(codec)
			}
		}
	}
	return fmt.Sprintf("DynamicRTP-Type-%d", pt)
}

// showSetupInfo annotates how the flow was established, when signalling
// recorded it.
func (d *Dissector) showSetupInfo(frame *dissect.Frame, root *dissect.Node) {
	conv, ok := d.store.Lookup(frame.Key())
	if !ok || conv.SetupMethod == "" {
		return
	}
	setup := root.Branch("rtp.setup", 0, 0, "Stream setup by %s (frame %d)", conv.SetupMethod, conv.SetupFrame)
	setup.Addf("rtp.setup.method", 0, 0, conv.SetupMethod, "Setup method: %s", conv.SetupMethod)
	setup.Addf("rtp.setup.frame", 0, 0, conv.SetupFrame, "Setup frame: %d", conv.SetupFrame)
	if v, ok := conv.Value(ValueCodec); ok {
		if codec, ok := v.(string); ok && codec != "" {
			setup.Addf("rtp.setup.codec", 0, 0, shortCodecName(codec), "Negotiated codec: %s", codec)
		}
	}
}

// shortCodecName trims an rtpmap value "PCMU/8000" to the codec token.
func shortCodecName(codec string) string {
	if i := strings.IndexByte(codec, '/'); i > 0 {
		return codec[:i]
	}
	return codec
}

var (
	_ dissect.Dissector  = (*Dissector)(nil)
	_ dissect.Heuristic  = (*Dissector)(nil)
	_ dissect.Summarizer = (*Dissector)(nil)
)
