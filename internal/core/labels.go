// Package core defines core types.
package core

// Labels represents key-value summary metadata attached per frame by
// dissectors. The full decoded field tree lives in the engine result; labels
// carry the one-line-summary subset used for the info column and filtering.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelSIPMethod     = "sip.method"
	LabelSIPCallID     = "sip.call_id"
	LabelSIPStatusCode = "sip.status_code"

	// RTP summary labels
	LabelRTPPayloadType = "rtp.pt"          // payload type name
	LabelRTPSSRC        = "rtp.ssrc"        // stream SSRC (hex, 0xXXXXXXXX)
	LabelRTPSeq         = "rtp.seq"         // sequence number (decimal)
	LabelRTPTimestamp   = "rtp.timestamp"   // media timestamp (decimal)
	LabelRTPMarker      = "rtp.marker"      // "1" on marker packets, absent otherwise
	LabelRTPSetup       = "rtp.setup_frame" // frame that announced the flow (decimal)

	// RTCP summary labels
	LabelRTCPTypes     = "rtcp.types"        // comma-joined packet type names of the compound
	LabelRTCPSSRC      = "rtcp.ssrc"         // first sender/source SSRC (hex, 0xXXXXXXXX)
	LabelRTCPRoundtrip = "rtcp.roundtrip_ms" // estimated roundtrip in ms (decimal)
	LabelRTCPSetup     = "rtcp.setup_frame"  // frame that announced the flow (decimal)

	// TPNCP summary labels
	LabelTPNCPKind = "tpncp.kind" // "event" or "command"
	LabelTPNCPID   = "tpncp.id"   // record id (decimal)
	LabelTPNCPName = "tpncp.name" // record name from the schema
	LabelTPNCPSeq  = "tpncp.seq"  // header sequence number (decimal)
)
