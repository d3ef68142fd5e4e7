package rtcp

import "fmt"

// RTCP packet types sharing the compound header layout.
const (
	typeFIR     = 192 // full intra-frame request (H.261)
	typeNACK    = 193 // negative acknowledgement (H.261)
	typeSMPTETC = 194
	typeIJ      = 195
	typeSR      = 200
	typeRR      = 201
	typeSDES    = 202
	typeBYE     = 203
	typeAPP     = 204
	typeRTPFB   = 205
	typePSFB    = 206
	typeXR      = 207
	typeAVB     = 208
	typeRSI     = 209
	typeTOKEN   = 210

	packetTypeMin = typeFIR
	packetTypeMax = typeTOKEN
)

var packetTypeNames = map[uint8]string{
	typeSR:      "Sender Report",
	typeRR:      "Receiver Report",
	typeSDES:    "Source description",
	typeBYE:     "Goodbye",
	typeAPP:     "Application specific",
	typeRTPFB:   "Generic RTP Feedback",
	typePSFB:    "Payload-specific Feedback",
	typeXR:      "Extended report (RFC 3611)",
	typeAVB:     "AVB RTCP packet (IEEE1733)",
	typeRSI:     "Receiver Summary Information",
	typeTOKEN:   "Port Mapping",
	typeFIR:     "Full Intra-frame Request (H.261)",
	typeNACK:    "Negative Acknowledgement (H.261)",
	typeSMPTETC: "SMPTE time-code mapping",
	typeIJ:      "Extended inter-arrival jitter report",
}

// SDES item types (RFC 3550 section 6.5 plus later assignments).
const (
	sdesEnd       = 0
	sdesCNAME     = 1
	sdesNAME      = 2
	sdesEMAIL     = 3
	sdesPHONE     = 4
	sdesLOC       = 5
	sdesTOOL      = 6
	sdesNOTE      = 7
	sdesPRIV      = 8
	sdesH323CADDR = 9
	sdesAPSI      = 10
)

var sdesTypeNames = map[uint8]string{
	sdesEnd:       "END",
	sdesCNAME:     "CNAME (user and domain)",
	sdesNAME:      "NAME (common name)",
	sdesEMAIL:     "EMAIL (e-mail address)",
	sdesPHONE:     "PHONE (phone number)",
	sdesLOC:       "LOC (geographic location)",
	sdesTOOL:      "TOOL (name/version of source app)",
	sdesNOTE:      "NOTE (note about source)",
	sdesPRIV:      "PRIV (private extensions)",
	sdesH323CADDR: "H323-CADDR (H.323 callable address)",
	sdesAPSI:      "Application Specific Identifier",
	11:            "RGRP (reporting group)",
	12:            "MID (media identification)",
	13:            "RtpStreamId",
	14:            "RepairedRtpStreamId",
}

// RTPFB feedback message formats.
const (
	rtpfbFmtNACK        = 1
	rtpfbFmtTMMBR       = 3
	rtpfbFmtTMMBN       = 4
	rtpfbFmtCCFB        = 11
	rtpfbFmtTransportCC = 15
)

var rtpfbFmtNames = map[uint8]string{
	rtpfbFmtNACK:        "Generic negative acknowledgement (NACK)",
	3:                   "Temporary Maximum Media Stream Bit Rate Request (TMMBR)",
	4:                   "Temporary Maximum Media Stream Bit Rate Notification (TMMBN)",
	5:                   "RTCP Rapid Resynchronisation Request (RTCP-SR-REQ)",
	6:                   "Rapid Acquisition of Multicast Sessions (RAMS)",
	7:                   "Transport-Layer Third-Party Loss Early Indication (TLLEI)",
	8:                   "RTCP ECN Feedback (RTCP-ECN-FB)",
	9:                   "Media Pause/Resume (PAUSE-RESUME)",
	10:                  "Delay Budget Information (DBI)",
	rtpfbFmtCCFB:        "RTP Congestion Control Feedback (CCFB)",
	rtpfbFmtTransportCC: "Transport-wide Congestion Control (Transport-cc)",
	31:                  "Reserved for future extensions",
}

// PSFB feedback message formats.
const (
	psfbFmtPLI  = 1
	psfbFmtSLI  = 2
	psfbFmtRPSI = 3
	psfbFmtFIR  = 4
	psfbFmtALFB = 15
)

var psfbFmtNames = map[uint8]string{
	psfbFmtPLI:  "Picture Loss Indication",
	psfbFmtSLI:  "Slice Loss Indication",
	psfbFmtRPSI: "Reference Picture Selection Indication",
	psfbFmtFIR:  "Full Intra Request (FIR) Command",
	5:           "Temporal-Spatial Trade-off Request (TSTR)",
	6:           "Temporal-Spatial Trade-off Notification (TSTN)",
	7:           "Video Back Channel Message (VBCM)",
	psfbFmtALFB: "Application Layer Feedback",
	31:          "Reserved for future extensions",
}

var psfbFmtSummaryNames = map[uint8]string{
	1:  "PLI",
	2:  "SLI",
	3:  "RPSI",
	4:  "FIR",
	5:  "TSTR",
	6:  "TSTN",
	7:  "VBCM",
	15: "ALFB",
	31: "Reserved",
}

// XR block types (RFC 3611 and IANA assignments).
const (
	xrLossRLE      = 1
	xrDupRLE       = 2
	xrPktRxTimes   = 3
	xrRefTime      = 4
	xrDLRR         = 5
	xrStatsSummary = 6
	xrVoIPMetrics  = 7
	xrBTXNQ        = 8
	xrIDMS         = 12
)

var xrBlockTypeNames = map[uint8]string{
	xrLossRLE:      "Loss Run Length Encoding Report Block",
	xrDupRLE:       "Duplicate Run Length Encoding Report Block",
	xrPktRxTimes:   "Packet Receipt Times Report Block",
	xrRefTime:      "Receiver Reference Time Report Block",
	xrDLRR:         "DLRR Report Block",
	xrStatsSummary: "Statistics Summary Report Block",
	xrVoIPMetrics:  "VoIP Metrics Report Block",
	xrBTXNQ:        "BT XNQ RTCP XR (RFC5093) Report Block",
	9:              "Texas Instruments Extended VoIP Quality Block",
	10:             "Post-repair Loss RLE Report Block",
	11:             "Multicast Acquisition Report Block",
	xrIDMS:         "Inter-destination Media Synchronization Block",
}

// Exact payload word counts enforced for fixed-shape XR blocks. Mismatch
// warns; the declared length still drives the cursor.
var xrFixedBlockWords = map[uint8]uint16{
	xrRefTime:      2,
	xrStatsSummary: 9,
	xrVoIPMetrics:  8,
	xrBTXNQ:        8,
	xrIDMS:         7,
}

var xrPLCAlgoNames = map[uint8]string{
	0: "Unspecified",
	1: "Disabled",
	2: "Enhanced",
	3: "Standard",
}

var xrJBAdaptiveNames = map[uint8]string{
	0: "Unknown",
	1: "Reserved",
	2: "Non-Adaptive",
	3: "Adaptive",
}

var xrIPTTLNames = map[uint8]string{
	0: "No TTL Values",
	1: "IPv4",
	2: "IPv6",
	3: "Undefined",
}

var xrIDMSSPSTNames = map[uint8]string{
	1: "SC",
	2: "MSAS",
	3: "SC' INPUT",
	4: "SC' OUTPUT",
}

// PoC1 talk burst control (TBCP) subtypes,
// OMA-TS-PoC-UserPlane-V1_0-20060609-A.
const (
	tbcpBurstRequest          = 0
	tbcpBurstGranted          = 1
	tbcpBurstTakenNoReply     = 2
	tbcpBurstDeny             = 3
	tbcpBurstRelease          = 4
	tbcpBurstIdle             = 5
	tbcpBurstRevoke           = 6
	tbcpBurstAcknowledgment   = 7
	tbcpQueueStatusRequest    = 8
	tbcpQueueStatusResponse   = 9
	tbcpDisconnect            = 11
	tbcpConnect               = 15
	tbcpBurstTakenExpectReply = 18
)

var pocSubtypeNames = map[uint8]string{
	tbcpBurstRequest:          "TBCP Talk Burst Request",
	tbcpBurstGranted:          "TBCP Talk Burst Granted",
	tbcpBurstTakenNoReply:     "TBCP Talk Burst Taken (no ack expected)",
	tbcpBurstDeny:             "TBCP Talk Burst Deny",
	tbcpBurstRelease:          "TBCP Talk Burst Release",
	tbcpBurstIdle:             "TBCP Talk Burst Idle",
	tbcpBurstRevoke:           "TBCP Talk Burst Revoke",
	tbcpBurstAcknowledgment:   "TBCP Talk Burst Acknowledgement",
	tbcpQueueStatusRequest:    "TBCP Queue Status Request",
	tbcpQueueStatusResponse:   "TBCP Queue Status Response",
	tbcpDisconnect:            "TBCP Disconnect",
	tbcpConnect:               "TBCP Connect",
	tbcpBurstTakenExpectReply: "TBCP Talk Burst Taken (ack expected)",
}

var pocDenyReasonNames = map[uint8]string{
	1: "Another PoC User has permission",
	2: "Internal PoC server error",
	3: "Only one participant in the group",
	4: "Retry-after timer has not expired",
	5: "Listen only",
}

var pocRevokeReasonNames = map[uint16]string{
	1: "Only one user",
	2: "Talk burst too long",
	3: "No permission to send a Talk Burst",
	4: "Talk burst pre-empted",
}

var pocAckReasonNames = map[uint16]string{
	0: "Accepted",
	1: "Busy",
	2: "Not accepted",
}

var pocPriorityNames = map[uint16]string{
	0: "No priority (un-queued)",
	1: "Normal priority",
	2: "High priority",
	3: "Pre-emptive priority",
}

var pocConnSessionTypeNames = map[uint8]string{
	0: "None",
	1: "1-to-1",
	2: "Ad-hoc",
	3: "Pre-arranged",
	4: "Chat",
}

// Connect SDES item content flags, highest bit first.
var pocConnContentNames = [5]string{
	"Identity of inviting client",
	"Nick name of inviting client",
	"Session identity",
	"Group name",
	"Group identity",
}

// MCPT floor control subtypes and field ids, TS 24.380.
var mcptSubtypeNames = map[uint8]string{
	0x00: "Floor Request",
	0x01: "Floor Granted",
	0x02: "Floor Taken",
	0x03: "Floor Deny",
	0x04: "Floor Release",
	0x05: "Floor Idle",
	0x06: "Floor Revoke",
	0x08: "Floor Queue Position Request",
	0x09: "Floor Queue Position Info",
	0x0a: "Floor Ack",
	0x0b: "Unicast Media Flow Control",
	0x0e: "Floor Queued Cancel",
	0x0f: "Floor Release Multi Talker",
	0x11: "Floor Granted(ack req)",
	0x12: "Floor Taken(ack req)",
	0x13: "Floor Deny(ack req)",
	0x14: "Floor Release(ack req)",
	0x15: "Floor Idle(ack req)",
	0x19: "Floor Queue Position Info(ack req)",
	0x1b: "Unicast Media Flow Control(ack req)",
	0x1e: "Floor Queued Cancel(ack req)",
}

const (
	mcptFieldDuration = 1
	mcptFieldMsgSeq   = 8
)

var mcptFieldNames = map[uint8]string{
	0:  "Floor Priority",
	1:  "Duration",
	2:  "Reject Cause",
	3:  "Queue Info",
	4:  "Granted Party's Identity",
	5:  "Permission to Request the Floor",
	6:  "User ID",
	7:  "Queue Size",
	8:  "Message Sequence-Number",
	9:  "Queued User ID",
	10: "Source",
	11: "Track Info",
	12: "Message Type",
	13: "Floor Indicator",
	14: "SSRC",
	15: "List of Granted Users",
	16: "List of SSRCs",
	17: "Functional Alias",
	18: "List of Functional Aliases",
	19: "Location",
	20: "List of Locations",
	21: "Queued Floor Requests Purpose",
	22: "List of Queued Users",
	23: "Response State",
	24: "Media Flow Control Indicator",

	102: "Floor Priority",
	103: "Duration",
	104: "Reject Cause",
	105: "Queue Info",
	106: "Granted Party's Identity",
	108: "Permission to Request the Floor",
	109: "User ID",
	110: "Queue Size",
	111: "Message SequenceNumber",
	112: "Queued User ID",
	113: "Source",
	114: "Track Info",
	115: "Message Type",
	116: "Floor Indicator",
}

var mcptDenyReasonNames = map[uint16]string{
	1:    "Another MCPTT client has permission",
	2:    "Internal floor control server error",
	3:    "Only one participant",
	4:    "Retry-after timer has not expired",
	5:    "Receive only",
	6:    "No resources available",
	7:    "Queue full",
	0xff: "Other reason",
}

var mcptRevokeReasonNames = map[uint16]string{
	1:    "Only one MCPTT client",
	2:    "Media burst too long",
	3:    "No permission to send a Media Burst",
	4:    "Media Burst pre-empted",
	6:    "No resources available",
	0xff: "Other reason",
}

var mcptPermissionNames = map[uint16]string{
	0: "The receiver is not permitted to request floor",
	1: "The receiver is permitted to request floor",
}

var mcptSourceNames = map[uint16]string{
	0: "The floor participant is the source",
	1: "The participating MCPTT function is the source",
	2: "The controlling MCPTT function is the source",
	3: "The non-controlling MCPTT function is the source",
}

// Floor indicator bits, rendered when exactly one is set.
var mcptFloorIndNames = map[uint16]string{
	0x0080: "Multi-talker",
	0x0100: "Temporary group call",
	0x0200: "Dual floor",
	0x0400: "Queueing supported",
	0x0800: "Imminent peril call",
	0x1000: "Emergency call",
	0x2000: "System call",
	0x4000: "Broadcast group call",
	0x8000: "Normal call",
}

// MCCP subtypes and field ids, TS 24.380.
var mccpSubtypeNames = map[uint8]string{
	0x00: "Map Group To Bearer",
	0x01: "Unmap Group To Bearer",
	0x02: "Application Paging",
	0x03: "Bearer Announcement",
}

const mccpFieldSubchannel = 0

var mccpFieldNames = map[uint8]string{
	mccpFieldSubchannel: "Subchannel",
	1:                   "TMGI",
	2:                   "MCPTT Group ID",
	3:                   "Monitoring State",
}

// RTP multiplexing selection, 3GPP TS 29.414.
var muxSelectionNames = map[uint8]string{
	0: "No multiplexing applied",
	1: "Multiplexing without RTP header compression applied",
	2: "Multiplexing with RTP header compression applied",
	3: "Reserved",
}

// Microsoft profile-specific extension types. Wire type codes follow the
// MS-RTP numbering for the extension family.
const msPSEEstimatedBandwidth = 1

var msPSETypeNames = map[uint16]string{
	msPSEEstimatedBandwidth: "MS - Estimated Bandwidth",
	4:                       "MS - Packet Loss Notification",
	5:                       "MS - Video Preference",
	6:                       "MS - Padding",
	7:                       "MS - Policy Server Bandwidth",
	8:                       "MS - TURN Server Bandwidth",
	9:                       "MS - Audio Healer Metrics",
	10:                      "MS - Receiver-side Bandwidth Limit",
	11:                      "MS - Packet Train Packet",
	12:                      "MS - Peer Info Exchange",
	13:                      "MS - Network Congestion Notification",
	14:                      "MS - Modality Send Bandwidth Limit",
}

var tokenSubtypeNames = map[uint8]string{
	0: "Port Mapping Request",
	1: "Port Mapping Response",
	2: "Token Verification Request",
	3: "Token Verification Failure",
}

// Distinguished SSRC wildcard values used by feedback and the Microsoft
// extension family.
var ssrcSpecialNames = map[uint32]string{
	0xffffffff: "SOURCE_NONE",
	0xfffffffe: "SOURCE_ANY",
}

// nameOrUnknown renders a table hit or "Unknown (n)".
func nameOrUnknown[K uint8 | uint16](table map[K]string, key K) string {
	if name, ok := table[key]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", key)
}

// Registry table namespaces this dissector consults for keys its built-in
// grammars do not claim.
const (
	// TableRTPFBFormat maps RTPFB format numbers to FCI sub-dissectors.
	TableRTPFBFormat = "rtcp.rtpfb.fmt"
	// TablePSFBFormat maps PSFB format numbers to FCI sub-dissectors.
	TablePSFBFormat = "rtcp.psfb.fmt"
	// TablePSExt maps 16-bit profile-specific extension types.
	TablePSExt = "rtcp.pse"
	// TableAppName maps 4-character APP names to vendor grammars.
	TableAppName = "rtcp.app.name"
)
