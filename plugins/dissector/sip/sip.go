// Package sip dissects SIP signalling and turns SDP negotiations into
// conversation pins for the media dissectors.
//
// Messages are parsed with the gosip packet parser; the interesting
// headers land in the tree together with a summary of any SDP body.
// Offer/answer correlation runs per Call-ID: an INVITE carrying SDP
// opens a pending session, the first 18x or 2xx answer on an INVITE
// CSeq closes it (late-offer exchanges close on the ACK instead), and
// closing registers every negotiated port pair with the conversation
// store. RTP pairs are pinned to the RTP dissector with the negotiated
// codec; dedicated RTCP pairs are pinned straight to the RTCP
// dissector, with SRTCP framing attached when the profile is secure,
// so media on negotiated ports never depends on the heuristics. BYE
// and CANCEL drop only the correlation state; established pins survive
// so re-dissection does not depend on teardown order.
package sip

import (
	"bytes"
	"net/netip"
	"strconv"
	"strings"
	"time"

	gosip "github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/sip/parser"
	"github.com/patrickmn/go-cache"

	"github.com/tytonet/tyto/internal/core"
	"github.com/tytonet/tyto/internal/log"
	"github.com/tytonet/tyto/internal/metrics"
	"github.com/tytonet/tyto/pkg/dissect"
	"github.com/tytonet/tyto/plugins/dissector/rtcp"
	"github.com/tytonet/tyto/plugins/dissector/rtp"
)

// ValueCallID holds the Call-ID whose SDP negotiated a media
// conversation.
const ValueCallID = "sip.call_id"

const (
	defaultSessionTTL = 24 * time.Hour
	defaultCleanup    = 1 * time.Hour

	protoUDP = 17
)

// Dissector decodes SIP signalling and correlates SDP offers with
// answers so negotiated media flows land on the right dissector.
type Dissector struct {
	store    dissect.Store
	parser   *parser.PacketParser
	sessions *cache.Cache // Call-ID -> *session
}

// session is the offer/answer state of one dialog.
type session struct {
	callID    string
	offer     *sessionDescription
	answer    *sessionDescription
	createdAt time.Time
}

// New returns a dissector registering negotiated media flows with the
// given conversation store.
func New(store dissect.Store) *Dissector {
	if store == nil {
		store = dissect.NopStore{}
	}
	return &Dissector{
		store:    store,
		parser:   parser.NewPacketParser(&gosipLogger{delegate: log.GetLogger()}),
		sessions: cache.New(defaultSessionTTL, defaultCleanup),
	}
}

// Name returns the dissector identifier used in registries and output.
func (d *Dissector) Name() string { return "sip" }

// CanHandle looks for a SIP start line. Port-based claims are the port
// table's business; the heuristic only answers payloads that open with
// a known method or the version token.
func (d *Dissector) CanHandle(data []byte, frame *dissect.Frame) bool {
	if len(data) < 8 {
		return false
	}
	prefix := string(data[:8])
	return strings.HasPrefix(prefix, "SIP/2.0 ") ||
		strings.HasPrefix(prefix, "INVITE ") ||
		strings.HasPrefix(prefix, "REGISTER") ||
		strings.HasPrefix(prefix, "BYE ") ||
		strings.HasPrefix(prefix, "CANCEL ") ||
		strings.HasPrefix(prefix, "ACK ") ||
		strings.HasPrefix(prefix, "OPTIONS ") ||
		strings.HasPrefix(prefix, "SUBSCRI") ||
		strings.HasPrefix(prefix, "NOTIFY ")
}

// Dissect parses one SIP message, annotates the tree and, when the
// message closes an SDP offer/answer exchange, registers the
// negotiated media flows. A payload gosip rejects is left for other
// dissectors.
func (d *Dissector) Dissect(data []byte, frame *dissect.Frame, tree *dissect.Node) (int, error) {
	msg, err := d.parser.ParseMessage(data)
	if err != nil {
		if log.GetLogger().IsDebugEnabled() {
			log.GetLogger().WithError(err).Debugf("failed to parse SIP message: %q", data)
		}
		return 0, nil
	}

	info := flatten(msg)
	if info.kind != "" {
		metrics.SIPMessagesTotal.WithLabelValues(info.kind).Inc()
	}

	root := tree.Branch("sip", 0, len(data), "SIP: %s", strings.TrimSpace(msg.StartLine()))
	if info.method != "" {
		root.Addf("sip.method", 0, 0, info.method, "Method: %s", info.method)
	}
	if info.status != 0 {
		root.Addf("sip.status_code", 0, 0, info.status, "Status code: %d", info.status)
	}
	if info.callID != "" {
		root.Addf("sip.call_id", 0, 0, info.callID, "Call-ID: %s", info.callID)
	}
	if info.from != "" {
		root.Addf("sip.from", 0, 0, info.from, "From: %s", info.from)
	}
	if info.to != "" {
		root.Addf("sip.to", 0, 0, info.to, "To: %s", info.to)
	}
	if info.cseq != "" {
		root.Addf("sip.cseq", 0, 0, info.cseq, "CSeq: %s", info.cseq)
	}
	if info.via != "" {
		root.Addf("sip.via", 0, 0, info.via, "Via: %s", info.via)
	}

	var sdp *sessionDescription
	if body := msg.Body(); body != "" && hasSDPContent(msg) {
		if parsed, perr := parseSDP([]byte(body)); perr == nil {
			sdp = parsed
			addSDPTree(root, data, parsed)
		}
	}

	if !frame.Visited {
		d.trackSession(info, sdp, frame)
	}

	return len(data), nil
}

// Summarize distills a parsed message tree into summary labels.
func (d *Dissector) Summarize(tree *dissect.Node) map[string]string {
	labels := map[string]string{}
	if n := tree.Find("sip.method"); n != nil {
		if v, ok := n.Value.(string); ok {
			labels[core.LabelSIPMethod] = v
		}
	}
	if n := tree.Find("sip.status_code"); n != nil {
		if v, ok := n.Value.(int); ok {
			labels[core.LabelSIPStatusCode] = strconv.Itoa(v)
		}
	}
	if n := tree.Find("sip.call_id"); n != nil {
		if v, ok := n.Value.(string); ok {
			labels[core.LabelSIPCallID] = v
		}
	}
	if len(labels) == 0 {
		return nil
	}
	return labels
}

// headerInfo is the flattened view of the headers the tree items and
// the session tracker read.
type headerInfo struct {
	kind   string // request | response
	method string
	status int
	callID string
	from   string
	to     string
	cseq   string
	via    string
}

func flatten(msg gosip.Message) *headerInfo {
	info := &headerInfo{}

	switch m := msg.(type) {
	case gosip.Request:
		info.kind = "request"
		info.method = string(m.Method())
	case gosip.Response:
		info.kind = "response"
		info.status = int(m.StatusCode())
	}

	if id, ok := msg.CallID(); ok && id != nil {
		info.callID = id.Value()
	}
	if cseq, ok := msg.CSeq(); ok && cseq != nil {
		info.cseq = cseq.Value()
	}
	if from, ok := msg.From(); ok && from != nil {
		info.from = extractURI(from.Value())
	}
	if to, ok := msg.To(); ok && to != nil {
		info.to = extractURI(to.Value())
	}
	if via, ok := msg.Via(); ok && via != nil {
		info.via = via.Value()
	}

	return info
}

func hasSDPContent(msg gosip.Message) bool {
	for _, h := range msg.Headers() {
		if strings.EqualFold(h.Name(), "Content-Type") && strings.Contains(h.Value(), "application/sdp") {
			return true
		}
	}
	return false
}

// addSDPTree summarizes a parsed SDP body under the sip branch. The
// branch spans the body bytes; individual values are synthesized from
// the parse and carry no offsets of their own.
func addSDPTree(root *dissect.Node, data []byte, sdp *sessionDescription) {
	off, length := 0, 0
	if i := bytes.Index(data, []byte("\r\n\r\n")); i >= 0 && i+4 < len(data) {
		off, length = i+4, len(data)-(i+4)
	}

	node := root.Branch("sdp", off, length, "Session Description, %d media streams", len(sdp.media))
	if sdp.connection.IsValid() {
		node.Addf("sdp.connection", 0, 0, sdp.connection, "Connection address: %s", sdp.connection)
	}
	for i := range sdp.media {
		m := &sdp.media[i]
		mn := node.Branch("sdp.media", 0, 0, "Media: %s %d %s", m.mediaType, m.rtpPort, m.proto)
		if m.codec != "" {
			mn.Addf("sdp.media.format", 0, 0, m.codec, "Format: %s", m.codec)
		}
		if m.rtcpMux {
			mn.Addf("sdp.media.rtcp_mux", 0, 0, true, "RTCP multiplexed on the RTP port")
		} else {
			mn.Addf("sdp.media.rtcp_port", 0, 0, m.rtcpPort, "RTCP port: %d", m.rtcpPort)
		}
		if m.direction != "" {
			mn.Addf("sdp.media.direction", 0, 0, m.direction, "Direction: %s", m.direction)
		}
		if m.secure {
			mn.Addf("sdp.media.srtp", 0, 0, true, "Secure profile %s", m.proto)
		}
	}
}

// trackSession advances the offer/answer state of the dialog named by
// the Call-ID. Only first visits get here, so retransmitted answers
// are the single repeat case left to guard.
func (d *Dissector) trackSession(info *headerInfo, sdp *sessionDescription, frame *dissect.Frame) {
	if info.callID == "" {
		return
	}

	if info.method == "BYE" || info.method == "CANCEL" {
		// Established pins stay: the capture may hold RTCP behind the
		// teardown, and output must not depend on dissection order.
		d.sessions.Delete(info.callID)
		return
	}

	if sdp == nil {
		return
	}

	isAnswer := info.status >= 180 && info.status < 300 && strings.Contains(info.cseq, "INVITE")

	switch {
	case info.method == "INVITE":
		d.sessions.Set(info.callID, &session{
			callID:    info.callID,
			offer:     sdp,
			createdAt: frame.Timestamp,
		}, cache.DefaultExpiration)

	case info.method == "ACK":
		// Late-offer exchange: the 2xx carried the offer and the ACK
		// closes it.
		cached, found := d.sessions.Get(info.callID)
		if !found {
			return
		}
		sess := cached.(*session)
		if sess.answer != nil {
			return
		}
		sess.answer = sdp
		d.registerMedia(sess, frame)

	case isAnswer:
		cached, found := d.sessions.Get(info.callID)
		if !found {
			// No offer on file, so this SDP is one: the INVITE either
			// carried none (late offer) or predates the capture.
			d.sessions.Set(info.callID, &session{
				callID:    info.callID,
				offer:     sdp,
				createdAt: frame.Timestamp,
			}, cache.DefaultExpiration)
			return
		}
		sess := cached.(*session)
		if sess.answer != nil {
			// Retransmitted or follow-up answer; the first one fixed
			// the setup frame.
			return
		}
		sess.answer = sdp
		d.registerMedia(sess, frame)
	}
}

// registerMedia pairs the offer and answer streams by position and
// records the negotiated port pairs in the conversation store. RTP
// pairs are pinned to the RTP dissector together with the negotiated
// codec; dedicated RTCP pairs are pinned to the RTCP dissector and, on
// secure profiles, carry the SRTCP framing. Muxed streams keep only
// the RTP pin since their RTCP shares the RTP port and falls through
// by packet type.
func (d *Dissector) registerMedia(sess *session, frame *dissect.Frame) {
	offerIP := sess.offer.connection
	answerIP := sess.answer.connection
	if !offerIP.IsValid() || !answerIP.IsValid() {
		return
	}

	n := len(sess.offer.media)
	if len(sess.answer.media) < n {
		n = len(sess.answer.media)
	}

	for i := 0; i < n; i++ {
		offer := &sess.offer.media[i]
		answer := &sess.answer.media[i]
		if offer.rtpPort == 0 || answer.rtpPort == 0 {
			// Rejected stream.
			continue
		}

		codec := answer.codec
		if codec == "" {
			codec = offer.codec
		}
		for _, conv := range d.registerPair(offerIP, offer.rtpPort, answerIP, answer.rtpPort, sess.callID, frame) {
			conv.SetValue(dissect.ValueHandlerKey, "rtp")
			if codec != "" {
				conv.SetValue(rtp.ValueCodec, codec)
			}
		}

		if offer.rtcpMux || answer.rtcpMux {
			continue
		}
		srtcp := srtcpParams(offer, answer)
		for _, conv := range d.registerPair(offerIP, offer.rtcpPort, answerIP, answer.rtcpPort, sess.callID, frame) {
			conv.SetValue(dissect.ValueHandlerKey, "rtcp")
			if srtcp != nil {
				conv.SetValue(rtcp.ValueSRTCP, srtcp)
			}
		}
	}
}

// registerPair ensures both directions of one negotiated port pair and
// stamps the setup metadata on them.
func (d *Dissector) registerPair(a netip.Addr, aPort uint16, b netip.Addr, bPort uint16, callID string, frame *dissect.Frame) [2]*dissect.Conversation {
	keys := [2]dissect.FlowKey{
		{SrcIP: a, DstIP: b, SrcPort: aPort, DstPort: bPort, Proto: protoUDP},
		{SrcIP: b, DstIP: a, SrcPort: bPort, DstPort: aPort, Proto: protoUDP},
	}

	var convs [2]*dissect.Conversation
	for i, key := range keys {
		conv := d.store.Ensure(key)
		conv.SetupMethod = "SDP"
		conv.SetupFrame = frame.Number
		conv.SetValue(ValueCallID, callID)
		convs[i] = conv
	}
	return convs
}

// srtcpParams derives the SRTCP framing of a stream negotiated on a
// secure profile. Crypto attributes from the answer win over the
// offer's; a secure profile with no crypto attribute at all (keys from
// DTLS) keeps the 80-bit auth tag default.
func srtcpParams(offer, answer *mediaStream) *rtcp.SRTCPInfo {
	if !offer.secure && !answer.secure {
		return nil
	}

	info := &rtcp.SRTCPInfo{Encrypted: true, AuthTagLen: 10}
	for _, m := range []*mediaStream{offer, answer} {
		if m.crypto != nil {
			info = &rtcp.SRTCPInfo{
				Encrypted:  m.crypto.encrypted,
				MKILen:     m.crypto.mkiLen,
				AuthTagLen: m.crypto.authTagLen,
			}
		}
	}
	return info
}
