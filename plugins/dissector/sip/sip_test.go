package sip

import (
	"bytes"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/tytonet/tyto/pkg/dissect"
	"github.com/tytonet/tyto/plugins/dissector/rtcp"
	"github.com/tytonet/tyto/plugins/dissector/rtp"
)

const offerSDP = "v=0\r\n" +
	"o=alice 2890844526 2890844526 IN IP4 10.0.1.1\r\n" +
	"s=-\r\n" +
	"c=IN IP4 10.0.1.1\r\n" +
	"t=0 0\r\n" +
	"m=audio 49170 RTP/AVP 0\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n"

const answerSDP = "v=0\r\n" +
	"o=bob 2890844527 2890844527 IN IP4 10.0.2.1\r\n" +
	"s=-\r\n" +
	"c=IN IP4 10.0.2.1\r\n" +
	"t=0 0\r\n" +
	"m=audio 62000 RTP/AVP 0\r\n" +
	"a=rtcp:63000\r\n" +
	"a=rtpmap:0 PCMU/8000\r\n"

func buildMessage(start string, headers []string, body string) []byte {
	var b strings.Builder
	b.WriteString(start)
	b.WriteString("\r\n")
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	if body != "" {
		b.WriteString("Content-Type: application/sdp\r\n")
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func request(method, callID, cseq, body string) []byte {
	return buildMessage(method+" sip:bob@10.0.0.2 SIP/2.0", []string{
		"Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK776asdhds",
		"Max-Forwards: 70",
		"From: Alice <sip:alice@10.0.0.1>;tag=1928301774",
		"To: Bob <sip:bob@10.0.0.2>",
		"Call-ID: " + callID,
		"CSeq: " + cseq,
		"Contact: <sip:alice@10.0.0.1:5060>",
	}, body)
}

func response(status int, reason, callID, cseq, body string) []byte {
	return buildMessage(fmt.Sprintf("SIP/2.0 %d %s", status, reason), []string{
		"Via: SIP/2.0/UDP 10.0.0.1:5060;branch=z9hG4bK776asdhds",
		"From: Alice <sip:alice@10.0.0.1>;tag=1928301774",
		"To: Bob <sip:bob@10.0.0.2>;tag=a6c85cf",
		"Call-ID: " + callID,
		"CSeq: " + cseq,
		"Contact: <sip:bob@10.0.0.2:5060>",
	}, body)
}

func udpFrame(num uint32, srcIP string, srcPort uint16, dstIP string, dstPort uint16) *dissect.Frame {
	return &dissect.Frame{
		Number:    num,
		Timestamp: time.Unix(1700000000, 0).Add(time.Duration(num) * time.Second),
		SrcIP:     netip.MustParseAddr(srcIP),
		DstIP:     netip.MustParseAddr(dstIP),
		SrcPort:   srcPort,
		DstPort:   dstPort,
		Proto:     17,
	}
}

func callerFrame(num uint32) *dissect.Frame {
	return udpFrame(num, "10.0.0.1", 5060, "10.0.0.2", 5060)
}

func calleeFrame(num uint32) *dissect.Frame {
	return udpFrame(num, "10.0.0.2", 5060, "10.0.0.1", 5060)
}

func dissectMessage(t *testing.T, d *Dissector, data []byte, frame *dissect.Frame) *dissect.Node {
	t.Helper()
	tree := dissect.NewTree()
	n, err := d.Dissect(data, frame, tree)
	if err != nil {
		t.Fatalf("Dissect: %v", err)
	}
	if n != len(data) {
		t.Fatalf("Dissect consumed %d of %d bytes", n, len(data))
	}
	return tree
}

func TestDissectRequestTree(t *testing.T) {
	d := New(nil)
	data := request("INVITE", "tree-req@test", "1 INVITE", offerSDP)
	tree := dissectMessage(t, d, data, callerFrame(1))

	root := tree.Find("sip")
	if root == nil {
		t.Fatal("no sip node")
	}
	if !strings.HasPrefix(root.Text, "SIP: INVITE sip:bob@10.0.0.2") {
		t.Errorf("sip text = %q", root.Text)
	}
	if root.Offset != 0 || root.Length != len(data) {
		t.Errorf("sip span = %d+%d, want the whole payload", root.Offset, root.Length)
	}

	if n := tree.Find("sip.method"); n == nil || n.Value != "INVITE" {
		t.Errorf("sip.method = %+v", n)
	}
	if n := tree.Find("sip.call_id"); n == nil || n.Value != "tree-req@test" {
		t.Errorf("sip.call_id = %+v", n)
	}
	if n := tree.Find("sip.from"); n == nil || n.Value != "sip:alice@10.0.0.1" {
		t.Errorf("sip.from = %+v", n)
	}
	if n := tree.Find("sip.to"); n == nil || n.Value != "sip:bob@10.0.0.2" {
		t.Errorf("sip.to = %+v", n)
	}
	if n := tree.Find("sip.cseq"); n == nil || n.Value != "1 INVITE" {
		t.Errorf("sip.cseq = %+v", n)
	}
	if tree.Find("sip.status_code") != nil {
		t.Error("request grew a status code item")
	}

	sdpNode := tree.Find("sdp")
	if sdpNode == nil {
		t.Fatal("no sdp node")
	}
	bodyOff := bytes.Index(data, []byte("\r\n\r\n")) + 4
	if sdpNode.Offset != bodyOff || sdpNode.Length != len(data)-bodyOff {
		t.Errorf("sdp span = %d+%d, want %d+%d", sdpNode.Offset, sdpNode.Length, bodyOff, len(data)-bodyOff)
	}
	if n := tree.Find("sdp.connection"); n == nil || n.Value != netip.MustParseAddr("10.0.1.1") {
		t.Errorf("sdp.connection = %+v", n)
	}
	media := tree.Find("sdp.media")
	if media == nil || media.Text != "Media: audio 49170 RTP/AVP" {
		t.Errorf("sdp.media = %+v", media)
	}
	if n := tree.Find("sdp.media.rtcp_port"); n == nil || n.Value != uint16(49171) {
		t.Errorf("sdp.media.rtcp_port = %+v", n)
	}
}

func TestDissectResponseTree(t *testing.T) {
	d := New(nil)
	data := response(200, "OK", "tree-res@test", "1 INVITE", "")
	tree := dissectMessage(t, d, data, calleeFrame(1))

	if n := tree.Find("sip.status_code"); n == nil || n.Value != 200 {
		t.Errorf("sip.status_code = %+v", n)
	}
	if n := tree.Find("sip.cseq"); n == nil || n.Value != "1 INVITE" {
		t.Errorf("sip.cseq = %+v", n)
	}
	if tree.Find("sip.method") != nil {
		t.Error("response grew a method item")
	}
	if tree.Find("sdp") != nil {
		t.Error("bodyless response grew an sdp node")
	}
}

func TestDissectRejectsGarbage(t *testing.T) {
	d := New(nil)
	tree := dissect.NewTree()
	data := []byte{0x80, 0xc8, 0x00, 0x06, 0xde, 0xad, 0xbe, 0xef, 0x01, 0x02}

	n, err := d.Dissect(data, callerFrame(1), tree)
	if err != nil {
		t.Fatalf("Dissect: %v", err)
	}
	if n != 0 {
		t.Errorf("consumed %d bytes of non-SIP payload", n)
	}
	if tree.Find("sip") != nil {
		t.Error("non-SIP payload grew a sip node")
	}
}

func TestCanHandle(t *testing.T) {
	d := New(nil)
	frame := callerFrame(1)

	yes := [][]byte{
		[]byte("INVITE sip:bob@example.com SIP/2.0\r\n"),
		[]byte("SIP/2.0 200 OK\r\n"),
		[]byte("REGISTER sip:example.com SIP/2.0\r\n"),
		[]byte("BYE sip:bob@example.com SIP/2.0\r\n"),
		[]byte("NOTIFY sip:bob@example.com SIP/2.0\r\n"),
		[]byte("SUBSCRIBE sip:bob@example.com SIP/2.0\r\n"),
	}
	for _, data := range yes {
		if !d.CanHandle(data, frame) {
			t.Errorf("CanHandle(%q) = false", data[:8])
		}
	}

	no := [][]byte{
		[]byte("BYE"),
		[]byte{0x80, 0xc8, 0x00, 0x06, 0x01, 0x02, 0x03, 0x04},
		[]byte("GET / HTTP/1.1\r\n"),
	}
	for _, data := range no {
		if d.CanHandle(data, frame) {
			t.Errorf("CanHandle(%q) = true", data)
		}
	}
}

func TestOfferAnswerRegistersRTCP(t *testing.T) {
	store := dissect.NewMemoryStore()
	d := New(store)
	callID := "reg@test"

	dissectMessage(t, d, request("INVITE", callID, "1 INVITE", offerSDP), callerFrame(1))
	dissectMessage(t, d, response(200, "OK", callID, "1 INVITE", answerSDP), calleeFrame(2))

	rtcpKey := dissect.FlowKey{
		SrcIP:   netip.MustParseAddr("10.0.1.1"),
		DstIP:   netip.MustParseAddr("10.0.2.1"),
		SrcPort: 49171,
		DstPort: 63000,
		Proto:   17,
	}
	conv, ok := store.Lookup(rtcpKey)
	if !ok {
		t.Fatal("RTCP pair not registered")
	}
	if conv.SetupMethod != "SDP" || conv.SetupFrame != 2 {
		t.Errorf("setup = %s frame %d, want SDP frame 2", conv.SetupMethod, conv.SetupFrame)
	}
	if handler, ok := conv.Value(dissect.ValueHandlerKey); !ok || handler != "rtcp" {
		t.Errorf("handler pin = %v, %v", handler, ok)
	}
	if id, ok := conv.Value(ValueCallID); !ok || id != callID {
		t.Errorf("call id value = %v, %v", id, ok)
	}
	if _, ok := conv.Value(rtcp.ValueSRTCP); ok {
		t.Error("plain AVP stream got SRTCP framing")
	}

	rev, ok := store.Lookup(rtcpKey.Reverse())
	if !ok {
		t.Fatal("reverse RTCP direction not registered")
	}
	if handler, ok := rev.Value(dissect.ValueHandlerKey); !ok || handler != "rtcp" {
		t.Errorf("reverse handler pin = %v, %v", handler, ok)
	}

	rtpKey := dissect.FlowKey{
		SrcIP:   netip.MustParseAddr("10.0.1.1"),
		DstIP:   netip.MustParseAddr("10.0.2.1"),
		SrcPort: 49170,
		DstPort: 62000,
		Proto:   17,
	}
	rtpConv, ok := store.Lookup(rtpKey)
	if !ok {
		t.Fatal("RTP pair not recorded")
	}
	if rtpConv.SetupMethod != "SDP" {
		t.Errorf("RTP setup method = %q", rtpConv.SetupMethod)
	}
	if handler, ok := rtpConv.Value(dissect.ValueHandlerKey); !ok || handler != "rtp" {
		t.Errorf("RTP handler pin = %v, %v", handler, ok)
	}
	if codec, ok := rtpConv.Value(rtp.ValueCodec); !ok || codec != "PCMU/8000" {
		t.Errorf("RTP codec value = %v, %v", codec, ok)
	}

	if store.Len() != 4 {
		t.Errorf("store holds %d conversations, want 4", store.Len())
	}
}

func TestMuxedAnswerSkipsRTCPPin(t *testing.T) {
	store := dissect.NewMemoryStore()
	d := New(store)
	callID := "mux@test"

	muxAnswer := strings.Replace(answerSDP, "a=rtcp:63000\r\n", "a=rtcp-mux\r\n", 1)
	dissectMessage(t, d, request("INVITE", callID, "1 INVITE", offerSDP), callerFrame(1))
	dissectMessage(t, d, response(200, "OK", callID, "1 INVITE", muxAnswer), calleeFrame(2))

	if store.Len() != 2 {
		t.Fatalf("store holds %d conversations, want only the RTP pair", store.Len())
	}
	store.Range(func(conv *dissect.Conversation) bool {
		if handler, ok := conv.Value(dissect.ValueHandlerKey); !ok || handler != "rtp" {
			t.Errorf("muxed pair pin = %v, %v, want rtp on the shared port", handler, ok)
		}
		return true
	})
}

func TestSecureProfileAttachesSRTCP(t *testing.T) {
	store := dissect.NewMemoryStore()
	d := New(store)
	callID := "srtp@test"

	secureOffer := "v=0\r\n" +
		"c=IN IP4 10.0.1.1\r\n" +
		"m=audio 49170 RTP/SAVP 0\r\n" +
		"a=crypto:1 AES_CM_128_HMAC_SHA1_80 inline:WVNfX19zZW1jdGwgKCkgewkyMjA7fQp9CnVubGVz|2^20|1:4\r\n"
	secureAnswer := "v=0\r\n" +
		"c=IN IP4 10.0.2.1\r\n" +
		"m=audio 62000 RTP/SAVP 0\r\n" +
		"a=crypto:1 AES_CM_128_HMAC_SHA1_32 inline:PS1uQCVeeCFCanVmcjkpPywjNWhcYD0mXXtxaVBR\r\n"

	dissectMessage(t, d, request("INVITE", callID, "1 INVITE", secureOffer), callerFrame(1))
	dissectMessage(t, d, response(200, "OK", callID, "1 INVITE", secureAnswer), calleeFrame(2))

	conv, ok := store.Lookup(dissect.FlowKey{
		SrcIP:   netip.MustParseAddr("10.0.1.1"),
		DstIP:   netip.MustParseAddr("10.0.2.1"),
		SrcPort: 49171,
		DstPort: 62001,
		Proto:   17,
	})
	if !ok {
		t.Fatal("secure RTCP pair not registered")
	}

	val, ok := conv.Value(rtcp.ValueSRTCP)
	if !ok {
		t.Fatal("no SRTCP framing on SAVP stream")
	}
	info := val.(*rtcp.SRTCPInfo)
	if !info.Encrypted || info.AuthTagLen != 4 || info.MKILen != 0 {
		t.Errorf("SRTCP framing = %+v, want the answer's 32-bit tag to win", *info)
	}
}

func TestLateOfferClosesOnACK(t *testing.T) {
	store := dissect.NewMemoryStore()
	d := New(store)
	callID := "late@test"

	dissectMessage(t, d, request("INVITE", callID, "1 INVITE", ""), callerFrame(1))
	dissectMessage(t, d, response(200, "OK", callID, "1 INVITE", answerSDP), calleeFrame(2))
	if store.Len() != 0 {
		t.Fatalf("registered %d conversations before the ACK", store.Len())
	}
	dissectMessage(t, d, request("ACK", callID, "1 ACK", offerSDP), callerFrame(3))

	conv, ok := store.Lookup(dissect.FlowKey{
		SrcIP:   netip.MustParseAddr("10.0.2.1"),
		DstIP:   netip.MustParseAddr("10.0.1.1"),
		SrcPort: 63000,
		DstPort: 49171,
		Proto:   17,
	})
	if !ok {
		t.Fatal("late-offer RTCP pair not registered")
	}
	if conv.SetupFrame != 3 {
		t.Errorf("setup frame = %d, want the ACK frame", conv.SetupFrame)
	}
}

func TestByeDropsSession(t *testing.T) {
	store := dissect.NewMemoryStore()
	d := New(store)
	callID := "bye@test"

	dissectMessage(t, d, request("INVITE", callID, "1 INVITE", offerSDP), callerFrame(1))
	dissectMessage(t, d, request("BYE", callID, "2 BYE", ""), callerFrame(2))
	dissectMessage(t, d, response(200, "OK", callID, "1 INVITE", answerSDP), calleeFrame(3))

	if store.Len() != 0 {
		t.Errorf("store holds %d conversations, want none after the session dropped", store.Len())
	}
}

func TestFirstAnswerFixesSetupFrame(t *testing.T) {
	store := dissect.NewMemoryStore()
	d := New(store)
	callID := "early@test"

	dissectMessage(t, d, request("INVITE", callID, "1 INVITE", offerSDP), callerFrame(1))
	dissectMessage(t, d, response(183, "Session Progress", callID, "1 INVITE", answerSDP), calleeFrame(2))
	dissectMessage(t, d, response(200, "OK", callID, "1 INVITE", answerSDP), calleeFrame(5))

	conv, ok := store.Lookup(dissect.FlowKey{
		SrcIP:   netip.MustParseAddr("10.0.1.1"),
		DstIP:   netip.MustParseAddr("10.0.2.1"),
		SrcPort: 49171,
		DstPort: 63000,
		Proto:   17,
	})
	if !ok {
		t.Fatal("RTCP pair not registered from the provisional answer")
	}
	if conv.SetupFrame != 2 {
		t.Errorf("setup frame = %d, want the 183 to fix it", conv.SetupFrame)
	}
}

func TestVisitedFrameDoesNotTrack(t *testing.T) {
	store := dissect.NewMemoryStore()
	d := New(store)
	callID := "visited@test"

	frame := callerFrame(1)
	frame.Visited = true
	dissectMessage(t, d, request("INVITE", callID, "1 INVITE", offerSDP), frame)
	dissectMessage(t, d, response(200, "OK", callID, "1 INVITE", answerSDP), calleeFrame(2))

	if store.Len() != 0 {
		t.Errorf("store holds %d conversations, want none when the offer frame was already visited", store.Len())
	}
}
