package engine

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/tytonet/tyto/internal/core"
	"github.com/tytonet/tyto/pkg/dissect"
)

// stub is a configurable dissector: it claims whatever claim returns
// and records how it was driven.
type stub struct {
	name      string
	claim     bool
	err       error
	calls     int
	visited   []bool
	streamed  int
	heuristic bool
}

func (s *stub) Name() string { return s.name }

func (s *stub) Dissect(data []byte, frame *dissect.Frame, tree *dissect.Node) (int, error) {
	s.calls++
	s.visited = append(s.visited, frame.Visited)
	if !s.claim {
		return 0, nil
	}
	tree.Branch(s.name, 0, len(data), "%s payload", s.name)
	return len(data), s.err
}

func (s *stub) CanHandle(data []byte, frame *dissect.Frame) bool { return s.heuristic }

// streamStub claims via the stream entry point on top of stub.
type streamStub struct{ stub }

func (s *streamStub) DissectStream(data []byte, frame *dissect.Frame, tree *dissect.Node) (int, error) {
	s.streamed++
	return s.Dissect(data, frame, tree)
}

// labeledStub adds fixed summary labels.
type labeledStub struct {
	stub
	labels map[string]string
}

func (s *labeledStub) Summarize(tree *dissect.Node) map[string]string { return s.labels }

func mkPacket(num uint32, proto uint8, srcPort, dstPort uint16, payload []byte) core.DecodedPacket {
	return core.DecodedPacket{
		Number:    num,
		Timestamp: time.Unix(1700000000, 0).Add(time.Duration(num) * time.Second),
		IP: core.IPHeader{
			Version:  4,
			SrcIP:    netip.MustParseAddr("10.0.0.1"),
			DstIP:    netip.MustParseAddr("10.0.0.2"),
			Protocol: proto,
		},
		Transport: core.TransportHeader{
			SrcPort:  srcPort,
			DstPort:  dstPort,
			Protocol: proto,
		},
		Payload: payload,
	}
}

func TestDissectDstPortSelection(t *testing.T) {
	reg := dissect.NewRegistry()
	d := &stub{name: "rtcp", claim: true}
	reg.AddUint(dissect.TableUDPPort, 5005, d)

	e := New(reg, dissect.NewMemoryStore())
	e.Register(d)

	r := e.Dissect(mkPacket(1, 17, 40000, 5005, []byte{1, 2, 3, 4}))
	if r.Dissector != "rtcp" || r.Consumed != 4 || r.Err != nil {
		t.Fatalf("result = %s/%d/%v", r.Dissector, r.Consumed, r.Err)
	}
	if r.Tree.Find("rtcp") == nil {
		t.Fatal("expected the stub branch in the tree")
	}
	if len(d.visited) != 1 || d.visited[0] {
		t.Fatalf("first pass should run unvisited, got %v", d.visited)
	}
}

func TestDissectSrcPortFallback(t *testing.T) {
	reg := dissect.NewRegistry()
	d := &stub{name: "tpncp", claim: true}
	reg.AddUint(dissect.TableUDPPort, 2424, d)

	e := New(reg, dissect.NewMemoryStore())
	r := e.Dissect(mkPacket(1, 17, 2424, 40000, []byte{1, 2}))
	if r.Dissector != "tpncp" {
		t.Fatalf("dissector = %q, want tpncp", r.Dissector)
	}
}

func TestDissectConversationPinWins(t *testing.T) {
	reg := dissect.NewRegistry()
	ported := &stub{name: "ported", claim: true}
	pinned := &stub{name: "pinned", claim: true}
	reg.AddUint(dissect.TableUDPPort, 5005, ported)

	store := dissect.NewMemoryStore()
	e := New(reg, store)
	e.Register(pinned)

	conv := store.Ensure(dissect.FlowKey{
		SrcIP:   netip.MustParseAddr("10.0.0.1"),
		DstIP:   netip.MustParseAddr("10.0.0.2"),
		SrcPort: 40000,
		DstPort: 5005,
		Proto:   17,
	})
	conv.SetValue(dissect.ValueHandlerKey, "pinned")

	r := e.Dissect(mkPacket(1, 17, 40000, 5005, []byte{9}))
	if r.Dissector != "pinned" {
		t.Fatalf("dissector = %q, want pinned", r.Dissector)
	}
	if ported.calls != 0 {
		t.Fatalf("port binding ran %d times behind a pin", ported.calls)
	}
}

func TestDissectPinForUnknownNameFallsBack(t *testing.T) {
	reg := dissect.NewRegistry()
	ported := &stub{name: "ported", claim: true}
	reg.AddUint(dissect.TableUDPPort, 5005, ported)

	store := dissect.NewMemoryStore()
	e := New(reg, store)

	conv := store.Ensure(dissect.FlowKey{
		SrcIP:   netip.MustParseAddr("10.0.0.1"),
		DstIP:   netip.MustParseAddr("10.0.0.2"),
		SrcPort: 40000,
		DstPort: 5005,
		Proto:   17,
	})
	conv.SetValue(dissect.ValueHandlerKey, "gone")

	if r := e.Dissect(mkPacket(1, 17, 40000, 5005, []byte{9})); r.Dissector != "ported" {
		t.Fatalf("dissector = %q, want ported", r.Dissector)
	}
}

func TestDeclinedPayloadFallsThrough(t *testing.T) {
	reg := dissect.NewRegistry()
	passive := &stub{name: "passive"} // consumes nothing, adds nothing
	claimer := &stub{name: "claimer", claim: true, heuristic: true}
	reg.AddUint(dissect.TableUDPPort, 2424, passive)
	reg.AddHeuristic("udp", claimer)

	e := New(reg, dissect.NewMemoryStore())
	r := e.Dissect(mkPacket(1, 17, 40000, 2424, []byte{1, 2, 3}))
	if r.Dissector != "claimer" {
		t.Fatalf("dissector = %q, want claimer", r.Dissector)
	}
	if passive.calls != 1 {
		t.Fatalf("passive binding should have been offered first, calls = %d", passive.calls)
	}
}

func TestHeuristicOrder(t *testing.T) {
	reg := dissect.NewRegistry()
	first := &stub{name: "first", claim: true, heuristic: true}
	second := &stub{name: "second", claim: true, heuristic: true}
	reg.AddHeuristic("udp", first)
	reg.AddHeuristic("udp", second)

	e := New(reg, dissect.NewMemoryStore())
	r := e.Dissect(mkPacket(1, 17, 1, 2, []byte{1}))
	if r.Dissector != "first" || second.calls != 0 {
		t.Fatalf("dissector = %q, second.calls = %d", r.Dissector, second.calls)
	}
}

func TestHeuristicRefusalSkips(t *testing.T) {
	reg := dissect.NewRegistry()
	refusing := &stub{name: "refusing", claim: true, heuristic: false}
	reg.AddHeuristic("udp", refusing)

	e := New(reg, dissect.NewMemoryStore())
	r := e.Dissect(mkPacket(1, 17, 1, 2, []byte{1}))
	if r.Dissector != "" || refusing.calls != 0 {
		t.Fatalf("dissector = %q, refusing.calls = %d", r.Dissector, refusing.calls)
	}
}

func TestDissectNoPayload(t *testing.T) {
	reg := dissect.NewRegistry()
	d := &stub{name: "tcpbound", claim: true}
	reg.AddUint(dissect.TableTCPPort, 2424, d)

	e := New(reg, dissect.NewMemoryStore())
	r := e.Dissect(mkPacket(1, 6, 40000, 2424, nil))
	if r.Dissector != "" || d.calls != 0 {
		t.Fatalf("empty payload was dissected: %q, calls = %d", r.Dissector, d.calls)
	}
}

func TestDissectCachesByFrameNumber(t *testing.T) {
	reg := dissect.NewRegistry()
	d := &stub{name: "rtcp", claim: true}
	reg.AddUint(dissect.TableUDPPort, 5005, d)

	e := New(reg, dissect.NewMemoryStore())
	pkt := mkPacket(7, 17, 1, 5005, []byte{1, 2})
	r1 := e.Dissect(pkt)
	r2 := e.Dissect(pkt)
	if r1 != r2 {
		t.Fatal("repeat Dissect returned a different result")
	}
	if d.calls != 1 {
		t.Fatalf("dissector ran %d times for one frame", d.calls)
	}
	if got, ok := e.Result(7); !ok || got != r1 {
		t.Fatalf("Result(7) = %v, %v", got, ok)
	}
}

func TestRedissectRunsVisited(t *testing.T) {
	reg := dissect.NewRegistry()
	d := &stub{name: "rtcp", claim: true}
	reg.AddUint(dissect.TableUDPPort, 5005, d)

	e := New(reg, dissect.NewMemoryStore())
	pkt := mkPacket(3, 17, 1, 5005, []byte{1, 2})
	first := e.Dissect(pkt)
	second := e.Redissect(pkt)

	if second == first {
		t.Fatal("Redissect returned the cached result")
	}
	want := []bool{false, true}
	if len(d.visited) != 2 || d.visited[0] != want[0] || d.visited[1] != want[1] {
		t.Fatalf("visited flags = %v, want %v", d.visited, want)
	}
	if cached, _ := e.Result(3); cached != first {
		t.Fatal("Redissect replaced the cached first-pass result")
	}
}

func TestStreamRouting(t *testing.T) {
	reg := dissect.NewRegistry()
	d := &streamStub{stub{name: "tpncp", claim: true}}
	reg.AddUint(dissect.TableTCPPort, 2424, d)
	reg.AddUint(dissect.TableUDPPort, 2424, d)

	e := New(reg, dissect.NewMemoryStore())

	if r := e.Dissect(mkPacket(1, 6, 1, 2424, []byte{1})); r.Dissector != "tpncp" {
		t.Fatalf("tcp dissector = %q", r.Dissector)
	}
	if d.streamed != 1 {
		t.Fatalf("tcp payload used the datagram entry point, streamed = %d", d.streamed)
	}

	if r := e.Dissect(mkPacket(2, 17, 1, 2424, []byte{1})); r.Dissector != "tpncp" {
		t.Fatalf("udp dissector = %q", r.Dissector)
	}
	if d.streamed != 1 {
		t.Fatalf("udp payload used the stream entry point, streamed = %d", d.streamed)
	}
}

func TestSummarizeLabelsOnRecord(t *testing.T) {
	reg := dissect.NewRegistry()
	d := &labeledStub{
		stub:   stub{name: "sip", claim: true},
		labels: map[string]string{core.LabelSIPMethod: "INVITE"},
	}
	reg.AddUint(dissect.TableUDPPort, 5060, d)

	e := New(reg, dissect.NewMemoryStore())
	r := e.Dissect(mkPacket(1, 17, 1, 5060, []byte{1}))
	if r.Labels[core.LabelSIPMethod] != "INVITE" {
		t.Fatalf("labels = %v", r.Labels)
	}

	rec := r.Record()
	if rec.Labels[core.LabelSIPMethod] != "INVITE" || rec.Dissector != "sip" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestRecordFlattensError(t *testing.T) {
	reg := dissect.NewRegistry()
	d := &stub{name: "rtcp", claim: true, err: errors.New("truncated segment")}
	reg.AddUint(dissect.TableUDPPort, 5005, d)

	e := New(reg, dissect.NewMemoryStore())
	rec := e.Dissect(mkPacket(4, 17, 40000, 5005, []byte{1, 2, 3})).Record()

	if rec.Number != 4 || rec.Protocol != 17 || rec.SrcPort != 40000 || rec.DstPort != 5005 {
		t.Fatalf("record context = %+v", rec)
	}
	if rec.SrcIP != netip.MustParseAddr("10.0.0.1") || rec.DstIP != netip.MustParseAddr("10.0.0.2") {
		t.Fatalf("record addresses = %v -> %v", rec.SrcIP, rec.DstIP)
	}
	if rec.Err != "truncated segment" || rec.Consumed != 3 {
		t.Fatalf("record result = %+v", rec)
	}
}
