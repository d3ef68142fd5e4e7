// Package engine drives per-frame dissection: it picks the dissector for
// a decoded packet, runs it against a fresh tree and caches the result by
// frame number.
//
// Selection follows the conversation store first, so flows that
// signalling pinned to a protocol never fall back to guessing: an exact
// flow pin wins, then the destination and source port tables, then the
// registered heuristics in order. A candidate that consumes nothing and
// leaves the tree empty has declined the payload and the next candidate
// runs.
//
// Dissect runs each frame once and returns the cached result on any
// repeat call. Redissect reruns a frame against the full conversation
// state accumulated by a complete first pass, with the frame marked
// visited so dissectors leave that state untouched; its result is not
// cached, every rerun derives from the same first-pass world.
package engine

import (
	"github.com/tytonet/tyto/internal/core"
	"github.com/tytonet/tyto/internal/log"
	"github.com/tytonet/tyto/internal/metrics"
	"github.com/tytonet/tyto/pkg/dissect"
)

const protoTCP = 6

// Result is the dissection outcome of one frame.
type Result struct {
	Frame     dissect.Frame
	Packet    core.DecodedPacket
	Tree      *dissect.Node
	Dissector string // "" when no dissector claimed the payload
	Consumed  int
	Labels    core.Labels
	Err       error
}

// Record flattens the result into the renderer-facing output record.
func (r *Result) Record() core.OutputRecord {
	rec := core.OutputRecord{
		Number:    r.Packet.Number,
		Timestamp: r.Packet.Timestamp,
		SrcIP:     r.Packet.IP.SrcIP,
		DstIP:     r.Packet.IP.DstIP,
		SrcPort:   r.Packet.Transport.SrcPort,
		DstPort:   r.Packet.Transport.DstPort,
		Protocol:  r.Packet.Transport.Protocol,
		Dissector: r.Dissector,
		Labels:    r.Labels,
		Consumed:  r.Consumed,
	}
	if r.Err != nil {
		rec.Err = r.Err.Error()
	}
	return rec
}

// Engine dispatches decoded packets to dissectors.
type Engine struct {
	registry *dissect.Registry
	store    dissect.Store
	byName   map[string]dissect.Dissector
	results  map[uint32]*Result
	log      log.Logger
}

// New builds an engine over a registry and a conversation store. A nil
// store disables cross-frame state.
func New(registry *dissect.Registry, store dissect.Store) *Engine {
	if store == nil {
		store = dissect.NopStore{}
	}
	return &Engine{
		registry: registry,
		store:    store,
		byName:   make(map[string]dissect.Dissector),
		results:  make(map[uint32]*Result),
		log:      log.GetLogger(),
	}
}

// Register makes a dissector resolvable by name, which is how
// conversation pins refer to it. Port and heuristic bindings are added
// on the registry directly.
func (e *Engine) Register(d dissect.Dissector) {
	e.byName[d.Name()] = d
}

// Store returns the conversation store the engine consults.
func (e *Engine) Store() dissect.Store { return e.store }

// Dissect runs the frame through dissector selection and returns the
// result. A frame number already dissected returns its cached result
// unchanged, so feeding the same capture twice is harmless.
func (e *Engine) Dissect(pkt core.DecodedPacket) *Result {
	if r, ok := e.results[pkt.Number]; ok {
		return r
	}
	r := e.run(pkt, false)
	e.results[pkt.Number] = r

	if r.Dissector != "" {
		metrics.FramesTotal.WithLabelValues(r.Dissector).Inc()
		if r.Err != nil {
			metrics.FrameErrorsTotal.WithLabelValues(r.Dissector).Inc()
		}
	}
	for _, ex := range r.Tree.AllExperts() {
		metrics.ExpertsTotal.WithLabelValues(ex.Severity.String()).Inc()
	}
	if c, ok := e.store.(interface{ Len() int }); ok {
		metrics.ConversationsActive.Set(float64(c.Len()))
	}
	return r
}

// Redissect reruns a frame with the visited flag set and returns a fresh
// result. The cached first-pass result stays as it is; conversation
// state is read but never changed, so reruns in any order agree.
func (e *Engine) Redissect(pkt core.DecodedPacket) *Result {
	return e.run(pkt, true)
}

// Result returns the cached first-pass result for a frame number.
func (e *Engine) Result(number uint32) (*Result, bool) {
	r, ok := e.results[number]
	return r, ok
}

func (e *Engine) run(pkt core.DecodedPacket, visited bool) *Result {
	frame := frameOf(pkt, visited)
	r := &Result{Frame: frame, Packet: pkt, Tree: dissect.NewTree()}
	if len(pkt.Payload) == 0 {
		return r
	}

	for _, d := range e.candidates(pkt, &frame) {
		tree := dissect.NewTree()
		n, err := invoke(d, pkt.Payload, &frame, tree, pkt.Transport.Protocol)
		if n == 0 && err == nil && len(tree.Children()) == 0 {
			// Declined: nothing consumed, nothing decoded.
			continue
		}
		r.Dissector, r.Tree, r.Consumed, r.Err = d.Name(), tree, n, err
		if s, ok := d.(dissect.Summarizer); ok {
			if labels := s.Summarize(tree); len(labels) > 0 {
				r.Labels = core.Labels(labels)
			}
		}
		break
	}

	if e.log.IsTraceEnabled() {
		if r.Dissector == "" {
			e.log.Tracef("frame %d: no dissector claimed %d payload bytes", pkt.Number, len(pkt.Payload))
		} else {
			e.log.Tracef("frame %d: %s consumed %d of %d bytes", pkt.Number, r.Dissector, r.Consumed, len(pkt.Payload))
		}
	}
	return r
}

// candidates returns the dissectors to offer the payload to, most
// specific first: the conversation pin, the destination then source port
// binding, then every heuristic that recognises the bytes.
func (e *Engine) candidates(pkt core.DecodedPacket, frame *dissect.Frame) []dissect.Dissector {
	var out []dissect.Dissector
	seen := make(map[string]bool)
	add := func(d dissect.Dissector) {
		if d != nil && !seen[d.Name()] {
			seen[d.Name()] = true
			out = append(out, d)
		}
	}

	if conv, ok := e.store.Lookup(frame.Key()); ok {
		if v, ok := conv.Value(dissect.ValueHandlerKey); ok {
			if name, ok := v.(string); ok {
				add(e.byName[name])
			}
		}
	}

	table, parent := dissect.TableUDPPort, "udp"
	if frame.Proto == protoTCP {
		table, parent = dissect.TableTCPPort, "tcp"
	}
	if d, ok := e.registry.LookupUint(table, uint32(frame.DstPort)); ok {
		add(d)
	}
	if d, ok := e.registry.LookupUint(table, uint32(frame.SrcPort)); ok {
		add(d)
	}
	for _, d := range e.registry.Heuristics(parent) {
		if h, ok := d.(dissect.Heuristic); ok && h.CanHandle(pkt.Payload, frame) {
			add(d)
		}
	}
	return out
}

// invoke routes TCP payloads to the stream entry point when the
// dissector has one, so multi-record segments decode record by record.
func invoke(d dissect.Dissector, payload []byte, frame *dissect.Frame, tree *dissect.Node, proto uint8) (int, error) {
	if proto == protoTCP {
		if sd, ok := d.(dissect.StreamDissector); ok {
			return sd.DissectStream(payload, frame, tree)
		}
	}
	return d.Dissect(payload, frame, tree)
}

func frameOf(pkt core.DecodedPacket, visited bool) dissect.Frame {
	return dissect.Frame{
		Number:    pkt.Number,
		Timestamp: pkt.Timestamp,
		SrcIP:     pkt.IP.SrcIP,
		DstIP:     pkt.IP.DstIP,
		SrcPort:   pkt.Transport.SrcPort,
		DstPort:   pkt.Transport.DstPort,
		Proto:     pkt.Transport.Protocol,
		Visited:   visited,
	}
}
