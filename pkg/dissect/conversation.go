package dissect

import (
	"net/netip"
	"sync"
)

// FlowKey identifies a directed network flow by 5-tuple.
type FlowKey struct {
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
	Proto   uint8
}

// Reverse returns the key of the opposite direction of the same flow.
func (k FlowKey) Reverse() FlowKey {
	return FlowKey{
		SrcIP:   k.DstIP,
		DstIP:   k.SrcIP,
		SrcPort: k.DstPort,
		DstPort: k.SrcPort,
		Proto:   k.Proto,
	}
}

// ValueHandlerKey stores the dissector a signalling protocol pinned to the
// flow. The engine consults it before port tables and heuristics.
const ValueHandlerKey = "dissect.handler"

// Conversation holds state shared across the frames of one directed flow.
// Setup fields are written by the signalling dissector when it sees the
// session being established; protocol dissectors keep their own state under
// namespaced value keys, e.g. "rtcp.roundtrip".
type Conversation struct {
	Key FlowKey

	SetupMethod string // e.g. "SDP", empty when the flow was not announced
	SetupFrame  uint32 // frame that announced the flow

	mu   sync.Mutex
	vals map[string]any
}

// Value returns the state stored under key.
func (c *Conversation) Value(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vals[key]
	return v, ok
}

// SetValue stores state under key, replacing any previous value.
func (c *Conversation) SetValue(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vals == nil {
		c.vals = make(map[string]any)
	}
	c.vals[key] = v
}

// Store keeps conversations for one capture run. Implementations must be
// safe for concurrent use even though dissection itself is single-threaded;
// the signalling dissector and the CLI renderer may read concurrently.
type Store interface {
	// Lookup returns the conversation for the directed key, if present.
	Lookup(key FlowKey) (*Conversation, bool)
	// Ensure returns the conversation for the directed key, creating it
	// if absent.
	Ensure(key FlowKey) *Conversation
}

// MemoryStore is the in-process Store used for capture file analysis.
type MemoryStore struct {
	flows sync.Map // FlowKey -> *Conversation
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Lookup(key FlowKey) (*Conversation, bool) {
	v, ok := s.flows.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Conversation), true
}

func (s *MemoryStore) Ensure(key FlowKey) *Conversation {
	if v, ok := s.flows.Load(key); ok {
		return v.(*Conversation)
	}
	v, _ := s.flows.LoadOrStore(key, &Conversation{Key: key})
	return v.(*Conversation)
}

// Len returns the number of conversations. O(n), sync.Map keeps no count.
func (s *MemoryStore) Len() int {
	n := 0
	s.flows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Range iterates over all conversations. f returns false to stop.
func (s *MemoryStore) Range(f func(*Conversation) bool) {
	s.flows.Range(func(_, v any) bool {
		return f(v.(*Conversation))
	})
}

// NopStore discards all conversation state. Cross-frame analyses such as
// roundtrip estimation silently find nothing when it is used.
type NopStore struct{}

func (NopStore) Lookup(FlowKey) (*Conversation, bool) { return nil, false }
func (NopStore) Ensure(key FlowKey) *Conversation     { return &Conversation{Key: key} }

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = NopStore{}
)
