package dissect

import (
	"net/netip"
	"time"
)

// Frame carries the transport metadata of one captured frame. It is built by
// the engine from the decoded packet headers and passed read-only to every
// dissector that runs on the frame's payload.
type Frame struct {
	Number    uint32 // 1-based capture sequence number
	Timestamp time.Time

	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
	Proto   uint8 // IP protocol number, TCP=6 UDP=17

	// Visited is false the first time the frame is dissected and true on
	// any re-dissection. Dissectors only mutate conversation state on the
	// first visit so repeated runs produce identical output.
	Visited bool
}

// Key returns the directed flow key of the frame.
func (f *Frame) Key() FlowKey {
	return FlowKey{
		SrcIP:   f.SrcIP,
		DstIP:   f.DstIP,
		SrcPort: f.SrcPort,
		DstPort: f.DstPort,
		Proto:   f.Proto,
	}
}

// ReverseKey returns the flow key of the opposite direction.
func (f *Frame) ReverseKey() FlowKey {
	return f.Key().Reverse()
}
