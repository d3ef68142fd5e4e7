// Package dissect defines the contract between the analysis engine and
// protocol dissectors: the decoded field tree, the handler registry and the
// conversation store. A dissector receives the raw payload of one frame plus
// its transport metadata and attaches decoded fields to a caller-supplied
// tree. All cross-frame state lives in the conversation store so that a
// dissector itself stays stateless and re-runnable.
package dissect

// Dissector decodes one protocol payload into tree fields.
type Dissector interface {
	// Name returns the short protocol name, e.g. "rtcp".
	Name() string

	// Dissect decodes data and attaches fields to tree. It returns the
	// number of bytes consumed. Structural faults are recorded on the
	// tree as expert findings and additionally returned as an error;
	// bytes consumed up to the fault are still reported.
	Dissect(data []byte, frame *Frame, tree *Node) (int, error)
}

// Heuristic is implemented by dissectors that can claim a payload by
// inspection when no port registration matches.
type Heuristic interface {
	// CanHandle reports whether data looks like this dissector's protocol.
	// It must not mutate any shared state.
	CanHandle(data []byte, frame *Frame) bool
}

// StreamDissector is implemented by dissectors whose protocol frames
// records over a byte stream. The engine routes TCP payloads here so the
// dissector can walk back-to-back records and flag the trailing partial
// one, instead of treating the segment as a single datagram.
type StreamDissector interface {
	// DissectStream decodes as many complete records as data holds and
	// returns the number of bytes consumed.
	DissectStream(data []byte, frame *Frame, tree *Node) (int, error)
}

// Summarizer is implemented by dissectors that distill the tree they
// built into one-line summary labels, keyed by field name. The engine
// attaches the labels to the frame's output record.
type Summarizer interface {
	Summarize(tree *Node) map[string]string
}
