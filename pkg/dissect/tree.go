package dissect

import (
	"fmt"
	"strings"
)

// Severity grades expert findings attached to tree nodes.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Expert is a per-node analysis finding. Findings never abort decoding by
// themselves; a dissector that stops early does so explicitly.
type Expert struct {
	Severity Severity
	Summary  string
}

// Node is one entry in the decoded field tree. Offset and Length locate the
// field inside the payload handed to the dissector; Length may be amended
// after children are added via SetLength. Build trees from NewTree, never
// from a zero Node.
type Node struct {
	Field  string // dotted field path, e.g. "rtcp.sender.ssrc"
	Offset int
	Length int
	Value  any    // decoded value, nil for pure containers
	Text   string // rendered label; empty means derive from Field and Value

	parent   *Node
	children []*Node
	experts  []Expert
}

// NewTree returns an empty root node. The root itself carries no field; its
// children are the top-level protocol entries.
func NewTree() *Node {
	return &Node{}
}

// Add appends a leaf field and returns it.
func (n *Node) Add(field string, offset, length int, value any) *Node {
	child := &Node{Field: field, Offset: offset, Length: length, Value: value, parent: n}
	n.children = append(n.children, child)
	return child
}

// Addf appends a leaf field with an explicit label and returns it.
func (n *Node) Addf(field string, offset, length int, value any, format string, args ...any) *Node {
	child := n.Add(field, offset, length, value)
	child.Text = fmt.Sprintf(format, args...)
	return child
}

// Branch appends a container node with a label and returns it. Children are
// attached to the returned node.
func (n *Node) Branch(field string, offset, length int, format string, args ...any) *Node {
	child := n.Add(field, offset, length, nil)
	child.Text = fmt.Sprintf(format, args...)
	return child
}

// AppendText extends the node's rendered label in place.
func (n *Node) AppendText(format string, args ...any) {
	if n.Text == "" {
		n.Text = n.label()
	}
	n.Text += fmt.Sprintf(format, args...)
}

// SetLength amends the byte length once the true extent is known.
func (n *Node) SetLength(length int) {
	n.Length = length
}

// Expert attaches an analysis finding to the node.
func (n *Node) Expert(sev Severity, format string, args ...any) {
	n.experts = append(n.experts, Expert{Severity: sev, Summary: fmt.Sprintf(format, args...)})
}

// Parent returns the enclosing node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the direct children in insertion order.
func (n *Node) Children() []*Node { return n.children }

// Experts returns the findings attached directly to this node.
func (n *Node) Experts() []Expert { return n.experts }

// Find returns the first node with the given field path in depth-first
// order, or nil. The receiver itself is considered.
func (n *Node) Find(field string) *Node {
	if n.Field == field {
		return n
	}
	for _, c := range n.children {
		if m := c.Find(field); m != nil {
			return m
		}
	}
	return nil
}

// FindAll returns every node with the given field path in depth-first order.
func (n *Node) FindAll(field string) []*Node {
	var out []*Node
	if n.Field == field {
		out = append(out, n)
	}
	for _, c := range n.children {
		out = append(out, c.FindAll(field)...)
	}
	return out
}

// AllExperts collects the findings of the whole subtree in depth-first order.
func (n *Node) AllExperts() []Expert {
	out := append([]Expert(nil), n.experts...)
	for _, c := range n.children {
		out = append(out, c.AllExperts()...)
	}
	return out
}

// Walk visits the subtree in depth-first order. fn returns false to prune
// the current branch.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

func (n *Node) label() string {
	if n.Text != "" {
		return n.Text
	}
	if n.Value == nil {
		return n.Field
	}
	return fmt.Sprintf("%s: %s", n.Field, renderValue(n.Value))
}

// String renders the node's one-line label.
func (n *Node) String() string { return n.label() }

// Dump renders the subtree as an indented listing, one node per line, with
// expert findings inlined below their node. The root node itself is omitted
// when it carries no field.
func (n *Node) Dump() string {
	var b strings.Builder
	if n.Field == "" && n.Text == "" {
		for _, c := range n.children {
			c.dump(&b, 0)
		}
	} else {
		n.dump(&b, 0)
	}
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString(n.label())
	b.WriteByte('\n')
	for _, e := range n.experts {
		b.WriteString(indent)
		fmt.Fprintf(b, "  [%s] %s\n", e.Severity, e.Summary)
	}
	for _, c := range n.children {
		c.dump(b, depth+1)
	}
}

func renderValue(v any) string {
	switch val := v.(type) {
	case []byte:
		return fmt.Sprintf("%x", val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}
