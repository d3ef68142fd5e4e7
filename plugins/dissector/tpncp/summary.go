package tpncp

import (
	"strconv"

	"github.com/tytonet/tyto/internal/core"
	"github.com/tytonet/tyto/pkg/dissect"
)

// Summarize distills the first decoded record of a tree into summary
// labels. TCP segments can carry several records; the summary follows
// the leading one, the tree still holds them all.
func (d *Dissector) Summarize(tree *dissect.Node) map[string]string {
	labels := map[string]string{}

	kind, id := "event", tree.Find("tpncp.event_id")
	if id == nil {
		kind, id = "command", tree.Find("tpncp.command_id")
	}
	if id != nil {
		if v, ok := id.Value.(uint32); ok {
			labels[core.LabelTPNCPKind] = kind
			labels[core.LabelTPNCPID] = strconv.FormatUint(uint64(v), 10)
			if d.schema != nil {
				catalog := d.schema.Commands
				if kind == "event" {
					catalog = d.schema.Events
				}
				if name, ok := catalog.Name(v); ok {
					labels[core.LabelTPNCPName] = name
				}
			}
		}
	}
	if n := tree.Find("tpncp.seq_number"); n != nil {
		if v, ok := n.Value.(uint16); ok {
			labels[core.LabelTPNCPSeq] = strconv.FormatUint(uint64(v), 10)
		}
	}

	if len(labels) == 0 {
		return nil
	}
	return labels
}
