package rtcp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tytonet/tyto/internal/core"
	"github.com/tytonet/tyto/pkg/dissect"
)

// Summarize distills a decoded compound tree into summary labels: the
// packet type names in compound order, the first sender SSRC and, when
// present, the roundtrip and stream setup annotations. Encrypted
// segments have no type item and contribute no type name.
func (d *Dissector) Summarize(tree *dissect.Node) map[string]string {
	labels := map[string]string{}

	var types []string
	for _, seg := range tree.FindAll("rtcp") {
		pt := seg.Find("rtcp.pt")
		if pt == nil {
			continue
		}
		if v, ok := pt.Value.(uint8); ok {
			types = append(types, nameOrUnknown(packetTypeNames, v))
		}
	}
	if len(types) > 0 {
		labels[core.LabelRTCPTypes] = strings.Join(types, ",")
	}

	if n := tree.Find("rtcp.senderssrc"); n != nil {
		if v, ok := n.Value.(uint32); ok {
			labels[core.LabelRTCPSSRC] = fmt.Sprintf("0x%08x", v)
		}
	}
	if n := tree.Find("rtcp.roundtrip.delay"); n != nil {
		if v, ok := n.Value.(int64); ok {
			labels[core.LabelRTCPRoundtrip] = strconv.FormatInt(v, 10)
		}
	}
	if n := tree.Find("rtcp.setup.frame"); n != nil {
		if v, ok := n.Value.(uint32); ok {
			labels[core.LabelRTCPSetup] = strconv.FormatUint(uint64(v), 10)
		}
	}

	if len(labels) == 0 {
		return nil
	}
	return labels
}
