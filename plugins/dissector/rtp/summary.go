package rtp

import (
	"fmt"
	"strconv"

	"github.com/tytonet/tyto/internal/core"
	"github.com/tytonet/tyto/pkg/dissect"
)

// Summarize distills a dissected packet into the payload type, SSRC,
// sequencing and stream setup labels. The payload type name prefers the
// codec signalling negotiated, recorded in the setup branch.
func (d *Dissector) Summarize(tree *dissect.Node) map[string]string {
	labels := make(map[string]string)

	if n := tree.Find("rtp.p_type"); n != nil {
		if pt, ok := n.Value.(uint8); ok {
			name, static := payloadTypeNames[pt]
			switch {
			case static:
			case pt < dynamicPayloadTypeMin:
				name = "Unknown"
			default:
				name = fmt.Sprintf("DynamicRTP-Type-%d", pt)
				if c := tree.Find("rtp.setup.codec"); c != nil {
					if codec, ok := c.Value.(string); ok && codec != "" {
						name = codec
					}
				}
			}
			labels[core.LabelRTPPayloadType] = name
		}
	}
	if n := tree.Find("rtp.ssrc"); n != nil {
		if v, ok := n.Value.(uint32); ok {
			labels[core.LabelRTPSSRC] = fmt.Sprintf("0x%08x", v)
		}
	}
	if n := tree.Find("rtp.seq"); n != nil {
		if v, ok := n.Value.(uint16); ok {
			labels[core.LabelRTPSeq] = strconv.FormatUint(uint64(v), 10)
		}
	}
	if n := tree.Find("rtp.timestamp"); n != nil {
		if v, ok := n.Value.(uint32); ok {
			labels[core.LabelRTPTimestamp] = strconv.FormatUint(uint64(v), 10)
		}
	}
	if n := tree.Find("rtp.marker"); n != nil {
		if v, ok := n.Value.(bool); ok && v {
			labels[core.LabelRTPMarker] = "1"
		}
	}
	if n := tree.Find("rtp.setup.frame"); n != nil {
		if v, ok := n.Value.(uint32); ok {
			labels[core.LabelRTPSetup] = strconv.FormatUint(uint64(v), 10)
		}
	}

	if len(labels) == 0 {
		return nil
	}
	return labels
}
