package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/tytonet/tyto/internal/core"
)

// Summary renders the one-line view of a record. Times are shown
// relative to base, which callers set to the first frame's timestamp.
func Summary(rec core.OutputRecord, base time.Time) string {
	src := fmt.Sprintf("%s:%d", rec.SrcIP, rec.SrcPort)
	dst := fmt.Sprintf("%s:%d", rec.DstIP, rec.DstPort)
	line := fmt.Sprintf("%6d %11.6f %21s -> %-21s %-6s %s",
		rec.Number, rec.Timestamp.Sub(base).Seconds(), src, dst,
		protoColumn(rec), infoColumn(rec))
	return strings.TrimRight(line, " ")
}

// Header renders the frame banner shown above a full tree dump.
func Header(rec core.OutputRecord, base time.Time) string {
	return fmt.Sprintf("Frame %d: %.6f %s:%d -> %s:%d %s",
		rec.Number, rec.Timestamp.Sub(base).Seconds(),
		rec.SrcIP, rec.SrcPort, rec.DstIP, rec.DstPort, protoColumn(rec))
}

func protoColumn(rec core.OutputRecord) string {
	if rec.Dissector != "" {
		return strings.ToUpper(rec.Dissector)
	}
	switch rec.Protocol {
	case protoTCP:
		return "TCP"
	case 17:
		return "UDP"
	default:
		return fmt.Sprintf("IP(%d)", rec.Protocol)
	}
}

// infoColumn builds the summary text from the record labels.
func infoColumn(rec core.OutputRecord) string {
	var parts []string
	switch rec.Dissector {
	case "sip":
		if m := rec.Labels[core.LabelSIPMethod]; m != "" {
			parts = append(parts, "Request: "+m)
		} else if s := rec.Labels[core.LabelSIPStatusCode]; s != "" {
			parts = append(parts, "Status: "+s)
		}
	case "rtp":
		if pt := rec.Labels[core.LabelRTPPayloadType]; pt != "" {
			parts = append(parts, "PT="+pt+",",
				"SSRC="+rec.Labels[core.LabelRTPSSRC]+",",
				"Seq="+rec.Labels[core.LabelRTPSeq]+",",
				"Time="+rec.Labels[core.LabelRTPTimestamp])
			if rec.Labels[core.LabelRTPMarker] != "" {
				parts[len(parts)-1] += ", Mark"
			}
		}
	case "rtcp":
		if t := rec.Labels[core.LabelRTCPTypes]; t != "" {
			parts = append(parts, strings.ReplaceAll(t, ",", ", "))
		} else {
			parts = append(parts, "encrypted")
		}
		if rt := rec.Labels[core.LabelRTCPRoundtrip]; rt != "" {
			parts = append(parts, fmt.Sprintf("(roundtrip %s ms)", rt))
		}
		if sf := rec.Labels[core.LabelRTCPSetup]; sf != "" {
			parts = append(parts, fmt.Sprintf("(setup frame %s)", sf))
		}
	case "tpncp":
		kind := rec.Labels[core.LabelTPNCPKind]
		name := rec.Labels[core.LabelTPNCPName]
		if name == "" {
			name = rec.Labels[core.LabelTPNCPID]
		}
		if kind != "" {
			parts = append(parts, strings.ToUpper(kind[:1])+kind[1:]+" "+name)
		}
		if seq := rec.Labels[core.LabelTPNCPSeq]; seq != "" {
			parts = append(parts, "(seq "+seq+")")
		}
	}
	if rec.Err != "" {
		parts = append(parts, "["+rec.Err+"]")
	}
	return strings.Join(parts, " ")
}
