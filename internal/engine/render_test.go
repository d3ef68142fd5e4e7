package engine

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/tytonet/tyto/internal/core"
)

func mkRecord(num uint32, dissector string, labels core.Labels) core.OutputRecord {
	base := time.Unix(1700000000, 0)
	return core.OutputRecord{
		Number:    num,
		Timestamp: base.Add(time.Duration(num) * time.Second),
		SrcIP:     netip.MustParseAddr("10.0.0.1"),
		DstIP:     netip.MustParseAddr("10.0.0.2"),
		SrcPort:   5060,
		DstPort:   5060,
		Protocol:  17,
		Dissector: dissector,
		Labels:    labels,
	}
}

func TestSummarySIPRequest(t *testing.T) {
	rec := mkRecord(1, "sip", core.Labels{core.LabelSIPMethod: "INVITE"})
	line := Summary(rec, time.Unix(1700000000, 0))

	for _, want := range []string{"1", "1.000000", "10.0.0.1:5060", "10.0.0.2:5060", "SIP", "Request: INVITE"} {
		if !strings.Contains(line, want) {
			t.Errorf("summary %q missing %q", line, want)
		}
	}
}

func TestSummarySIPStatus(t *testing.T) {
	rec := mkRecord(2, "sip", core.Labels{core.LabelSIPStatusCode: "200"})
	if line := Summary(rec, time.Unix(1700000000, 0)); !strings.Contains(line, "Status: 200") {
		t.Errorf("summary %q missing status", line)
	}
}

func TestSummaryRTP(t *testing.T) {
	rec := mkRecord(4, "rtp", core.Labels{
		core.LabelRTPPayloadType: "ITU-T G.711 PCMU",
		core.LabelRTPSSRC:        "0xdeadbeef",
		core.LabelRTPSeq:         "4242",
		core.LabelRTPTimestamp:   "160",
		core.LabelRTPMarker:      "1",
	})
	line := Summary(rec, time.Unix(1700000000, 0))

	want := "RTP    PT=ITU-T G.711 PCMU, SSRC=0xdeadbeef, Seq=4242, Time=160, Mark"
	if !strings.Contains(line, want) {
		t.Errorf("summary %q missing %q", line, want)
	}
}

func TestSummaryRTCP(t *testing.T) {
	rec := mkRecord(3, "rtcp", core.Labels{
		core.LabelRTCPTypes:     "Sender Report,Source description",
		core.LabelRTCPRoundtrip: "42",
		core.LabelRTCPSetup:     "1",
	})
	line := Summary(rec, time.Unix(1700000000, 0))

	for _, want := range []string{"RTCP", "Sender Report, Source description", "(roundtrip 42 ms)", "(setup frame 1)"} {
		if !strings.Contains(line, want) {
			t.Errorf("summary %q missing %q", line, want)
		}
	}
}

func TestSummaryEncryptedRTCP(t *testing.T) {
	rec := mkRecord(4, "rtcp", nil)
	if line := Summary(rec, time.Unix(1700000000, 0)); !strings.Contains(line, "encrypted") {
		t.Errorf("summary %q missing encrypted marker", line)
	}
}

func TestSummaryTPNCP(t *testing.T) {
	rec := mkRecord(5, "tpncp", core.Labels{
		core.LabelTPNCPKind: "event",
		core.LabelTPNCPName: "DSP_STATUS",
		core.LabelTPNCPSeq:  "7",
	})
	line := Summary(rec, time.Unix(1700000000, 0))
	if !strings.Contains(line, "Event DSP_STATUS (seq 7)") {
		t.Errorf("summary %q missing tpncp info", line)
	}
}

func TestSummaryUnclaimed(t *testing.T) {
	rec := mkRecord(6, "", nil)
	line := Summary(rec, time.Unix(1700000000, 0))
	if !strings.Contains(line, "UDP") {
		t.Errorf("summary %q missing transport fallback", line)
	}
	if strings.HasSuffix(line, " ") {
		t.Errorf("summary %q has trailing spaces", line)
	}
}

func TestSummaryError(t *testing.T) {
	rec := mkRecord(7, "tpncp", nil)
	rec.Err = "short record"
	if line := Summary(rec, time.Unix(1700000000, 0)); !strings.Contains(line, "[short record]") {
		t.Errorf("summary %q missing error marker", line)
	}
}

func TestHeader(t *testing.T) {
	rec := mkRecord(8, "rtcp", nil)
	h := Header(rec, time.Unix(1700000000, 0))
	for _, want := range []string{"Frame 8:", "8.000000", "10.0.0.1:5060 -> 10.0.0.2:5060", "RTCP"} {
		if !strings.Contains(h, want) {
			t.Errorf("header %q missing %q", h, want)
		}
	}
}
